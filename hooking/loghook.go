package hooking

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Named is implemented by domains that have a name.
type Named interface {
	Name() string
}

// LogHook writes every hook invocation to a logger at debug level.
type LogHook struct {
	logger zerolog.Logger
}

// NewLogHook creates a LogHook that writes to logger.
func NewLogHook(logger zerolog.Logger) *LogHook {
	return &LogHook{logger: logger}
}

// Func logs the hook context.
func (h *LogHook) Func(ctx HookCtx) {
	e := h.logger.Debug().Str("pos", ctx.Pos.Name)
	if !e.Enabled() {
		return
	}

	if named, ok := ctx.Domain.(Named); ok {
		e = e.Str("domain", named.Name())
	}

	if ctx.Item != nil {
		e = e.Str("item", describe(ctx.Item))
	}

	e.Msg("hook")
}

func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	return fmt.Sprintf("%+v", v)
}
