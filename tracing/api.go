package tracing

import (
	"fmt"
	"reflect"
	"time"

	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/stream"
	"github.com/sarchlab/davidrt/task"
)

// NamedHookable is something that has a name and can be hooked.
type NamedHookable interface {
	Name() string
	hooking.Hookable
}

// CollectTrace lets the tracer collect the tasks of a stream. A tracer can
// only be attached to a domain once.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		h, ok := hook.(*traceHook)
		if ok && h.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer, now: time.Now})
}

// A traceHook turns stream hook invocations into tracer calls.
type traceHook struct {
	t   Tracer
	now func() time.Time
}

func (h *traceHook) Func(ctx hooking.HookCtx) {
	var notify func(Task)

	switch ctx.Pos {
	case stream.HookPosTaskSubmit:
		notify = h.t.SubmitTask
	case stream.HookPosTaskComplete:
		notify = h.t.CompleteTask
	default:
		return
	}

	d, ok := ctx.Item.(task.Descriptor)
	if !ok {
		return
	}

	where := ""
	if named, ok := ctx.Domain.(NamedHookable); ok {
		where = named.Name()
	}

	notify(taskOf(d, where, h.now()))
}
