package hooking

import "sync"

// CountHook counts how many times each hook position has been triggered.
type CountHook struct {
	lock   sync.Mutex
	names  []string
	counts map[string]uint64
}

// NewCountHook creates a new CountHook.
func NewCountHook() *CountHook {
	return &CountHook{counts: make(map[string]uint64)}
}

// Func counts the position of the hook context.
func (h *CountHook) Func(ctx HookCtx) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.counts[ctx.Pos.Name]; !ok {
		h.names = append(h.names, ctx.Pos.Name)
	}

	h.counts[ctx.Pos.Name]++
}

// Count returns the number of times the position has been triggered.
func (h *CountHook) Count(pos *HookPos) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.counts[pos.Name]
}

// Names returns the names of the positions triggered so far, in order of
// first appearance.
func (h *CountHook) Names() []string {
	h.lock.Lock()
	defer h.lock.Unlock()

	names := make([]string, len(h.names))
	copy(names, h.names)

	return names
}
