package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var posA = &HookPos{Name: "A"}
var posB = &HookPos{Name: "B"}

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		base     *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		base = &HookableBase{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke registered hooks", func() {
		hook := NewMockHook(mockCtrl)
		base.AcceptHook(hook)

		ctx := HookCtx{Pos: posA, Item: 1}
		hook.EXPECT().Func(ctx)

		base.InvokeHook(ctx)
		Expect(base.NumHooks()).To(Equal(1))
	})

	It("should panic on duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should accept function hooks", func() {
		called := 0
		base.AcceptHook(HookFunc(func(HookCtx) { called++ }))
		base.AcceptHook(HookFunc(func(HookCtx) { called++ }))

		base.InvokeHook(HookCtx{Pos: posA})

		Expect(called).To(Equal(2))
		Expect(base.Hooks()).To(HaveLen(2))
	})
})

var _ = Describe("CountHook", func() {
	It("should count positions", func() {
		h := NewCountHook()
		base := &HookableBase{}
		base.AcceptHook(h)

		base.InvokeHook(HookCtx{Pos: posB})
		base.InvokeHook(HookCtx{Pos: posA})
		base.InvokeHook(HookCtx{Pos: posB})

		Expect(h.Count(posA)).To(Equal(uint64(1)))
		Expect(h.Count(posB)).To(Equal(uint64(2)))
		Expect(h.Names()).To(Equal([]string{"B", "A"}))
	})
})
