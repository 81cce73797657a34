package task

import (
	"github.com/sarchlab/davidrt/rterr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Payload", func() {
	DescribeTable("record counts",
		func(p Payload, kind Kind, n int) {
			Expect(p.Kind()).To(Equal(kind))
			Expect(p.SqeNum()).To(Equal(uint16(n)))
		},
		Entry("kernel without inline args",
			KernelLaunch{}, KindKernelLaunch, 1),
		Entry("kernel with 65 bytes of inline args",
			KernelLaunch{InlineArgs: make([]byte, 65)}, KindKernelLaunch, 3),
		Entry("small copy", Memcpy{Size: 1024}, KindMemcpy, 1),
		Entry("huge copy", Memcpy{Size: 1 << 33}, KindMemcpy, 2),
		Entry("count record", CountNotify{}, KindCountNotifyRecord, 1),
		Entry("count wait", CountNotify{Wait: true}, KindCountNotifyWait, 1),
		Entry("stream active", StreamActive{}, KindStreamActive, 1),
	)

	It("should reject payloads that do not fit in one task", func() {
		big := KernelLaunch{InlineArgs: make([]byte, 40*KernelArgsPerRecord)}

		err := ValidatePayload(big, MaxSqeNum)
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())

		err = ValidatePayload(nil, MaxSqeNum)
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())

		Expect(ValidatePayload(EventRecord{}, MaxSqeNum)).To(Succeed())
	})
})

var _ = Describe("Descriptor", func() {
	It("should derive the kind and concern flag from the payload", func() {
		d := &Descriptor{}
		d.Fill(EventRecord{EventID: 3})

		Expect(d.Kind).To(Equal(KindEventRecord))
		Expect(d.CqeNeedConcern).To(BeTrue())
	})

	It("should combine flip and position", func() {
		d := &Descriptor{ID: 7, FlipNum: 2}

		Expect(d.FlipTaskID()).To(Equal(uint32(2<<16 | 7)))
	})

	It("should release its arguments once", func() {
		pool := NewArgPool(16)
		d := &Descriptor{Args: pool.Get()}
		Expect(pool.InUse()).To(Equal(int64(1)))

		d.ReleaseArgs()
		d.ReleaseArgs()

		Expect(pool.InUse()).To(Equal(int64(0)))
		Expect(d.Args).To(BeNil())
	})

	It("should reset to zero", func() {
		d := &Descriptor{ID: 3, TaskSn: 9, Payload: PlaceHolder{}}
		d.Reset()

		Expect(*d).To(Equal(Descriptor{}))
	})
})
