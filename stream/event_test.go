package stream_test

import (
	"context"
	"time"

	"github.com/sarchlab/davidrt/driver/simdriver"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/stream"
	"github.com/sarchlab/davidrt/task"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Event", func() {
	var (
		ctx    context.Context
		e      *env
		s1, s2 *stream.Stream
	)

	BeforeEach(func() {
		ctx = context.Background()
		e = newEnv(simdriver.MakeBuilder().WithMaxNotifies(8).Build("Device[0]"))

		var err error
		s1, err = e.c.CreateStream()
		Expect(err).NotTo(HaveOccurred())
		s2, err = e.c.CreateStream()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should count as complete before it is recorded", func() {
		ev, err := e.c.CreateEvent()
		Expect(err).NotTo(HaveOccurred())

		done, err := ev.Query()
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())

		Expect(ev.Wait(ctx, s2, stream.Infinite)).To(Succeed())
		Expect(s2.Ring().InFlight()).To(BeZero())
		Expect(ev.Synchronize(ctx, time.Millisecond)).To(Succeed())
	})

	It("should make another stream wait for the record", func() {
		ev, err := e.c.CreateEvent()
		Expect(err).NotTo(HaveOccurred())

		Expect(ev.Record(ctx, s1)).To(Succeed())
		Expect(ev.IsRecorded()).To(BeTrue())
		Expect(ev.Wait(ctx, s2, stream.Infinite)).To(Succeed())

		done, err := ev.Query()
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeFalse())

		Expect(e.sim.Step(s2.SqID(), 1)).To(BeZero())
		Expect(e.sim.Step(s1.SqID(), 1)).To(Equal(1))
		Expect(e.sim.Step(s2.SqID(), 1)).To(Equal(1))

		done, err = ev.Query()
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())
		Expect(ev.Synchronize(ctx, time.Second)).To(Succeed())
	})

	It("should time out a host wait on an unexecuted record", func() {
		ev, err := e.c.CreateEvent()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Record(ctx, s1)).To(Succeed())

		err = ev.Synchronize(ctx, time.Millisecond)

		Expect(rterr.Is(err, rterr.ErrSyncTimeout)).To(BeTrue())
	})

	It("should forget the record on reset", func() {
		ev, err := e.c.CreateEvent()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Record(ctx, s1)).To(Succeed())

		Expect(ev.Reset(ctx, s1)).To(Succeed())

		Expect(ev.IsRecorded()).To(BeFalse())
		e.sim.Step(s1.SqID(), 2)
		Expect(e.sim.NotifyValue(ev.NotifyID())).To(BeZero())
	})

	It("should not be usable after it is destroyed", func() {
		ev, err := e.c.CreateEvent()
		Expect(err).NotTo(HaveOccurred())

		Expect(ev.Destroy()).To(Succeed())
		Expect(ev.Destroy()).To(Succeed())

		err = ev.Record(ctx, s1)
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())
	})

	It("should run out of notifies", func() {
		for i := 0; i < 8; i++ {
			_, err := e.c.CreateEvent()
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := e.c.CreateEvent()
		Expect(rterr.Is(err, rterr.ErrResourceExhausted)).To(BeTrue())
	})

	Context("timeline", func() {
		It("should record through the count notify of the stream", func() {
			ev, err := e.c.CreateTimelineEvent()
			Expect(err).NotTo(HaveOccurred())

			Expect(ev.Record(ctx, s1)).To(Succeed())
			cntID, ok := s1.CntNotifyID()
			Expect(ok).To(BeTrue())

			Expect(ev.Wait(ctx, s2, stream.Infinite)).To(Succeed())
			Expect(e.sim.Step(s2.SqID(), 1)).To(BeZero())

			Expect(e.sim.Step(s1.SqID(), 1)).To(Equal(1))
			Expect(e.sim.NotifyValue(cntID)).To(Equal(uint32(1)))
			Expect(e.sim.Step(s2.SqID(), 1)).To(Equal(1))

			Expect(ev.Record(ctx, s1)).To(Succeed())
			e.sim.Step(s1.SqID(), 1)
			Expect(e.sim.NotifyValue(cntID)).To(Equal(uint32(2)))
		})

		It("should fall back to its own notify past the threshold", func() {
			ev, err := e.c.CreateTimelineEvent()
			Expect(err).NotTo(HaveOccurred())

			_, err = s1.ApplyCntNotifyID()
			Expect(err).NotTo(HaveOccurred())
			stream.ExhaustCntNotify(s1)
			Expect(s1.IsCntNotifyReachThreshold()).To(BeTrue())

			Expect(ev.Record(ctx, s1)).To(Succeed())
			e.sim.Step(s1.SqID(), 1)

			Expect(e.sim.NotifyValue(ev.NotifyID())).To(Equal(uint32(1)))
		})
	})
})

var _ = Describe("Count notify of a stream", func() {
	var s *stream.Stream

	BeforeEach(func() {
		e := newEnv(simdriver.MakeBuilder().Build("Device[0]"))

		var err error
		s, err = e.c.CreateStream()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should hand out versions only after the notify is applied", func() {
		_, err := s.ApplyCntValue()
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())
		Expect(s.IsCntNotifyReachThreshold()).To(BeFalse())

		id, err := s.ApplyCntNotifyID()
		Expect(err).NotTo(HaveOccurred())

		again, err := s.ApplyCntNotifyID()
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(id))

		Expect(s.ApplyCntValue()).To(Equal(uint32(1)))
		Expect(s.ApplyCntValue()).To(Equal(uint32(2)))
	})
})

var _ = Describe("Notify", func() {
	var (
		ctx    context.Context
		e      *env
		s1, s2 *stream.Stream
	)

	BeforeEach(func() {
		ctx = context.Background()
		e = newEnv(simdriver.MakeBuilder().Build("Device[0]"))

		var err error
		s1, err = e.c.CreateStream()
		Expect(err).NotTo(HaveOccurred())
		s2, err = e.c.CreateStream()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should block the waiter until recorded", func() {
		n, err := e.c.CreateNotify()
		Expect(err).NotTo(HaveOccurred())

		_, err = n.Wait(ctx, s2, stream.Infinite)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.sim.Step(s2.SqID(), 1)).To(BeZero())

		_, err = n.Record(ctx, s1)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.sim.Step(s1.SqID(), 1)).To(Equal(1))
		Expect(e.sim.Step(s2.SqID(), 1)).To(Equal(1))

		Expect(e.sim.NotifyValue(n.ID())).To(BeZero())
		Expect(n.Destroy()).To(Succeed())
	})

	It("should count towards a target value", func() {
		cn, err := e.c.CreateCountNotify()
		Expect(err).NotTo(HaveOccurred())

		_, err = cn.Wait(ctx, s2, 5, task.CountModeWaitEqual, time.Second)
		Expect(err).NotTo(HaveOccurred())

		_, err = cn.Record(ctx, s1, 3, task.CountModeSet)
		Expect(err).NotTo(HaveOccurred())
		_, err = cn.Record(ctx, s1, 2, task.CountModeAdd)
		Expect(err).NotTo(HaveOccurred())

		Expect(e.sim.Step(s2.SqID(), 1)).To(BeZero())
		Expect(e.sim.Step(s1.SqID(), 2)).To(Equal(2))
		Expect(e.sim.NotifyValue(cn.ID())).To(Equal(uint32(5)))
		Expect(e.sim.Step(s2.SqID(), 1)).To(Equal(1))

		_, err = cn.Reset(ctx, s1)
		Expect(err).NotTo(HaveOccurred())
		e.sim.Step(s1.SqID(), 1)
		Expect(e.sim.NotifyValue(cn.ID())).To(BeZero())
	})

	It("should reject modes that do not fit the operation", func() {
		cn, err := e.c.CreateCountNotify()
		Expect(err).NotTo(HaveOccurred())

		_, err = cn.Record(ctx, s1, 1, task.CountModeWaitEqual)
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())

		_, err = cn.Wait(ctx, s1, 1, task.CountModeAdd, stream.Infinite)
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())
	})
})
