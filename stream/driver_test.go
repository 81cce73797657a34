package stream_test

import (
	"context"
	"errors"
	"io"

	"github.com/sarchlab/davidrt/core"
	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/stream"
	"go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Driver failures", func() {
	var (
		mockCtrl *gomock.Controller
		drv      *MockDriver
		rt       *core.Runtime
		c        *stream.Context
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		drv = NewMockDriver(mockCtrl)

		rt = core.MakeBuilder().
			WithConfig(testConfig()).
			WithLogWriter(io.Discard).
			Build("Runtime")
		dev, err := rt.AddDevice(drv, 0, 0)
		Expect(err).NotTo(HaveOccurred())

		c = stream.NewContext(rt, dev)

		drv.EXPECT().DeviceState(uint32(0)).Return(driver.StateRunning).AnyTimes()
		drv.EXPECT().FreeSqCq(uint32(0), uint32(0), gomock.Any(), gomock.Any()).
			Return(nil).AnyTimes()
	})

	AfterEach(func() {
		Expect(rt.Close()).To(Succeed())
		mockCtrl.Finish()
	})

	It("should report exhausted queues", func() {
		drv.EXPECT().
			AllocSqCq(uint32(0), uint32(0), uint16(8), driver.SqFlag(0)).
			Return(uint32(0), uint32(0), driver.ErrExhausted)

		_, err := c.CreateStream()

		Expect(rterr.Is(err, rterr.ErrResourceExhausted)).To(BeTrue())
		Expect(c.Streams()).To(BeEmpty())
	})

	It("should create bound streams inactive", func() {
		drv.EXPECT().
			AllocSqCq(uint32(0), uint32(0), uint16(8), driver.SqInactive).
			Return(uint32(3), uint32(4), nil)

		s, err := c.StreamBuilder().WithBound(true).Build("")

		Expect(err).NotTo(HaveOccurred())
		Expect(s.SqID()).To(Equal(uint32(3)))
		Expect(s.CqID()).To(Equal(uint32(4)))
	})

	It("should report a failing head query", func() {
		drv.EXPECT().
			AllocSqCq(uint32(0), uint32(0), uint16(8), driver.SqFlag(0)).
			Return(uint32(1), uint32(1), nil)
		drv.EXPECT().
			PollCq(uint32(0), uint32(0), uint32(1), gomock.Any()).
			Return([]driver.CQE{{SqID: 1, Pos: 0, Error: 7}}, nil)
		drv.EXPECT().
			SqHead(uint32(0), uint32(0), uint32(1)).
			Return(uint16(0), errors.New("bus error"))

		s, err := c.CreateStream()
		Expect(err).NotTo(HaveOccurred())

		err = s.TryRecycle(context.Background())

		Expect(rterr.Is(err, rterr.ErrDrv)).To(BeTrue())
	})

	It("should release the count notify with the stream", func() {
		drv.EXPECT().
			AllocSqCq(uint32(0), uint32(0), uint16(8), driver.SqFlag(0)).
			Return(uint32(1), uint32(1), nil)
		drv.EXPECT().AllocNotifyID(uint32(0), uint32(0)).Return(uint32(9), nil)
		drv.EXPECT().FreeNotifyID(uint32(0), uint32(0), uint32(9)).Return(nil)

		s, err := c.CreateStream()
		Expect(err).NotTo(HaveOccurred())

		id, err := s.ApplyCntNotifyID()
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(uint32(9)))

		Expect(c.DestroyStream(s)).To(Succeed())
	})
})
