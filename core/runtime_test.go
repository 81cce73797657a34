package core

import (
	"bytes"
	"errors"

	"github.com/sarchlab/davidrt/config"
	"github.com/sarchlab/davidrt/driver/simdriver"
	"github.com/sarchlab/davidrt/rterr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Runtime", func() {
	var (
		logs *bytes.Buffer
		rt   *Runtime
		dev  *simdriver.Device
	)

	BeforeEach(func() {
		logs = new(bytes.Buffer)
		rt = MakeBuilder().WithLogWriter(logs).Build("Runtime")
		dev = simdriver.MakeBuilder().Build("Device[0]")
	})

	It("should hand out increasing task sequence numbers", func() {
		Expect(rt.LastTaskSn()).To(BeZero())
		Expect(rt.NextTaskSn()).To(Equal(uint64(1)))
		Expect(rt.NextTaskSn()).To(Equal(uint64(2)))
		Expect(rt.LastTaskSn()).To(Equal(uint64(2)))
	})

	It("should keep independent runtimes apart", func() {
		other := MakeBuilder().WithLogWriter(logs).Build("Other")

		rt.NextTaskSn()

		Expect(other.NextTaskSn()).To(Equal(uint64(1)))
		Expect(other.Session()).NotTo(Equal(rt.Session()))
	})

	It("should register devices once", func() {
		d, err := rt.AddDevice(dev, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Channel().DeviceID()).To(Equal(uint32(0)))

		_, err = rt.AddDevice(dev, 0, 0)
		Expect(rterr.Is(err, rterr.ErrInvalidValue)).To(BeTrue())

		found, ok := rt.Device(0)
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(d))
		Expect(rt.Devices()).To(HaveLen(1))
		Expect(logs.String()).To(ContainSubstring("device added"))
	})

	It("should report abort and down states", func() {
		d, _ := rt.AddDevice(dev, 0, 0)
		Expect(d.AbortStatus()).To(Succeed())

		d.Abort()
		Expect(rterr.Is(d.AbortStatus(), rterr.ErrDeviceAbort)).To(BeTrue())

		d.ClearAbort()
		dev.SetDown(true)
		Expect(d.IsDown()).To(BeTrue())
		Expect(rterr.Is(d.AbortStatus(), rterr.ErrDeviceAbort)).To(BeTrue())
	})

	It("should tear down in reverse order", func() {
		var order []int
		failure := errors.New("second failed")

		rt.OnClose(func() error { order = append(order, 1); return nil })
		rt.OnClose(func() error { order = append(order, 2); return failure })
		rt.OnClose(func() error { order = append(order, 3); return nil })

		Expect(rt.Close()).To(MatchError(failure))
		Expect(order).To(Equal([]int{3, 2, 1}))
		Expect(rt.IsClosed()).To(BeTrue())
		Expect(rt.Close()).To(Succeed())

		_, err := rt.AddDevice(dev, 0, 0)
		Expect(rterr.Is(err, rterr.ErrContextAbort)).To(BeTrue())
	})

	It("should rate limit diagnostic dumps per category", func() {
		cfg := config.Default()
		cfg.DFXDumps = 2
		rt = MakeBuilder().WithConfig(cfg).WithLogWriter(logs).Build("Runtime")

		Expect(rt.AllowDump(1)).To(BeTrue())
		Expect(rt.AllowDump(1)).To(BeTrue())
		Expect(rt.AllowDump(1)).To(BeFalse())
		Expect(rt.AllowDump(2)).To(BeTrue())
	})

	It("should panic on an invalid configuration", func() {
		cfg := config.Default()
		cfg.RingDepth = 1

		Expect(func() { MakeBuilder().WithConfig(cfg).Build("Runtime") }).To(Panic())
	})

	It("should panic when a task may take more slots than a ring has", func() {
		cfg := config.Default()
		cfg.RingDepth = 8

		Expect(func() { MakeBuilder().WithConfig(cfg).Build("Runtime") }).To(Panic())

		cfg.MaxSqePerTask = 4
		cfg.CaptureReserved = 2
		r := MakeBuilder().WithConfig(cfg).WithLogWriter(&bytes.Buffer{}).Build("Runtime")
		Expect(r.Close()).To(Succeed())
	})
})
