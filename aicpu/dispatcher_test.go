package aicpu

import (
	"fmt"
	"time"

	"github.com/brickingsoft/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/rterr"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Dispatcher", func() {
	var (
		bus    *Bus
		client *Recorder
		qs     *QueueScheduler
		d      *Dispatcher
	)

	request := func(sub SubEvent, token uint64, routes ...Route) {
		Expect(bus.Send("Dispatcher", Event{
			SubEvent: sub,
			Src:      "Client",
			UserData: token,
			Routes:   routes,
		})).To(Succeed())
		bus.Deliver()
	}

	last := func() Event {
		events := client.Events()
		Expect(events).NotTo(BeEmpty())

		return events[len(events)-1]
	}

	BeforeEach(func() {
		bus = NewBus()
		client = &Recorder{}
		qs = NewQueueScheduler("QueueScheduler", bus, 42)
		d = MakeBuilder().
			WithTransport(bus).
			WithTimeout(time.Second).
			Build("Dispatcher")

		bus.Register("Client", client)
		bus.Register("QueueScheduler", qs)
		bus.Register("Dispatcher", d)
	})

	It("should panic without a transport", func() {
		Expect(func() { MakeBuilder().Build("Dispatcher") }).To(Panic())
	})

	It("should complete bind queue init through the queue scheduler", func() {
		request(SubEventBindQueueInit, 7)

		Expect(client.Events()).To(HaveLen(1))
		res := last()
		Expect(res.SubEvent).To(Equal(SubEventBindQueueInitRes))
		Expect(res.Src).To(Equal("Dispatcher"))
		Expect(res.UserData).To(Equal(uint64(7)))
		Expect(res.RetCode).To(Equal(RetOK))
		Expect(res.Value).To(Equal(uint32(42)))
		Expect(d.IsInitialized()).To(BeTrue())
		Expect(d.PipelineQueueID()).To(Equal(uint32(42)))
		Expect(d.NumPending()).To(Equal(0))
		Expect(d.Groups().Created()).To(Equal(uint64(1)))
	})

	It("should reject a repeated bind queue init", func() {
		request(SubEventBindQueueInit, 1)
		request(SubEventBindQueueInit, 2)

		Expect(client.Events()).To(HaveLen(2))
		res := last()
		Expect(res.UserData).To(Equal(uint64(2)))
		Expect(res.RetCode).To(Equal(RetRepeatedInit))
		Expect(d.Groups().Created()).To(Equal(uint64(1)))
	})

	It("should reject bind queue init while one is in flight", func() {
		qs.SetMuted(true)

		request(SubEventBindQueueInit, 1)
		Expect(client.Events()).To(BeEmpty())

		request(SubEventBindQueueInit, 2)
		Expect(client.Events()).To(HaveLen(1))
		Expect(last().RetCode).To(Equal(RetRepeatedInit))
	})

	It("should require bind queue init before queue requests", func() {
		request(SubEventBindQueue, 3, Route{Src: 1, Dst: 2})
		request(SubEventQueryQueueNum, 4)

		events := client.Events()
		Expect(events).To(HaveLen(2))
		Expect(events[0].SubEvent).To(Equal(SubEventBindQueueRes))
		Expect(events[0].RetCode).To(Equal(RetNotInit))
		Expect(events[1].SubEvent).To(Equal(SubEventQueryQueueNumRes))
		Expect(events[1].RetCode).To(Equal(RetNotInit))
		Expect(qs.Routes()).To(BeEmpty())
	})

	Context("when initialized", func() {
		BeforeEach(func() {
			request(SubEventBindQueueInit, 1)
			Expect(d.IsInitialized()).To(BeTrue())
		})

		It("should bind, query and unbind routes", func() {
			request(SubEventBindQueue, 10,
				Route{Src: 1, Dst: 2}, Route{Src: 1, Dst: 3}, Route{Src: 4, Dst: 5})
			res := last()
			Expect(res.SubEvent).To(Equal(SubEventBindQueueRes))
			Expect(res.UserData).To(Equal(uint64(10)))
			Expect(res.Value).To(Equal(uint32(3)))
			Expect(qs.Routes()).To(HaveLen(3))

			request(SubEventQueryQueueNum, 11)
			Expect(last().Value).To(Equal(uint32(3)))

			request(SubEventQueryQueue, 12, Route{Src: 1})
			res = last()
			Expect(res.SubEvent).To(Equal(SubEventQueryQueueRes))
			Expect(res.Routes).To(ConsistOf(
				Route{Src: 1, Dst: 2}, Route{Src: 1, Dst: 3}))

			request(SubEventUnbindQueue, 13, Route{Src: 1, Dst: 2}, Route{Src: 9, Dst: 9})
			res = last()
			Expect(res.Routes[0].Status).To(Equal(RetOK))
			Expect(res.Routes[1].Status).To(Equal(RetNotFound))
			Expect(qs.Routes()).To(HaveLen(2))
		})

		It("should report routes that are already bound", func() {
			request(SubEventBindQueue, 10, Route{Src: 1, Dst: 2})
			request(SubEventBindQueue, 11, Route{Src: 1, Dst: 2})

			Expect(last().Routes[0].Status).To(Equal(RetRepeatedInit))
			Expect(qs.Routes()).To(HaveLen(1))
		})

		It("should reject queue requests without routes", func() {
			request(SubEventBindQueue, 20)

			res := last()
			Expect(res.SubEvent).To(Equal(SubEventBindQueueRes))
			Expect(res.RetCode).To(Equal(RetInvalidParam))
		})

		It("should answer unknown sub events", func() {
			request(SubEvent(99), 21)

			res := last()
			Expect(res.SubEvent).To(Equal(SubEvent(99)))
			Expect(res.UserData).To(Equal(uint64(21)))
			Expect(res.RetCode).To(Equal(RetNotFound))
		})

		It("should answer a request exactly once", func() {
			for i := range 5 {
				request(SubEventQueryQueueNum, uint64(100+i))
			}

			tokens := map[uint64]int{}
			for _, e := range client.Events() {
				tokens[e.UserData]++
			}

			for i := range 5 {
				Expect(tokens[uint64(100+i)]).To(Equal(1))
			}

			Expect(d.NumResponses()).To(Equal(uint64(6)))
		})
	})

	It("should time out requests the queue scheduler does not answer", func() {
		qs.SetMuted(true)
		request(SubEventBindQueueInit, 1)
		Expect(d.NumPending()).To(Equal(1))

		Expect(d.Sweep(time.Now())).To(Equal(0))
		Expect(d.Sweep(time.Now().Add(2 * time.Second))).To(Equal(1))
		bus.Deliver()

		res := last()
		Expect(res.SubEvent).To(Equal(SubEventBindQueueInitRes))
		Expect(res.RetCode).To(Equal(RetTimeout))
		Expect(d.NumPending()).To(Equal(0))
		Expect(d.IsInitialized()).To(BeFalse())

		qs.SetMuted(false)
		request(SubEventBindQueueInit, 2)
		Expect(last().RetCode).To(Equal(RetOK))
		Expect(d.IsInitialized()).To(BeTrue())
	})

	It("should drop late responses of timed out requests", func() {
		qs.SetMuted(true)
		request(SubEventBindQueueInit, 1)
		d.Sweep(time.Now().Add(2 * time.Second))
		bus.Deliver()

		err := d.Handle(Event{SubEvent: SubEventBindQueueInitRes, UserData: 1})
		Expect(errors.Is(err, ErrUnknownCallback)).To(BeTrue())
		Expect(client.Events()).To(HaveLen(1))
	})

	It("should sweep in the background", func(ctx SpecContext) {
		d = MakeBuilder().
			WithTransport(bus).
			WithTimeout(5 * time.Millisecond).
			Build("Dispatcher")
		bus.Register("Dispatcher", d)
		qs.SetMuted(true)

		request(SubEventBindQueueInit, 1)
		d.Run(ctx)

		Eventually(d.NumPending).Should(Equal(0))
	})

	It("should invoke hooks on requests and responses", func() {
		hook := hooking.NewCountHook()
		d.AcceptHook(hook)

		request(SubEventBindQueueInit, 1)

		Expect(hook.Count(HookPosRequest)).To(Equal(uint64(1)))
		Expect(hook.Count(HookPosResponse)).To(Equal(uint64(1)))
	})

	It("should reset init when the group cannot be created", func() {
		d = MakeBuilder().
			WithTransport(bus).
			WithGroupCreator(func(id uint32) (*Group, error) {
				return nil, fmt.Errorf("no memory for group %d", id)
			}).
			Build("Dispatcher")
		bus.Register("Dispatcher", d)

		request(SubEventBindQueueInit, 1)

		Expect(last().RetCode).To(Equal(RetDrv))
		Expect(d.IsInitialized()).To(BeFalse())
	})

	Context("with a failing transport", func() {
		var (
			mockCtrl  *gomock.Controller
			transport *MockEventTransport
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			transport = NewMockEventTransport(mockCtrl)
			d = MakeBuilder().
				WithTransport(transport).
				WithPeer("Peer").
				Build("Dispatcher")
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should answer the requester when forwarding fails", func() {
			gomock.InOrder(
				transport.EXPECT().
					Send("Peer", gomock.Any()).
					Return(errors.New("link down")),
				transport.EXPECT().
					Send("Client", gomock.Any()).
					DoAndReturn(func(_ string, evt Event) error {
						Expect(evt.SubEvent).To(Equal(SubEventBindQueueInitRes))
						Expect(evt.UserData).To(Equal(uint64(5)))
						Expect(evt.RetCode).To(Equal(RetDrv))
						return nil
					}),
			)

			err := d.Handle(Event{
				SubEvent: SubEventBindQueueInit,
				Src:      "Client",
				UserData: 5,
			})

			Expect(rterr.Is(err, rterr.ErrDrv)).To(BeTrue())
			Expect(d.NumPending()).To(Equal(0))
			Expect(d.IsInitialized()).To(BeFalse())
		})

		It("should forward with its own token", func() {
			transport.EXPECT().
				Send("Peer", gomock.Any()).
				DoAndReturn(func(_ string, evt Event) error {
					Expect(evt.Src).To(Equal("Dispatcher"))
					Expect(evt.UserData).NotTo(Equal(uint64(77)))
					return nil
				})

			Expect(d.Handle(Event{
				SubEvent: SubEventBindQueueInit,
				Src:      "Client",
				UserData: 77,
			})).To(Succeed())
			Expect(d.NumPending()).To(Equal(1))
		})
	})
})

var _ = Describe("Bus", func() {
	It("should refuse unknown endpoints", func() {
		bus := NewBus()

		err := bus.Send("Nobody", Event{})

		Expect(errors.Is(err, ErrUnknownEndpoint)).To(BeTrue())
		Expect(bus.Pending()).To(Equal(0))
	})

	It("should collect handler errors", func() {
		bus := NewBus()
		qs := NewQueueScheduler("QueueScheduler", bus, 1)
		bus.Register("QueueScheduler", qs)

		Expect(bus.Send("QueueScheduler", Event{SubEvent: SubEvent(99)})).To(Succeed())
		n, errs := bus.Deliver()

		Expect(n).To(Equal(1))
		Expect(errs).To(HaveLen(1))
		Expect(errors.Is(errs[0], ErrUnknownSubEvent)).To(BeTrue())
	})
})
