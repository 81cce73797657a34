package aicpu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SubEvent", func() {
	DescribeTable("response pairing",
		func(req, res SubEvent) {
			got, ok := ResponseFor(req)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(res))
			Expect(req.IsRequest()).To(BeTrue())
			Expect(res.IsResponse()).To(BeTrue())
			Expect(res.IsRequest()).To(BeFalse())
		},
		Entry("bind queue init", SubEventBindQueueInit, SubEventBindQueueInitRes),
		Entry("bind queue", SubEventBindQueue, SubEventBindQueueRes),
		Entry("unbind queue", SubEventUnbindQueue, SubEventUnbindQueueRes),
		Entry("query queue num", SubEventQueryQueueNum, SubEventQueryQueueNumRes),
		Entry("query queue", SubEventQueryQueue, SubEventQueryQueueRes),
	)

	It("should not pair responses or unknown sub events", func() {
		_, ok := ResponseFor(SubEventBindQueueRes)
		Expect(ok).To(BeFalse())

		_, ok = ResponseFor(SubEvent(99))
		Expect(ok).To(BeFalse())
		Expect(SubEvent(99).IsRequest()).To(BeFalse())
		Expect(SubEvent(99).IsResponse()).To(BeFalse())
	})

	It("should name sub events", func() {
		Expect(SubEventQueryQueue.String()).To(Equal("QueryQueue"))
		Expect(SubEventBindQueueInitRes.String()).To(Equal("BindQueueInitRes"))
	})
})
