package taskres

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IsTaskFinished", func() {
	DescribeTable("wraparound comparison",
		func(head, tail, pos int, finished bool) {
			Expect(IsTaskFinished(uint16(head), uint16(tail), uint16(pos))).
				To(Equal(finished))
		},
		Entry("pending between head and tail", 5, 10, 7, false),
		Entry("before head", 5, 10, 2, true),
		Entry("after tail", 5, 10, 12, true),
		Entry("at head", 5, 10, 5, false),
		Entry("wrapped, between tail and head", 10, 5, 7, true),
		Entry("wrapped, before tail", 10, 5, 2, false),
		Entry("wrapped, at or after head", 10, 5, 12, false),
		Entry("wrapped, at tail", 10, 5, 5, true),
		Entry("empty ring", 4, 4, 4, true),
		Entry("empty ring, other position", 4, 4, 100, true),
	)
})
