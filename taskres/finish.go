package taskres

// IsTaskFinished tells if the task at pos has completed, given the head
// reported by the device and the host tail.
//
// With head < tail the pending range is [head, tail], so pos is finished
// when it lies outside. With head > tail the pending range wraps past the
// ring end, so pos is finished when tail <= pos < head. With head == tail
// nothing is pending and every position counts as finished, including one
// whose allocation another thread has not yet published.
func IsTaskFinished(head, tail, pos uint16) bool {
	switch {
	case head < tail:
		return pos < head || pos > tail
	case head > tail:
		return pos >= tail && pos < head
	default:
		return true
	}
}
