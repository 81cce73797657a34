package stream

// UndoPublicTask exposes the removal of a refused task's public entry.
var UndoPublicTask = (*Stream).undoPublicTask

// ExhaustCntNotify moves the record version of s to the threshold.
func ExhaustCntNotify(s *Stream) {
	s.recordVersion = countNotifyThreshold
}
