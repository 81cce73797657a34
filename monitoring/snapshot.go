package monitoring

import "github.com/sarchlab/davidrt/stream"

// StreamSnapshot is the state of a stream at one moment.
type StreamSnapshot struct {
	Name           string
	ID             uint32
	SqID           uint32
	CqID           uint32
	Depth          uint16
	Head           uint16
	Tail           uint16
	InFlight       uint16
	FlipNum        uint16
	LastTaskID     uint32
	FinishTaskID   uint32
	PublicQueueLen int
	Persistent     bool
	Bound          bool
	Capturing      bool
	AbortStatus    string
}

func snapshotOf(s *stream.Stream) StreamSnapshot {
	head, tail := s.Ring().HeadTail()

	snap := StreamSnapshot{
		Name:           s.Name(),
		ID:             s.ID(),
		SqID:           s.SqID(),
		CqID:           s.CqID(),
		Depth:          s.Depth(),
		Head:           head,
		Tail:           tail,
		InFlight:       s.Ring().InFlight(),
		FlipNum:        s.FlipNum(),
		LastTaskID:     s.LastTaskID(),
		FinishTaskID:   s.FinishTaskID(),
		PublicQueueLen: s.PublicQueueLen(),
		Persistent:     s.IsPersistent(),
		Bound:          s.IsBound(),
		Capturing:      s.CaptureSession() != nil,
	}

	if err := s.AbortStatus(); err != nil {
		snap.AbortStatus = err.Error()
	}

	return snap
}
