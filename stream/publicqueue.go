package stream

import (
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/rterr"
)

const publicDumpEntries = 6

// AddPublicTask queues the task at pos for post processing. A full queue
// returns StreamFull and leaves the queue unchanged.
func (s *Stream) AddPublicTask(pos uint16) error {
	s.publicLock.Lock()
	defer s.publicLock.Unlock()

	next := (s.publicTail + 1) % s.publicQueueDepth
	if next == s.publicHead {
		s.hotLogger.Warn().
			Uint16("pos", pos).
			Uint16("head", s.publicHead).
			Uint16("tail", s.publicTail).
			Msg("public queue full")

		return rterr.New(rterr.ErrStreamFull, pkgName, "add public task", nil)
	}

	s.publicQueue[s.publicTail] = pos
	s.publicTail = next

	return nil
}

// undoPublicTask removes the most recently added entry if it is pos.
func (s *Stream) undoPublicTask(pos uint16) {
	s.publicLock.Lock()
	defer s.publicLock.Unlock()

	if s.publicHead == s.publicTail {
		return
	}

	last := (s.publicTail + s.publicQueueDepth - 1) % s.publicQueueDepth
	if s.publicQueue[last] == pos {
		s.publicTail = last
	}
}

// PublicTaskHead returns the oldest queued task if the device has executed
// it. lastDone is the position of the last record the device has executed.
// It returns StreamEmpty on an empty queue and StreamInvalid if the oldest
// task has not been executed yet.
func (s *Stream) PublicTaskHead(lastDone uint16) (uint16, error) {
	tail := s.ring.Tail()

	s.publicLock.Lock()
	defer s.publicLock.Unlock()

	if s.publicHead == s.publicTail {
		return 0, rterr.New(rterr.ErrStreamEmpty, pkgName, "public task head", nil)
	}

	pos := s.publicQueue[s.publicHead]

	switch {
	case lastDone < tail:
		if lastDone >= pos || pos > tail {
			return pos, nil
		}
	case lastDone > tail:
		if pos <= lastDone && pos > tail {
			return pos, nil
		}
	default:
		return 0, rterr.New(rterr.ErrInvalidValue, pkgName, "public task head", nil)
	}

	return 0, rterr.New(rterr.ErrStreamInvalid, pkgName, "public task head", nil)
}

// UpdatePublicQueue removes the oldest queued task and remembers it as the
// latest finished one. It returns StreamEmpty on an empty queue.
func (s *Stream) UpdatePublicQueue() error {
	s.publicLock.Lock()
	defer s.publicLock.Unlock()

	if s.publicHead == s.publicTail {
		return rterr.New(rterr.ErrStreamEmpty, pkgName, "update public queue", nil)
	}

	pos := s.publicQueue[s.publicHead]
	s.publicHead = (s.publicHead + 1) % s.publicQueueDepth
	s.finishTaskID.Store(uint32(pos))

	return nil
}

// PublicQueueLen returns the number of queued tasks.
func (s *Stream) PublicQueueLen() int {
	s.publicLock.Lock()
	defer s.publicLock.Unlock()

	return int((s.publicTail + s.publicQueueDepth - s.publicHead) % s.publicQueueDepth)
}

// ShowPublicQueue logs the entries around the head and the tail of the
// public queue.
func (s *Stream) ShowPublicQueue() {
	s.publicLock.Lock()
	defer s.publicLock.Unlock()

	if s.publicHead == s.publicTail {
		return
	}

	s.logger.Info().
		Uint16("head", s.publicHead).
		Uint16("tail", s.publicTail).
		Array("around_head", s.publicWindow(s.publicHead)).
		Array("around_tail", s.publicWindow(s.publicTail)).
		Msg("public queue")
}

func (s *Stream) publicWindow(end uint16) *zerolog.Array {
	arr := zerolog.Arr()
	depth := uint32(s.publicQueueDepth)
	start := (uint32(end) + depth - publicDumpEntries%depth) % depth

	for i := uint32(0); i < publicDumpEntries && i < depth; i++ {
		arr.Uint16(s.publicQueue[(start+i)%depth])
	}

	return arr
}
