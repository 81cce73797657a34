package stream

// DFXCheck logs the state of the stream to help diagnose a stall. Dumps are
// throttled per stream by the runtime.
func (s *Stream) DFXCheck(reason string) {
	if !s.ctx.rt.AllowDump(s.Name()) {
		return
	}

	head, tail := s.ring.HeadTail()

	ev := s.logger.Warn().
		Str("reason", reason).
		Uint32("sq", s.sqID).
		Uint16("head", head).
		Uint16("tail", tail).
		Uint16("in_flight", s.ring.InFlight()).
		Uint16("flip", s.FlipNum()).
		Uint32("last_task", s.LastTaskID()).
		Uint32("finish_task", s.FinishTaskID()).
		Int("public_queue_len", s.PublicQueueLen())

	if devHead, err := s.DeviceHead(); err == nil {
		ev = ev.Uint16("device_head", devHead)
	} else {
		ev = ev.AnErr("device_head_err", err)
	}

	ev.Msg("stream dfx")

	s.ShowPublicQueue()
}
