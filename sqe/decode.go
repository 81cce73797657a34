package sqe

// Header is the decoded header and software trailer of a record.
type Header struct {
	Type       Type
	Flags      Flags
	BlockDim   uint16
	RtStreamID uint16
	TaskID     uint16
	SubType    uint16
	StreamID   uint16
	Pos        uint16
	FlipNum    uint16
	RecordIdx  uint8
	SqeNum     uint8
}

// WrCqe tells if the device reports the completion of the record.
func (h Header) WrCqe() bool {
	return h.Flags&FlagWrCqe != 0
}

// DecodeHeader reads the header of the record at the start of rec.
func DecodeHeader(rec []byte) Header {
	word0 := le.Uint16(rec[offHeader:])

	return Header{
		Type:       Type(word0 & typeMask),
		Flags:      Flags(word0 &^ typeMask),
		BlockDim:   le.Uint16(rec[offBlockDim:]),
		RtStreamID: le.Uint16(rec[offRtStream:]),
		TaskID:     le.Uint16(rec[offTaskID:]),
		SubType:    le.Uint16(rec[offSubType:]),
		StreamID:   le.Uint16(rec[offStreamID:]),
		Pos:        le.Uint16(rec[offPos:]),
		FlipNum:    le.Uint16(rec[offFlip:]),
		RecordIdx:  rec[offRecordIdx],
		SqeNum:     rec[offSqeNum],
	}
}

// StreamActiveTarget returns the stream and queue activated by a stream
// active record.
func StreamActiveTarget(rec []byte) (streamID, sqID uint32, ok bool) {
	h := DecodeHeader(rec)
	if h.Type != TypeCond || h.SubType != SubStreamActive {
		return 0, 0, false
	}

	return le.Uint32(rec[8:]), le.Uint32(rec[16:]), true
}

// Notify is the decoded body of a notify record or wait.
type Notify struct {
	NotifyID   uint32
	Count      bool
	Clear      bool
	SubType    uint16
	CountValue uint32
	ModeBits   uint32
	Timeout    uint32
	CrossSn    uint64
	EventID    uint32
}

// DecodeNotify reads the body of a notify record or wait.
func DecodeNotify(rec []byte) (Notify, bool) {
	h := DecodeHeader(rec)
	if h.Type != TypeNotifyRecord && h.Type != TypeNotifyWait {
		return Notify{}, false
	}

	word2 := le.Uint32(rec[8:])

	return Notify{
		NotifyID:   word2 & 0x1FFFF,
		Count:      word2&(1<<30) != 0,
		Clear:      word2&(1<<31) != 0,
		SubType:    h.SubType,
		CountValue: le.Uint32(rec[16:]),
		ModeBits:   le.Uint32(rec[20:]),
		Timeout:    le.Uint32(rec[24:]),
		CrossSn:    le.Uint64(rec[32:]),
		EventID:    le.Uint32(rec[40:]),
	}, true
}
