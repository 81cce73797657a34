package sqe

import (
	"encoding/binary"

	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

var le = binary.LittleEndian

// Encode writes the records of d into dst, which must hold at least
// d.SqeNum records. The same descriptor and flags always produce the same
// bytes.
func Encode(d *task.Descriptor, dst []byte, flags Flags) error {
	if d == nil || d.Payload == nil {
		return rterr.New(rterr.ErrInvalidValue, "sqe", "encode", nil)
	}

	if d.SqeNum != d.Payload.SqeNum() ||
		len(dst) < int(d.SqeNum)*RecordSize {
		return rterr.New(rterr.ErrInvalidValue, "sqe", "encode_size", nil)
	}

	records := dst[:int(d.SqeNum)*RecordSize]
	clear(records)

	for i := 0; i < int(d.SqeNum); i++ {
		rec := records[i*RecordSize : (i+1)*RecordSize]
		encodeRecord(d, rec, i, flags)
	}

	return nil
}

// EncodeAt writes the records of d into a ring of records starting at the
// slot d.ID. Records of a task that reaches the ring end continue at slot 0.
func EncodeAt(ring []byte, d *task.Descriptor, flags Flags) error {
	depth := len(ring) / RecordSize
	if depth == 0 || int(d.ID) >= depth {
		return rterr.New(rterr.ErrInvalidValue, "sqe", "encode_at", nil)
	}

	var buf [task.MaxSqeNum * RecordSize]byte

	err := Encode(d, buf[:], flags)
	if err != nil {
		return err
	}

	for i := 0; i < int(d.SqeNum); i++ {
		pos := (int(d.ID) + i) % depth
		copy(ring[pos*RecordSize:(pos+1)*RecordSize],
			buf[i*RecordSize:(i+1)*RecordSize])
	}

	return nil
}

func encodeRecord(d *task.Descriptor, rec []byte, idx int, flags Flags) {
	if idx > 0 && isExtension(d.Payload) {
		encodeExtension(d.Payload.(task.KernelLaunch), rec, idx)
		return
	}

	typ, sub := typeOf(d.Payload)

	lastFull := int(d.SqeNum) - 1
	if isExtension(d.Payload) {
		lastFull = 0
	}

	word0 := uint16(typ)&typeMask | uint16(flags&^typeMask)
	if d.CqeNeedConcern && idx == lastFull {
		word0 |= uint16(FlagWrCqe)
	}

	le.PutUint16(rec[offHeader:], word0)
	le.PutUint16(rec[offRtStream:], uint16(d.TaskSn&0xFFFF))
	le.PutUint16(rec[offTaskID:], uint16(d.TaskSn>>16))

	encodeBody(d, rec, idx, sub)

	le.PutUint16(rec[offStreamID:], uint16(d.StreamID))
	le.PutUint16(rec[offPos:], d.ID)
	le.PutUint16(rec[offFlip:], d.FlipNum)
	rec[offRecordIdx] = uint8(idx)
	rec[offSqeNum] = uint8(d.SqeNum)
}

func isExtension(p task.Payload) bool {
	_, ok := p.(task.KernelLaunch)
	return ok
}

func typeOf(p task.Payload) (Type, uint16) {
	switch p := p.(type) {
	case task.KernelLaunch:
		return kernelType(p.Engine), 0
	case task.EventRecord:
		return TypeNotifyRecord, SubEventUseSingleNotifyRecord
	case task.EventWait:
		return TypeNotifyWait, SubEventUseSingleNotifyWait
	case task.EventReset:
		return TypeNotifyRecord, SubEventResetUseSingleNotify
	case task.NotifyRecord:
		return TypeNotifyRecord, SubSingleNotifyRecord
	case task.NotifyWait:
		return TypeNotifyWait, SubSingleNotifyWait
	case task.CountNotify:
		if p.Wait {
			return TypeNotifyWait, SubCountNotifyWait
		}
		return TypeNotifyRecord, SubCountNotifyRecord
	case task.Memcpy:
		return TypeSDMA, 0
	case task.MemsetValue:
		return TypeWriteValue, 0
	case task.LabelSwitch:
		return TypeCond, SubLabelSwitch
	case task.StreamActive:
		return TypeCond, SubStreamActive
	case task.Maintenance:
		return TypePlaceHolder, SubMaintenance
	case task.PlaceHolder:
		return TypePlaceHolder, SubPlaceHolder
	default:
		panic("unknown payload type")
	}
}

func kernelType(e task.Engine) Type {
	switch e {
	case task.EngineAIV:
		return TypeAIV
	case task.EngineFusion:
		return TypeFusion
	case task.EngineAICPU:
		return TypeAICPUDevice
	default:
		return TypeAIC
	}
}

func encodeBody(d *task.Descriptor, rec []byte, idx int, sub uint16) {
	switch p := d.Payload.(type) {
	case task.KernelLaunch:
		le.PutUint16(rec[offBlockDim:], p.BlockDim)
		le.PutUint32(rec[8:], p.ArgsSize)
		le.PutUint16(rec[12:], uint16(len(p.InlineArgs)))
		rec[14] = uint8(p.Engine)
		le.PutUint64(rec[16:], p.FuncAddr)
		le.PutUint64(rec[24:], p.ArgsAddr)
	case task.EventRecord:
		encodeNotify(rec, p.NotifyID, sub, false, false)
		le.PutUint64(rec[32:], d.TaskSn)
		le.PutUint32(rec[40:], p.EventID)
		if p.Timeline {
			rec[44] = 1
		}
	case task.EventWait:
		encodeNotify(rec, p.NotifyID, sub, false, false)
		le.PutUint32(rec[24:], p.Timeout)
		le.PutUint64(rec[32:], p.RecordTaskSn)
		le.PutUint32(rec[40:], p.EventID)
	case task.EventReset:
		encodeNotify(rec, p.NotifyID, sub, false, true)
		le.PutUint32(rec[40:], p.EventID)
	case task.NotifyRecord:
		encodeNotify(rec, p.NotifyID, sub, false, false)
	case task.NotifyWait:
		encodeNotify(rec, p.NotifyID, sub, false, false)
		le.PutUint32(rec[24:], p.Timeout)
	case task.CountNotify:
		encodeNotify(rec, p.NotifyID, sub, true, p.Clear)
		le.PutUint32(rec[16:], p.Value)
		le.PutUint32(rec[20:], countModeBits(p))
		le.PutUint32(rec[24:], p.Timeout)
	case task.Memcpy:
		encodeMemcpy(p, rec, idx)
	case task.MemsetValue:
		le.PutUint64(rec[8:], p.Addr)
		le.PutUint64(rec[16:], p.Value)
		rec[24] = p.Width
	case task.LabelSwitch:
		le.PutUint16(rec[offSubType:], sub)
		le.PutUint64(rec[16:], p.CondAddr)
		le.PutUint64(rec[24:], p.Value)
		le.PutUint16(rec[32:], p.TrueLabel)
	case task.StreamActive:
		le.PutUint32(rec[8:], p.StreamID)
		le.PutUint16(rec[offSubType:], sub)
		le.PutUint32(rec[16:], p.SqID)
	case task.Maintenance:
		le.PutUint32(rec[8:], p.TargetStreamID)
		le.PutUint16(rec[offSubType:], sub)
		if p.Force {
			rec[16] = 1
		}
	case task.PlaceHolder:
		le.PutUint16(rec[offSubType:], sub)
	}
}

// encodeNotify fills words 2 and 3 of a notify record: a 17-bit notify id,
// the count and clear flags, the sub type and the record length.
func encodeNotify(rec []byte, notifyID uint32, sub uint16, cnt, clr bool) {
	word2 := notifyID & 0x1FFFF
	if cnt {
		word2 |= 1 << 30
	}

	if clr {
		word2 |= 1 << 31
	}

	le.PutUint32(rec[8:], word2)
	le.PutUint16(rec[offSubType:], sub)
	rec[15] = 1 << 5
}

func countModeBits(p task.CountNotify) uint32 {
	switch p.Mode {
	case task.CountModeWaitEqual:
		return 1
	case task.CountModeWaitGreaterOrEqual:
		return 2
	case task.CountModeAdd:
		return 1 << 2
	default:
		return 1 << 3
	}
}

func encodeMemcpy(p task.Memcpy, rec []byte, idx int) {
	size := p.Size
	offset := uint64(idx) * task.MaxMemcpyPerRecord

	if p.Size > task.MaxMemcpyPerRecord {
		size = min(p.Size-offset, task.MaxMemcpyPerRecord)
	}

	le.PutUint64(rec[8:], p.Src+offset)
	le.PutUint64(rec[16:], p.Dst+offset)
	le.PutUint32(rec[24:], uint32(size))
	rec[28] = uint8(p.Dir)
}

func encodeExtension(p task.KernelLaunch, rec []byte, idx int) {
	start := (idx - 1) * task.KernelArgsPerRecord
	end := min(start+task.KernelArgsPerRecord, len(p.InlineArgs))

	copy(rec, p.InlineArgs[start:end])
}
