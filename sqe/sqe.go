// Package sqe encodes tasks into fixed-size submission records.
//
// Every record is 64 bytes, little endian. The first 8 bytes are the record
// header:
//
//	bits 0-5   type
//	bit  6-7   lock, unlock
//	bit  8     ie
//	bit  9-10  pre/post processing
//	bit  11    wrCqe
//	bit  14    headUpdate
//	bytes 2-3  block dim
//	bytes 4-5  rt stream id (task sn & 0xFFFF)
//	bytes 6-7  task id (task sn >> 16)
//
// Bytes 8-55 carry the kind specific body. Bytes 56-63 are reserved for
// software and hold the owning stream, slot position, wrap epoch, the index
// of the record within its task and the record count of the task.
package sqe

// RecordSize is the size of one record in bytes.
const RecordSize = 64

// RecordShift converts a slot position into a byte offset.
const RecordShift = 6

// Type is the hardware record type.
type Type uint8

// Record types.
const (
	TypeAIC          Type = 0
	TypeAIV          Type = 1
	TypeFusion       Type = 2
	TypePlaceHolder  Type = 3
	TypeAICPUHost    Type = 4
	TypeAICPUDevice  Type = 5
	TypeNotifyRecord Type = 6
	TypeNotifyWait   Type = 7
	TypeWriteValue   Type = 8
	TypeUBDMA        Type = 9
	TypeAsyncDMA     Type = 10
	TypeSDMA         Type = 11
	TypeCMO          Type = 15
	TypeCCU          Type = 16
	TypeCond         Type = 20
	TypeInvalid      Type = 63
)

// Notify sub types, shared by notify record and wait records.
const (
	SubSingleNotifyRecord         uint16 = 0
	SubSingleNotifyWait           uint16 = 1
	SubCountNotifyRecord          uint16 = 2
	SubCountNotifyWait            uint16 = 3
	SubEventUseSingleNotifyRecord uint16 = 4
	SubEventUseSingleNotifyWait   uint16 = 5
	SubEventUseCountNotifyRecord  uint16 = 6
	SubEventUseCountNotifyWait    uint16 = 7
	SubEventResetUseSingleNotify  uint16 = 8
	SubEventResetUseCountNotify   uint16 = 9
)

// Cond and place holder sub types.
const (
	SubPlaceHolder  uint16 = 0
	SubMaintenance  uint16 = 1
	SubLabelSwitch  uint16 = 1
	SubStreamActive uint16 = 2
)

// Flags are header bits not derived from the task itself.
type Flags uint16

// Header flags.
const (
	FlagLock       Flags = 1 << 6
	FlagUnlock     Flags = 1 << 7
	FlagIE         Flags = 1 << 8
	FlagPreP       Flags = 1 << 9
	FlagPostP      Flags = 1 << 10
	FlagWrCqe      Flags = 1 << 11
	FlagHeadUpdate Flags = 1 << 14
)

const typeMask = 0x3F

// Offsets within a record.
const (
	offHeader    = 0
	offBlockDim  = 2
	offRtStream  = 4
	offTaskID    = 6
	offBody      = 8
	offSubType   = 12
	offStreamID  = 56
	offPos       = 58
	offFlip      = 60
	offRecordIdx = 62
	offSqeNum    = 63
)

// Offset returns the byte offset of the record at a slot position.
func Offset(pos uint16) int {
	return int(pos) << RecordShift
}
