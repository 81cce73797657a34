package task

import "fmt"

// RecordSize is the size of one submission record in bytes.
const RecordSize = 64

// KernelArgsPerRecord is the number of inline argument bytes carried by each
// extension record of a kernel launch.
const KernelArgsPerRecord = RecordSize

// MaxMemcpyPerRecord is the largest copy one record can describe.
const MaxMemcpyPerRecord = 1<<32 - 1

// Payload is the kind-specific part of a task. Exactly one payload type
// exists per kind.
type Payload interface {
	// Kind returns the kind of task that carries the payload.
	Kind() Kind

	// SqeNum returns the number of records the payload needs.
	SqeNum() uint16

	fmt.Stringer

	isPayload()
}

// Engine identifies the compute engine of a kernel.
type Engine uint8

// Compute engines.
const (
	EngineAIC Engine = iota
	EngineAIV
	EngineFusion
	EngineAICPU
)

// KernelLaunch starts a kernel on a compute engine.
type KernelLaunch struct {
	Engine     Engine
	BlockDim   uint16
	FuncAddr   uint64
	ArgsAddr   uint64
	ArgsSize   uint32
	InlineArgs []byte
}

func (KernelLaunch) Kind() Kind { return KindKernelLaunch }
func (KernelLaunch) isPayload() {}

// SqeNum counts one header record plus one extension record per started
// KernelArgsPerRecord bytes of inline arguments.
func (p KernelLaunch) SqeNum() uint16 {
	n := (len(p.InlineArgs) + KernelArgsPerRecord - 1) / KernelArgsPerRecord
	return uint16(1 + n)
}

func (p KernelLaunch) String() string {
	return fmt.Sprintf("kernel engine=%d func=%#x blockDim=%d args=%d",
		p.Engine, p.FuncAddr, p.BlockDim, p.ArgsSize)
}

// EventRecord marks an event as recorded when the stream reaches the task.
type EventRecord struct {
	EventID  uint32
	NotifyID uint32
	Timeline bool
}

func (EventRecord) Kind() Kind     { return KindEventRecord }
func (EventRecord) SqeNum() uint16 { return 1 }
func (EventRecord) isPayload()     {}

func (p EventRecord) String() string {
	return fmt.Sprintf("event record event=%d notify=%d", p.EventID, p.NotifyID)
}

// EventWait blocks the stream until the event is recorded. RecordTaskSn
// correlates the wait with the record task it waits for.
type EventWait struct {
	EventID      uint32
	NotifyID     uint32
	Timeout      uint32
	RecordTaskSn uint64
}

func (EventWait) Kind() Kind     { return KindEventWait }
func (EventWait) SqeNum() uint16 { return 1 }
func (EventWait) isPayload()     {}

func (p EventWait) String() string {
	return fmt.Sprintf("event wait event=%d notify=%d record=%d",
		p.EventID, p.NotifyID, p.RecordTaskSn)
}

// EventReset clears an event.
type EventReset struct {
	EventID  uint32
	NotifyID uint32
}

func (EventReset) Kind() Kind     { return KindEventReset }
func (EventReset) SqeNum() uint16 { return 1 }
func (EventReset) isPayload()     {}

func (p EventReset) String() string {
	return fmt.Sprintf("event reset event=%d notify=%d", p.EventID, p.NotifyID)
}

// NotifyRecord sets a notify.
type NotifyRecord struct {
	NotifyID uint32
}

func (NotifyRecord) Kind() Kind     { return KindNotifyRecord }
func (NotifyRecord) SqeNum() uint16 { return 1 }
func (NotifyRecord) isPayload()     {}

func (p NotifyRecord) String() string {
	return fmt.Sprintf("notify record notify=%d", p.NotifyID)
}

// NotifyWait blocks the stream until the notify is set.
type NotifyWait struct {
	NotifyID uint32
	Timeout  uint32
}

func (NotifyWait) Kind() Kind     { return KindNotifyWait }
func (NotifyWait) SqeNum() uint16 { return 1 }
func (NotifyWait) isPayload()     {}

func (p NotifyWait) String() string {
	return fmt.Sprintf("notify wait notify=%d timeout=%d", p.NotifyID, p.Timeout)
}

// CountMode selects how a count notify record changes the counter and how a
// wait compares it.
type CountMode uint8

// Count notify modes.
const (
	CountModeSet CountMode = iota
	CountModeAdd
	CountModeWaitGreaterOrEqual
	CountModeWaitEqual
)

// CountNotify records or waits on a counting notify.
type CountNotify struct {
	NotifyID uint32
	Value    uint32
	Mode     CountMode
	Timeout  uint32
	Wait     bool
	Clear    bool
}

// Kind returns KindCountNotifyWait for waits and KindCountNotifyRecord
// otherwise.
func (p CountNotify) Kind() Kind {
	if p.Wait {
		return KindCountNotifyWait
	}

	return KindCountNotifyRecord
}

func (CountNotify) SqeNum() uint16 { return 1 }
func (CountNotify) isPayload()     {}

func (p CountNotify) String() string {
	return fmt.Sprintf("count notify notify=%d value=%d mode=%d wait=%t",
		p.NotifyID, p.Value, p.Mode, p.Wait)
}

// CopyDir is the direction of a copy.
type CopyDir uint8

// Copy directions.
const (
	CopyHostToDevice CopyDir = iota
	CopyDeviceToHost
	CopyDeviceToDevice
)

// Memcpy copies memory asynchronously.
type Memcpy struct {
	Src  uint64
	Dst  uint64
	Size uint64
	Dir  CopyDir
}

func (Memcpy) Kind() Kind { return KindMemcpy }
func (Memcpy) isPayload() {}

// SqeNum splits copies larger than MaxMemcpyPerRecord into two records.
func (p Memcpy) SqeNum() uint16 {
	if p.Size > MaxMemcpyPerRecord {
		return 2
	}

	return 1
}

func (p Memcpy) String() string {
	return fmt.Sprintf("memcpy src=%#x dst=%#x size=%d dir=%d",
		p.Src, p.Dst, p.Size, p.Dir)
}

// MemsetValue writes a value to an address.
type MemsetValue struct {
	Addr  uint64
	Value uint64
	Width uint8
}

func (MemsetValue) Kind() Kind     { return KindMemsetValue }
func (MemsetValue) SqeNum() uint16 { return 1 }
func (MemsetValue) isPayload()     {}

func (p MemsetValue) String() string {
	return fmt.Sprintf("write value addr=%#x value=%#x", p.Addr, p.Value)
}

// LabelSwitch jumps to a label when the value at CondAddr equals Value.
type LabelSwitch struct {
	CondAddr  uint64
	Value     uint64
	TrueLabel uint16
}

func (LabelSwitch) Kind() Kind     { return KindLabelSwitch }
func (LabelSwitch) SqeNum() uint16 { return 1 }
func (LabelSwitch) isPayload()     {}

func (p LabelSwitch) String() string {
	return fmt.Sprintf("label switch cond=%#x label=%d", p.CondAddr, p.TrueLabel)
}

// StreamActive starts the execution of another stream once the owning
// stream reaches the task.
type StreamActive struct {
	StreamID uint32
	SqID     uint32
}

func (StreamActive) Kind() Kind     { return KindStreamActive }
func (StreamActive) SqeNum() uint16 { return 1 }
func (StreamActive) isPayload()     {}

func (p StreamActive) String() string {
	return fmt.Sprintf("stream active stream=%d sq=%d", p.StreamID, p.SqID)
}

// Maintenance asks the device to report progress of a stream so that its
// slots can be recycled in bulk.
type Maintenance struct {
	TargetStreamID uint32
	Force          bool
}

func (Maintenance) Kind() Kind     { return KindMaintenance }
func (Maintenance) SqeNum() uint16 { return 1 }
func (Maintenance) isPayload()     {}

func (p Maintenance) String() string {
	return fmt.Sprintf("maintenance stream=%d force=%t", p.TargetStreamID, p.Force)
}

// PlaceHolder occupies a slot without doing work.
type PlaceHolder struct{}

func (PlaceHolder) Kind() Kind     { return KindPlaceHolder }
func (PlaceHolder) SqeNum() uint16 { return 1 }
func (PlaceHolder) isPayload()     {}
func (PlaceHolder) String() string { return "place holder" }
