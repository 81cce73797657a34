// Package task defines the in-memory description of one logical operation
// submitted to a stream.
package task

// Kind identifies the kind of operation a task performs.
type Kind uint8

// Task kinds.
const (
	KindInvalid Kind = iota
	KindKernelLaunch
	KindEventRecord
	KindEventWait
	KindEventReset
	KindNotifyRecord
	KindNotifyWait
	KindCountNotifyRecord
	KindCountNotifyWait
	KindMemcpy
	KindMemsetValue
	KindLabelSwitch
	KindStreamActive
	KindMaintenance
	KindPlaceHolder
	numKinds
)

var kindNames = [numKinds]string{
	"Invalid",
	"KernelLaunch",
	"EventRecord",
	"EventWait",
	"EventReset",
	"NotifyRecord",
	"NotifyWait",
	"CountNotifyRecord",
	"CountNotifyWait",
	"Memcpy",
	"MemsetValue",
	"LabelSwitch",
	"StreamActive",
	"Maintenance",
	"PlaceHolder",
}

func (k Kind) String() string {
	if k >= numKinds {
		return "Unknown"
	}

	return kindNames[k]
}

// Valid tells if k is a known kind other than KindInvalid.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < numKinds
}

// NeedsCqe tells if the completion of tasks of this kind is reported
// individually by the device.
func (k Kind) NeedsCqe() bool {
	switch k {
	case KindEventRecord, KindMaintenance, KindCountNotifyWait:
		return true
	default:
		return false
	}
}
