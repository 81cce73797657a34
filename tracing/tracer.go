// Package tracing records the life of tasks submitted to streams.
package tracing

import (
	"time"

	"github.com/sarchlab/davidrt/task"
)

// A Task is what a tracer sees of a submitted task.
type Task struct {
	TaskSn   uint64
	StreamID uint32
	Where    string
	Pos      uint16
	Flip     uint16
	Kind     task.Kind
	Time     time.Time
}

func taskOf(d task.Descriptor, where string, now time.Time) Task {
	return Task{
		TaskSn:   d.TaskSn,
		StreamID: d.StreamID,
		Where:    where,
		Pos:      d.ID,
		Flip:     d.FlipNum,
		Kind:     d.Kind,
		Time:     now,
	}
}

// TaskFilter selects the tasks a tracer is interested in.
type TaskFilter func(t Task) bool

// AllTasks is a TaskFilter that keeps every task.
func AllTasks(Task) bool { return true }

// A Tracer is told when tasks are accepted by the device and when they are
// recycled after completion.
type Tracer interface {
	SubmitTask(t Task)
	CompleteTask(t Task)
}
