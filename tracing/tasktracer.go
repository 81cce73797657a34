package tracing

import (
	"sync"

	"github.com/sarchlab/davidrt/datarecording"
)

// TaskTrack is one row of the task track table. Times are nanoseconds since
// the Unix epoch. CompleteNs is zero for tasks that were still in flight
// when the tracer stopped.
type TaskTrack struct {
	TaskSn     uint64
	StreamID   uint32
	Stream     string
	Pos        uint16
	Flip       uint16
	Kind       string
	SubmitNs   int64
	CompleteNs int64
}

// TaskTrackTable is the name of the table TaskTracers write.
const TaskTrackTable = "task_track"

// TaskTracer writes a TaskTrack for every traced task into a DataRecorder.
// Only tasks submitted while tracing is on are recorded.
type TaskTracer struct {
	lock      sync.Mutex
	backend   datarecording.DataRecorder
	filter    TaskFilter
	tracing   bool
	inflight  map[uint64]TaskTrack
	completed uint64
}

// NewTaskTracer creates a TaskTracer and the task track table in the
// backend.
func NewTaskTracer(
	backend datarecording.DataRecorder,
	filter TaskFilter,
) *TaskTracer {
	if filter == nil {
		filter = AllTasks
	}

	backend.CreateTable(TaskTrackTable, TaskTrack{})

	return &TaskTracer{
		backend:  backend,
		filter:   filter,
		inflight: make(map[uint64]TaskTrack),
	}
}

// StartTracing starts recording tasks.
func (t *TaskTracer) StartTracing() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.tracing = true
}

// StopTracing stops recording. Tasks still in flight are written without a
// completion time, and the backend is flushed.
func (t *TaskTracer) StopTracing() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.tracing {
		return
	}

	t.tracing = false

	for sn, track := range t.inflight {
		t.backend.InsertData(TaskTrackTable, track)
		delete(t.inflight, sn)
	}

	t.backend.Flush()
}

// IsTracing tells if tasks are being recorded.
func (t *TaskTracer) IsTracing() bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.tracing
}

// NumCompleted returns the number of tasks recorded with a completion time.
func (t *TaskTracer) NumCompleted() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.completed
}

// NumInFlight returns the number of traced tasks not completed yet.
func (t *TaskTracer) NumInFlight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}

// SubmitTask starts the track of a task.
func (t *TaskTracer) SubmitTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.tracing {
		return
	}

	t.inflight[task.TaskSn] = TaskTrack{
		TaskSn:   task.TaskSn,
		StreamID: task.StreamID,
		Stream:   task.Where,
		Pos:      task.Pos,
		Flip:     task.Flip,
		Kind:     task.Kind.String(),
		SubmitNs: task.Time.UnixNano(),
	}
}

// CompleteTask finishes the track of a task and writes it.
func (t *TaskTracer) CompleteTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	track, ok := t.inflight[task.TaskSn]
	if !ok {
		return
	}

	delete(t.inflight, task.TaskSn)

	track.CompleteNs = task.Time.UnixNano()
	t.backend.InsertData(TaskTrackTable, track)
	t.completed++
}
