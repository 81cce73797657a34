package tracing

import (
	"sync"
	"time"
)

// AverageTimeTracer measures the average time from submission to recycling
// of the tasks that pass its filter.
type AverageTimeTracer struct {
	filter      TaskFilter
	lock        sync.Mutex
	averageTime time.Duration
	taskCount   uint64
	inflight    map[uint64]time.Time
}

// NewAverageTimeTracer creates a new AverageTimeTracer.
func NewAverageTimeTracer(filter TaskFilter) *AverageTimeTracer {
	if filter == nil {
		filter = AllTasks
	}

	return &AverageTimeTracer{
		filter:   filter,
		inflight: make(map[uint64]time.Time),
	}
}

// AverageTime returns the average latency of the completed tasks.
func (t *AverageTimeTracer) AverageTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// TotalCount returns the number of completed tasks measured.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// SubmitTask records the submission time.
func (t *AverageTimeTracer) SubmitTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflight[task.TaskSn] = task.Time
	t.lock.Unlock()
}

// CompleteTask folds the latency of the task into the average.
func (t *AverageTimeTracer) CompleteTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflight[task.TaskSn]
	if !ok {
		return
	}

	latency := task.Time.Sub(start)
	t.averageTime = time.Duration(
		(float64(t.averageTime)*float64(t.taskCount) + float64(latency)) /
			float64(t.taskCount+1))
	delete(t.inflight, task.TaskSn)
	t.taskCount++
}
