// Package simdriver provides an in-memory device that implements the driver
// contract. Submitted records are copied into per-queue rings and executed
// either step by step or by a background loop.
package simdriver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/sqe"
)

// HookPosRecordExecuted is triggered after the device executes a task. The
// item is the decoded header of the first record of the task.
var HookPosRecordExecuted = &hooking.HookPos{Name: "Device.RecordExecuted"}

type submissionQueue struct {
	id       uint32
	cqID     uint32
	depth    uint16
	ring     []byte
	head     uint16
	tail     uint16
	active   bool
	cqes     []driver.CQE
	executed []sqe.Header
}

func (q *submissionQueue) inFlight() uint16 {
	return uint16((uint32(q.tail) + uint32(q.depth) - uint32(q.head)) %
		uint32(q.depth))
}

type notify struct {
	value uint32
}

// Device is a simulated device.
type Device struct {
	hooking.HookableBase

	name         string
	devID        uint32
	tsID         uint32
	maxSqs       int
	maxNotifies  uint32
	stepInterval time.Duration
	stepBudget   int

	lock         sync.Mutex
	sqs          map[uint32]*submissionQueue
	cqs          map[uint32]*submissionQueue
	nextSqID     uint32
	notifies     map[uint32]*notify
	nextNotifyID uint32
	noResources  map[uint32]int
	sendErr      error
	sendErrLeft  int

	down      atomic.Bool
	sendCalls atomic.Uint64
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// ID returns the device id.
func (d *Device) ID() uint32 {
	return d.devID
}

// TsID returns the id of the task scheduler.
func (d *Device) TsID() uint32 {
	return d.tsID
}

// SetDown marks the device as down or running again.
func (d *Device) SetDown(down bool) {
	d.down.Store(down)
}

// InjectNoResources makes the next n sends to a queue report backpressure.
func (d *Device) InjectNoResources(sqID uint32, n int) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.noResources[sqID] = n
}

// InjectSendError makes the next n sends fail with err.
func (d *Device) InjectSendError(err error, n int) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.sendErr = err
	d.sendErrLeft = n
}

// SendCalls returns the number of SqTaskSend calls so far.
func (d *Device) SendCalls() uint64 {
	return d.sendCalls.Load()
}

// DeviceState returns whether the device can still make progress.
func (d *Device) DeviceState(devID uint32) driver.State {
	if devID != d.devID || d.down.Load() {
		return driver.StateDown
	}

	return driver.StateRunning
}

// AllocSqCq creates a submission queue and its completion queue.
func (d *Device) AllocSqCq(
	devID, _ uint32,
	depth uint16,
	flags driver.SqFlag,
) (sqID, cqID uint32, err error) {
	if d.DeviceState(devID) != driver.StateRunning {
		return 0, 0, driver.ErrDeviceDown
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if len(d.sqs) >= d.maxSqs {
		return 0, 0, driver.ErrExhausted
	}

	for {
		d.nextSqID++
		if _, used := d.sqs[d.nextSqID]; !used {
			break
		}
	}

	q := &submissionQueue{
		id:     d.nextSqID,
		cqID:   d.nextSqID,
		depth:  depth,
		ring:   make([]byte, int(depth)*sqe.RecordSize),
		active: flags&driver.SqInactive == 0,
	}
	d.sqs[q.id] = q
	d.cqs[q.cqID] = q

	return q.id, q.cqID, nil
}

// FreeSqCq destroys a submission queue and its completion queue.
func (d *Device) FreeSqCq(_, _, sqID, cqID uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.sqs[sqID]; !ok {
		return driver.ErrInvalidSq
	}

	delete(d.sqs, sqID)
	delete(d.cqs, cqID)

	return nil
}

// SqTaskSend appends records to a submission queue.
func (d *Device) SqTaskSend(devID uint32, info *driver.SendInfo) error {
	d.sendCalls.Add(1)

	if d.DeviceState(devID) != driver.StateRunning {
		return driver.ErrDeviceDown
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.sendErrLeft > 0 {
		d.sendErrLeft--
		return d.sendErr
	}

	q, ok := d.sqs[info.SqID]
	if !ok || info.Count == 0 ||
		len(info.Records) < int(info.Count)*sqe.RecordSize {
		return driver.ErrInvalidSq
	}

	if d.noResources[info.SqID] > 0 {
		d.noResources[info.SqID]--
		return driver.ErrNoResources
	}

	if uint32(q.inFlight())+uint32(info.Count) > uint32(q.depth)-1 {
		return driver.ErrNoResources
	}

	for i := 0; i < int(info.Count); i++ {
		pos := int(q.tail)
		copy(q.ring[pos*sqe.RecordSize:(pos+1)*sqe.RecordSize],
			info.Records[i*sqe.RecordSize:(i+1)*sqe.RecordSize])
		q.tail = uint16((pos + 1) % int(q.depth))
	}

	return nil
}

// SqHead returns the position of the next record the device consumes.
func (d *Device) SqHead(devID, _, sqID uint32) (uint16, error) {
	if d.DeviceState(devID) != driver.StateRunning {
		return 0, driver.ErrDeviceDown
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	q, ok := d.sqs[sqID]
	if !ok {
		return 0, driver.ErrInvalidSq
	}

	return q.head, nil
}

// PollCq removes up to max reports from a completion queue.
func (d *Device) PollCq(_, _, cqID uint32, max int) ([]driver.CQE, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	q, ok := d.cqs[cqID]
	if !ok {
		return nil, driver.ErrInvalidSq
	}

	n := min(max, len(q.cqes))
	out := make([]driver.CQE, n)
	copy(out, q.cqes[:n])
	q.cqes = q.cqes[n:]

	return out, nil
}

// AllocNotifyID reserves a notify.
func (d *Device) AllocNotifyID(devID, _ uint32) (uint32, error) {
	if d.DeviceState(devID) != driver.StateRunning {
		return 0, driver.ErrDeviceDown
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if uint32(len(d.notifies)) >= d.maxNotifies {
		return 0, driver.ErrExhausted
	}

	for {
		d.nextNotifyID = (d.nextNotifyID + 1) % d.maxNotifies
		if _, used := d.notifies[d.nextNotifyID]; !used {
			break
		}
	}

	d.notifies[d.nextNotifyID] = &notify{}

	return d.nextNotifyID, nil
}

// FreeNotifyID releases a notify.
func (d *Device) FreeNotifyID(_, _, notifyID uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	delete(d.notifies, notifyID)

	return nil
}

// NotifyValue returns the current value of a notify.
func (d *Device) NotifyValue(notifyID uint32) uint32 {
	d.lock.Lock()
	defer d.lock.Unlock()

	if n, ok := d.notifies[notifyID]; ok {
		return n.value
	}

	return 0
}

// ActivateSq lets an inactive queue start executing.
func (d *Device) ActivateSq(sqID uint32) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if q, ok := d.sqs[sqID]; ok {
		q.active = true
	}
}

// IsActive tells if a queue executes.
func (d *Device) IsActive(sqID uint32) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	q, ok := d.sqs[sqID]

	return ok && q.active
}

// Pending returns the number of records waiting in a queue.
func (d *Device) Pending(sqID uint32) int {
	d.lock.Lock()
	defer d.lock.Unlock()

	if q, ok := d.sqs[sqID]; ok {
		return int(q.inFlight())
	}

	return 0
}

// Executed returns the headers of the tasks a queue has executed, in order.
func (d *Device) Executed(sqID uint32) []sqe.Header {
	d.lock.Lock()
	defer d.lock.Unlock()

	q, ok := d.sqs[sqID]
	if !ok {
		return nil
	}

	out := make([]sqe.Header, len(q.executed))
	copy(out, q.executed)

	return out
}

// Run executes all active queues in the background until ctx is done.
func (d *Device) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.stepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.StepAll(d.stepBudget)
			}
		}
	}()
}

// StepAll lets every active queue execute up to n tasks. It returns the
// number of tasks executed.
func (d *Device) StepAll(n int) int {
	d.lock.Lock()
	ids := make([]uint32, 0, len(d.sqs))
	for id := range d.sqs {
		ids = append(ids, id)
	}
	d.lock.Unlock()

	total := 0
	for _, id := range ids {
		total += d.Step(id, n)
	}

	return total
}
