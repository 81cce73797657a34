package simdriver

import (
	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/sqe"
)

// Step lets a queue execute up to n tasks. Execution stops early at a wait
// whose condition does not hold yet. Inactive queues and a down device do
// not execute. It returns the number of tasks executed.
func (d *Device) Step(sqID uint32, n int) int {
	if d.down.Load() {
		return 0
	}

	d.lock.Lock()

	q, ok := d.sqs[sqID]
	if !ok || !q.active {
		d.lock.Unlock()
		return 0
	}

	var done []sqe.Header

	for len(done) < n && q.head != q.tail {
		rec := q.ring[int(q.head)*sqe.RecordSize:]
		h := sqe.DecodeHeader(rec)

		if !d.execute(rec, h) {
			break
		}

		count := max(uint16(h.SqeNum), 1)
		q.head = uint16((uint32(q.head) + uint32(count)) % uint32(q.depth))
		q.executed = append(q.executed, h)
		done = append(done, h)

		if h.WrCqe() {
			q.cqes = append(q.cqes, driver.CQE{
				SqID:    q.id,
				SqHead:  q.head,
				SqeType: uint8(h.Type),
				Pos:     h.Pos,
			})
		}
	}

	d.lock.Unlock()

	for _, h := range done {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosRecordExecuted,
			Item:   h,
			Detail: sqID,
		})
	}

	return len(done)
}

// execute applies the side effects of a task. It returns false if the task
// must wait. The device lock must be held.
func (d *Device) execute(rec []byte, h sqe.Header) bool {
	switch h.Type {
	case sqe.TypeNotifyRecord:
		d.executeRecord(rec)
	case sqe.TypeNotifyWait:
		return d.executeWait(rec)
	case sqe.TypeCond:
		if _, sqID, ok := sqe.StreamActiveTarget(rec); ok {
			if target, exists := d.sqs[sqID]; exists {
				target.active = true
			}
		}
	}

	return true
}

func (d *Device) notifyOf(id uint32) *notify {
	n, ok := d.notifies[id]
	if !ok {
		n = &notify{}
		d.notifies[id] = n
	}

	return n
}

func (d *Device) executeRecord(rec []byte) {
	nt, _ := sqe.DecodeNotify(rec)
	n := d.notifyOf(nt.NotifyID)

	switch nt.SubType {
	case sqe.SubEventResetUseSingleNotify, sqe.SubEventResetUseCountNotify:
		n.value = 0
	case sqe.SubCountNotifyRecord, sqe.SubEventUseCountNotifyRecord:
		switch {
		case nt.Clear:
			n.value = 0
		case nt.ModeBits&(1<<2) != 0:
			n.value += nt.CountValue
		default:
			n.value = nt.CountValue
		}
	default:
		n.value = 1
	}
}

func (d *Device) executeWait(rec []byte) bool {
	nt, _ := sqe.DecodeNotify(rec)
	n := d.notifyOf(nt.NotifyID)

	switch nt.SubType {
	case sqe.SubCountNotifyWait, sqe.SubEventUseCountNotifyWait:
		if nt.ModeBits&1 != 0 {
			return n.value == nt.CountValue
		}

		return n.value >= nt.CountValue
	case sqe.SubEventUseSingleNotifyWait:
		return n.value != 0
	default:
		if n.value == 0 {
			return false
		}

		n.value = 0

		return true
	}
}
