package core

import (
	"sync"

	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/transport"
)

// Device is a device known to a runtime.
type Device struct {
	id      uint32
	tsID    uint32
	drv     driver.Driver
	channel *transport.Channel

	lock        sync.RWMutex
	abortStatus error
}

// ID returns the device id.
func (d *Device) ID() uint32 {
	return d.id
}

// TsID returns the id of the task scheduler of the device.
func (d *Device) TsID() uint32 {
	return d.tsID
}

// Driver returns the driver of the device.
func (d *Device) Driver() driver.Driver {
	return d.drv
}

// Channel returns the channel that sends records to the device.
func (d *Device) Channel() *transport.Channel {
	return d.channel
}

// IsDown tells if the driver reports the device as down.
func (d *Device) IsDown() bool {
	return d.drv.DeviceState(d.id) == driver.StateDown
}

// Abort puts the device into the abort state. Every later blocking point on
// the device returns DeviceAbort.
func (d *Device) Abort() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.abortStatus = rterr.New(rterr.ErrDeviceAbort, pkgName, "abort", nil)
}

// ClearAbort takes the device out of the abort state.
func (d *Device) ClearAbort() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.abortStatus = nil
}

// AbortStatus returns nil unless the device is aborted or down.
func (d *Device) AbortStatus() error {
	d.lock.RLock()
	status := d.abortStatus
	d.lock.RUnlock()

	if status != nil {
		return status
	}

	if d.IsDown() {
		return rterr.New(rterr.ErrDeviceAbort, pkgName, "state", driver.ErrDeviceDown)
	}

	return nil
}
