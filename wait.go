package nuphase

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Wait blocks until the master board's ready mask becomes non-empty, the
// wait is cancelled, or timeout elapses (spec §4.6). It returns the raw
// ready mask, decodable with decodeStatus. A timeout of zero or less
// blocks forever.
//
// Only one goroutine may wait at a time; a second caller gets ErrBusy
// immediately (spec §5, "second concurrent waiter returns BUSY"). A prior
// CancelWait whose signal hasn't yet been consumed makes the next Wait
// return ErrAgain instead of blocking, mirroring the teacher's sysfs edge
// channel having a pending cancellation draining before it can be reused.
func (d *Device) Wait(timeout time.Duration) (uint8, error) {
	d.waitMu.Lock()
	if d.waiting {
		d.waitMu.Unlock()
		return 0, ErrBusy
	}
	if d.cancelFlag {
		d.cancelFlag = false
		d.waitMu.Unlock()
		return 0, ErrAgain
	}
	d.waiting = true
	cancelCh := d.cancelCh
	d.waitMu.Unlock()

	defer func() {
		d.waitMu.Lock()
		d.waiting = false
		d.waitMu.Unlock()
	}()

	if d.gpio != nil {
		return d.waitInterrupt(timeout, cancelCh)
	}
	return d.waitPoll(timeout, cancelCh)
}

// CancelWait unblocks a pending Wait with ErrIntr, or arms ErrAgain for the
// next call to Wait if none is currently blocked (spec §4.6's "cancel a
// wait that hasn't started yet" edge case). Safe to call from any
// goroutine, any number of times.
func (d *Device) CancelWait() {
	d.waitMu.Lock()
	defer d.waitMu.Unlock()
	if !d.waiting {
		d.cancelFlag = true
		return
	}
	close(d.cancelCh)
	d.cancelCh = make(chan struct{})
}

func (d *Device) waitPoll(timeout time.Duration, cancelCh chan struct{}) (uint8, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		status, err := readStatusByte(d.master.bus)
		if err != nil {
			return 0, err
		}
		if mask, _ := decodeStatus(status); mask != 0 {
			return mask, nil
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return 0, nil
		}
		select {
		case <-cancelCh:
			return 0, ErrIntr
		case <-ticker.C:
		}
	}
}

// waitInterrupt uses the injected GPIO line's edge detection instead of
// polling the status register. gpio.PinIn.WaitForEdge has no separate
// cancel parameter, so it runs in its own goroutine; on cancellation we
// re-arm In() on the pin, which unblocks a sysfs-backed WaitForEdge the
// way periph documents, and return immediately without waiting for that
// goroutine to exit. It is bounded by timeout, or abandoned if the pin
// doesn't honor the unblock-via-In() convention and timeout is infinite.
// A zero or negative timeout means wait forever, matching WaitForEdge's
// own -1 convention.
func (d *Device) waitInterrupt(timeout time.Duration, cancelCh chan struct{}) (uint8, error) {
	if err := d.gpio.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return 0, err
	}

	edgeTimeout := timeout
	if edgeTimeout <= 0 {
		edgeTimeout = -1
	}

	edge := make(chan bool, 1)
	go func() {
		edge <- d.gpio.WaitForEdge(edgeTimeout)
	}()

	select {
	case <-cancelCh:
		_ = d.gpio.In(gpio.PullNoChange, gpio.RisingEdge)
		return 0, ErrIntr
	case ok := <-edge:
		if !ok {
			return 0, nil
		}
	}

	status, err := readStatusByte(d.master.bus)
	if err != nil {
		return 0, err
	}
	mask, _ := decodeStatus(status)
	return mask, nil
}
