package nuphase

var (
	syncOnCmd  = cmdWord{regSync, 0, 0, 1}
	syncOffCmd = cmdWord{regSync, 0, 0, 0}
)

// syncedCommand issues cmd so that it applies simultaneously on both
// boards (spec §4.4): SYNC=1 to master, flush; cmd to slave, flush; cmd
// then SYNC=0 to master, flush. For a single-board Device, cmd is issued
// directly on the master. The whole sequence runs under the command lock.
func (d *Device) syncedCommand(cmd cmdWord) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	return d.syncedCommandLocked(cmd)
}

// syncedCommandLocked is syncedCommand for callers that already hold cmdMu
// (e.g. the reset driver issuing several synchronized steps back to back).
func (d *Device) syncedCommandLocked(cmd cmdWord) error {
	if !d.hasSlave() {
		if err := d.master.bus.append(cmd, nil); err != nil {
			return err
		}
		return d.master.bus.flush()
	}
	if err := d.master.bus.append(syncOnCmd, nil); err != nil {
		return err
	}
	if err := d.master.bus.flush(); err != nil {
		return err
	}
	if err := d.slave.bus.append(cmd, nil); err != nil {
		return err
	}
	if err := d.slave.bus.flush(); err != nil {
		return err
	}
	if err := d.master.bus.append(cmd, nil); err != nil {
		return err
	}
	if err := d.master.bus.append(syncOffCmd, nil); err != nil {
		return err
	}
	return d.master.bus.flush()
}

// syncedCommandVerify takes the command lock, issues cmd with the same
// synchronization as syncedCommandLocked, and then reads verifyReg back on
// every active board, returning each board's reply so the caller can
// compare them (spec §4.4). slave is left zero for a single-board Device.
func (d *Device) syncedCommandVerify(cmd cmdWord, verifyReg uint8) (master, slave cmdWord, err error) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	selectVerify := cmdWord{regSetReadReg, 0, 0, verifyReg}
	readBack := cmdWord{regRead, 0, 0, 0}

	if !d.hasSlave() {
		if err = d.master.bus.append(cmd, nil); err != nil {
			return
		}
		if err = d.master.bus.append(selectVerify, nil); err != nil {
			return
		}
		if err = d.master.bus.append(readBack, &master); err != nil {
			return
		}
		err = d.master.bus.flush()
		return
	}

	if err = d.master.bus.append(syncOnCmd, nil); err != nil {
		return
	}
	if err = d.master.bus.flush(); err != nil {
		return
	}
	if err = d.slave.bus.append(cmd, nil); err != nil {
		return
	}
	if err = d.slave.bus.append(selectVerify, nil); err != nil {
		return
	}
	if err = d.slave.bus.append(readBack, &slave); err != nil {
		return
	}
	if err = d.slave.bus.flush(); err != nil {
		return
	}
	if err = d.master.bus.append(cmd, nil); err != nil {
		return
	}
	if err = d.master.bus.append(syncOffCmd, nil); err != nil {
		return
	}
	if err = d.master.bus.append(selectVerify, nil); err != nil {
		return
	}
	if err = d.master.bus.append(readBack, &master); err != nil {
		return
	}
	err = d.master.bus.flush()
	return
}
