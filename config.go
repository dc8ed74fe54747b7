package nuphase

import "fmt"

// maxThreshold is the largest value a 20-bit threshold register holds
// (spec §4.8: "thresholds are clamped to the 20-bit range").
const maxThreshold = 0xFFFFF

// clampThreshold clamps v into the register's representable range instead
// of silently wrapping.
func clampThreshold(v uint32) uint32 {
	if v > maxThreshold {
		return maxThreshold
	}
	return v
}

// SetThresholds writes one 20-bit threshold per beam, synchronized across
// both boards when present, and reads the register back on every board to
// confirm the write landed (spec §4.8).
func (d *Device) SetThresholds(beamThresholds [NumBeams]uint32) error {
	for beam, v := range beamThresholds {
		v = clampThreshold(v)
		reg := byte(regThresholdsBase + beam)
		cmd := cmdWord{reg, byte(v >> 16), byte(v >> 8), byte(v)}
		master, slave, err := d.syncedCommandVerify(cmd, reg)
		if err != nil {
			return fmt.Errorf("nuphase: set threshold beam %d: %w", beam, err)
		}
		if be24(master) != v {
			return fmt.Errorf("nuphase: set threshold beam %d: master readback %#x, want %#x", beam, be24(master), v)
		}
		if d.hasSlave() && be24(slave) != v {
			return fmt.Errorf("nuphase: set threshold beam %d: slave readback %#x, want %#x", beam, be24(slave), v)
		}
	}
	return nil
}

// reverseBits reverses the bit order of b, matching the wire encoding the
// attenuation registers expect (spec §4.8: "attenuation steps are written
// bit-reversed").
func reverseBits(b byte) byte {
	var r byte
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// SetAttenuation writes the three per-board attenuation bytes (H pol, V
// pol, and a shared third byte), bit-reversing each per the wire format.
func (d *Device) SetAttenuation(atten [3]byte) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	for i, v := range atten {
		cmd := cmdWord{byte(regAttenBase + i), 0, 0, reverseBits(v)}
		if err := d.syncedCommandLocked(cmd); err != nil {
			return fmt.Errorf("nuphase: set attenuation %d: %w", i, err)
		}
	}
	return nil
}

// SetTriggerMask sets the 24-bit beam mask the trigger logic evaluates.
func (d *Device) SetTriggerMask(mask uint32) error {
	mask &= (1 << NumBeams) - 1
	cmd := cmdWord{regTrigMask, byte(mask >> 16), byte(mask >> 8), byte(mask)}
	return d.syncedCommand(cmd)
}

// TriggerMask reads back the 24-bit beam mask currently armed on the
// master board.
func (d *Device) TriggerMask() (uint32, error) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	return readRegister24(d.master.bus, regTrigMask)
}

// TrigEnables selects which trigger sources are armed (spec §4.8). It is
// also the piece of configuration the reset driver saves before a
// calibration reset and restores afterward (spec §4.9).
type TrigEnables struct {
	RF        bool
	External  bool
	Calpulser bool
}

func (e TrigEnables) encode() byte {
	var b byte
	if e.RF {
		b |= 1 << 0
	}
	if e.External {
		b |= 1 << 1
	}
	if e.Calpulser {
		b |= 1 << 2
	}
	return b
}

// SetTrigEnables arms/disarms trigger sources and remembers the setting so
// the reset driver can restore it after a calibration reset.
func (d *Device) SetTrigEnables(e TrigEnables) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	cmd := cmdWord{regTrigEnables, 0, 0, e.encode()}
	if err := d.syncedCommandLocked(cmd); err != nil {
		return err
	}
	d.lastTrigEnables = e
	return nil
}

// SetTrigPol sets the trigger polarization (spec §4.8).
func (d *Device) SetTrigPol(p TrigPol) error {
	cmd := cmdWord{regTrigPol, 0, 0, byte(p)}
	return d.syncedCommand(cmd)
}

// DynamicMasking configures the dynamic beam masking feature (spec §4.8):
// when Enable is set, any beam whose power exceeds the running average by
// more than Holdoff is masked out of the trigger for subsequent events.
type DynamicMasking struct {
	Enable  bool
	Holdoff uint8
}

// SetDynamicMasking writes the dynamic-masking enable bit and holdoff.
func (d *Device) SetDynamicMasking(m DynamicMasking) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	var en byte
	if m.Enable {
		en = 1
	}
	if err := d.master.bus.append(cmdWord{regDynMaskEnable, 0, 0, en}, nil); err != nil {
		return err
	}
	if err := d.master.bus.append(cmdWord{regDynMaskHoldoff, 0, 0, m.Holdoff}, nil); err != nil {
		return err
	}
	return d.master.bus.flush()
}

// VetoOptions configures the global event veto (spec §4.8): when Enable is
// set, events whose beam power falls outside [CutLow, CutHigh] are vetoed
// and counted against VetoDeadtimeCounter instead of being buffered.
type VetoOptions struct {
	Enable bool
	CutLow uint32
	CutHigh uint32
}

// SetVetoOptions writes the veto enable flag and the two cut-value
// registers.
func (d *Device) SetVetoOptions(v VetoOptions) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	var en byte
	if v.Enable {
		en = 1
	}
	if err := d.master.bus.append(cmdWord{regVetoOptions, 0, 0, en}, nil); err != nil {
		return err
	}
	lo := clampThreshold(v.CutLow)
	if err := d.master.bus.append(cmdWord{regVetoCutA, byte(lo >> 16), byte(lo >> 8), byte(lo)}, nil); err != nil {
		return err
	}
	hi := clampThreshold(v.CutHigh)
	if err := d.master.bus.append(cmdWord{regVetoCutB, byte(hi >> 16), byte(hi >> 8), byte(hi)}, nil); err != nil {
		return err
	}
	return d.master.bus.flush()
}

// SetTrigDelays packs all 8 per-channel 8-bit trigger delays into the 3
// trigger-delay registers, one delay per payload byte, 3+3+2 channels per
// register (spec §4.8).
func (d *Device) SetTrigDelays(delay [NumChan]uint8) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	regs := [3][3]uint8{
		{delay[0], delay[1], delay[2]},
		{delay[3], delay[4], delay[5]},
		{delay[6], delay[7], 0},
	}
	for reg, b := range regs {
		cmd := cmdWord{byte(regTrigDelay0 + reg), b[0], b[1], b[2]}
		if err := d.master.bus.append(cmd, nil); err != nil {
			return err
		}
	}
	return d.master.bus.flush()
}

// SetTrigOutput enables or disables the trigger-out pulse line.
func (d *Device) SetTrigOutput(enable bool) error {
	var v byte
	if enable {
		v = 1
	}
	return d.syncedCommand(cmdWord{regTrigOutput, 0, 0, v})
}

// ExtInputOptions configures the external trigger input (spec §4.8).
type ExtInputOptions struct {
	Enable bool
	Delay  uint8
}

// SetExtInputOptions writes the external-trigger-input enable flag and
// delay registers.
func (d *Device) SetExtInputOptions(o ExtInputOptions) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	var en byte
	if o.Enable {
		en = 1
	}
	if err := d.master.bus.append(cmdWord{regExtInputFlags, 0, 0, en}, nil); err != nil {
		return err
	}
	if err := d.master.bus.append(cmdWord{regExtInputDelay, 0, 0, o.Delay}, nil); err != nil {
		return err
	}
	return d.master.bus.flush()
}
