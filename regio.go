package nuphase

// appendRegisterRead queues the two-phase register read spec §6 describes:
// select the target register, then issue the generic read whose reply
// carries [target, data_hi, data_mid, data_lo]. The caller still has to
// Flush bus.
func appendRegisterRead(bus *spiBus, reg uint8, rx *cmdWord) error {
	if err := bus.append(cmdWord{regSetReadReg, 0, 0, reg}, nil); err != nil {
		return err
	}
	return bus.append(cmdWord{regRead, 0, 0, 0}, rx)
}

// readRegister24 synchronously reads a single 3-byte-payload register and
// returns it assembled big-endian, per spec §4.7 decode step.
func readRegister24(bus *spiBus, reg uint8) (uint32, error) {
	var reply cmdWord
	if err := appendRegisterRead(bus, reg, &reply); err != nil {
		return 0, err
	}
	if err := bus.flush(); err != nil {
		return 0, err
	}
	return be24(reply), nil
}

// readStatusByte synchronously reads the status register (spec §6: bits
// 0-3 ready mask, bits 4-5 hardware next-to-read), returning its single
// payload byte.
func readStatusByte(bus *spiBus) (byte, error) {
	var reply cmdWord
	if err := appendRegisterRead(bus, regStatus, &reply); err != nil {
		return 0, err
	}
	if err := bus.flush(); err != nil {
		return 0, err
	}
	return reply[3], nil
}

// be24 assembles the 24-bit big-endian payload of a register reply
// [target, hi, mid, lo].
func be24(w cmdWord) uint32 {
	return uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
}

// assemble48 builds a 48-bit counter from its low and high 24-bit halves,
// per DESIGN.md's resolution of spec §9's DNA-assembly open question:
// strict bit-OR, never the "||" typo the source sometimes used.
func assemble48(lo, hi uint32) uint64 {
	return uint64(lo) | uint64(hi)<<24
}
