package nuphase

// Scalers is a snapshot of the global and per-beam rate counters; Channel
// holds the NumScalers global scaler categories
// (SPEC_FULL §5 supplemented feature; the counters themselves are part of
// the register map spec.md already scopes in, but no operation to read
// them as a batch was specified).
type Scalers struct {
	BoardID  uint32
	Channel  [NumScalers]uint32
	Beam     [NumScalers][NumBeams]uint32
}

// ReadScalers reads the scaler registers from the master board (and the
// slave, if present) under the command lock, returning one Scalers per
// active board in master-first order.
func (d *Device) ReadScalers() ([]Scalers, error) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	boards := d.boards()
	out := make([]Scalers, len(boards))
	for i, b := range boards {
		t := cmdTablesFor(cmdFamilyOf(b))
		s := Scalers{BoardID: b.id}

		chanReplies := make([]cmdWord, NumScalers)
		for c := 0; c < NumScalers; c++ {
			if err := b.bus.append(t.scaler[c], nil); err != nil {
				return nil, err
			}
			if err := appendRegisterRead(b.bus, regScalerRead, &chanReplies[c]); err != nil {
				return nil, err
			}
		}

		beamReplies := make([]cmdWord, NumScalers*NumBeams)
		for c := 0; c < NumScalers; c++ {
			for beam := 0; beam < NumBeams; beam++ {
				idx := NumScalers + c*NumBeams + beam
				if err := b.bus.append(t.scaler[idx], nil); err != nil {
					return nil, err
				}
				if err := appendRegisterRead(b.bus, regScalerRead, &beamReplies[c*NumBeams+beam]); err != nil {
					return nil, err
				}
			}
		}

		if err := b.bus.flush(); err != nil {
			return nil, err
		}

		for c := 0; c < NumScalers; c++ {
			s.Channel[c] = be24(chanReplies[c])
		}
		for c := 0; c < NumScalers; c++ {
			for beam := 0; beam < NumBeams; beam++ {
				s.Beam[c][beam] = be24(beamReplies[c*NumBeams+beam])
			}
		}
		out[i] = s
	}
	return out, nil
}
