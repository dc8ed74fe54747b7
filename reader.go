package nuphase

import (
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"
)

// ReadEvent blocks until at least one buffer is ready (or timeout elapses),
// then drains every ready buffer in cursor order and returns their
// Readouts (spec §4.7). A zero timeout waits forever.
func (d *Device) ReadEvent(timeout time.Duration) ([]Readout, error) {
	mask, err := d.Wait(timeout)
	if err != nil {
		return nil, err
	}
	if mask == 0 {
		return nil, nil
	}
	return d.drain(mask)
}

func (d *Device) drain(mask uint8) ([]Readout, error) {
	order, _ := d.ring.readyOrder(mask)
	out := make([]Readout, 0, len(order))
	for _, buf := range order {
		ro, err := d.readBuffer(buf, mask)
		if err != nil {
			return out, err
		}
		out = append(out, ro)
		d.ring.advance(buf)
	}
	return out, nil
}

// readBuffer reads the header and waveform data for one buffer from every
// active board, cross-checks them, and clears the buffer on the hardware.
func (d *Device) readBuffer(buf int, readyMask uint8) (Readout, error) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	boards := d.boards()
	meta := make([]boardMeta, len(boards))
	for i, b := range boards {
		m, err := readBoardMeta(b, buf)
		if err != nil {
			return Readout{}, fmt.Errorf("nuphase: read metadata buf %d board %d: %w", buf, b.id, err)
		}
		meta[i] = m
	}

	hdr := buildHeader(d, buf, readyMask, meta)

	var ev Event
	ev.EventNumber = hdr.EventNumber
	ev.BufferLength = hdr.BufferLength
	for i, b := range boards {
		ev.BoardID[i] = b.id
		data, err := readWaveforms(b, buf, d.bufferLength, meta[i].channelReadMask)
		if err != nil {
			return Readout{}, fmt.Errorf("nuphase: read waveform buf %d board %d: %w", buf, b.id, err)
		}
		ev.Data[i] = data
	}

	if err := d.clearBufferLocked(buf); err != nil {
		return Readout{}, fmt.Errorf("nuphase: clear buf %d: %w", buf, err)
	}

	// The software event_counter shadows the hardware counter independently:
	// its pre-increment value should equal the hardware counter just read.
	// A mismatch means an event was missed or duplicated somewhere, which is
	// worth flagging but not fatal (spec §4.7 step 2).
	prev := atomic.LoadUint32(&d.eventCounter)
	if prev != hdr.EventNumber {
		hdr.SyncProblem |= SyncProblemEventCounter
	}
	atomic.StoreUint32(&d.eventCounter, prev+1)

	return Readout{Header: hdr, Event: ev}, nil
}

// boardMeta is the raw per-board register snapshot readBoardMeta collects,
// before cross-board assembly into a Header.
type boardMeta struct {
	eventNumber     uint32
	trigNumber      uint32
	trigTime        uint64
	trigInfo        uint32
	deadtime        uint32
	channelMask     uint8
	channelReadMask uint8
	beamMask        uint32
	lastBeam        uint32
	beamPower       [NumBeams]uint32
	ppsCounter      uint32
	dynMask         uint32
	vetoDeadtime    uint32
	bufferNumber    uint8
}

// readBoardMeta batches every metadata register read for one board/buffer
// pair into a single flushed transaction, per spec §4.7's "batch the
// metadata reads for one buffer into a single flush".
func readBoardMeta(b *board, buf int) (boardMeta, error) {
	if err := b.selectBuffer(buf); err != nil {
		return boardMeta{}, err
	}

	var evLo, evHi, trigCtrLo, trigCtrHi, trigLo, trigHi, trigInfo, deadtime cmdWord
	var chanMask, chanReadMask, beamMask, lastBeam cmdWord
	var pps, dynMask, veto cmdWord
	var beamPower [NumBeams]cmdWord

	reads := []struct {
		reg uint8
		rx  *cmdWord
	}{
		{regEventCtrLo, &evLo}, {regEventCtrHi, &evHi},
		{regTrigCtrLo, &trigCtrLo}, {regTrigCtrHi, &trigCtrHi},
		{regTrigTimeLo, &trigLo}, {regTrigTimeHi, &trigHi},
		{regTrigInfo, &trigInfo}, {regDeadtime, &deadtime},
		{regChannelMask, &chanMask}, {regChanReadMask, &chanReadMask},
		{regUserBeamMask, &beamMask}, {regLastBeam, &lastBeam},
		{regPPSCounter, &pps}, {regHDDynMask, &dynMask},
		{regVetoDeadtime, &veto},
	}
	for _, r := range reads {
		if err := appendRegisterRead(b.bus, r.reg, r.rx); err != nil {
			return boardMeta{}, err
		}
	}
	for i := range beamPower {
		if err := appendRegisterRead(b.bus, regBeamPower, &beamPower[i]); err != nil {
			return boardMeta{}, err
		}
	}
	if err := b.bus.flush(); err != nil {
		return boardMeta{}, err
	}

	m := boardMeta{
		eventNumber:     uint32(assemble48(be24(evLo), be24(evHi))),
		trigNumber:      uint32(assemble48(be24(trigCtrLo), be24(trigCtrHi))),
		trigTime:        assemble48(be24(trigLo), be24(trigHi)),
		trigInfo:        be24(trigInfo),
		deadtime:        be24(deadtime),
		channelMask:     byte(be24(chanMask)),
		channelReadMask: byte(be24(chanReadMask)),
		beamMask:        be24(beamMask),
		lastBeam:        be24(lastBeam),
		ppsCounter:      be24(pps),
		dynMask:         be24(dynMask),
		vetoDeadtime:    be24(veto),
		bufferNumber:    byte((be24(trigInfo) >> 22) & 0x3),
	}
	for i := range beamPower {
		m.beamPower[i] = be24(beamPower[i])
	}
	return m, nil
}

// buildHeader assembles the cross-board Header from each board's raw
// metadata, setting SyncProblem bits where boards disagree (spec §4.7).
func buildHeader(d *Device, buf int, readyMask uint8, meta []boardMeta) Header {
	now := time.Now()
	master := meta[0]

	h := Header{
		EventNumber:       master.eventNumber,
		TrigNumber:        master.trigNumber,
		BufferLength:      uint32(d.bufferLength),
		PretriggerSamples: d.pretrigger,
		BufferNumber:      uint8(buf),
		BufferMask:        readyMask,
		TrigType:          TrigType((master.trigInfo >> 15) & 0x3),
		Calpulser:         master.trigInfo&(1<<21) != 0,
		TrigPol:           TrigPol(master.trigInfo & 0xF),
		ChannelMask:       master.channelMask,
		BeamMask:          master.beamMask,
		TriggeredBeams:    master.lastBeam,
		BeamPower:         master.beamPower,
		PPSCounter:        master.ppsCounter,
		DynamicBeamMask:   master.dynMask,
		VetoDeadtimeCounter: master.vetoDeadtime,
	}

	for i, m := range meta {
		h.ReadoutTime[i] = now
		h.TrigTime[i] = m.trigTime
		h.Deadtime[i] = m.deadtime
		h.ChannelReadMask[i] = m.channelReadMask
		h.BoardID[i] = d.boards()[i].id
		if int(m.bufferNumber) != buf {
			h.SyncProblem |= SyncProblemBufferMismatch
		}
	}

	h.ApproxTrigTime = approxTriggerTime(d, master.trigTime, d.family)

	if len(meta) == 2 {
		slave := meta[1]
		if slave.trigNumber != master.trigNumber {
			h.SyncProblem |= SyncProblemTrigNumber
		}
		if diff := trigTimeDiff(master.trigTime, slave.trigTime); diff > 2 {
			h.SyncProblem |= SyncProblemTrigTime
		}
		if slave.bufferNumber != master.bufferNumber {
			h.SyncProblem |= SyncProblemBufferDrift
		}
	}

	return h
}

// trigTimeDiff returns the absolute difference between two 48-bit trigger
// counters.
func trigTimeDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// approxTriggerTime converts the board's free-running trigger-clock count
// into a wall-clock estimate, carrying nanosecond overflow the way the
// board's own clock divides (spec §4.7).
func approxTriggerTime(d *Device, trigCount uint64, f Family) time.Time {
	hz := uint64(f.BoardClockHz() / physic.Hertz)
	if hz == 0 {
		return d.startTime
	}
	secs := trigCount / hz
	ns := (trigCount % hz) * uint64(time.Second) / hz
	return d.startTime.Add(time.Duration(secs)*time.Second + time.Duration(ns))
}

// clearBufferLocked issues a synchronized clear for buf and verifies via
// the status register that the ready bit actually dropped, per spec §4.7's
// "clear, then verify" step.
func (d *Device) clearBufferLocked(buf int) error {
	clearMask := ClearMask(1) << uint(buf)
	if err := d.clearLocked(clearMask); err != nil {
		return err
	}
	status, err := readStatusByte(d.master.bus)
	if err != nil {
		return err
	}
	mask, _ := decodeStatus(status)
	if mask&uint8(clearMask) != 0 {
		return fmt.Errorf("nuphase: clear buf %d: ready bit still set after clear", buf)
	}
	return nil
}

// ClearBuffers issues a synchronized clear for every buffer set in mask,
// without the single-buffer verify step readBuffer performs internally.
func (d *Device) ClearBuffers(mask ClearMask) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	return d.clearLocked(mask)
}

func (d *Device) clearLocked(mask ClearMask) error {
	t := cmdTablesFor(d.family)
	return d.syncedCommandLocked(t.clear[mask])
}

// readWaveforms streams the waveform samples for every channel set in
// readMask, selecting the channel and each RAM address/chunk in turn
// (spec §4.7).
func readWaveforms(b *board, buf, bufferLength int, readMask uint8) ([NumChan][MaxWaveformLength]uint8, error) {
	var out [NumChan][MaxWaveformLength]uint8
	if err := b.selectMode(ModeWaveform); err != nil {
		return out, err
	}
	if err := b.selectBuffer(buf); err != nil {
		return out, err
	}

	t := cmdTablesFor(cmdFamilyOf(b))
	ramWords := bufferLength / (Word * NumChunk)

	for ch := 0; ch < NumChan; ch++ {
		if readMask&(1<<uint(ch)) == 0 {
			continue
		}
		if err := b.bus.append(t.channel[ch], nil); err != nil {
			return out, err
		}
		replies := make([]cmdWord, ramWords*NumChunk)
		for addr := 0; addr < ramWords; addr++ {
			if err := b.bus.append(t.ramAddr[addr], nil); err != nil {
				return out, err
			}
			for chunk := 0; chunk < NumChunk; chunk++ {
				idx := addr*NumChunk + chunk
				if err := b.bus.append(t.chunk[chunk], &replies[idx]); err != nil {
					return out, err
				}
			}
		}
		if err := b.bus.flush(); err != nil {
			return out, err
		}
		for i, w := range replies {
			base := i * Word
			if base+Word > MaxWaveformLength {
				break
			}
			copy(out[ch][base:base+Word], w[:])
		}
	}
	return out, nil
}
