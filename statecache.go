package nuphase

// invalidSel is the sentinel used for "no buffer/mode selected yet" so the
// first real selection is never elided.
const invalidSel = 0xFF

// boardState is the per-board shadow of the last-selected buffer and
// readout mode (spec §4.3). All paths that may change these fields do so
// inside the caller's command-lock critical section, per spec §4.3's
// "updated inside the same critical section" rule — boardState itself is
// not separately locked.
type boardState struct {
	currentBuf  uint8
	currentMode uint8
}

func newBoardState() boardState {
	return boardState{currentBuf: invalidSel, currentMode: invalidSel}
}

// selectMode appends a mode-select command to bus unless the cache already
// shows mode selected, updating the cache either way.
func (b *board) selectMode(m Mode) error {
	if b.state.currentMode == uint8(m) {
		return nil
	}
	t := cmdTablesFor(cmdFamilyOf(b))
	if err := b.bus.append(t.mode[m], nil); err != nil {
		return err
	}
	b.state.currentMode = uint8(m)
	return nil
}

// selectBuffer appends a buffer-select command to bus unless the cache
// already shows buf selected, updating the cache either way.
func (b *board) selectBuffer(buf int) error {
	if b.state.currentBuf == uint8(buf) {
		return nil
	}
	t := cmdTablesFor(cmdFamilyOf(b))
	if err := b.bus.append(t.buffer[buf], nil); err != nil {
		return err
	}
	b.state.currentBuf = uint8(buf)
	return nil
}

// cmdFamilyOf returns the Family stored on b, which selects the command
// table used for its transfers (mode/buffer selects are family-independent;
// only channel and chunk encoding vary).
func cmdFamilyOf(b *board) Family {
	return b.family
}
