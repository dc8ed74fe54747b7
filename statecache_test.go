package nuphase

import (
	"testing"

	"github.com/beacontau/nuphase/nphtest"
)

func newTestBoard(f Family) (*board, *nphtest.FakeSPI) {
	fake := nphtest.NewFakeSPI()
	b := &board{
		id:     0,
		family: f,
		bus:    newSPIBus(fake, 10000000),
		state:  newBoardState(),
	}
	return b, fake
}

func TestSelectModeElidesRepeat(t *testing.T) {
	b, fake := newTestBoard(NP)
	if err := b.selectMode(ModeWaveform); err != nil {
		t.Fatalf("selectMode: %v", err)
	}
	if err := b.bus.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.Ops) != 1 {
		t.Fatalf("first select: len(Ops) = %d, want 1", len(fake.Ops))
	}
	if err := b.selectMode(ModeWaveform); err != nil {
		t.Fatalf("selectMode (repeat): %v", err)
	}
	if err := b.bus.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.Ops) != 1 {
		t.Fatalf("repeated select: len(Ops) = %d, want still 1 (elided)", len(fake.Ops))
	}
	if err := b.selectMode(ModeRegisterTest); err != nil {
		t.Fatalf("selectMode (new mode): %v", err)
	}
	if err := b.bus.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.Ops) != 2 {
		t.Fatalf("mode change: len(Ops) = %d, want 2", len(fake.Ops))
	}
}

func TestSelectBufferElidesRepeat(t *testing.T) {
	b, fake := newTestBoard(BN)
	for i := 0; i < 3; i++ {
		if err := b.selectBuffer(2); err != nil {
			t.Fatalf("selectBuffer: %v", err)
		}
	}
	if err := b.bus.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.Ops) != 1 {
		t.Fatalf("len(Ops) = %d, want 1 (elided repeats)", len(fake.Ops))
	}
}

func TestNewBoardStateStartsInvalid(t *testing.T) {
	s := newBoardState()
	if s.currentBuf != invalidSel || s.currentMode != invalidSel {
		t.Fatalf("newBoardState() = %+v, want both fields invalidSel", s)
	}
}
