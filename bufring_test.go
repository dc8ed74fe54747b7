package nuphase

import (
	"reflect"
	"testing"
)

func TestBufferRingInOrder(t *testing.T) {
	r := newBufferRing()
	order, resynced := r.readyOrder(0x3) // buffers 0 and 1 ready
	if resynced {
		t.Errorf("unexpected resync on fresh ring")
	}
	if !reflect.DeepEqual(order, []int{0, 1}) {
		t.Errorf("readyOrder(0x3) = %v, want [0 1]", order)
	}
	r.advance(0)
	if r.cursor() != 1 {
		t.Errorf("cursor after advance(0) = %d, want 1", r.cursor())
	}
}

func TestBufferRingAdvanceIgnoresStaleBuf(t *testing.T) {
	r := newBufferRing()
	r.advance(2) // cursor starts at 0; 2 is not the current cursor, so ignored
	if r.cursor() != 0 {
		t.Errorf("cursor = %d, want 0 (stale advance ignored)", r.cursor())
	}
}

func TestBufferRingResyncsToLowestSetBit(t *testing.T) {
	r := newBufferRing()
	r.advance(0) // cursor now at 1, since advance(0) moves 0->1 regardless of mask
	order, resynced := r.readyOrder(0x8) // only buffer 3 ready; cursor (1) not in mask
	if !resynced {
		t.Fatalf("expected resync when cursor bit not in mask")
	}
	if !reflect.DeepEqual(order, []int{3}) {
		t.Errorf("readyOrder(0x8) after resync = %v, want [3]", order)
	}
}

func TestBufferRingWrapsModuloNumBuffer(t *testing.T) {
	r := newBufferRing()
	r.advance(0) // cursor -> 1
	r.advance(1) // cursor -> 2
	r.advance(2) // cursor -> 3
	order, _ := r.readyOrder(0xB) // buffers 0,1,3 ready; starts at cursor 3, then wraps to 0 and 1
	if !reflect.DeepEqual(order, []int{3, 0, 1}) {
		t.Errorf("readyOrder wrap = %v, want [3 0 1]", order)
	}
}

func TestDecodeStatus(t *testing.T) {
	mask, hwNext := decodeStatus(0x25) // 0b00100101
	if mask != 0x5 {
		t.Errorf("mask = %#x, want 0x5", mask)
	}
	if hwNext != 0x2 {
		t.Errorf("hwNext = %#x, want 0x2", hwNext)
	}
}
