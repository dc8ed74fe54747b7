package nphtest

import (
	"errors"
	"testing"
	"unsafe"
)

func TestDecodeMessageCount(t *testing.T) {
	op := uint32(1)<<30 | uint32('k')<<8 | 0 | uint32(3*32)<<16
	if n := decodeMessageCount(op); n != 3 {
		t.Errorf("decodeMessageCount = %d, want 3", n)
	}
	modeOp := uint32(1)<<30 | uint32('k')<<8 | 1 | uint32(1)<<16
	if n := decodeMessageCount(modeOp); n != 0 {
		t.Errorf("decodeMessageCount(mode op) = %d, want 0", n)
	}
}

func TestFakeSPIRegisterRoundTrip(t *testing.T) {
	f := NewFakeSPI()
	f.SetRegister(0x10, 0x123456)
	if got := f.Register(0x10); got != 0x123456 {
		t.Errorf("Register(0x10) = %#x, want 0x123456", got)
	}
}

func TestFakeSPIIoctlTwoPhaseRead(t *testing.T) {
	f := NewFakeSPI()
	f.SetRegister(0x20, 0x00BEEF)

	var tx1, rx1, tx2, rx2 [4]byte
	tx1 = [4]byte{regSetReadReg, 0, 0, 0x20}
	tx2 = [4]byte{regRead, 0, 0, 0}
	xfers := []rawXfer{
		{txBuf: uint64(uintptr(unsafe.Pointer(&tx1))), rxBuf: uint64(uintptr(unsafe.Pointer(&rx1))), length: 4},
		{txBuf: uint64(uintptr(unsafe.Pointer(&tx2))), rxBuf: uint64(uintptr(unsafe.Pointer(&rx2))), length: 4},
	}
	op := uint32(1)<<30 | uint32('k')<<8 | 0 | uint32(len(xfers)*32)<<16
	if err := f.Ioctl(op, uintptr(unsafe.Pointer(&xfers[0]))); err != nil {
		t.Fatalf("Ioctl: %v", err)
	}
	if rx2 != [4]byte{0x20, 0x00, 0xBE, 0xEF} {
		t.Errorf("rx2 = %v, want [0x20 0x00 0xBE 0xEF]", rx2)
	}
	if len(f.Ops) != 2 {
		t.Fatalf("len(Ops) = %d, want 2", len(f.Ops))
	}
}

func TestFakeSPIFailNext(t *testing.T) {
	f := NewFakeSPI()
	want := errors.New("boom")
	f.FailNext = want
	if err := f.Ioctl(0, 0); err != want {
		t.Fatalf("Ioctl: err = %v, want %v", err, want)
	}
	if f.FailNext != nil {
		t.Errorf("FailNext not cleared after use")
	}
	if err := f.Ioctl(0, 0); err != nil {
		t.Fatalf("second Ioctl: %v", err)
	}
}
