// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package nphtest provides fakes for testing code that talks to a board
// over SPI and an interrupt GPIO line, without real hardware.
package nphtest

import (
	"sync"
	"unsafe"
)

// Xfer is one recorded 4-byte SPI transfer: what was written, and what was
// read back.
type Xfer struct {
	Tx [4]byte
	Rx [4]byte
}

const (
	regStatus     = 0x01
	regClear      = 0x25
	regChunkBase  = 0x24
	regSoftTrig   = 0x2E
	regSetReadReg = 0xFE
	regRead       = 0xFF
)

// FakeSPI implements the ioctl-based interface the driver's SPI
// transaction buffer expects, backed by a register file a test can
// preload and a log of every transfer it was asked to perform.
//
// Modeled after spitest.Record: a test arranges Regs up front, then
// inspects Ops afterward to assert the exact command sequence a driver
// operation issued.
type FakeSPI struct {
	mu   sync.Mutex
	Regs map[byte]uint32 // register address -> 24-bit payload
	Ops  []Xfer

	selected byte  // last regSetReadReg target
	FailNext error // if set, the next Ioctl call returns this and is cleared

	// ChunkValue is returned as every byte of every waveform-chunk read
	// (the regChunkBase opcode family), letting a test script a uniform
	// sample value across every channel without modeling per-channel,
	// per-address addressing.
	ChunkValue byte
}

// NewFakeSPI returns a FakeSPI with an empty register file.
func NewFakeSPI() *FakeSPI {
	return &FakeSPI{Regs: make(map[byte]uint32)}
}

// SetRegister preloads a register's 24-bit payload for subsequent reads.
func (f *FakeSPI) SetRegister(addr byte, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Regs[addr] = v
}

// Register reads back a register's current payload, e.g. after a driver
// operation wrote to it.
func (f *FakeSPI) Register(addr byte) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Regs[addr]
}

// rawXfer mirrors the Linux struct spi_ioc_transfer layout the driver's
// spiBus builds; field order and types must stay in lockstep with it.
type rawXfer struct {
	txBuf, rxBuf    uint64
	length, speedHz uint32
	delayUsecs      uint16
	bitsPerWord     uint8
	csChange        uint8
	txNBits         uint8
	rxNBits         uint8
	pad             uint16
}

// decodeMessageCount reverses the driver's spiIOCMessage(n) encoding
// (dir<<30 | typ<<8 | nr | size<<16, with nr==0 for the message ioctl) to
// recover n. It returns 0 for the mode/speed-set ioctls, which FakeSPI
// accepts unconditionally.
func decodeMessageCount(op uint32) int {
	if op&0xFF != 0 {
		return 0
	}
	size := (op >> 16) & 0x3FFF
	return int(size) / 32
}

// Ioctl implements the ioctler interface the driver's SPI bus expects.
func (f *FakeSPI) Ioctl(op uint32, arg uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return err
	}

	n := decodeMessageCount(op)
	if n == 0 {
		return nil
	}

	xfers := unsafe.Slice((*rawXfer)(unsafe.Pointer(arg)), n)
	for i := range xfers {
		tx := readWord(xfers[i].txBuf)
		rx := f.respondLocked(tx)
		writeWord(xfers[i].rxBuf, rx)
		f.Ops = append(f.Ops, Xfer{Tx: tx, Rx: rx})
	}
	return nil
}

// respondLocked computes the 4-byte reply for one transmitted command
// word, modeling the driver's two-phase register read protocol. Callers
// must hold f.mu.
func (f *FakeSPI) respondLocked(tx [4]byte) [4]byte {
	switch {
	case tx[0] == regSetReadReg:
		f.selected = tx[3]
		return [4]byte{}
	case tx[0] == regRead:
		v := f.Regs[f.selected]
		return [4]byte{f.selected, byte(v >> 16), byte(v >> 8), byte(v)}
	case tx[0] == regClear:
		// Simulate the hardware dropping the ready bits named in the
		// payload mask out of the status register, so a clear-then-verify
		// read sees them gone.
		f.Regs[regStatus] &^= uint32(tx[3])
		return [4]byte{}
	case tx[0] == regSoftTrig:
		// Simulate the software trigger filling buffer 0, so a
		// trigger-then-wait sequence sees a ready buffer.
		f.Regs[regStatus] |= 0x1
		return [4]byte{}
	case tx[0] == regChunkBase || (tx[0] > regChunkBase && tx[0] <= regChunkBase+3):
		v := f.ChunkValue
		return [4]byte{v, v, v, v}
	default:
		// Every other opcode is a plain register write: store the 24-bit
		// payload at that address, so a later select+read sees it.
		f.Regs[tx[0]] = uint32(tx[1])<<16 | uint32(tx[2])<<8 | uint32(tx[3])
		return [4]byte{}
	}
}

func readWord(addr uint64) [4]byte {
	return *(*[4]byte)(unsafe.Pointer(uintptr(addr)))
}

func writeWord(addr uint64, v [4]byte) {
	*(*[4]byte)(unsafe.Pointer(uintptr(addr))) = v
}
