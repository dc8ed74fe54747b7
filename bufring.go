package nuphase

import "sync"

// decodeStatus splits the status register byte into the 4-bit hardware
// ready mask (bits 0-3) and the 2-bit hardware next-to-read cursor (bits
// 4-5), per spec §6's register map and §4.5.
func decodeStatus(status byte) (mask uint8, hwNext uint8) {
	mask = status & 0x0F
	hwNext = (status >> 4) & 0x03
	return
}

// lowestSetBit returns the index of the lowest set bit in mask, or -1 if
// mask is zero.
func lowestSetBit(mask uint8) int {
	for i := 0; i < NumBuffer; i++ {
		if mask&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// bufferRing is the buffer ring manager of spec §4.5: it tracks the
// software next-to-read cursor and resyncs it against the hardware ready
// mask when they disagree.
type bufferRing struct {
	mu       sync.Mutex
	nextRead uint8
}

func newBufferRing() *bufferRing {
	return &bufferRing{}
}

// readyOrder returns the indices set in mask, starting at the current
// software cursor and wrapping modulo NumBuffer ("in cursor order", spec
// §4.7). If the cursor's own bit is not set in mask, it first resyncs to
// the lowest set bit and reports that a resync happened.
func (r *bufferRing) readyOrder(mask uint8) (order []int, resynced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mask == 0 {
		return nil, false
	}
	if mask&(1<<r.nextRead) == 0 {
		r.nextRead = uint8(lowestSetBit(mask))
		resynced = true
	}
	for i := 0; i < NumBuffer; i++ {
		idx := (int(r.nextRead) + i) % NumBuffer
		if mask&(1<<uint(idx)) != 0 {
			order = append(order, idx)
		}
	}
	return order, resynced
}

// advance moves the software cursor past buf after it has been
// successfully read and cleared (spec §4.5: "advance next_read_buffer by
// one modulo NUM_BUFFER").
func (r *bufferRing) advance(buf int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(r.nextRead) == buf {
		r.nextRead = uint8((buf + 1) % NumBuffer)
	}
}

// cursor returns the current software next-to-read index, for tests.
func (r *bufferRing) cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.nextRead)
}
