package nuphase

import (
	"fmt"
	"sync"
	"unsafe"
)

// maxTransfers is the largest number of SPI transfers batched into a single
// ioctl (spec §4.2: "up to N (<=511) SPI transfers").
const maxTransfers = 511

// ioctler is satisfied by an open SPI character device. It is the same
// shape as periph.io/x/periph's host/sysfs Ioctler; kept narrow so
// nphtest can supply a fake without touching a real file descriptor.
type ioctler interface {
	Ioctl(op uint32, arg uintptr) error
}

// spiTransfer mirrors the Linux struct spi_ioc_transfer (see
// linux/spi/spidev.h): one element of an SPI_IOC_MESSAGE(N) ioctl.
type spiTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	len         uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	pad         uint16
}

const spiTransferSize = 32 // sizeof(spiTransfer), fixed by the kernel ABI

// ioctl direction/encoding constants, reproduced locally (as the teacher's
// host/sysfs/sysfs_linux.go does for epoll) so this file needs nothing more
// from golang.org/x/sys/unix than the bare SYS_IOCTL number already
// available via the syscall package.
const (
	iocWrite    = 1
	spiIOCMagic = 'k'
)

func iocEncode(dir, typ, nr, size uint32) uint32 {
	return dir<<30 | typ<<8 | nr | size<<16
}

func spiIOCMessage(n int) uint32 {
	return iocEncode(iocWrite, spiIOCMagic, 0, uint32(n*spiTransferSize))
}

func spiIOCMode() uint32 {
	return iocEncode(iocWrite, spiIOCMagic, 1, 1)
}

func spiIOCMaxSpeedHz() uint32 {
	return iocEncode(iocWrite, spiIOCMagic, 4, 4)
}

// pendingXfer is one queued append(tx, rx) call, kept alive until Flush so
// the tx/rx byte arrays it points into via unsafe.Pointer are not moved or
// collected before the ioctl runs.
type pendingXfer struct {
	tx, rx     cmdWord
	rxOut      *cmdWord // caller's destination for rx, nil to discard
	csChange   bool
	delayUsecs uint16
}

// spiBus is the per-board SPI transaction buffer (spec §4.2). It
// accumulates up to maxTransfers 4-byte command words and flushes them as a
// single batched ioctl.
type spiBus struct {
	dev   ioctler
	speed uint32 // SPI_IOC_WR_MAX_SPEED_HZ value, set once at connect

	mu      sync.Mutex
	pending []pendingXfer
}

func newSPIBus(dev ioctler, speedHz uint32) *spiBus {
	return &spiBus{dev: dev, speed: speedHz, pending: make([]pendingXfer, 0, maxTransfers)}
}

// connect configures SPI mode 0 at the bus's configured clock (spec §3
// "Lifecycle": "configures SPI mode 0 and clock").
func (b *spiBus) connect() error {
	var mode uint64
	if err := b.dev.Ioctl(spiIOCMode(), uintptr(unsafe.Pointer(&mode))); err != nil {
		return wrapIOErr("spi connect: set mode", err)
	}
	speed := uint64(b.speed)
	if err := b.dev.Ioctl(spiIOCMaxSpeedHz(), uintptr(unsafe.Pointer(&speed))); err != nil {
		return wrapIOErr("spi connect: set speed", err)
	}
	return nil
}

// append queues a 4-byte command word for transmission, copying the
// board's 4-byte reply into *rx once Flush runs (rx may be nil to discard
// the reply). It auto-flushes when the buffer is full, exactly as
// append/flush is specified in spec §4.2.
func (b *spiBus) append(tx cmdWord, rx *cmdWord) error {
	return b.appendOpt(tx, rx, false, 0)
}

// appendOpt is append with the optional chip-select-change and
// inter-transfer delay fields spec §4.2 calls out as configurable.
func (b *spiBus) appendOpt(tx cmdWord, rx *cmdWord, csChange bool, delayUsecs uint16) error {
	b.mu.Lock()
	full := len(b.pending) >= maxTransfers
	b.mu.Unlock()
	if full {
		if err := b.flush(); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.pending = append(b.pending, pendingXfer{tx: tx, rxOut: rx, csChange: csChange, delayUsecs: delayUsecs})
	b.mu.Unlock()
	return nil
}

// flush issues one multi-message ioctl for every queued transfer,
// distributes replies to the *cmdWord pointers registered via append, and
// empties the queue. A failing ioctl (including a short transfer — fewer
// bytes moved than requested) is fatal to the whole batch (spec §4.2, §7):
// the error is returned and every reply for this batch is left
// undelivered.
func (b *spiBus) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	n := len(b.pending)
	xfers := make([]spiTransfer, n)
	for i := range b.pending {
		p := &b.pending[i]
		cs := uint8(0)
		if p.csChange {
			cs = 1
		}
		xfers[i] = spiTransfer{
			txBuf:       uint64(uintptr(unsafe.Pointer(&p.tx[0]))),
			rxBuf:       uint64(uintptr(unsafe.Pointer(&p.rx[0]))),
			len:         Word,
			speedHz:     b.speed,
			delayUsecs:  p.delayUsecs,
			bitsPerWord: 8,
			csChange:    cs,
		}
	}
	err := b.dev.Ioctl(spiIOCMessage(n), uintptr(unsafe.Pointer(&xfers[0])))
	if err != nil {
		b.pending = b.pending[:0]
		return wrapIOErr(fmt.Sprintf("spi flush (%d transfers)", n), err)
	}
	for i := range b.pending {
		if b.pending[i].rxOut != nil {
			*b.pending[i].rxOut = b.pending[i].rx
		}
	}
	b.pending = b.pending[:0]
	return nil
}
