package nuphase

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// boardIDCounter is the process-wide monotonic board-id source (spec §3:
// "a monotonically assigned board_id per physical board", spec §5: "Board
// ID counters are process-wide state").
var boardIDCounter uint32

func nextBoardID() uint32 {
	return atomic.AddUint32(&boardIDCounter, 1) - 1
}

// board bundles everything the driver needs for one physical board: its
// SPI transaction buffer, its advisory file lock, and its cached
// mode/buffer selection.
type board struct {
	id     uint32
	family Family
	file   *os.File
	lock   *flock.Flock
	bus    *spiBus
	state  boardState
}

// Opts configures Open. MasterPath is required; SlavePath is empty for a
// single-board configuration. GPIO is optional — when nil, Wait uses the
// polling strategy (spec §4.6).
type Opts struct {
	Family       Family
	MasterPath   string
	SlavePath    string
	GPIO         gpio.PinIn
	BufferLength int           // samples; 0 defaults to MaxWaveformLength/2
	Pretrigger   uint8         // 128-sample units
	PollInterval time.Duration // default ~500us, see wait.go
}

// Device is one open DAQ session: up to two boards (master, optional
// slave), the command and wait locks, and the readout bookkeeping
// described in spec §3.
type Device struct {
	family Family

	master *board
	slave  *board // nil for a single-board configuration

	gpio gpio.PinIn

	cmdMu sync.Mutex // the "command lock" of spec §5

	waitMu       sync.Mutex // guards the fields below; the "wait lock" gate
	waiting      bool
	cancelFlag   bool
	cancelCh     chan struct{}

	ring *bufferRing

	bufferLength int
	pretrigger   uint8
	pollInterval time.Duration

	readoutNumberOffset uint64
	eventCounter        uint32
	startTime           time.Time

	// lastTrigEnables is restored after calibration (spec §4.9).
	lastTrigEnables TrigEnables
}

// Open locks both SPI character devices with an exclusive advisory lock,
// configures SPI mode 0 and the family's rated clock, issues a reset, and
// returns a ready-to-use Device.
//
// Per DESIGN.md's resolution of spec §9's first open question, a failure of
// the mandatory startup reset is propagated rather than swallowed.
func Open(o Opts) (*Device, error) {
	if o.MasterPath == "" {
		return nil, fmt.Errorf("nuphase: open: MasterPath is required")
	}
	bufLen := o.BufferLength
	if bufLen == 0 {
		bufLen = MaxWaveformLength / 2
	}
	pollInterval := o.PollInterval
	if pollInterval == 0 {
		pollInterval = 500 * time.Microsecond
	}

	m, err := openBoard(o.MasterPath, o.Family)
	if err != nil {
		return nil, fmt.Errorf("nuphase: open master: %w", err)
	}

	d := &Device{
		family:       o.Family,
		master:       m,
		gpio:         o.GPIO,
		ring:         newBufferRing(),
		bufferLength: bufLen,
		pretrigger:   o.Pretrigger,
		pollInterval: pollInterval,
		cancelCh:     make(chan struct{}),
	}

	if o.SlavePath != "" {
		s, err := openBoard(o.SlavePath, o.Family)
		if err != nil {
			_ = m.lock.Unlock()
			_ = m.file.Close()
			return nil, fmt.Errorf("nuphase: open slave: %w", err)
		}
		d.slave = s
	}

	if err := d.Reset(ResetGlobal); err != nil {
		d.closeBoards()
		return nil, fmt.Errorf("nuphase: open: initial reset failed: %w", err)
	}
	// Reset's counter-reset step already set d.startTime to the wall-clock
	// midpoint spanning the synchronized RESET_COUNTER write.
	return d, nil
}

func openBoard(path string, f Family) (*board, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("advisory lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("advisory lock %s: already held", path)
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	hz := uint32(f.SPIClock() / physic.Hertz)
	b := &board{
		id:     nextBoardID(),
		family: f,
		file:   file,
		lock:   fl,
		bus:    newSPIBus(&spiFile{file}, hz),
		state:  newBoardState(),
	}
	if err := b.bus.connect(); err != nil {
		_ = fl.Unlock()
		_ = file.Close()
		return nil, err
	}
	return b, nil
}

// Close cancels any pending wait, drains the transaction buffers, releases
// the advisory locks, and closes the file descriptors (spec §3
// "Lifecycle").
func (d *Device) Close() error {
	d.CancelWait()
	var firstErr error
	if err := d.master.bus.flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if d.slave != nil {
		if err := d.slave.bus.flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.closeBoards()
	return firstErr
}

func (d *Device) closeBoards() {
	closeOne := func(b *board) {
		if b == nil {
			return
		}
		_ = b.lock.Unlock()
		_ = b.file.Close()
	}
	closeOne(d.master)
	closeOne(d.slave)
}

// hasSlave reports whether this Device is in a two-board configuration.
func (d *Device) hasSlave() bool {
	return d.slave != nil
}

// boards returns the active boards in master-first order.
func (d *Device) boards() []*board {
	if d.slave != nil {
		return []*board{d.master, d.slave}
	}
	return []*board{d.master}
}

// Stats exposes the session counters a housekeeping dumper (kept out of
// scope) would want to report (SPEC_FULL §5).
type Stats struct {
	EventCounter        uint32
	ReadoutNumberOffset uint64
	MasterBoardID       uint32
	SlaveBoardID        uint32
	HasSlave            bool
}

// Stats returns a snapshot of the device's session counters.
func (d *Device) Stats() Stats {
	s := Stats{
		EventCounter:        atomic.LoadUint32(&d.eventCounter),
		ReadoutNumberOffset: d.readoutNumberOffset,
		MasterBoardID:       d.master.id,
	}
	if d.slave != nil {
		s.HasSlave = true
		s.SlaveBoardID = d.slave.id
	}
	return s
}
