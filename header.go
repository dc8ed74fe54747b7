package nuphase

import (
	"fmt"
	"time"
)

// SyncProblem bits flag disagreements found while assembling a Header:
// between master and slave, between a board's trig-info and the selected
// buffer, or between the hardware and software event counters (spec §4.7).
type SyncProblem uint8

const (
	// SyncProblemBufferMismatch is set when a board's own trig-info buffer
	// field disagrees with the buffer index the reader selected.
	SyncProblemBufferMismatch SyncProblem = 1 << iota
	// SyncProblemTrigNumber is set when the master and slave trigger
	// counters disagree.
	SyncProblemTrigNumber
	// SyncProblemTrigTime is set when the master and slave trigger-time
	// counters differ by more than two clocks.
	SyncProblemTrigTime
	// SyncProblemBufferDrift is set when the master and slave trig-info
	// buffer fields disagree with each other.
	SyncProblemBufferDrift
	// SyncProblemEventCounter is set when the device's own shadow
	// event_counter disagrees with the hardware event counter assembled
	// for this read (spec §4.7's software/hardware cross-check, distinct
	// from the master/slave checks above).
	SyncProblemEventCounter
)

// Header is the per-event metadata record of spec §4.7, decoded from the
// batch of status/counter registers read for one buffer.
type Header struct {
	EventNumber       uint32
	TrigNumber        uint32
	BufferLength      uint32
	PretriggerSamples uint8

	ReadoutTime   [2]time.Time // per board; zero for the absent slave
	TrigTime      [2]uint64    // 48-bit trigger counter, per board
	ApproxTrigTime time.Time

	TriggeredBeams  uint32 // NumBeams-bit mask
	BeamMask        uint32
	BeamPower       [NumBeams]uint32
	ChannelMask     uint8
	ChannelReadMask [2]uint8 // per board

	TrigType TrigType
	Calpulser bool

	Deadtime [2]uint32 // per board

	BufferNumber uint8
	BufferMask   uint8

	BoardID [2]uint32 // per board; 0 for the absent slave

	PPSCounter          uint32
	DynamicBeamMask     uint32
	VetoDeadtimeCounter uint32
	GateFlag            bool
	TrigPol             TrigPol

	SyncProblem SyncProblem
}

// String implements fmt.Stringer.
func (h Header) String() string {
	return fmt.Sprintf("Header{event=%d buf=%d trig=%s sync_problem=%#02x}",
		h.EventNumber, h.BufferNumber, h.TrigType, h.SyncProblem)
}
