package nuphase

import "fmt"

// Event is the waveform payload read out alongside a Header (spec §4.7).
// Data is indexed [board][channel][sample]; only Data[0] is populated for
// a single-board Device.
type Event struct {
	EventNumber  uint32
	BufferLength uint32
	BoardID      [2]uint32
	Data         [2][NumChan][MaxWaveformLength]uint8
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("Event{event=%d len=%d}", e.EventNumber, e.BufferLength)
}

// Readout pairs a Header with its Event, the unit the event reader hands
// back per buffer drained (spec §4.7).
type Readout struct {
	Header Header
	Event  Event
}
