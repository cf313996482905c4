package rustune

import (
	"github.com/David-T08/Rustune/internal/moddb"
)

// NoteEvent describes one channel trigger observed by the sequencer
// at the first tick of a row. Events exist so a display layer can
// render the notes currently sounding in lockstep with the audio:
// timestamps are expressed in output frames, not wall-clock time.
//
// An emitted event is immutable; the stream never retains it.
type NoteEvent struct {
	// Tick is the sequencer tick index since playback started.
	Tick int64

	// Frame is the absolute output frame at which the tick's audio
	// begins. Dividing by the output sample rate gives seconds.
	Frame int64

	// Channel is the channel index the event occurred on.
	Channel int

	// Sample is the 1-based sample slot triggered by the cell,
	// 0 when the cell named none.
	Sample int

	// Period is the raw cell period, 0 for effect-only cells.
	Period int

	// Volume is the channel volume right after the trigger phase.
	Volume int

	// Effect and Param are the cell's raw effect bytes.
	Effect uint8
	Param  uint8
}

// NoteName renders the event's period as a tracker note such as "A-3".
func (e NoteEvent) NoteName() string {
	return moddb.NoteName(e.Period)
}

// SetEventHandler installs an event listener to the stream.
//
// f is called from inside Read whenever a row trigger produces a
// note event, before the tick's audio is mixed. It must not block:
// a slow consumer here stalls audio production. Hand the events to
// a queue (see the player package) if the consumer runs elsewhere.
func (s *Stream) SetEventHandler(f func(e NoteEvent)) {
	s.settings.eventHandler = f
}
