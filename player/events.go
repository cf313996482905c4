package player

import (
	"sync/atomic"

	rustune "github.com/David-T08/Rustune"
)

// EventQueue moves note events from the audio-producing goroutine to a
// display goroutine without ever blocking the producer. When the
// consumer falls behind, the newest events are dropped and counted;
// audio production is never stalled by a slow display.
type EventQueue struct {
	events  chan rustune.NoteEvent
	dropped atomic.Int64
}

// NewEventQueue allocates a queue holding up to capacity events.
// A capacity of 0 assumes 256.
func NewEventQueue(capacity int) *EventQueue {
	if capacity == 0 {
		capacity = 256
	}
	return &EventQueue{
		events: make(chan rustune.NoteEvent, capacity),
	}
}

// Push offers an event to the queue; it never blocks.
// A full queue drops the event and increments the drop counter.
//
// Push is the intended Stream event handler:
//
//	stream.SetEventHandler(queue.Push)
func (q *EventQueue) Push(e rustune.NoteEvent) {
	select {
	case q.events <- e:
	default:
		q.dropped.Add(1)
	}
}

// Poll takes the oldest queued event without blocking.
func (q *EventQueue) Poll() (rustune.NoteEvent, bool) {
	select {
	case e := <-q.events:
		return e, true
	default:
		return rustune.NoteEvent{}, false
	}
}

// Events exposes the queue's receive side for select loops.
func (q *EventQueue) Events() <-chan rustune.NoteEvent {
	return q.events
}

// Dropped reports how many events were discarded because the consumer
// fell behind. It is safe to call from any goroutine.
func (q *EventQueue) Dropped() int64 {
	return q.dropped.Load()
}
