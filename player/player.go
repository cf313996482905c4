// Package player runs a rustune stream on its own goroutine and hands
// the produced PCM to an audio sink through a bounded buffer.
//
// The stream's Read is single-goroutine by design; this package owns
// that goroutine and exposes two consumption styles: a pull-based
// Reader() for audio libraries that drive an io.Reader themselves
// (oto, ebiten/audio), and a push-based Play() for sinks that accept
// byte chunks.
package player

import (
	"fmt"
	"io"
	"sync"

	rustune "github.com/David-T08/Rustune"
)

// AudioSink consumes PCM chunks pushed by Play.
// WriteAudio is expected to block while the device drains; that
// blocking is what paces the producer.
type AudioSink interface {
	WriteAudio(p []byte) error
	Close() error
}

// PlaybackError wraps an error raised while producing or delivering
// audio, so callers can tell playback failures from setup failures.
type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("audio playback: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Config configures a Player.
type Config struct {
	// BufferedTicks is how many tick-sized PCM chunks may sit between
	// the producer and the consumer. A zero value assumes 8, roughly
	// 160ms at the default tempo. Larger values survive consumer
	// hiccups at the cost of control latency: Pause and Stop act on
	// production, and the buffered audio still drains.
	BufferedTicks int
}

// Player drives a stream from a dedicated goroutine.
//
// The stream must not be read or rewound elsewhere while the player
// runs; Pause, Resume and Stop are safe from any goroutine.
type Player struct {
	stream *rustune.Stream

	ring chan []byte
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	finished  chan struct{}

	// err is written by the producer before finished closes
	// and read only after it.
	err error

	leftover []byte
}

// New creates a player over a loaded stream. The player does not start
// producing until Start or Play is called.
func New(stream *rustune.Stream, config Config) *Player {
	if config.BufferedTicks == 0 {
		config.BufferedTicks = 8
	}
	return &Player{
		stream:   stream,
		ring:     make(chan []byte, config.BufferedTicks),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins audio production on a new goroutine.
// Calling it again has no effect.
func (p *Player) Start() {
	p.startOnce.Do(func() {
		p.stream.Start()
		go p.produce()
	})
}

// Pause suspends the sequencer; production continues with silence, so
// pull-based consumers keep a steady stream of bytes.
func (p *Player) Pause() { p.stream.Pause() }

// Resume continues a paused stream without retriggering notes.
func (p *Player) Resume() { p.stream.Resume() }

// Stop ends production. Chunks already buffered still reach the
// consumer; after them the output channel closes and Reader reports
// EOF. Stop is idempotent.
func (p *Player) Stop() {
	p.stopOnce.Do(func() {
		p.stream.Stop()
		close(p.done)
	})
}

// Wait blocks until the producer goroutine exits (song finished,
// Stop called, or a failure) and returns the production error, if any.
func (p *Player) Wait() error {
	<-p.finished
	return p.err
}

// AudioOut exposes the produced PCM chunks for select loops.
// The channel closes when production ends.
func (p *Player) AudioOut() <-chan []byte {
	return p.ring
}

func (p *Player) produce() {
	defer close(p.finished)
	defer close(p.ring)

	// A tempo drop grows the tick size mid-song; the buffer grows
	// with it when Read can no longer fit a whole tick.
	buf := make([]byte, int(p.stream.GetInfo().BytesPerTick)*4)

	for {
		select {
		case <-p.done:
			return
		default:
		}

		n, err := p.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.ring <- chunk:
			case <-p.done:
				return
			}
		}

		if err == io.EOF {
			return
		}
		if err != nil {
			p.err = &PlaybackError{Err: err}
			return
		}
		if n == 0 {
			buf = make([]byte, len(buf)*2)
		}
	}
}

// Play starts production and pushes every chunk into sink, blocking
// until the song ends, Stop is called, or the sink fails. The sink is
// not closed; the caller owns it.
func (p *Player) Play(sink AudioSink) error {
	p.Start()

	for chunk := range p.ring {
		if err := sink.WriteAudio(chunk); err != nil {
			p.Stop()
			for range p.ring {
			}
			<-p.finished
			return &PlaybackError{Err: err}
		}
	}

	return p.Wait()
}

// Reader adapts the player's output to io.Reader for pull-based audio
// libraries. Start the player first; Read then blocks until chunks
// arrive and reports io.EOF (or the production error) when the song
// is over.
func (p *Player) Reader() io.Reader {
	return &ringReader{p: p}
}

type ringReader struct {
	p *Player
}

func (r *ringReader) Read(b []byte) (int, error) {
	p := r.p
	if len(p.leftover) == 0 {
		chunk, ok := <-p.ring
		if !ok {
			<-p.finished
			if p.err != nil {
				return 0, p.err
			}
			return 0, io.EOF
		}
		p.leftover = chunk
	}
	n := copy(b, p.leftover)
	p.leftover = p.leftover[n:]
	return n, nil
}
