package player

import (
	"errors"
	"io"
	"testing"

	rustune "github.com/David-T08/Rustune"
	"github.com/David-T08/Rustune/modfile"
)

func testStream(t *testing.T) *rustune.Stream {
	t.Helper()

	m := &modfile.Module{
		Name:            "test",
		Signature:       "M.K.",
		NumChannels:     4,
		SongLength:      1,
		RestartPosition: 127,
		NumPatterns:     1,
	}
	rows := make([]modfile.Row, modfile.NumRows)
	for i := range rows {
		rows[i].Cells = make([]modfile.Cell, 4)
	}
	m.Patterns = []modfile.Pattern{{Rows: rows}}

	data := make([]int8, 32)
	for i := range data {
		data[i] = int8(i * 4)
	}
	m.Samples[0] = modfile.Sample{
		Name:       "ramp",
		Length:     32,
		Volume:     64,
		LoopLength: 32,
		Data:       data,
	}
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1}

	s := rustune.NewStream()
	if err := s.LoadModule(m, rustune.LoadModuleConfig{}); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	return s
}

// songBytes is what one playthrough of the test module produces:
// 64 rows, 6 ticks each, 882 frames per tick, 4 bytes per frame.
const songBytes = 64 * 6 * 882 * 4

type collectSink struct {
	bytes  int
	failAt int
	err    error
}

func (s *collectSink) WriteAudio(p []byte) error {
	if s.failAt > 0 && s.bytes >= s.failAt {
		return s.err
	}
	s.bytes += len(p)
	return nil
}

func (s *collectSink) Close() error { return nil }

func TestPlayerPlay(t *testing.T) {
	p := New(testStream(t), Config{})
	sink := &collectSink{}

	if err := p.Play(sink); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if sink.bytes != songBytes {
		t.Errorf("sink received %d bytes, want %d", sink.bytes, songBytes)
	}
}

func TestPlayerSinkError(t *testing.T) {
	p := New(testStream(t), Config{})
	sinkErr := errors.New("device gone")
	sink := &collectSink{failAt: 1, err: sinkErr}

	err := p.Play(sink)
	if err == nil {
		t.Fatalf("Play succeeded with a failing sink")
	}

	var playbackErr *PlaybackError
	if !errors.As(err, &playbackErr) {
		t.Fatalf("Play error is %T, want *PlaybackError", err)
	}
	if !errors.Is(err, sinkErr) {
		t.Errorf("PlaybackError does not wrap the sink error")
	}
}

func TestPlayerReader(t *testing.T) {
	p := New(testStream(t), Config{})
	p.Start()

	out, err := io.ReadAll(p.Reader())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != songBytes {
		t.Errorf("read %d bytes, want %d", len(out), songBytes)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestPlayerStop(t *testing.T) {
	p := New(testStream(t), Config{})
	p.Start()

	// Consume one chunk, then stop; the remaining buffered chunks
	// still drain before the channel closes.
	<-p.AudioOut()
	p.Stop()
	p.Stop() // idempotent

	for range p.AudioOut() {
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait after Stop: %v", err)
	}
}

func TestEventQueue(t *testing.T) {
	q := NewEventQueue(2)

	if _, ok := q.Poll(); ok {
		t.Fatalf("Poll on an empty queue returned an event")
	}

	q.Push(rustune.NoteEvent{Channel: 0})
	q.Push(rustune.NoteEvent{Channel: 1})
	q.Push(rustune.NoteEvent{Channel: 2})
	q.Push(rustune.NoteEvent{Channel: 3})

	if got := q.Dropped(); got != 2 {
		t.Errorf("Dropped()=%d, want 2", got)
	}

	// The oldest events survive; the overflow was dropped.
	for want := 0; want < 2; want++ {
		e, ok := q.Poll()
		if !ok || e.Channel != want {
			t.Fatalf("Poll()=%+v/%v, want channel %d", e, ok, want)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Errorf("queue not empty after draining")
	}
}
