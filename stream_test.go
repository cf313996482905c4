package rustune

import (
	"io"
	"testing"

	"github.com/David-T08/Rustune/internal/moddb"
	"github.com/David-T08/Rustune/modfile"
)

const bytesPerDefaultTick = 882 * 4 // 44100 Hz at 125 BPM

func emptyTestPattern() modfile.Pattern {
	rows := make([]modfile.Row, modfile.NumRows)
	for i := range rows {
		rows[i].Cells = make([]modfile.Cell, 4)
	}
	return modfile.Pattern{Rows: rows}
}

// testModule builds a 4-channel module with the given number of
// patterns played in order, a looping square wave in sample slot 1
// and a short one-shot blip in slot 2.
func testModule(numPatterns int) *modfile.Module {
	m := &modfile.Module{
		Name:            "test",
		Signature:       "M.K.",
		NumChannels:     4,
		SongLength:      numPatterns,
		RestartPosition: 127,
		NumPatterns:     numPatterns,
	}
	for i := 0; i < numPatterns; i++ {
		m.Orders[i] = uint8(i)
		m.Patterns = append(m.Patterns, emptyTestPattern())
	}

	square := make([]int8, 32)
	for i := range square {
		if i < 16 {
			square[i] = 64
		} else {
			square[i] = -64
		}
	}
	m.Samples[0] = modfile.Sample{
		Name:       "square",
		Length:     32,
		Volume:     64,
		LoopStart:  0,
		LoopLength: 32,
		Data:       square,
	}

	blip := make([]int8, 32)
	copy(blip, square)
	m.Samples[1] = modfile.Sample{
		Name:   "blip",
		Length: 32,
		Volume: 64,
		Data:   blip,
	}

	return m
}

func loadStream(t *testing.T, m *modfile.Module) *Stream {
	t.Helper()
	s := NewStream()
	if err := s.LoadModule(m, LoadModuleConfig{}); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	return s
}

func readUntilEOF(t *testing.T, s *Stream, max int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 4096)
	for len(out) <= max {
		n, err := s.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	t.Fatalf("no EOF within %d bytes", max)
	return nil
}

func hasNonzeroByte(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}

func TestCalcFramesPerTick(t *testing.T) {
	tests := []struct {
		sampleRate float64
		bpm        float64
		want       int
	}{
		{44100, 125, 882},
		{44100, 140, 788},
		{44100, 143, 771},
		{48000, 125, 960},
	}

	for _, test := range tests {
		frames, bytes := calcFramesPerTick(test.sampleRate, test.bpm)
		if frames != test.want {
			t.Errorf("calcFramesPerTick(%v, %v)=%d, want %d",
				test.sampleRate, test.bpm, frames, test.want)
		}
		if bytes != frames*4 {
			t.Errorf("bytesPerTick=%d, want %d", bytes, frames*4)
		}
	}
}

func TestStreamPlaysThrough(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1}

	s := loadStream(t, m)
	var events []NoteEvent
	s.SetEventHandler(func(e NoteEvent) {
		events = append(events, e)
	})
	s.Start()

	out := readUntilEOF(t, s, 2_000_000)

	// 64 rows, 6 ticks each, all at the default tempo.
	wantBytes := 64 * 6 * bytesPerDefaultTick
	if len(out) != wantBytes {
		t.Errorf("produced %d bytes, want %d", len(out), wantBytes)
	}
	if !hasNonzeroByte(out) {
		t.Errorf("produced all-silent output for a module with a note")
	}
	if s.State() != StateFinished {
		t.Errorf("state=%v after EOF, want StateFinished", s.State())
	}

	if len(events) != 1 {
		t.Fatalf("got %d note events, want 1", len(events))
	}
	e := events[0]
	if e.Tick != 0 || e.Frame != 0 {
		t.Errorf("event at tick=%d frame=%d, want 0/0", e.Tick, e.Frame)
	}
	if e.Channel != 0 || e.Period != 428 || e.Sample != 1 || e.Volume != 64 {
		t.Errorf("unexpected event payload: %+v", e)
	}
	if e.NoteName() != "C-5" {
		t.Errorf("NoteName()=%q, want C-5", e.NoteName())
	}
}

func TestStreamTempoChange(t *testing.T) {
	m := testModule(1)
	// Tempo 140 on the very first row.
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Effect: 0xF, Param: 140}

	s := loadStream(t, m)
	s.Start()

	// The tick carrying the effect still runs at 125 BPM.
	buf := make([]byte, bytesPerDefaultTick)
	n, err := s.Read(buf)
	if err != nil || n != bytesPerDefaultTick {
		t.Fatalf("first tick read %d bytes (err=%v), want %d", n, err, bytesPerDefaultTick)
	}

	// Every following tick runs at 140 BPM.
	if got := s.GetInfo().BytesPerTick; got != 788*4 {
		t.Errorf("BytesPerTick=%d after tempo change, want %d", got, 788*4)
	}
}

func TestStreamSpeedChange(t *testing.T) {
	m := testModule(1)
	// Speed 3; it applies starting at the next row.
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Effect: 0xF, Param: 0x03}

	s := loadStream(t, m)
	s.Start()

	out := readUntilEOF(t, s, 2_000_000)
	wantTicks := 6 + 63*3
	if len(out) != wantTicks*bytesPerDefaultTick {
		t.Errorf("produced %d bytes, want %d ticks (%d bytes)",
			len(out), wantTicks, wantTicks*bytesPerDefaultTick)
	}
}

func TestStreamArpeggio(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0x0, Param: 0x47}

	s := loadStream(t, m)
	ch := &s.channels[0]

	// Tick 0 plays the base note; ticks 1 and 2 play +4 and +7
	// semitones; tick 3 restarts the cycle.
	wantPeriods := []int{0, 339, 285, 0, 339, 285}
	for i, want := range wantPeriods {
		if !s.nextTick() {
			t.Fatalf("song over at tick %d", i)
		}
		if ch.arpPeriod != want {
			t.Errorf("tick %d: arpPeriod=%d, want %d", i, ch.arpPeriod, want)
		}
		if ch.period != 428 {
			t.Errorf("tick %d: base period changed to %d", i, ch.period)
		}
	}
}

func TestStreamVolumeSlideClamp(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0xA, Param: 0x0F}
	s := loadStream(t, m)
	for i := 0; i < 6; i++ {
		s.nextTick()
	}
	if got := s.channels[0].volume; got != 0 {
		t.Errorf("volume=%d after sliding down, want 0", got)
	}

	m = testModule(1)
	m.Samples[0].Volume = 32
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0xA, Param: 0xF0}
	s = loadStream(t, m)
	for i := 0; i < 6; i++ {
		s.nextTick()
	}
	if got := s.channels[0].volume; got != 64 {
		t.Errorf("volume=%d after sliding up, want 64", got)
	}
}

func TestStreamPauseResume(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1}

	s := loadStream(t, m)
	events := 0
	s.SetEventHandler(func(e NoteEvent) { events = events + 1 })
	s.Start()

	buf := make([]byte, bytesPerDefaultTick)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	posBefore := s.channels[0].pos
	eventsBefore := events

	s.Pause()
	if s.State() != StatePaused {
		t.Fatalf("state=%v after Pause, want StatePaused", s.State())
	}

	// Paused reads produce silence of the full requested size and do
	// not advance the sequencer.
	n, err := s.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("paused read: n=%d err=%v", n, err)
	}
	if hasNonzeroByte(buf) {
		t.Errorf("paused read produced audible output")
	}
	if s.channels[0].pos != posBefore {
		t.Errorf("paused read moved the sample cursor")
	}

	s.Resume()
	n, err = s.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("resumed read: n=%d err=%v", n, err)
	}
	if !hasNonzeroByte(buf) {
		t.Errorf("resumed read produced silence")
	}
	if events != eventsBefore {
		t.Errorf("resuming retriggered a note")
	}
}

func TestStreamPatternBreak(t *testing.T) {
	m := testModule(2)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Effect: 0xD, Param: 0x05}
	m.Patterns[1].Rows[5].Cells[0] = modfile.Cell{Period: 214, Sample: 1}

	s := loadStream(t, m)
	var events []NoteEvent
	s.SetEventHandler(func(e NoteEvent) {
		events = append(events, e)
	})
	s.Start()

	out := readUntilEOF(t, s, 2_000_000)

	// One row of pattern 0, then pattern 1 from row 5 onward.
	wantTicks := 6 + (64-5)*6
	if len(out) != wantTicks*bytesPerDefaultTick {
		t.Errorf("produced %d bytes, want %d", len(out), wantTicks*bytesPerDefaultTick)
	}
	if len(events) != 1 || events[0].Period != 214 {
		t.Fatalf("events=%+v, want a single event with period 214", events)
	}
}

func TestStreamPositionJump(t *testing.T) {
	m := testModule(2)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Effect: 0xB, Param: 0x01}

	s := loadStream(t, m)
	s.Start()

	out := readUntilEOF(t, s, 2_000_000)
	wantTicks := 6 + 64*6
	if len(out) != wantTicks*bytesPerDefaultTick {
		t.Errorf("produced %d bytes, want %d", len(out), wantTicks*bytesPerDefaultTick)
	}
}

func TestStreamRestart(t *testing.T) {
	m := testModule(1)
	m.RestartPosition = 0

	s := loadStream(t, m)
	s.Start()

	// The song loops through its restart position: reading well past
	// one playthrough reports no EOF.
	buf := make([]byte, 4096)
	for read := 0; read < 2*64*6*bytesPerDefaultTick; {
		n, err := s.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		read += n
	}
	if s.State() != StatePlaying {
		t.Fatalf("state=%v, want StatePlaying", s.State())
	}

	s.Stop()
	if _, err := s.Read(buf); err != io.EOF {
		t.Errorf("Read after Stop: err=%v, want io.EOF", err)
	}
}

func TestStreamSetLooping(t *testing.T) {
	m := testModule(1)
	s := loadStream(t, m)
	s.SetLooping(true)
	s.Start()

	buf := make([]byte, 4096)
	for read := 0; read < 3*64*6*bytesPerDefaultTick; {
		n, err := s.Read(buf)
		if err != nil {
			t.Fatalf("Read with looping: %v", err)
		}
		read += n
	}
	if s.State() != StatePlaying {
		t.Errorf("state=%v, want StatePlaying", s.State())
	}
}

func TestStreamNoteDelay(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0xE, Param: 0xD3}

	s := loadStream(t, m)
	ch := &s.channels[0]

	for i := 0; i < 3; i++ {
		s.nextTick()
		if ch.sample != nil {
			t.Fatalf("note sounding at tick %d, want delay until tick 3", i)
		}
	}
	s.nextTick()
	if ch.sample == nil || ch.period != 428 {
		t.Fatalf("note not triggered at tick 3: sample=%v period=%d", ch.sample, ch.period)
	}
}

func TestStreamNoteCut(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0xE, Param: 0xC2}

	s := loadStream(t, m)
	ch := &s.channels[0]

	s.nextTick()
	s.nextTick()
	if ch.volume != 64 {
		t.Fatalf("volume=%d before the cut tick, want 64", ch.volume)
	}
	s.nextTick()
	if ch.volume != 0 {
		t.Fatalf("volume=%d at the cut tick, want 0", ch.volume)
	}
}

func TestStreamVibratoPhaseContinues(t *testing.T) {
	m := testModule(1)
	cell := modfile.Cell{Period: 428, Sample: 1, Effect: 0x4, Param: 0x48}
	m.Patterns[0].Rows[0].Cells[0] = cell
	m.Patterns[0].Rows[1].Cells[0] = cell

	s := loadStream(t, m)
	ch := &s.channels[0]

	// Row 0: the phase advances on ticks 1..5.
	for i := 0; i < 6; i++ {
		s.nextTick()
	}
	if ch.vibratoPhase != 20 {
		t.Fatalf("vibratoPhase=%d after row 0, want 20", ch.vibratoPhase)
	}

	// The retrigger on row 1 keeps the phase running.
	s.nextTick()
	if ch.vibratoPhase != 20 {
		t.Fatalf("vibratoPhase=%d at row 1 tick 0, want 20", ch.vibratoPhase)
	}
	s.nextTick()
	if ch.vibratoPhase != 24 {
		t.Errorf("vibratoPhase=%d at row 1 tick 1, want 24", ch.vibratoPhase)
	}
	wantAdjust := moddb.WaveformValue(moddb.WaveformSine, 20) * 8 >> 7
	if ch.vibratoAdjust != wantAdjust {
		t.Errorf("vibratoAdjust=%d, want %d", ch.vibratoAdjust, wantAdjust)
	}
}

func TestStreamPatternDelay(t *testing.T) {
	m := testModule(1)
	// EE2 repeats the row's trigger phase two extra times.
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0xE, Param: 0xE2}

	s := loadStream(t, m)
	var events []NoteEvent
	s.SetEventHandler(func(e NoteEvent) {
		events = append(events, e)
	})
	s.Start()

	out := readUntilEOF(t, s, 2_000_000)
	wantTicks := (64 + 2) * 6
	if len(out) != wantTicks*bytesPerDefaultTick {
		t.Errorf("produced %d bytes, want %d ticks (%d bytes)",
			len(out), wantTicks, wantTicks*bytesPerDefaultTick)
	}
	if len(events) != 3 {
		t.Errorf("got %d trigger events, want 3 (one per row pass)", len(events))
	}
}

func TestStreamPatternLoop(t *testing.T) {
	m := testModule(1)
	// E60 marks row 2, E62 on row 4 replays rows 2..4 two extra times.
	m.Patterns[0].Rows[2].Cells[0] = modfile.Cell{Period: 428, Sample: 1, Effect: 0xE, Param: 0x60}
	m.Patterns[0].Rows[4].Cells[0] = modfile.Cell{Effect: 0xE, Param: 0x62}

	s := loadStream(t, m)
	var events []NoteEvent
	s.SetEventHandler(func(e NoteEvent) {
		events = append(events, e)
	})
	s.Start()

	out := readUntilEOF(t, s, 2_000_000)
	wantTicks := (64 + 2*3) * 6
	if len(out) != wantTicks*bytesPerDefaultTick {
		t.Errorf("produced %d bytes, want %d ticks (%d bytes)",
			len(out), wantTicks, wantTicks*bytesPerDefaultTick)
	}
	if len(events) != 3 {
		t.Errorf("got %d trigger events, want 3 (one per loop pass)", len(events))
	}
}

func TestStreamTonePortamentoClamp(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1}
	// Slide rate 0x30 covers the 24-period gap in a single tick and
	// must stop exactly on the target.
	m.Patterns[0].Rows[1].Cells[0] = modfile.Cell{Period: 404, Effect: 0x3, Param: 0x30}

	s := loadStream(t, m)
	ch := &s.channels[0]

	for i := 0; i < 6; i++ {
		s.nextTick()
	}
	if ch.period != 428 {
		t.Fatalf("period=%d after row 0, want 428", ch.period)
	}

	// Row 1 tick 0: the target is set, no retrigger, no slide yet.
	s.nextTick()
	if ch.period != 428 || ch.targetPeriod != 404 {
		t.Fatalf("row 1 tick 0: period=%d target=%d, want 428/404", ch.period, ch.targetPeriod)
	}

	for i := 1; i < 6; i++ {
		s.nextTick()
		if ch.period != 404 {
			t.Fatalf("row 1 tick %d: period=%d, want exactly 404", i, ch.period)
		}
	}
}

func TestStreamTremoloPhaseContinues(t *testing.T) {
	m := testModule(1)
	cell := modfile.Cell{Period: 428, Sample: 1, Effect: 0x7, Param: 0x48}
	m.Patterns[0].Rows[0].Cells[0] = cell
	m.Patterns[0].Rows[1].Cells[0] = cell

	s := loadStream(t, m)
	ch := &s.channels[0]

	for i := 0; i < 6; i++ {
		s.nextTick()
	}
	if ch.tremoloPhase != 20 {
		t.Fatalf("tremoloPhase=%d after row 0, want 20", ch.tremoloPhase)
	}

	// The row boundary reverts the volume adjustment but keeps the
	// phase running through the retrigger.
	s.nextTick()
	if ch.tremoloAdjust != 0 {
		t.Errorf("tremoloAdjust=%d at row 1 tick 0, want 0", ch.tremoloAdjust)
	}
	if ch.tremoloPhase != 20 {
		t.Fatalf("tremoloPhase=%d at row 1 tick 0, want 20", ch.tremoloPhase)
	}
	s.nextTick()
	if ch.tremoloPhase != 24 {
		t.Errorf("tremoloPhase=%d at row 1 tick 1, want 24", ch.tremoloPhase)
	}
	wantAdjust := moddb.WaveformValue(moddb.WaveformSine, 20) * 8 >> 6
	if ch.tremoloAdjust != wantAdjust {
		t.Errorf("tremoloAdjust=%d, want %d", ch.tremoloAdjust, wantAdjust)
	}
}

func TestStreamSampleOffsetNeedsTrigger(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 1}
	// A bare 9xx on the next row refreshes the offset memory but must
	// not reposition the sample already sounding.
	m.Patterns[0].Rows[1].Cells[0] = modfile.Cell{Effect: 0x9, Param: 0x04}

	s := loadStream(t, m)
	ch := &s.channels[0]

	for i := 0; i < 7; i++ {
		s.nextTick()
	}
	if ch.pos != 0 {
		t.Errorf("bare offset moved the cursor to %v", ch.pos)
	}
	if ch.sampleOffset != 0x400 {
		t.Errorf("sampleOffset=%#x, want 0x400", ch.sampleOffset)
	}
}

func TestStreamSampleOffsetPastEnd(t *testing.T) {
	m := testModule(1)
	// Offset 0x400 starts far past the 32-byte one-shot sample.
	m.Patterns[0].Rows[0].Cells[0] = modfile.Cell{Period: 428, Sample: 2, Effect: 0x9, Param: 0x04}

	s := loadStream(t, m)
	s.Start()

	buf := make([]byte, bytesPerDefaultTick)
	n, err := s.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if hasNonzeroByte(buf) {
		t.Errorf("an offset past the sample end produced audible output")
	}
}

func TestStreamGetInfo(t *testing.T) {
	s := loadStream(t, testModule(1))
	info := s.GetInfo()
	if info.BytesPerTick != bytesPerDefaultTick {
		t.Errorf("BytesPerTick=%d, want %d", info.BytesPerTick, bytesPerDefaultTick)
	}
	if info.MemoryUsage == 0 {
		t.Errorf("MemoryUsage=0")
	}
}

func TestStreamSmallBuffer(t *testing.T) {
	s := loadStream(t, testModule(1))
	s.Start()

	buf := make([]byte, 100)
	n, err := s.Read(buf)
	if n != 0 || err != nil {
		t.Errorf("Read into a sub-tick buffer: n=%d err=%v, want 0/nil", n, err)
	}
}

func TestStreamSeek(t *testing.T) {
	s := loadStream(t, testModule(1))
	s.Start()

	buf := make([]byte, bytesPerDefaultTick)
	s.Read(buf)
	s.Read(buf)

	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil || pos != int64(2*bytesPerDefaultTick) {
		t.Errorf("Seek(0, SeekCurrent)=%d (err=%v), want %d", pos, err, 2*bytesPerDefaultTick)
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek(0, SeekStart): %v", err)
	}
	pos, _ = s.Seek(0, io.SeekCurrent)
	if pos != 0 {
		t.Errorf("pos=%d after rewind, want 0", pos)
	}

	if _, err := s.Seek(100, io.SeekStart); err == nil {
		t.Errorf("Seek(100, SeekStart) succeeded, want an error")
	}
}

func TestSynthesizer(t *testing.T) {
	synth := NewSynthesizer(SynthesizerConfig{NumChannels: 2})
	if err := synth.LoadSamples(testModule(1), LoadModuleConfig{}); err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	synth.PlayNote(0.1, SynthNote{Sample: 1, Period: 428})

	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := synth.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	// 0.1s at 50 ticks per second spans 6 ticks (one extra for the
	// rounding headroom).
	if len(out) != 6*bytesPerDefaultTick {
		t.Errorf("produced %d bytes, want %d", len(out), 6*bytesPerDefaultTick)
	}
	if !hasNonzeroByte(out) {
		t.Errorf("synthesized note produced silence")
	}
}
