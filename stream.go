package rustune

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/David-T08/Rustune/internal/moddb"
	"github.com/David-T08/Rustune/modfile"
)

// ProTracker period clamp for portamento slides.
const (
	minPeriod = 28
	maxPeriod = 3424
)

// channelScale converts a signed 8-bit sample value into the int16
// output range while leaving headroom for several channels per side.
const channelScale = 128.0

// State is the playback state of a Stream.
//
// Stopped -> Playing -> {Paused, Finished}; Paused -> Playing.
// Finished is reached when the order index advances past the last
// order and the module defines no restart position.
type State int32

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateFinished
)

// Stream wraps a compiled MOD module, making it possible to Read() its
// PCM bytes.
//
// The Read() method produces 16-bit little endian stereo PCM bytes;
// this is what both the oto and ebiten/audio players expect. Use
// Stream as an io.Reader argument for their player constructors, or
// drive it through the player package.
type Stream struct {
	module module

	// state is atomic so Pause/Resume/Stop can be called from outside
	// the goroutine that owns Read. All other fields belong to the
	// reading goroutine exclusively.
	state atomic.Int32

	pattern    *pattern
	orderIndex int
	rowIndex   int

	rowTicksRemain int
	tickIndex      int

	// Pattern break/jump state. Jumps are scheduled during a row's
	// trigger phase and executed at the next row boundary, never
	// mid-row.
	jumpKind  jumpKind
	jumpOrder int
	jumpRow   int

	// Pattern delay (EEx) repeats the current row's trigger phase.
	patternDelay int
	repeatingRow bool

	settings streamSettings

	// These values can change during playback.
	ticksPerRow   int
	bpm           float64
	framesPerTick int
	bytesPerTick  int

	// A tempo change applies to the tick after the one in progress;
	// a speed change applies at the next row boundary.
	pendingBPM   float64
	pendingSpeed int

	bytePos    int   // used to report the current pos via Seek()
	tickCount  int64 // ticks advanced since the last rewind
	frameCount int64 // frames mixed since the last rewind

	channels       []streamChannel
	activeChannels []*streamChannel
}

type streamSettings struct {
	volumeScaling float64
	loop          bool
	interpolation bool
	eventHandler  func(e NoteEvent)
}

type jumpKind uint8

const (
	jumpNone jumpKind = iota
	jumpPatternBreak
	jumpPositionJump
	jumpPatternLoop
)

// StreamInfo contains a compiled module stream information.
type StreamInfo struct {
	// BytesPerTick tells how many bytes this stream needs to fit a
	// single tracker tick at the current tempo. Read() fills whole
	// ticks only: a slice smaller than this produces no data.
	BytesPerTick uint

	// MemoryUsage approximates the compiled module size in bytes.
	MemoryUsage uint
}

// LoadModuleConfig configures module loading.
//
// These settings can't be changed after a module is loaded.
// Volume and looping can be adjusted later via Stream methods.
type LoadModuleConfig struct {
	// SampleRate is the output device sample rate.
	// A zero value assumes 44100.
	SampleRate uint

	// BPM overrides the initial tempo.
	// A zero value uses the MOD default of 125.
	BPM uint

	// TicksPerRow overrides the initial speed (ticks per pattern row).
	// A zero value uses the MOD default of 6.
	TicksPerRow uint

	// LinearInterpolation enables sub-sample interpolation of the
	// 8-bit PCM data, which makes most modules sound less gritty.
	// The authentic Amiga sound keeps it off.
	LinearInterpolation bool
}

// NewStream allocates a stream that can load and play MOD modules.
// Use LoadModule to finish the initialization.
func NewStream() *Stream {
	return &Stream{
		settings: streamSettings{
			volumeScaling: 0.8,
		},
	}
}

// SetVolume adjusts the global volume scaling for the stream.
// The default value is 0.8; a value of 0 disables the sound.
// The value is clamped in [0, 1].
func (s *Stream) SetVolume(v float64) {
	s.settings.volumeScaling = clamp(v, 0, 1)
}

// SetLooping makes the stream restart from the first order when a
// module without a restart position plays through. Modules with a
// restart position loop on their own.
func (s *Stream) SetLooping(loop bool) {
	s.settings.loop = loop
}

// LoadModule compiles m and binds it to this stream.
// The parsed module is shared by reference: it is never mutated, so
// one *modfile.Module may back any number of streams.
func (s *Stream) LoadModule(m *modfile.Module, config LoadModuleConfig) error {
	s.applyConfigDefaults(&config)

	compiled, err := compileModule(m, moduleConfig{
		sampleRate:  config.SampleRate,
		bpm:         config.BPM,
		ticksPerRow: config.TicksPerRow,
	})
	if err != nil {
		return err
	}
	s.module = compiled
	s.settings.interpolation = config.LinearInterpolation

	if cap(s.channels) < m.NumChannels {
		s.channels = make([]streamChannel, m.NumChannels)
		s.activeChannels = make([]*streamChannel, 0, m.NumChannels)
	}
	s.channels = s.channels[:m.NumChannels]

	s.rewind()
	s.state.Store(int32(StateStopped))

	return nil
}

func (s *Stream) applyConfigDefaults(config *LoadModuleConfig) {
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	if config.BPM == 0 {
		config.BPM = 125
	}
	if config.TicksPerRow == 0 {
		config.TicksPerRow = 6
	}
}

// State returns the current playback state.
// It is safe to call from any goroutine.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Start begins playback from the top of the song.
// Starting a paused stream resumes it instead.
//
// Start must not be called concurrently with Read.
func (s *Stream) Start() {
	switch s.State() {
	case StatePlaying:
		return
	case StatePaused:
		s.state.Store(int32(StatePlaying))
	default:
		s.rewind()
		s.state.Store(int32(StatePlaying))
	}
}

// Pause suspends the sequencer at the next tick boundary.
// While paused, Read keeps producing bytes, but they are silence.
func (s *Stream) Pause() {
	s.state.CompareAndSwap(int32(StatePlaying), int32(StatePaused))
}

// Resume continues playback from the exact channel state held at the
// moment of pause; no note is retriggered.
func (s *Stream) Resume() {
	s.state.CompareAndSwap(int32(StatePaused), int32(StatePlaying))
}

// Stop ends playback: the next Read call reports EOF. Anything a
// consumer has buffered still drains, so stopping produces no click.
func (s *Stream) Stop() {
	s.state.Store(int32(StateStopped))
}

// Rewind prepares the stream to play the module right from the start.
// It must not be called concurrently with Read.
func (s *Stream) Rewind() {
	st := s.State()
	s.rewind()
	if st == StateFinished {
		s.state.Store(int32(StateStopped))
	}
}

func (s *Stream) rewind() {
	s.pattern = nil
	s.orderIndex = -1
	s.rowIndex = 0
	s.rowTicksRemain = 0
	s.tickIndex = -1
	s.jumpKind = jumpNone
	s.patternDelay = 0
	s.repeatingRow = false
	s.pendingBPM = 0
	s.pendingSpeed = 0
	s.bytePos = 0
	s.tickCount = 0
	s.frameCount = 0
	s.activeChannels = s.activeChannels[:0]

	for i := range s.channels {
		s.channels[i].reset(i)
	}

	s.ticksPerRow = s.module.ticksPerRow
	s.setBPM(s.module.bpm)
}

func (s *Stream) setBPM(bpm float64) {
	s.bpm = bpm
	s.framesPerTick, s.bytesPerTick = calcFramesPerTick(s.module.sampleRate, bpm)
}

// GetInfo returns stream-related info. See StreamInfo for details.
func (s *Stream) GetInfo() StreamInfo {
	return StreamInfo{
		BytesPerTick: uint(s.bytesPerTick),
		MemoryUsage:  moduleSize(&s.module),
	}
}

// Seek partially implements io.Seeker.
//
// You can use it for two things:
//  1. (0, SeekStart) for rewind
//  2. (0, SeekCurrent) to get the byte pos inside the stream
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		if offset == 0 {
			s.Rewind()
			return 0, nil
		}

	case io.SeekCurrent:
		if offset == 0 {
			return int64(s.bytePos), nil
		}
	}

	return 0, errors.New("unsupported Seek call")
}

// Read puts next PCM bytes into provided slice.
//
// The slice is expected to fit at least a single tick; with BPM=125
// and a 44100 sample rate one tick is 882*2*2 = 3528 bytes. Bigger
// slices fit as many whole ticks as possible; the unfilled tail makes
// n < len(b).
//
// When the stream is paused the same amount of bytes is produced, but
// they are silence. When the song is over (or the stream is stopped),
// io.EOF is returned.
func (s *Stream) Read(b []byte) (int, error) {
	written := 0

	for len(b)-written >= s.bytesPerTick {
		st := s.State()

		if st == StatePaused {
			// The sequencer holds its state; the output is silence.
			tail := b[written:]
			for i := range tail {
				tail[i] = 0
			}
			written = len(b)
			break
		}
		if st != StatePlaying {
			s.bytePos += written
			return written, io.EOF
		}

		if !s.nextTick() {
			// The state moved to Finished; report it on this call if
			// nothing was produced, otherwise on the next one.
			continue
		}
		s.readTick(b[written : written+s.bytesPerTick])
		written += s.bytesPerTick

		// A tempo change made during this tick resizes the next tick,
		// never the one just mixed.
		if s.pendingBPM != 0 {
			s.setBPM(s.pendingBPM)
			s.pendingBPM = 0
		}
	}

	s.bytePos += written
	return written, nil
}

// nextTick advances the sequencer by exactly one tick: the first tick
// of a row runs the row's trigger phase, the rest run the continuous
// effects. It returns false when the song is over.
func (s *Stream) nextTick() bool {
	if s.rowTicksRemain == 0 {
		if !s.nextRow() {
			return false
		}
	}

	s.rowTicksRemain--
	s.tickIndex++

	s.activeChannels = s.activeChannels[:0]
	for j := range s.channels {
		ch := &s.channels[j]
		if s.tickIndex > 0 && !ch.effect.IsEmpty() {
			s.applyTickEffect(ch)
		}
		s.updateChannelPlayback(ch)
		if ch.isActive() {
			s.activeChannels = append(s.activeChannels, ch)
		}
	}

	s.tickCount++
	return true
}

// nextRow advances to the next row position, honoring any jump or
// pattern delay scheduled during the previous trigger phase, and runs
// the new row's trigger phase.
func (s *Stream) nextRow() bool {
	if s.pendingSpeed != 0 {
		s.ticksPerRow = s.pendingSpeed
		s.pendingSpeed = 0
	}

	if s.patternDelay > 0 {
		s.patternDelay--
		s.repeatingRow = true
	} else {
		s.repeatingRow = false
		switch s.jumpKind {
		case jumpPatternBreak, jumpPositionJump:
			order, row := s.jumpOrder, s.jumpRow
			s.jumpKind = jumpNone
			if !s.selectOrder(order) {
				return false
			}
			s.rowIndex = row
		case jumpPatternLoop:
			s.jumpKind = jumpNone
			s.rowIndex = s.jumpRow
		default:
			s.rowIndex++
			if s.pattern == nil || s.rowIndex >= s.pattern.numRows {
				if !s.nextPattern() {
					return false
				}
				s.rowIndex = 0
			}
		}
	}

	noteOffset := s.pattern.numChannels * s.rowIndex
	notes := s.pattern.notes[noteOffset : noteOffset+s.pattern.numChannels]
	for i := range s.channels {
		s.advanceChannelRow(&s.channels[i], &s.module.noteTab[notes[i]])
	}

	s.rowTicksRemain = s.ticksPerRow
	s.tickIndex = -1
	return true
}

func (s *Stream) nextPattern() bool {
	return s.selectOrder(s.orderIndex + 1)
}

func (s *Stream) selectOrder(i int) bool {
	if i >= len(s.module.patternOrder) {
		i = s.loopTarget()
		if i < 0 {
			s.state.Store(int32(StateFinished))
			return false
		}
	}
	s.orderIndex = i
	s.pattern = s.module.patternOrder[i]
	return true
}

func (s *Stream) loopTarget() int {
	if s.module.restart >= 0 {
		return s.module.restart
	}
	if s.settings.loop {
		return 0
	}
	return -1
}

// advanceChannelRow runs one channel's part of a row trigger phase:
// sample binding, note trigger, immediate effects and the note event.
func (s *Stream) advanceChannelRow(ch *streamChannel, n *patternNote) {
	e := n.effect
	ch.effect = e
	ch.effectCounter = 0
	ch.delayedPeriod = 0

	// Modulation reverts to the unmodulated value at every row
	// boundary; vibrato and tremolo phases keep running, the
	// arpeggio cycle restarts.
	ch.vibratoAdjust = 0
	ch.tremoloAdjust = 0
	ch.arpPeriod = 0

	// A nonzero sample number naming an empty slot makes the whole
	// note part of the cell a no-op; the effect still applies.
	validNote := true
	triggered := false

	if n.sample != 0 {
		inst := s.module.sampleBySlot(n.sample)
		if inst == nil {
			validNote = false
		} else {
			ch.boundSample = inst
			ch.finetune = inst.finetune
			ch.volume = inst.volume
			if n.period == 0 {
				// Sample-only cell: restart the sample at the
				// channel's current pitch.
				ch.sample = inst
				ch.pos = 0
				triggered = true
			}
		}
	}

	if n.period != 0 && validNote {
		// E5x retunes the note on its own row, ahead of the trigger.
		if e.Op == moddb.EffectSetFinetune {
			ch.finetune = decodeFinetune(e.Arg)
		}
		tuned := moddb.TunePeriod(n.period, ch.finetune)
		ch.targetPeriod = tuned
		switch {
		case e.Op == moddb.EffectTonePortamento || e.Op == moddb.EffectTonePortamentoVolumeSlide:
			// 3xx/5xx slide toward the new note without retriggering.
		case e.Op == moddb.EffectNoteDelay && e.Arg > 0:
			ch.delayedPeriod = tuned
		default:
			s.triggerNote(ch, tuned)
			triggered = true
		}
	}

	if !e.IsEmpty() {
		s.applyRowEffect(ch, e, triggered)
	}

	if s.settings.eventHandler != nil && validNote && (n.period != 0 || n.sample != 0) {
		s.settings.eventHandler(NoteEvent{
			Tick:    s.tickCount,
			Frame:   s.frameCount,
			Channel: ch.id,
			Sample:  n.sample,
			Period:  n.period,
			Volume:  ch.volume,
			Effect:  n.rawEffect,
			Param:   n.rawParam,
		})
	}
}

// decodeFinetune converts the E5x signed nibble into -8..7.
func decodeFinetune(arg uint8) int8 {
	if arg > 7 {
		return int8(arg) - 16
	}
	return int8(arg)
}

func (s *Stream) triggerNote(ch *streamChannel, period int) {
	ch.period = period
	ch.sample = ch.boundSample
	ch.pos = 0
}

// applyRowEffect dispatches the immediate effects of a row's trigger
// phase and refreshes the "reuse last nonzero parameter" memories.
func (s *Stream) applyRowEffect(ch *streamChannel, e moddb.Effect, noteTriggered bool) {
	switch e.Op {
	case moddb.EffectSetVolume:
		ch.volume = int(clampMax(e.Arg, 64))

	case moddb.EffectSetPanning:
		ch.panning = int(e.Arg)

	case moddb.EffectCoarsePanning:
		ch.panning = int(e.Arg) * 17

	case moddb.EffectSampleOffset:
		if e.Arg != 0 {
			ch.sampleOffset = int(e.Arg) << 8
		}
		// The offset repositions only the note starting on this row;
		// a bare 9xx refreshes the memory without touching a sample
		// already sounding.
		if noteTriggered && ch.sample != nil {
			ch.pos = float64(ch.sampleOffset)
		}

	case moddb.EffectTonePortamento, moddb.EffectTonePortamentoVolumeSlide:
		if e.Op == moddb.EffectTonePortamento && e.Arg != 0 {
			ch.portaSpeed = int(e.Arg)
		}

	case moddb.EffectVibrato, moddb.EffectVibratoVolumeSlide:
		if e.Op == moddb.EffectVibrato {
			if e.X != 0 {
				ch.vibratoSpeed = e.X
			}
			if e.Y != 0 {
				ch.vibratoDepth = e.Y
			}
		}

	case moddb.EffectTremolo:
		if e.X != 0 {
			ch.tremoloSpeed = e.X
		}
		if e.Y != 0 {
			ch.tremoloDepth = e.Y
		}

	case moddb.EffectVibratoWaveform:
		ch.vibratoWaveform = e.Arg & 3

	case moddb.EffectTremoloWaveform:
		ch.tremoloWaveform = e.Arg & 3

	case moddb.EffectSetFinetune:
		ch.finetune = decodeFinetune(e.Arg)

	case moddb.EffectFinePortamentoUp:
		ch.period = clampMin(ch.period-int(e.Arg), minPeriod)

	case moddb.EffectFinePortamentoDown:
		ch.period = clampMax(ch.period+int(e.Arg), maxPeriod)

	case moddb.EffectFineVolumeSlideUp:
		ch.volume = clampMax(ch.volume+int(e.Arg), 64)

	case moddb.EffectFineVolumeSlideDown:
		ch.volume = clampMin(ch.volume-int(e.Arg), 0)

	case moddb.EffectNoteCut:
		if e.Arg == 0 {
			ch.volume = 0
		}

	case moddb.EffectPositionJump:
		s.jumpKind = jumpPositionJump
		s.jumpOrder = int(e.Arg)
		s.jumpRow = 0

	case moddb.EffectPatternBreak:
		s.jumpKind = jumpPatternBreak
		s.jumpOrder = s.orderIndex + 1
		// The break row is binary coded decimal.
		row := int(e.X)*10 + int(e.Y)
		if row >= modfile.NumRows {
			row = 0
		}
		s.jumpRow = row

	case moddb.EffectPatternLoop:
		if e.Arg == 0 {
			ch.loopRow = s.rowIndex
			break
		}
		if ch.loopCount == 0 {
			ch.loopCount = int(e.Arg)
		} else {
			ch.loopCount--
		}
		if ch.loopCount > 0 {
			s.jumpKind = jumpPatternLoop
			s.jumpRow = ch.loopRow
		}

	case moddb.EffectPatternDelay:
		if e.Arg != 0 && !s.repeatingRow {
			s.patternDelay = int(e.Arg)
		}

	case moddb.EffectSetSpeed:
		if e.Arg != 0 {
			s.pendingSpeed = int(e.Arg)
		}

	case moddb.EffectSetTempo:
		s.pendingBPM = float64(e.Arg)
	}
}

// applyTickEffect dispatches the continuous effects on ticks
// 1..ticksPerRow-1 of a row.
func (s *Stream) applyTickEffect(ch *streamChannel) {
	e := ch.effect

	switch e.Op {
	case moddb.EffectArpeggio:
		switch s.tickIndex % 3 {
		case 0:
			ch.arpPeriod = 0
		case 1:
			ch.arpPeriod = moddb.ArpeggioPeriod(ch.period, int(e.X))
		case 2:
			ch.arpPeriod = moddb.ArpeggioPeriod(ch.period, int(e.Y))
		}

	case moddb.EffectPortamentoUp:
		ch.period = clampMin(ch.period-int(e.Arg), minPeriod)

	case moddb.EffectPortamentoDown:
		ch.period = clampMax(ch.period+int(e.Arg), maxPeriod)

	case moddb.EffectTonePortamento:
		s.tonePortamento(ch)

	case moddb.EffectTonePortamentoVolumeSlide:
		s.tonePortamento(ch)
		s.volumeSlide(ch, e)

	case moddb.EffectVibrato:
		s.vibrato(ch)

	case moddb.EffectVibratoVolumeSlide:
		s.vibrato(ch)
		s.volumeSlide(ch, e)

	case moddb.EffectTremolo:
		ch.tremoloAdjust = moddb.WaveformValue(ch.tremoloWaveform, ch.tremoloPhase) * int(ch.tremoloDepth) >> 6
		ch.tremoloPhase = (ch.tremoloPhase + ch.tremoloSpeed) & 63

	case moddb.EffectVolumeSlide:
		s.volumeSlide(ch, e)

	case moddb.EffectRetrigger:
		if e.Arg == 0 {
			break
		}
		ch.effectCounter++
		if ch.effectCounter >= int(e.Arg) {
			ch.effectCounter = 0
			ch.sample = ch.boundSample
			ch.pos = 0
		}

	case moddb.EffectNoteCut:
		if s.tickIndex == int(e.Arg) {
			ch.volume = 0
		}

	case moddb.EffectNoteDelay:
		if s.tickIndex == int(e.Arg) && ch.delayedPeriod != 0 {
			s.triggerNote(ch, ch.delayedPeriod)
			ch.delayedPeriod = 0
		}
	}
}

func (s *Stream) tonePortamento(ch *streamChannel) {
	if ch.targetPeriod == 0 || ch.period == 0 {
		return
	}
	ch.period = slideTowards(ch.period, ch.targetPeriod, ch.portaSpeed)
}

func (s *Stream) vibrato(ch *streamChannel) {
	ch.vibratoAdjust = moddb.WaveformValue(ch.vibratoWaveform, ch.vibratoPhase) * int(ch.vibratoDepth) >> 7
	ch.vibratoPhase = (ch.vibratoPhase + ch.vibratoSpeed) & 63
}

func (s *Stream) volumeSlide(ch *streamChannel, e moddb.Effect) {
	if e.X > 0 {
		ch.volume = clampMax(ch.volume+int(e.X), 64)
	} else {
		ch.volume = clampMin(ch.volume-int(e.Y), 0)
	}
}

// updateChannelPlayback recomputes the values the mixing loop reads
// every frame: the cursor step from the sounding period and the
// stereo gains from volume, tremolo and panning.
func (s *Stream) updateChannelPlayback(ch *streamChannel) {
	if ch.sample == nil || ch.period == 0 {
		ch.step = 0
		return
	}

	p := ch.period
	if ch.arpPeriod != 0 {
		p = ch.arpPeriod
	}
	p = clamp(p+ch.vibratoAdjust, minPeriod, maxPeriod)
	ch.step = moddb.PeriodFrequency(p) / s.module.sampleRate

	vol := clamp(ch.volume+ch.tremoloAdjust, 0, 64)
	gain := s.settings.volumeScaling * float64(vol) * (1.0 / 64.0) * channelScale
	pan := float64(ch.panning) * (1.0 / 255.0)
	ch.volumeL = gain * (1 - pan)
	ch.volumeR = gain * pan
}

// readTick mixes exactly one tick worth of frames into b.
//
// This loop dominates the rendering execution time; keep it lean.
func (s *Stream) readTick(b []byte) {
	interpolate := s.settings.interpolation

	for i := 0; i < len(b); i += 4 {
		var left, right float64

		for _, ch := range s.activeChannels {
			v := ch.nextSample(interpolate)
			left += v * ch.volumeL
			right += v * ch.volumeR
		}

		putPCM(b[i:], clampPCM(left), clampPCM(right))
	}

	s.frameCount += int64(len(b) / 4)
}
