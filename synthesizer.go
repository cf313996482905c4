package rustune

import (
	"github.com/David-T08/Rustune/modfile"
)

// Synthesizer can be used to play individual MOD samples.
//
// It is more efficient and convenient to use for this
// use case than a stream with a constant module re-loading.
//
// Experimental: synthesizer API may change in the near future.
type Synthesizer struct {
	stream *Stream
}

type SynthesizerConfig struct {
	NumChannels int
}

// SynthNote names a sample slot and the Amiga period to play it at.
// Use moddb period values (e.g. 428 for C-2); a zero Period or an
// empty Sample slot keeps the channel silent.
type SynthNote struct {
	Sample int
	Period int
}

func NewSynthesizer(config SynthesizerConfig) *Synthesizer {
	stream := NewStream()
	stream.channels = make([]streamChannel, config.NumChannels)
	stream.activeChannels = make([]*streamChannel, 0, config.NumChannels)
	return &Synthesizer{
		stream: stream,
	}
}

// SetVolume adjusts the global volume scaling for the underlying stream.
func (s *Synthesizer) SetVolume(v float64) {
	s.stream.SetVolume(v)
}

// LoadSamples prepares the samples from the module for further use.
//
// Loading involves module compilation, so it should not be called on
// a hot path repeatedly. If you need multiple modules at once,
// consider using several synthesizers, one per module.
//
// The patterns don't matter here: a single synthetic row replaces
// them, holding whatever PlayNote is asked to play.
func (s *Synthesizer) LoadSamples(m *modfile.Module, config LoadModuleConfig) error {
	s.stream.applyConfigDefaults(&config)
	s.stream.activeChannels = s.stream.activeChannels[:0]

	samplesOnly := modfile.Module{
		Name:        m.Name,
		Signature:   m.Signature,
		NumChannels: len(s.stream.channels),
		Samples:     m.Samples,
	}

	compiled, err := compileModule(&samplesOnly, moduleConfig{
		sampleRate:  config.SampleRate,
		bpm:         config.BPM,
		ticksPerRow: config.TicksPerRow,
	})
	if err != nil {
		return err
	}
	s.stream.module = compiled
	s.stream.settings.interpolation = config.LinearInterpolation

	s.stream.module.patterns = []pattern{
		{
			numChannels: len(s.stream.channels),
			numRows:     1,
			notes:       make([]uint16, len(s.stream.channels)),
		},
	}
	s.stream.module.patternOrder = []*pattern{
		&s.stream.module.patterns[0],
	}

	pat := &s.stream.module.patterns[0]
	for i := range pat.notes {
		pat.notes[i] = uint16(i)
	}

	return nil
}

func (s *Synthesizer) prepareToPlay(duration float64) {
	s.stream.module.noteTab = s.stream.module.noteTab[:0]

	// One row that spans the whole requested duration.
	if duration == 0 {
		s.stream.module.ticksPerRow = 240
	} else {
		ticksPerSecond := s.stream.module.bpm / 2.5
		s.stream.module.ticksPerRow = 1 + int(ticksPerSecond*duration)
	}
}

// PlayNote plays one or more notes up to the specified duration.
// Using 0 for the duration will play it for several seconds.
//
// The next Read calls produce the notes' PCM data until the duration
// elapses, after which Read reports EOF; Rewind replays the same notes.
func (s *Synthesizer) PlayNote(duration float64, notes ...SynthNote) {
	s.prepareToPlay(duration)

	chansUsed := 0
	for _, note := range notes {
		s.stream.module.noteTab = append(s.stream.module.noteTab, patternNote{
			period: note.Period,
			sample: note.Sample,
		})
		chansUsed++
		if chansUsed >= len(s.stream.channels) {
			break
		}
	}
	for chansUsed < len(s.stream.channels) {
		s.stream.module.noteTab = append(s.stream.module.noteTab, patternNote{})
		chansUsed++
	}

	s.stream.Rewind()
	s.stream.Start()
}

func (s *Synthesizer) Read(b []byte) (int, error) {
	return s.stream.Read(b)
}

func (s *Synthesizer) Rewind() {
	s.stream.Rewind()
	s.stream.Start()
}

func (s *Synthesizer) Seek(offset int64, whence int) (int64, error) {
	return s.stream.Seek(offset, whence)
}
