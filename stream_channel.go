package rustune

import (
	"github.com/David-T08/Rustune/internal/moddb"
)

// streamChannel holds all mutable playback state of one channel.
// It is created at song start, mutated on every tick by the sequencer,
// and read (never written) by the mixing loop.
type streamChannel struct {
	id int

	// sample is the sample currently sounding, nil when silent.
	// boundSample remembers the last slot named by a pattern cell;
	// retriggers and delayed notes start it playing.
	sample      *sampleData
	boundSample *sampleData

	// pos is the fractional read cursor into the sample data;
	// step is how far it advances per output frame.
	pos  float64
	step float64

	period       int // sliding base period
	targetPeriod int // tone portamento destination
	finetune     int8

	volume  int
	panning int // 0 full left .. 255 full right

	// volumeL/volumeR are the per-frame gains computed once per tick
	// from volume, tremolo and panning.
	volumeL float64
	volumeR float64

	// effect is the current row's decoded effect for this channel.
	effect        moddb.Effect
	effectCounter int

	// arpPeriod overrides the sounding period while an arpeggio
	// offset tick is active, 0 otherwise.
	arpPeriod int

	vibratoSpeed    uint8
	vibratoDepth    uint8
	vibratoPhase    uint8
	vibratoWaveform uint8
	vibratoAdjust   int

	tremoloSpeed    uint8
	tremoloDepth    uint8
	tremoloPhase    uint8
	tremoloWaveform uint8
	tremoloAdjust   int

	portaSpeed   int // tone portamento rate memory
	sampleOffset int // 9xx offset memory, bytes

	// Note delay (EDx) holds the trigger until its tick arrives.
	delayedPeriod int

	// Pattern loop (E6x) state.
	loopRow   int
	loopCount int
}

func (ch *streamChannel) reset(id int) {
	*ch = streamChannel{
		id:      id,
		panning: defaultPanning(id),
	}
}

// defaultPanning gives the Amiga hard L-R-R-L layout; explicit panning
// effects override it.
func defaultPanning(id int) int {
	switch id & 3 {
	case 0, 3:
		return 0
	default:
		return 255
	}
}

func (ch *streamChannel) isActive() bool {
	return ch.sample != nil && ch.step > 0
}

// nextSample fetches the PCM value under the cursor and advances it.
// When the cursor passes the sample end it wraps to the loop start, or
// silences the channel if the sample does not loop.
func (ch *streamChannel) nextSample(interpolate bool) float64 {
	inst := ch.sample
	if inst == nil {
		// A one-shot sample can play out mid-tick; the channel stays
		// in the active list until the tick ends.
		return 0
	}
	end := float64(inst.length)
	if inst.hasLoop {
		end = float64(inst.loopEnd)
	}

	if ch.pos >= end {
		// A 9xx offset can start past the data; treat it as played out.
		if !inst.hasLoop {
			ch.sample = nil
			return 0
		}
		ch.pos = float64(inst.loopStart)
	}

	i := int(ch.pos)
	v := float64(inst.data[i])
	if interpolate {
		next := i + 1
		if next >= int(end) {
			if inst.hasLoop {
				next = inst.loopStart
			} else {
				next = i
			}
		}
		v = lerp(v, float64(inst.data[next]), ch.pos-float64(i))
	}

	ch.pos += ch.step
	if ch.pos >= end {
		if inst.hasLoop {
			loopLen := float64(inst.loopEnd - inst.loopStart)
			for ch.pos >= end {
				ch.pos -= loopLen
			}
		} else {
			ch.sample = nil
		}
	}

	return v
}
