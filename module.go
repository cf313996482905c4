package rustune

import (
	"github.com/David-T08/Rustune/internal/moddb"
)

// module is the compiled form of a MOD file: pattern cells decoded and
// interned, sample headers resolved, orders bound to pattern pointers.
// It is immutable during playback and can be shared between streams.
type module struct {
	samples []sampleData

	patterns     []pattern
	patternOrder []*pattern

	// restart is the order index playback loops back to after the last
	// order, or -1 when the song plays through once.
	restart int

	noteTab []patternNote

	numChannels int

	sampleRate  float64
	bpm         float64
	ticksPerRow int
}

type moduleConfig struct {
	sampleRate  uint
	bpm         uint
	ticksPerRow uint
}

type pattern struct {
	numChannels int
	numRows     int
	notes       []uint16
}

// patternNote is one decoded pattern cell. Identical cells are stored
// once in the module's note table; patterns reference them by id.
type patternNote struct {
	// period is the raw file period; finetune is applied at trigger
	// time because it depends on the sample bound to the channel.
	period int

	// sample is the 1-based sample slot, 0 when the cell names none.
	sample int

	effect moddb.Effect

	rawEffect uint8
	rawParam  uint8
}

func (n *patternNote) isEmpty() bool {
	return n.period == 0 && n.sample == 0 && n.rawEffect == 0 && n.rawParam == 0
}

// sampleData is a compiled sample slot. data aliases the parsed
// module's PCM arena; it is never copied per channel.
type sampleData struct {
	id   int // 1-based slot number
	name string

	data []int8

	finetune int8
	volume   int

	length    int
	loopStart int
	loopEnd   int
	hasLoop   bool
}

// sampleBySlot resolves a 1-based cell sample number, returning nil
// for slots that hold no PCM data. Such references degrade to no-ops
// during playback rather than failing: structural validity was
// already checked at parse time.
func (m *module) sampleBySlot(slot int) *sampleData {
	if slot < 1 || slot > len(m.samples) {
		return nil
	}
	s := &m.samples[slot-1]
	if s.length == 0 {
		return nil
	}
	return s
}
