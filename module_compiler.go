package rustune

import (
	"fmt"

	"github.com/David-T08/Rustune/internal/moddb"
	"github.com/David-T08/Rustune/modfile"
)

type moduleCompiler struct {
	result module

	noteSet map[uint64]uint16
}

func compileModule(m *modfile.Module, config moduleConfig) (module, error) {
	c := &moduleCompiler{
		noteSet: make(map[uint64]uint16, 256),
	}
	c.result = module{
		numChannels: m.NumChannels,
		sampleRate:  float64(config.sampleRate),
		bpm:         float64(config.bpm),
		ticksPerRow: int(config.ticksPerRow),
	}
	err := c.compile(m)
	return c.result, err
}

func (c *moduleCompiler) compile(m *modfile.Module) error {
	if m.NumChannels < 1 {
		return fmt.Errorf("module has no channels")
	}

	c.compileSamples(m)

	if err := c.compilePatterns(m); err != nil {
		return err
	}

	c.result.restart = -1
	if m.RestartPosition < m.SongLength {
		c.result.restart = m.RestartPosition
	}

	return nil
}

func (c *moduleCompiler) compileSamples(m *modfile.Module) {
	c.result.samples = make([]sampleData, len(m.Samples))
	for i := range m.Samples {
		src := &m.Samples[i]
		dst := &c.result.samples[i]

		*dst = sampleData{
			id:       i + 1,
			name:     src.Name,
			data:     src.Data,
			finetune: src.Finetune,
			volume:   src.Volume,
			length:   src.Length,
		}
		if src.HasLoop() {
			dst.hasLoop = true
			dst.loopStart = src.LoopStart
			dst.loopEnd = src.LoopStart + src.LoopLength
		}
	}
}

func (c *moduleCompiler) compilePatterns(m *modfile.Module) error {
	// Note id 0 is the empty note.
	c.result.noteTab = append(c.result.noteTab[:0], patternNote{})

	c.result.patterns = make([]pattern, len(m.Patterns))
	for i := range m.Patterns {
		rawPat := &m.Patterns[i]
		pat := &c.result.patterns[i]
		pat.numChannels = m.NumChannels
		pat.numRows = len(rawPat.Rows)
		pat.notes = make([]uint16, 0, pat.numRows*m.NumChannels)
		for _, row := range rawPat.Rows {
			for _, cell := range row.Cells {
				pat.notes = append(pat.notes, c.internNote(cell))
			}
		}
	}

	c.result.patternOrder = make([]*pattern, m.SongLength)
	for i, patternIndex := range m.Orders[:m.SongLength] {
		if int(patternIndex) >= len(c.result.patterns) {
			return fmt.Errorf("order %d references pattern %d of %d", i, patternIndex, len(c.result.patterns))
		}
		c.result.patternOrder[i] = &c.result.patterns[patternIndex]
	}

	return nil
}

func (c *moduleCompiler) internNote(cell modfile.Cell) uint16 {
	hash := uint64(cell.Period) |
		uint64(cell.Sample)<<16 |
		uint64(cell.Effect)<<24 |
		uint64(cell.Param)<<32
	if hash == 0 {
		return 0
	}
	if id, ok := c.noteSet[hash]; ok {
		return id
	}

	n := patternNote{
		period:    cell.Period,
		sample:    cell.Sample,
		effect:    moddb.ConvertEffect(cell),
		rawEffect: cell.Effect,
		rawParam:  cell.Param,
	}

	id := uint16(len(c.result.noteTab))
	c.result.noteTab = append(c.result.noteTab, n)
	c.noteSet[hash] = id
	return id
}
