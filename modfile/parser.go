package modfile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

type parser struct {
	// data holds the MOD file input bytes.
	data []byte

	// offset is our current position inside the data.
	offset int

	// module holds the results of MOD parsing.
	module Module

	rowPool  rowPool
	cellPool cellPool

	needsReset bool

	// These fields below are needed for better error reporting.
	stage      string
	stageIndex int
}

func newParser() *parser {
	p := &parser{}
	initRowPool(&p.rowPool, NumRows*8)
	initCellPool(&p.cellPool, NumRows*8*8)
	return p
}

func (p *parser) Parse(data []byte) (*Module, error) {
	p.data = data
	p.reset()
	p.needsReset = true
	return p.parse()
}

func (p *parser) reset() {
	if !p.needsReset {
		// This will only happen during the first run of the parser.
		return
	}

	p.offset = 0
	p.rowPool.Reset()
	p.cellPool.Reset()

	patterns := p.module.Patterns[:0]
	p.module = Module{Patterns: patterns}
}

func (p *parser) startStage(name string) {
	p.stage = name
	p.stageIndex = -1
}

func (p *parser) formatStage() string {
	if p.stage == "" {
		return ""
	}
	if p.stageIndex >= 0 {
		return fmt.Sprintf("%s[%d]", p.stage, p.stageIndex)
	}
	return p.stage
}

func (p *parser) errorf(kind ErrorKind, format string, args ...any) *FormatError {
	text := fmt.Sprintf(format, args...)
	if tag := p.formatStage(); tag != "" {
		text = tag + ": " + text
	}
	return &FormatError{
		Kind:    kind,
		Message: text,
		Offset:  p.offset,
	}
}

func (p *parser) dataBytesRemaining() int {
	return len(p.data) - p.offset
}

func (p *parser) read(l int, what string) []byte {
	if p.dataBytesRemaining() < l {
		panic(p.errorf(ErrTruncatedData, "unexpected EOF while reading %s", what))
	}
	b := p.data[p.offset : p.offset+l]
	p.offset += l
	return b
}

func (p *parser) readString(l int, what string) string {
	return convertPaddedString(p.read(l, what))
}

// readWord reads a 16-bit big endian value; the MOD format is an
// Amiga format and stores all of its words big endian.
func (p *parser) readWord(what string) uint16 {
	return binary.BigEndian.Uint16(p.read(2, what))
}

func (p *parser) readByte(what string) uint8 {
	return p.read(1, what)[0]
}

func (p *parser) parse() (m *Module, err error) {
	defer func() {
		rv := recover()
		if rv != nil {
			if panicErr, ok := rv.(*FormatError); ok {
				m = nil
				err = panicErr
			} else {
				panic(rv)
			}
		}
	}()

	p.parseModule()

	result := p.module
	return &result, nil
}

func (p *parser) parseModule() {
	p.startStage("header")
	p.parseHeader()

	p.startStage("pattern")
	for i := 0; i < p.module.NumPatterns; i++ {
		p.stageIndex = i
		pat := p.parsePattern()
		p.module.Patterns = append(p.module.Patterns, pat)
	}

	p.startStage("sampledata")
	p.parseSampleData()
}

func (p *parser) parseHeader() {
	p.module.Name = p.readString(20, "song name")

	for i := range p.module.Samples {
		p.stageIndex = i
		p.parseSampleHeader(&p.module.Samples[i])
	}
	p.stageIndex = -1

	songLength := int(p.readByte("song length"))
	if songLength < 1 {
		songLength = 1
	}
	if songLength > 128 {
		songLength = 128
	}
	p.module.SongLength = songLength

	p.module.RestartPosition = int(p.readByte("restart position"))

	copy(p.module.Orders[:], p.read(128, "order table"))

	p.module.Signature = string(p.read(4, "format signature"))
	p.module.NumChannels = channelsForSignature(p.module.Signature)
	if p.module.NumChannels == 0 {
		panic(p.errorf(ErrUnknownSignature, "unrecognized format signature %q", p.module.Signature))
	}

	// The pattern count is implied by the order table: every pattern up
	// to the highest referenced index is stored in the file. Order
	// entries above 0x7F can never name a stored pattern (a MOD file
	// holds at most 128 patterns), so they make the table malformed.
	maxPattern := 0
	for _, o := range p.module.Orders[:p.module.SongLength] {
		if o > 0x7F {
			panic(p.errorf(ErrPatternIndexOutOfRange, "order table references pattern %d", o))
		}
		if int(o) > maxPattern {
			maxPattern = int(o)
		}
	}
	p.module.NumPatterns = maxPattern + 1
}

func (p *parser) parseSampleHeader(sample *Sample) {
	sample.Name = p.readString(22, "sample name")
	sample.Length = int(p.readWord("sample length")) * 2

	// The finetune byte stores a signed nibble.
	finetune := p.readByte("sample finetune") & 0x0F
	if finetune > 7 {
		sample.Finetune = int8(finetune) - 16
	} else {
		sample.Finetune = int8(finetune)
	}

	sample.Volume = int(p.readByte("sample volume"))
	if sample.Volume > 64 {
		sample.Volume = 64
	}

	sample.LoopStart = int(p.readWord("sample loop start")) * 2
	sample.LoopLength = int(p.readWord("sample loop length")) * 2

	if sample.HasLoop() && sample.LoopStart+sample.LoopLength > sample.Length {
		panic(p.errorf(ErrInvalidSampleLength, "loop region %d+%d exceeds sample length %d",
			sample.LoopStart, sample.LoopLength, sample.Length))
	}
}

func (p *parser) parsePattern() Pattern {
	var pat Pattern
	pat.Rows = p.rowPool.MakeSlice(NumRows)
	for i := range pat.Rows {
		cells := p.cellPool.MakeSlice(p.module.NumChannels)
		for j := range cells {
			b := p.read(4, "pattern cell")
			// 4-bit sample high | 12-bit period, sample low | effect, param.
			cells[j] = Cell{
				Sample: int(b[0]&0xF0 | b[2]>>4),
				Period: int(b[0]&0x0F)<<8 | int(b[1]),
				Effect: b[2] & 0x0F,
				Param:  b[3],
			}
		}
		pat.Rows[i].Cells = cells
	}
	return pat
}

// parseSampleData reads the concatenated PCM payloads into one arena
// buffer; each sample's Data aliases its slice of the arena.
func (p *parser) parseSampleData() {
	total := 0
	for i := range p.module.Samples {
		total += p.module.Samples[i].Length
	}
	if p.dataBytesRemaining() < total {
		panic(p.errorf(ErrTruncatedData, "declared sample data is %d bytes, %d remain",
			total, p.dataBytesRemaining()))
	}

	arena := make([]int8, total)
	raw := p.read(total, "sample data")
	for i, b := range raw {
		arena[i] = int8(b)
	}

	offset := 0
	for i := range p.module.Samples {
		p.stageIndex = i
		sample := &p.module.Samples[i]
		if sample.Length == 0 {
			continue
		}
		sample.Data = arena[offset : offset+sample.Length]
		offset += sample.Length
	}
}

func convertPaddedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			data = data[:i]
			break
		}
	}
	return strings.TrimRight(string(data), " ")
}
