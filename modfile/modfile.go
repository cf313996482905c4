package modfile

// Module is a parsed MOD file contents.
// This is a raw module format that is not optimized for anything.
//
// A Module is immutable after Parse returns it: the playback engine
// shares it by reference and never writes to it.
type Module struct {
	Name string

	// Signature is the 4-byte format tag found after the order table,
	// e.g. "M.K." or "6CHN". It determines the channel count.
	Signature string

	NumChannels int

	// SongLength is the number of valid entries in Orders.
	SongLength int

	// RestartPosition is the order index the song jumps back to after
	// the last order. Values >= SongLength mean "no restart".
	RestartPosition int

	// Orders holds the full 128-byte order table.
	// Only Orders[:SongLength] entries are referenced during playback.
	Orders [128]uint8

	NumPatterns int

	Samples [31]Sample

	Patterns []Pattern
}

// Sample is one of the 31 sample slots of a MOD file.
// Length, LoopStart and LoopLength are in bytes (the file stores words).
type Sample struct {
	Name string

	Length int

	// Finetune is a signed nibble (-8..7) biasing the pitch of every
	// note played with this sample.
	Finetune int8

	// Volume is the default channel volume set when the sample
	// is triggered, 0..64.
	Volume int

	LoopStart  int
	LoopLength int

	// Data is the raw signed 8-bit PCM payload, Length bytes.
	// It aliases the arena buffer shared by all samples of the module.
	Data []int8
}

// HasLoop reports whether the sample repeats after its first playthrough.
// Loop lengths of 2 bytes or less are the MOD convention for "no loop".
func (s *Sample) HasLoop() bool {
	return s.LoopLength > 2
}

// NumRows is the fixed pattern height of the MOD format.
// Patterns of any other size do not exist in well-formed files.
const NumRows = 64

type Pattern struct {
	Rows []Row
}

type Row struct {
	Cells []Cell
}

// Cell is a single pattern position of a single channel.
type Cell struct {
	// Period selects the note pitch; 0 means no new note.
	Period int

	// Sample selects the sample slot, 1..31; 0 means no change.
	Sample int

	// Effect is the 4-bit effect command.
	Effect uint8

	// Param is the effect parameter byte.
	Param uint8
}

// channelsForSignature maps the known format tags to their channel count.
// An unlisted tag is a parse failure, never a guess.
func channelsForSignature(sig string) int {
	switch sig {
	case "M.K.", "M!K!", "FLT4", "4CHN":
		return 4
	case "6CHN":
		return 6
	case "8CHN", "CD81":
		return 8
	}
	return 0
}

// Parse reads MOD file data and decodes it into a Module.
//
// A non-nil error is always a *FormatError; no partially valid
// Module is ever returned.
func Parse(data []byte) (*Module, error) {
	return NewParser().ParseFromBytes(data)
}

// Parser decodes MOD files. A Parser can be reused to decode many
// files while reusing the pattern-data allocations; note that reuse
// invalidates the Module returned by the previous call.
type Parser struct {
	impl *parser
}

func NewParser() *Parser {
	return &Parser{impl: newParser()}
}

func (p *Parser) ParseFromBytes(data []byte) (*Module, error) {
	return p.impl.Parse(data)
}
