package moddb

import (
	"github.com/David-T08/Rustune/modfile"
)

// Effect is a decoded pattern-cell effect command.
// Decoding happens once, when the module is compiled; playback then
// switches over a closed set of ops instead of re-parsing nibbles.
type Effect struct {
	Op EffectOp

	// Arg is the effect parameter; for extended (0xEx) commands it
	// holds only the low nibble.
	Arg uint8

	// X and Y are the high/low nibbles of the parameter for the
	// commands that treat them separately (arpeggio, vibrato, tremolo,
	// volume slide).
	X uint8
	Y uint8
}

func (e Effect) IsEmpty() bool { return e.Op == EffectNone }

type EffectOp uint8

const (
	EffectNone EffectOp = iota

	// Encoding: effect=0x0, param != 0
	// X, Y: semitone offsets for ticks 1 and 2 of each 3-tick cycle
	EffectArpeggio

	// Encoding: effect=0x1
	// Arg: period decrement per tick
	EffectPortamentoUp

	// Encoding: effect=0x2
	// Arg: period increment per tick
	EffectPortamentoDown

	// Encoding: effect=0x3
	// Arg: slide rate toward the target period (0 reuses the last rate)
	EffectTonePortamento

	// Encoding: effect=0x4
	// X: phase rate, Y: depth (0 reuses the last nonzero value)
	EffectVibrato

	// Encoding: effect=0x5
	// X/Y: volume slide while the tone portamento keeps running
	EffectTonePortamentoVolumeSlide

	// Encoding: effect=0x6
	// X/Y: volume slide while the vibrato keeps running
	EffectVibratoVolumeSlide

	// Encoding: effect=0x7
	// X: phase rate, Y: depth (0 reuses the last nonzero value)
	EffectTremolo

	// Encoding: effect=0x8
	// Arg: panning position, 0x00 full left .. 0xFF full right
	EffectSetPanning

	// Encoding: effect=0x9
	// Arg: sample start offset in 256-byte pages (0 reuses the last value)
	EffectSampleOffset

	// Encoding: effect=0xA
	// X: volume increment per tick, Y: decrement (X wins if both set)
	EffectVolumeSlide

	// Encoding: effect=0xB
	// Arg: order index to jump to
	EffectPositionJump

	// Encoding: effect=0xC
	// Arg: volume level 0..64
	EffectSetVolume

	// Encoding: effect=0xD
	// Arg: BCD row number to start the next pattern at
	EffectPatternBreak

	// Encoding: effect=0xE1
	EffectFinePortamentoUp

	// Encoding: effect=0xE2
	EffectFinePortamentoDown

	// Encoding: effect=0xE4
	// Arg: 0 sine, 1 ramp down, 2 square
	EffectVibratoWaveform

	// Encoding: effect=0xE5
	// Arg: finetune override 0..15 (signed nibble)
	EffectSetFinetune

	// Encoding: effect=0xE6
	// Arg: 0 marks the loop row, N loops back N times
	EffectPatternLoop

	// Encoding: effect=0xE7
	// Arg: 0 sine, 1 ramp down, 2 square
	EffectTremoloWaveform

	// Encoding: effect=0xE8
	// Arg: coarse panning 0..15
	EffectCoarsePanning

	// Encoding: effect=0xE9
	// Arg: retrigger interval in ticks
	EffectRetrigger

	// Encoding: effect=0xEA
	EffectFineVolumeSlideUp

	// Encoding: effect=0xEB
	EffectFineVolumeSlideDown

	// Encoding: effect=0xEC
	// Arg: tick at which the channel volume is cut to 0
	EffectNoteCut

	// Encoding: effect=0xED
	// Arg: tick at which the row's note actually triggers
	EffectNoteDelay

	// Encoding: effect=0xEE
	// Arg: number of extra times the current row is repeated
	EffectPatternDelay

	// Encoding: effect=0xF, param <= 0x1F
	// Arg: ticks per row
	EffectSetSpeed

	// Encoding: effect=0xF, param > 0x1F
	// Arg: tempo in BPM
	EffectSetTempo
)

// ConvertEffect decodes a cell's raw effect command/parameter pair.
// Commands with no audible meaning (and the unsupported EFx invert
// loop) decode to EffectNone.
func ConvertEffect(c modfile.Cell) Effect {
	e := Effect{
		Arg: c.Param,
		X:   c.Param >> 4,
		Y:   c.Param & 0x0F,
	}

	switch c.Effect {
	case 0x0:
		if c.Param != 0 {
			e.Op = EffectArpeggio
		}
	case 0x1:
		e.Op = EffectPortamentoUp
	case 0x2:
		e.Op = EffectPortamentoDown
	case 0x3:
		e.Op = EffectTonePortamento
	case 0x4:
		e.Op = EffectVibrato
	case 0x5:
		e.Op = EffectTonePortamentoVolumeSlide
	case 0x6:
		e.Op = EffectVibratoVolumeSlide
	case 0x7:
		e.Op = EffectTremolo
	case 0x8:
		e.Op = EffectSetPanning
	case 0x9:
		e.Op = EffectSampleOffset
	case 0xA:
		e.Op = EffectVolumeSlide
	case 0xB:
		e.Op = EffectPositionJump
	case 0xC:
		e.Op = EffectSetVolume
	case 0xD:
		e.Op = EffectPatternBreak
	case 0xE:
		e = convertExtendedEffect(c)
	case 0xF:
		if c.Param <= 0x1F {
			e.Op = EffectSetSpeed
		} else {
			e.Op = EffectSetTempo
		}
	}

	return e
}

func convertExtendedEffect(c modfile.Cell) Effect {
	e := Effect{Arg: c.Param & 0x0F}

	switch c.Param >> 4 {
	case 0x1:
		e.Op = EffectFinePortamentoUp
	case 0x2:
		e.Op = EffectFinePortamentoDown
	case 0x4:
		e.Op = EffectVibratoWaveform
	case 0x5:
		e.Op = EffectSetFinetune
	case 0x6:
		e.Op = EffectPatternLoop
	case 0x7:
		e.Op = EffectTremoloWaveform
	case 0x8:
		e.Op = EffectCoarsePanning
	case 0x9:
		e.Op = EffectRetrigger
	case 0xA:
		e.Op = EffectFineVolumeSlideUp
	case 0xB:
		e.Op = EffectFineVolumeSlideDown
	case 0xC:
		e.Op = EffectNoteCut
	case 0xD:
		e.Op = EffectNoteDelay
	case 0xE:
		e.Op = EffectPatternDelay
	}

	return e
}
