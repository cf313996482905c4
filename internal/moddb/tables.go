package moddb

import (
	"fmt"
)

// AmigaClock is the Amiga PAL chipset clock in Hz. A channel playing
// period p reads its sample at AmigaClock / (2 * p) bytes per second.
const AmigaClock = 7093789.2

// PeriodFrequency converts a ProTracker period into a sample playback
// frequency in Hz.
func PeriodFrequency(period int) float64 {
	return AmigaClock / (2 * float64(period))
}

// periodTable holds the ProTracker note periods, seven octaves,
// twelve notes each, highest period (lowest note) first. Octaves 2..4
// (periods 856..113) are the range ProTracker itself can address;
// the outer octaves exist so that closest-match lookups and arpeggio
// offsets behave at the edges.
var periodTable = [7 * 12]int{
	3424, 3232, 3048, 2880, 2712, 2560, 2416, 2280, 2152, 2032, 1920, 1812,
	1712, 1616, 1524, 1440, 1356, 1280, 1208, 1140, 1076, 1016, 960, 906,
	856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
	428, 404, 381, 360, 339, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
	107, 101, 95, 90, 85, 80, 75, 71, 67, 63, 60, 56,
	53, 50, 47, 45, 42, 40, 37, 35, 33, 31, 30, 28,
}

// finetuneScale holds .12 fixed point period multipliers for the 16
// finetune steps. Index 8 is "no finetune"; -8 equals the next lower
// note. Values from Micromod.
var finetuneScale = [16]int{
	4340, 4308, 4277, 4247, 4216, 4186, 4156, 4126,
	4096, 4067, 4037, 4008, 3979, 3951, 3922, 3894,
}

// TunePeriod applies a sample's finetune bias (-8..7) to a note period.
func TunePeriod(period int, finetune int8) int {
	return (period * finetuneScale[int(finetune)+8]) >> 12
}

// closestNoteIndex finds the periodTable index whose period is nearest
// to the given one. Finetuned periods are always within half a
// semitone of a table entry, so closest-match is exact enough for
// note naming and arpeggio stepping.
func closestNoteIndex(period int) int {
	best := 0
	bestDist := 1 << 30
	for i, p := range periodTable {
		dist := p - period
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// ArpeggioPeriod returns the period sounding a given number of
// semitones above the base period, stepping through the ProTracker
// period table rather than equal-tempered math.
func ArpeggioPeriod(period, semitones int) int {
	if period == 0 {
		return 0
	}
	i := closestNoteIndex(period) + semitones
	if i < 0 {
		i = 0
	}
	if i >= len(periodTable) {
		i = len(periodTable) - 1
	}
	return periodTable[i]
}

var noteNames = [12]string{
	"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-",
}

// NoteName renders a period as a tracker display note such as "A-5".
// A zero period renders as "---".
//
// Octaves are numbered so the ProTracker-addressable range 856..113
// spans C-4..B-6, the numbering most tracker displays use for MOD.
func NoteName(period int) string {
	if period == 0 {
		return "---"
	}
	i := closestNoteIndex(period)
	return fmt.Sprintf("%s%d", noteNames[i%12], i/12+2)
}

// sineTable is the ProTracker vibrato sine table: the first half of
// the period, magnitudes 0..255. The second half has the same
// magnitudes with the sign flipped.
var sineTable = [32]int{
	0, 24, 49, 74, 97, 120, 141, 161, 180, 197, 212, 224, 235, 244, 250, 253,
	255, 253, 250, 244, 235, 224, 212, 197, 180, 161, 141, 120, 97, 74, 49, 24,
}

// Modulation waveforms selectable with E4x (vibrato) and E7x (tremolo).
const (
	WaveformSine     = 0
	WaveformRampDown = 1
	WaveformSquare   = 2
)

// WaveformValue returns the modulation waveform amplitude in
// -255..255 for a 64-step phase counter.
func WaveformValue(waveform, phase uint8) int {
	var v int
	switch waveform & 3 {
	case WaveformRampDown:
		v = 255 - int(phase&31)<<3
	case WaveformSquare:
		v = 255
	default:
		v = sineTable[phase&31]
	}
	if phase&63 >= 32 {
		v = -v
	}
	return v
}
