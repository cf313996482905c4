package rustune

import (
	"encoding/binary"
	"math"
)

type numeric interface {
	uint8 | int | int64 | float64
}

func clampMin[T numeric](v, min T) T {
	if v < min {
		return min
	}
	return v
}

func clampMax[T numeric](v, max T) T {
	if v > max {
		return max
	}
	return v
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// calcFramesPerTick returns how many output frames one tracker tick
// spans: a tick lasts 2.5/BPM seconds, rounded to whole frames.
func calcFramesPerTick(sampleRate, bpm float64) (framesPerTick, bytesPerTick int) {
	framesPerTick = int(math.Round(sampleRate * 2.5 / bpm))
	const (
		channels       = 2
		bytesPerSample = 2
	)
	bytesPerTick = framesPerTick * channels * bytesPerSample
	return framesPerTick, bytesPerTick
}

// slideTowards moves current toward target by at most step,
// never overshooting.
func slideTowards(current, target, step int) int {
	if current < target {
		current += step
		if current > target {
			current = target
		}
	} else if current > target {
		current -= step
		if current < target {
			current = target
		}
	}
	return current
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func putPCM(b []byte, left, right int16) {
	binary.LittleEndian.PutUint16(b, uint16(left))
	binary.LittleEndian.PutUint16(b[2:], uint16(right))
}

// clampPCM folds the float mixing accumulator into the int16 output
// range. Hard clipping, no soft limiting.
func clampPCM(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
