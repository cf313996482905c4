package modfile

import (
	"fmt"
)

// ErrorKind classifies the ways a MOD file can fail to parse.
type ErrorKind int

const (
	// ErrUnknownSignature means the 4-byte format tag did not match
	// any known channel layout.
	ErrUnknownSignature ErrorKind = iota

	// ErrTruncatedData means the file ended before all declared
	// header, pattern or sample bytes could be read.
	ErrTruncatedData

	// ErrInvalidSampleLength means a sample header declares a loop
	// region that does not fit inside the sample.
	ErrInvalidSampleLength

	// ErrPatternIndexOutOfRange means the order table references a
	// pattern index that cannot name a stored pattern.
	ErrPatternIndexOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownSignature:
		return "UnknownSignature"
	case ErrTruncatedData:
		return "TruncatedData"
	case ErrInvalidSampleLength:
		return "InvalidSampleLength"
	case ErrPatternIndexOutOfRange:
		return "PatternIndexOutOfRange"
	}
	return "Unknown"
}

// FormatError describes a fatal MOD parsing failure.
type FormatError struct {
	Kind ErrorKind

	Message string

	// Offset is the byte position inside the input where
	// the failure was detected.
	Offset int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s (offset=%d)", e.Kind, e.Message, e.Offset)
}
