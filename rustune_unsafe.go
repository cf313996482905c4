package rustune

import (
	"unsafe"
)

// moduleSize approximates the heap memory held by a compiled module.
// Sample PCM is counted once even though channels alias it.
func moduleSize(m *module) uint {
	size := uint(unsafe.Sizeof(*m))

	for i := range m.samples {
		size += uint(unsafe.Sizeof(m.samples[i]))
		size += uint(len(m.samples[i].data))
		size += uint(len(m.samples[i].name))
	}

	for i := range m.patterns {
		size += uint(unsafe.Sizeof(m.patterns[i]))
		size += uint(len(m.patterns[i].notes)) * uint(unsafe.Sizeof(uint16(0)))
	}
	size += uint(len(m.patternOrder)) * uint(unsafe.Sizeof((*pattern)(nil)))

	var n patternNote
	size += uint(len(m.noteTab)) * uint(unsafe.Sizeof(n))

	return size
}
