package modfile

import (
	"encoding/binary"
)

// Encode serializes a Module back into the MOD binary layout.
//
// It is the inverse of Parse for every module Parse can produce:
// parsing the encoded bytes yields an identical Module. Fields that
// the format cannot represent exactly (names longer than their fixed
// records, odd sample lengths) are truncated the way a tracker would
// truncate them.
func Encode(m *Module) []byte {
	size := 20 + 31*30 + 1 + 1 + 128 + 4
	size += len(m.Patterns) * NumRows * m.NumChannels * 4
	for i := range m.Samples {
		size += m.Samples[i].Length
	}

	e := encoder{buf: make([]byte, 0, size)}
	e.encodeModule(m)
	return e.buf
}

type encoder struct {
	buf []byte
}

func (e *encoder) writeString(s string, l int) {
	b := make([]byte, l)
	copy(b, s)
	e.buf = append(e.buf, b...)
}

func (e *encoder) writeByte(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) writeWord(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

func (e *encoder) encodeModule(m *Module) {
	e.writeString(m.Name, 20)

	for i := range m.Samples {
		e.encodeSampleHeader(&m.Samples[i])
	}

	e.writeByte(uint8(m.SongLength))
	e.writeByte(uint8(m.RestartPosition))
	e.buf = append(e.buf, m.Orders[:]...)
	e.writeString(m.Signature, 4)

	for i := range m.Patterns {
		e.encodePattern(&m.Patterns[i])
	}

	for i := range m.Samples {
		for _, v := range m.Samples[i].Data {
			e.writeByte(uint8(v))
		}
	}
}

func (e *encoder) encodeSampleHeader(s *Sample) {
	e.writeString(s.Name, 22)
	e.writeWord(uint16(s.Length / 2))

	finetune := uint8(s.Finetune) & 0x0F
	e.writeByte(finetune)

	e.writeByte(uint8(s.Volume))
	e.writeWord(uint16(s.LoopStart / 2))
	e.writeWord(uint16(s.LoopLength / 2))
}

func (e *encoder) encodePattern(p *Pattern) {
	for i := range p.Rows {
		for _, c := range p.Rows[i].Cells {
			e.writeByte(uint8(c.Sample)&0xF0 | uint8(c.Period>>8)&0x0F)
			e.writeByte(uint8(c.Period))
			e.writeByte(uint8(c.Sample)<<4 | c.Effect&0x0F)
			e.writeByte(c.Param)
		}
	}
}
