package cnv

import "encoding/binary"

// Encode serializes a conversation record: header with the code size and
// import count filled in from the record itself, then imports, then code.
func (c *Conversation) Encode() []byte {
	out := make([]byte, 0, headerBytes+len(c.Code)*2)
	put16 := func(v uint16) {
		out = binary.LittleEndian.AppendUint16(out, v)
	}

	put16(c.Header.Unknown1)
	put16(c.Header.Unknown2)
	put16(uint16(len(c.Code)))
	put16(c.Header.Unknown3)
	put16(c.Header.Unknown4)
	put16(c.Header.StringBlock)
	put16(c.Header.MemorySlots)
	put16(uint16(len(c.Imports)))

	for _, imp := range c.Imports {
		put16(uint16(len(imp.Name)))
		out = append(out, imp.Name...)
		put16(imp.ID)
		put16(1)
		put16(uint16(imp.Kind))
		put16(uint16(imp.Return))
	}

	for _, w := range c.Code {
		put16(w)
	}
	return out
}

// Encode serializes the archive: slot count, offset table, then each
// occupied slot's record bytes in slot order. Empty slots get offset zero.
func (a *Archive) Encode() []byte {
	tableEnd := 2 + len(a.slots)*4
	out := make([]byte, tableEnd)
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(a.slots)))

	pos := tableEnd
	for i, rec := range a.slots {
		if rec == nil {
			continue
		}
		binary.LittleEndian.PutUint32(out[2+i*4:6+i*4], uint32(pos))
		pos += len(rec)
	}
	for _, rec := range a.slots {
		if rec != nil {
			out = append(out, rec...)
		}
	}
	return out
}
