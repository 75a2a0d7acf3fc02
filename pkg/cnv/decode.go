package cnv

import (
	"encoding/binary"
	"sort"
)

// headerBytes is the size of the fixed conversation record header, including
// the trailing import count.
const headerBytes = 16

// Archive is a decoded conversation container: a fixed slot table where each
// occupied slot holds one conversation record.
type Archive struct {
	slots [][]byte // raw record bytes per slot, nil for empty
}

// NewArchive returns an empty archive with the given slot count.
func NewArchive(numSlots int) *Archive {
	return &Archive{slots: make([][]byte, numSlots)}
}

// DecodeArchive parses a container: a u16 slot count followed by one u32
// file offset per slot, zero marking an empty slot. Record bytes for a slot
// run from its offset to the next occupied slot's offset.
func DecodeArchive(data []byte) (*Archive, error) {
	if len(data) < 2 {
		return nil, decodeErrorf(0, "container too short for slot count")
	}
	numSlots := int(binary.LittleEndian.Uint16(data[0:2]))
	tableEnd := 2 + numSlots*4
	if len(data) < tableEnd {
		return nil, decodeErrorf(2, "container too short for %d slot offsets", numSlots)
	}

	offsets := make([]uint32, numSlots)
	for i := 0; i < numSlots; i++ {
		offsets[i] = binary.LittleEndian.Uint32(data[2+i*4 : 6+i*4])
	}

	// Occupied offsets sorted ascending give each slot's extent.
	occupied := make([]int, 0, numSlots)
	for _, off := range offsets {
		if off != 0 {
			occupied = append(occupied, int(off))
		}
	}
	sort.Ints(occupied)

	a := NewArchive(numSlots)
	for i, off := range offsets {
		if off == 0 {
			continue
		}
		start := int(off)
		if start < tableEnd || start > len(data) {
			return nil, decodeErrorf(2+i*4, "slot %d offset 0x%X outside container", i, off)
		}
		end := len(data)
		for _, next := range occupied {
			if next > start {
				end = next
				break
			}
		}
		a.slots[i] = data[start:end]
	}
	return a, nil
}

// NumSlots returns the size of the slot table.
func (a *Archive) NumSlots() int {
	return len(a.slots)
}

// Slot returns the raw record bytes for a slot, nil if the slot is empty or
// out of range.
func (a *Archive) Slot(i int) []byte {
	if i < 0 || i >= len(a.slots) {
		return nil
	}
	return a.slots[i]
}

// SetSlot replaces a slot's record bytes, growing the slot table if needed.
// Passing nil empties the slot.
func (a *Archive) SetSlot(i int, record []byte) {
	for i >= len(a.slots) {
		a.slots = append(a.slots, nil)
	}
	a.slots[i] = record
}

// DecodeSlot decodes the conversation record stored in a slot.
func (a *Archive) DecodeSlot(i int) (*Conversation, error) {
	data := a.Slot(i)
	if data == nil {
		return nil, decodeErrorf(0, "slot %d is empty", i)
	}
	c, err := DecodeConversation(data)
	if err != nil {
		return nil, err
	}
	c.Slot = i
	return c, nil
}

// DecodeConversation parses one conversation record: fixed header, import
// table, code words. Trailing bytes past the code are ignored; everything
// the header promises must be present.
func DecodeConversation(data []byte) (*Conversation, error) {
	if len(data) < headerBytes {
		return nil, decodeErrorf(0, "record too short for header: %d bytes", len(data))
	}
	u16 := func(off int) uint16 { return binary.LittleEndian.Uint16(data[off : off+2]) }

	c := &Conversation{
		Header: Header{
			Unknown1:    u16(0),
			Unknown2:    u16(2),
			CodeSize:    u16(4),
			Unknown3:    u16(6),
			Unknown4:    u16(8),
			StringBlock: u16(10),
			MemorySlots: u16(12),
		},
	}
	numImports := int(u16(14))

	pos := headerBytes
	for i := 0; i < numImports; i++ {
		if pos+2 > len(data) {
			return nil, decodeErrorf(pos, "import %d truncated before name length", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		pos += 2
		if pos+nameLen+8 > len(data) {
			return nil, decodeErrorf(pos, "import %d truncated: need %d more bytes", i, pos+nameLen+8-len(data))
		}
		imp := Import{Name: string(data[pos : pos+nameLen])}
		pos += nameLen
		imp.ID = binary.LittleEndian.Uint16(data[pos : pos+2])
		// Constant word, always 1 in retail data.
		kind := binary.LittleEndian.Uint16(data[pos+4 : pos+6])
		switch ImportKind(kind) {
		case ImportVariable, ImportFunction:
			imp.Kind = ImportKind(kind)
		default:
			return nil, decodeErrorf(pos+4, "import %q has unknown kind 0x%04X", imp.Name, kind)
		}
		imp.Return = ReturnType(binary.LittleEndian.Uint16(data[pos+6 : pos+8]))
		pos += 8
		c.Imports = append(c.Imports, imp)
	}

	codeLen := int(c.Header.CodeSize)
	if pos+codeLen*2 > len(data) {
		return nil, decodeErrorf(pos, "code truncated: header promises %d words, %d bytes remain", codeLen, len(data)-pos)
	}
	c.Code = make([]uint16, codeLen)
	for i := 0; i < codeLen; i++ {
		c.Code[i] = binary.LittleEndian.Uint16(data[pos+i*2 : pos+i*2+2])
	}
	return c, nil
}
