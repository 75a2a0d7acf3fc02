package cnv

import (
	"sort"
	"strconv"
)

// ImportKind distinguishes the two kinds of import record.
type ImportKind uint16

const (
	ImportVariable ImportKind = 0x010F // id_or_address is a memory address
	ImportFunction ImportKind = 0x0111 // id_or_address is a function id
)

func (k ImportKind) String() string {
	switch k {
	case ImportVariable:
		return "variable"
	case ImportFunction:
		return "function"
	}
	return "unknown"
}

// ReturnType is the declared result type of an imported function.
type ReturnType uint16

const (
	RetVoid   ReturnType = 0x0000
	RetInt    ReturnType = 0x0129
	RetString ReturnType = 0x012B
)

func (t ReturnType) String() string {
	switch t {
	case RetVoid:
		return "void"
	case RetInt:
		return "int"
	case RetString:
		return "string"
	}
	return "unknown"
}

// Import is one entry of a conversation's import table, binding a name from
// the game engine to either a memory address or an imported function id.
type Import struct {
	Name   string
	ID     uint16 // function id or variable address, per Kind
	Kind   ImportKind
	Return ReturnType
}

// Header carries the fixed-size fields of a conversation record. The unknown
// fields have no decoded meaning but round-trip verbatim; retail data carries
// 0x0828 in Unknown1.
type Header struct {
	Unknown1    uint16
	Unknown2    uint16
	CodeSize    uint16 // code length in 16-bit words
	Unknown3    uint16
	Unknown4    uint16
	StringBlock uint16 // string block holding this conversation's text
	MemorySlots uint16 // cells reserved below the stack for globals
}

// DefaultHeader returns a header with the field values retail conversations
// carry, ready for the encoder to fill in CodeSize.
func DefaultHeader() Header {
	return Header{Unknown1: 0x0828, StringBlock: 1, MemorySlots: 32}
}

// Conversation is one decoded conversation slot: header, import table and
// raw code words.
type Conversation struct {
	Slot    int
	Header  Header
	Imports []Import
	Code    []uint16
}

// Instruction is one decoded instruction: the opcode, its operand word when
// present, and the word address it was decoded from.
type Instruction struct {
	Addr int
	Op   Opcode
	Arg  uint16
}

// Width returns the instruction length in code words.
func (ins Instruction) Width() int {
	return ins.Op.Width()
}

// Target returns the code word address this instruction transfers control
// to, resolving relative branch offsets against the instruction address.
// Meaningful only when Op.IsJumpTarget().
func (ins Instruction) Target() int {
	if ins.Op.IsBranch() {
		return ins.Addr + 2 + int(int16(ins.Arg))
	}
	return int(ins.Arg)
}

// DecodeCode splits raw code words into instructions. Unknown opcodes and a
// truncated trailing operand are decode errors carrying the word address.
func DecodeCode(words []uint16) ([]Instruction, error) {
	var out []Instruction
	for addr := 0; addr < len(words); {
		op := Opcode(words[addr])
		if !op.Defined() {
			return nil, decodeErrorf(addr, "unknown opcode 0x%04X at word %d", uint16(op), addr)
		}
		ins := Instruction{Addr: addr, Op: op}
		if op.HasOperand() {
			if addr+1 >= len(words) {
				return nil, decodeErrorf(addr, "opcode %s at word %d is missing its operand", op, addr)
			}
			ins.Arg = words[addr+1]
		}
		out = append(out, ins)
		addr += ins.Width()
	}
	return out, nil
}

// EncodeCode flattens instructions back into code words.
func EncodeCode(instructions []Instruction) []uint16 {
	var words []uint16
	for _, ins := range instructions {
		words = append(words, uint16(ins.Op))
		if ins.Op.HasOperand() {
			words = append(words, ins.Arg)
		}
	}
	return words
}

// CodeLabels assigns deterministic names to every code address targeted by a
// jump, branch or call. Labels are numbered in ascending address order so
// repeated disassembly of the same code is stable.
func CodeLabels(instructions []Instruction) map[int]string {
	targets := make(map[int]bool)
	for _, ins := range instructions {
		if ins.Op.IsJumpTarget() {
			targets[ins.Target()] = true
		}
	}
	addrs := make([]int, 0, len(targets))
	for addr := range targets {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)
	labels := make(map[int]string, len(addrs))
	for i, addr := range addrs {
		labels[addr] = labelName(i)
	}
	return labels
}

func labelName(i int) string {
	return "label_" + strconv.Itoa(i)
}
