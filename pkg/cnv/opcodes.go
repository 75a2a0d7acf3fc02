package cnv

import "fmt"

// Opcode represents a single conversation bytecode instruction.
// Each instruction occupies one 16-bit little-endian code word; opcodes with
// an operand are followed by a second word.
type Opcode uint16

const (
	// ========================================================================
	// Arithmetic and logic (0x00-0x0E)
	// ========================================================================

	OpNop   Opcode = 0x00 // No operation
	OpAdd   Opcode = 0x01 // Pop two, push sum
	OpMul   Opcode = 0x02 // Pop two, push product
	OpSub   Opcode = 0x03 // Pop two, push s[1] - s[0]
	OpDiv   Opcode = 0x04 // Pop two, push s[1] / s[0]
	OpMod   Opcode = 0x05 // Pop two, push s[1] % s[0]
	OpOr    Opcode = 0x06 // Logical OR: push 1 if either operand nonzero
	OpAnd   Opcode = 0x07 // Logical AND: push 1 if both operands nonzero
	OpNot   Opcode = 0x08 // Logical NOT top of stack
	OpTstGt Opcode = 0x09 // Push 1 if s[1] > s[0], else 0
	OpTstGe Opcode = 0x0A // Push 1 if s[1] >= s[0]
	OpTstLt Opcode = 0x0B // Push 1 if s[1] < s[0]
	OpTstLe Opcode = 0x0C // Push 1 if s[1] <= s[0]
	OpTstEq Opcode = 0x0D // Push 1 if s[1] == s[0]
	OpTstNe Opcode = 0x0E // Push 1 if s[1] != s[0]

	// ========================================================================
	// Control flow (0x0F-0x15)
	// ========================================================================

	OpJmp   Opcode = 0x0F // Jump to absolute word address: JMP <addr:u16>
	OpBeq   Opcode = 0x10 // Pop; branch by relative offset if zero
	OpBne   Opcode = 0x11 // Pop; branch by relative offset if nonzero
	OpBra   Opcode = 0x12 // Branch by relative offset unconditionally
	OpCall  Opcode = 0x13 // Push return address, jump to absolute address
	OpCalli Opcode = 0x14 // Invoke imported function by id: CALLI <id:u16>
	OpRet   Opcode = 0x15 // Pop return address and jump to it

	// ========================================================================
	// Stack and frame (0x16-0x1E)
	// ========================================================================

	OpPushi    Opcode = 0x16 // Push immediate: PUSHI <value:u16>
	OpPushiEff Opcode = 0x17 // Push effective address bp+n: PUSHI_EFF <offset:i16>
	OpPop      Opcode = 0x18 // Discard top of stack
	OpSwap     Opcode = 0x19 // Swap top two stack elements
	OpPushBP   Opcode = 0x1A // Push the base pointer
	OpPopBP    Opcode = 0x1B // Pop into the base pointer
	OpSPtoBP   Opcode = 0x1C // Set bp = sp (open a frame)
	OpBPtoSP   Opcode = 0x1D // Set sp = bp (discard frame locals)
	OpAddSP    Opcode = 0x1E // Pop signed count, move sp by it

	// ========================================================================
	// Memory (0x1F-0x21)
	// ========================================================================

	OpFetchM Opcode = 0x1F // Pop address, push memory cell at it
	OpSto    Opcode = 0x20 // Pop value then address, store value at address
	OpOffset Opcode = 0x21 // Pop index then base, push base + index - 1

	// ========================================================================
	// System (0x22-0x29)
	// ========================================================================

	OpStart   Opcode = 0x22 // Program entry marker, no effect
	OpSaveReg Opcode = 0x23 // Pop into the result register
	OpPushReg Opcode = 0x24 // Push the result register
	OpStrCmp  Opcode = 0x25 // Unsupported in this implementation; faults
	OpExit    Opcode = 0x26 // Halt the conversation
	OpSay     Opcode = 0x27 // Pop string id and emit it to the listener
	OpRespond Opcode = 0x28 // Unsupported in this implementation; faults
	OpNeg     Opcode = 0x29 // Arithmetic negate top of stack
)

// MaxOpcode is the highest defined opcode value.
const MaxOpcode = OpNeg

// Category groups opcodes for disassembly annotations and validation.
type Category int

const (
	CatArith Category = iota
	CatCompare
	CatBranch
	CatStack
	CatFrame
	CatMemory
	CatCall
	CatSystem
)

// OpcodeInfo provides static metadata about each opcode.
type OpcodeInfo struct {
	Name     string   // Assembly mnemonic
	Operands int      // Number of 16-bit operand words (0 or 1)
	Category Category // Broad functional grouping
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Arithmetic and logic
	OpNop:   {"NOP", 0, CatSystem},
	OpAdd:   {"OPADD", 0, CatArith},
	OpMul:   {"OPMUL", 0, CatArith},
	OpSub:   {"OPSUB", 0, CatArith},
	OpDiv:   {"OPDIV", 0, CatArith},
	OpMod:   {"OPMOD", 0, CatArith},
	OpOr:    {"OPOR", 0, CatArith},
	OpAnd:   {"OPAND", 0, CatArith},
	OpNot:   {"OPNOT", 0, CatArith},
	OpNeg:   {"OPNEG", 0, CatArith},
	OpTstGt: {"TSTGT", 0, CatCompare},
	OpTstGe: {"TSTGE", 0, CatCompare},
	OpTstLt: {"TSTLT", 0, CatCompare},
	OpTstLe: {"TSTLE", 0, CatCompare},
	OpTstEq: {"TSTEQ", 0, CatCompare},
	OpTstNe: {"TSTNE", 0, CatCompare},

	// Control flow
	OpJmp:   {"JMP", 1, CatBranch},
	OpBeq:   {"BEQ", 1, CatBranch},
	OpBne:   {"BNE", 1, CatBranch},
	OpBra:   {"BRA", 1, CatBranch},
	OpCall:  {"CALL", 1, CatCall},
	OpCalli: {"CALLI", 1, CatCall},
	OpRet:   {"RET", 0, CatCall},

	// Stack and frame
	OpPushi:    {"PUSHI", 1, CatStack},
	OpPushiEff: {"PUSHI_EFF", 1, CatStack},
	OpPop:      {"POP", 0, CatStack},
	OpSwap:     {"SWAP", 0, CatStack},
	OpPushBP:   {"PUSHBP", 0, CatFrame},
	OpPopBP:    {"POPBP", 0, CatFrame},
	OpSPtoBP:   {"SPTOBP", 0, CatFrame},
	OpBPtoSP:   {"BPTOSP", 0, CatFrame},
	OpAddSP:    {"ADDSP", 0, CatFrame},

	// Memory
	OpFetchM: {"FETCHM", 0, CatMemory},
	OpSto:    {"STO", 0, CatMemory},
	OpOffset: {"OFFSET", 0, CatMemory},

	// System
	OpStart:   {"START", 0, CatSystem},
	OpSaveReg: {"SAVE_REG", 0, CatSystem},
	OpPushReg: {"PUSH_REG", 0, CatSystem},
	OpStrCmp:  {"STRCMP", 0, CatSystem},
	OpExit:    {"EXIT_OP", 0, CatSystem},
	OpSay:     {"SAY_OP", 0, CatSystem},
	OpRespond: {"RESPOND_OP", 0, CatSystem},
}

// mnemonicTable maps assembly mnemonics back to opcodes. Built once at init
// from opcodeInfoTable so the two can never drift.
var mnemonicTable = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with an UNKNOWN name if the opcode is not defined.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%04X)", uint16(op))}
}

// LookupMnemonic resolves an assembly mnemonic to its opcode.
func LookupMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonicTable[name]
	return op, ok
}

// String returns the assembly mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Defined reports whether the opcode exists in the instruction set.
func (op Opcode) Defined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// HasOperand reports whether the opcode is followed by an operand word.
func (op Opcode) HasOperand() bool {
	return GetOpcodeInfo(op).Operands == 1
}

// Width returns the instruction length in code words (1 or 2).
func (op Opcode) Width() int {
	return 1 + GetOpcodeInfo(op).Operands
}

// IsBranch reports whether the opcode transfers control by a relative offset.
// JMP and CALL take absolute addresses and are not included.
func (op Opcode) IsBranch() bool {
	return op == OpBeq || op == OpBne || op == OpBra
}

// IsJumpTarget reports whether the operand names a code location at all,
// relative or absolute. CALLI is excluded: its operand is an import id.
func (op Opcode) IsJumpTarget() bool {
	return op.IsBranch() || op == OpJmp || op == OpCall
}

// AllOpcodes returns every defined opcode.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
