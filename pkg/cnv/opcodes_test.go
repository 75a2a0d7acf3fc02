package cnv

import (
	"strings"
	"testing"
)

func TestOpcodeMetadataComplete(t *testing.T) {
	for op := Opcode(0); op <= MaxOpcode; op++ {
		if !op.Defined() {
			t.Errorf("opcode 0x%02X has no metadata", uint16(op))
			continue
		}
		info := GetOpcodeInfo(op)
		if info.Name == "" {
			t.Errorf("opcode 0x%02X has empty mnemonic", uint16(op))
		}
		if info.Operands < 0 || info.Operands > 1 {
			t.Errorf("%s: operand count = %d, want 0 or 1", info.Name, info.Operands)
		}
	}
	if Opcode(MaxOpcode + 1).Defined() {
		t.Errorf("opcode past MaxOpcode reported as defined")
	}
}

func TestMnemonicRoundTrip(t *testing.T) {
	for _, op := range AllOpcodes() {
		got, ok := LookupMnemonic(op.String())
		if !ok {
			t.Errorf("LookupMnemonic(%q) not found", op.String())
			continue
		}
		if got != op {
			t.Errorf("LookupMnemonic(%q) = %v, want %v", op.String(), got, op)
		}
	}
	if _, ok := LookupMnemonic("BOGUS"); ok {
		t.Errorf("LookupMnemonic accepted an unknown mnemonic")
	}
}

func TestOperandOpcodes(t *testing.T) {
	withOperand := []Opcode{OpJmp, OpBeq, OpBne, OpBra, OpCall, OpCalli, OpPushi, OpPushiEff}
	want := make(map[Opcode]bool, len(withOperand))
	for _, op := range withOperand {
		want[op] = true
	}
	for _, op := range AllOpcodes() {
		if op.HasOperand() != want[op] {
			t.Errorf("%s: HasOperand = %v, want %v", op, op.HasOperand(), want[op])
		}
		wantWidth := 1
		if want[op] {
			wantWidth = 2
		}
		if op.Width() != wantWidth {
			t.Errorf("%s: Width = %d, want %d", op, op.Width(), wantWidth)
		}
	}
}

func TestBranchClassification(t *testing.T) {
	for _, op := range []Opcode{OpBeq, OpBne, OpBra} {
		if !op.IsBranch() || !op.IsJumpTarget() {
			t.Errorf("%s should be a relative branch", op)
		}
	}
	for _, op := range []Opcode{OpJmp, OpCall} {
		if op.IsBranch() {
			t.Errorf("%s is absolute, not a relative branch", op)
		}
		if !op.IsJumpTarget() {
			t.Errorf("%s should target code", op)
		}
	}
	if OpCalli.IsJumpTarget() {
		t.Errorf("CALLI operand is an import id, not a code address")
	}
}

func TestUnknownOpcodeName(t *testing.T) {
	name := Opcode(0xFF).String()
	if !strings.HasPrefix(name, "UNKNOWN") {
		t.Errorf("Opcode(0xFF).String() = %q, want UNKNOWN prefix", name)
	}
}
