package cnv

import (
	"fmt"
	"strings"
)

// Disassemble renders a conversation record as assembly text. The header
// and import table are emitted as structured comments the assembler reads
// back, so disassembling and reassembling reproduces the record exactly.
func Disassemble(c *Conversation) (string, error) {
	instructions, err := DecodeCode(c.Code)
	if err != nil {
		return "", err
	}
	labels := CodeLabels(instructions)

	var b strings.Builder
	fmt.Fprintf(&b, "; slot: %d\n", c.Slot)
	fmt.Fprintf(&b, "; string_block: %d\n", c.Header.StringBlock)
	fmt.Fprintf(&b, "; memory_slots: %d\n", c.Header.MemorySlots)
	fmt.Fprintf(&b, "; unknown: 0x%04X 0x%04X 0x%04X 0x%04X\n",
		c.Header.Unknown1, c.Header.Unknown2, c.Header.Unknown3, c.Header.Unknown4)
	for _, imp := range c.Imports {
		fmt.Fprintf(&b, "; import: %s %q id=%d ret=%s\n", imp.Kind, imp.Name, imp.ID, imp.Return)
	}
	b.WriteString("\n")

	for _, ins := range instructions {
		if name, ok := labels[ins.Addr]; ok {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		b.WriteString("\t")
		b.WriteString(ins.Op.String())
		if ins.Op.HasOperand() {
			b.WriteString(" ")
			b.WriteString(c.operandText(ins, labels))
		}
		b.WriteString("\n")
	}
	// A branch may target the address just past the last instruction.
	end := 0
	if n := len(instructions); n > 0 {
		end = instructions[n-1].Addr + instructions[n-1].Width()
	}
	if name, ok := labels[end]; ok {
		fmt.Fprintf(&b, "%s:\n", name)
	}
	return b.String(), nil
}

func (c *Conversation) operandText(ins Instruction, labels map[int]string) string {
	switch {
	case ins.Op.IsJumpTarget():
		if name, ok := labels[ins.Target()]; ok {
			return name
		}
		return fmt.Sprintf("%d", ins.Target())
	case ins.Op == OpCalli:
		if name := c.importName(ins.Arg); name != "" {
			return fmt.Sprintf("%d\t; %s", ins.Arg, name)
		}
		return fmt.Sprintf("%d", ins.Arg)
	case ins.Op == OpPushiEff:
		return fmt.Sprintf("%d", int16(ins.Arg))
	default:
		return fmt.Sprintf("%d", ins.Arg)
	}
}

func (c *Conversation) importName(id uint16) string {
	for _, imp := range c.Imports {
		if imp.Kind == ImportFunction && imp.ID == id {
			return imp.Name
		}
	}
	return ""
}
