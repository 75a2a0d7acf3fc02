package cnv

import (
	"strconv"
	"strings"
)

// asmStatement is one instruction parsed from assembly source, with its
// operand still symbolic.
type asmStatement struct {
	line    int
	addr    int
	op      Opcode
	operand string
}

// Assemble parses assembly text into a conversation record. Labels are
// collected in a first pass and resolved in a second; branches encode
// offsets relative to the word after the operand, JMP and CALL encode
// absolute word addresses. Metadata comments written by Disassemble set the
// header and import table; a source without them gets DefaultHeader.
func Assemble(src string) (*Conversation, error) {
	c := &Conversation{Header: DefaultHeader()}

	labels := make(map[string]int)
	labelLines := make(map[string]int)
	var statements []asmStatement
	addr := 0

	for i, raw := range strings.Split(src, "\n") {
		line := i + 1
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, ";") {
			if err := parseMetaComment(c, line, text); err != nil {
				return nil, err
			}
			continue
		}
		if idx := strings.Index(text, ";"); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
			if text == "" {
				continue
			}
		}

		if name, rest, ok := splitLabel(text); ok {
			if _, dup := labels[name]; dup {
				return nil, assembleErrorf(line, "duplicate label %q (first defined on line %d)", name, labelLines[name])
			}
			labels[name] = addr
			labelLines[name] = line
			if rest == "" {
				continue
			}
			text = rest
		}

		fields := strings.Fields(text)
		op, ok := LookupMnemonic(fields[0])
		if !ok {
			return nil, assembleErrorf(line, "unknown mnemonic %q", fields[0])
		}
		stmt := asmStatement{line: line, addr: addr, op: op}
		switch {
		case op.HasOperand() && len(fields) == 2:
			stmt.operand = fields[1]
		case op.HasOperand():
			return nil, assembleErrorf(line, "%s requires exactly one operand", op)
		case len(fields) > 1:
			return nil, assembleErrorf(line, "%s takes no operand", op)
		}
		statements = append(statements, stmt)
		addr += op.Width()
		if addr > 65535 {
			return nil, assembleErrorf(line, "code exceeds the 65535-word record capacity")
		}
	}

	for _, stmt := range statements {
		c.Code = append(c.Code, uint16(stmt.op))
		if !stmt.op.HasOperand() {
			continue
		}
		arg, err := resolveOperand(stmt, labels)
		if err != nil {
			return nil, err
		}
		c.Code = append(c.Code, arg)
	}
	return c, nil
}

// splitLabel recognizes "name:" and "name: INSTRUCTION" forms.
func splitLabel(text string) (name, rest string, ok bool) {
	idx := strings.Index(text, ":")
	if idx <= 0 {
		return "", "", false
	}
	name = text[:idx]
	if !isIdent(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(text[idx+1:]), true
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}

func resolveOperand(stmt asmStatement, labels map[string]int) (uint16, error) {
	if v, err := parseNumber(stmt.operand); err == nil {
		if stmt.op.IsBranch() {
			// Numeric branch operands are raw relative offsets.
			if v < -32768 || v > 32767 {
				return 0, assembleErrorf(stmt.line, "branch offset %d out of 16-bit range", v)
			}
			return uint16(int16(v)), nil
		}
		if v < -32768 || v > 65535 {
			return 0, assembleErrorf(stmt.line, "operand %d out of 16-bit range", v)
		}
		return uint16(v), nil
	}

	target, ok := labels[stmt.operand]
	if !ok {
		return 0, assembleErrorf(stmt.line, "undefined label %q", stmt.operand)
	}
	if !stmt.op.IsJumpTarget() {
		return 0, assembleErrorf(stmt.line, "%s cannot take a label operand", stmt.op)
	}
	if stmt.op.IsBranch() {
		offset := target - (stmt.addr + 2)
		if offset < -32768 || offset > 32767 {
			return 0, assembleErrorf(stmt.line, "branch to %q out of range", stmt.operand)
		}
		return uint16(int16(offset)), nil
	}
	return uint16(target), nil
}

func parseNumber(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	return int(v), err
}

// parseMetaComment applies one structured header comment; comments that do
// not start with a known key are ignored.
func parseMetaComment(c *Conversation, line int, text string) error {
	body := strings.TrimSpace(strings.TrimPrefix(text, ";"))
	key, rest, found := strings.Cut(body, ":")
	if !found {
		return nil
	}
	rest = strings.TrimSpace(rest)
	switch strings.TrimSpace(key) {
	case "slot":
		v, err := parseNumber(rest)
		if err != nil {
			return assembleErrorf(line, "bad slot number %q", rest)
		}
		c.Slot = v
	case "string_block":
		v, err := parseNumber(rest)
		if err != nil {
			return assembleErrorf(line, "bad string_block %q", rest)
		}
		c.Header.StringBlock = uint16(v)
	case "memory_slots":
		v, err := parseNumber(rest)
		if err != nil {
			return assembleErrorf(line, "bad memory_slots %q", rest)
		}
		c.Header.MemorySlots = uint16(v)
	case "unknown":
		fields := strings.Fields(rest)
		if len(fields) != 4 {
			return assembleErrorf(line, "unknown header comment needs 4 values, got %d", len(fields))
		}
		dst := []*uint16{&c.Header.Unknown1, &c.Header.Unknown2, &c.Header.Unknown3, &c.Header.Unknown4}
		for i, f := range fields {
			v, err := parseNumber(f)
			if err != nil {
				return assembleErrorf(line, "bad unknown header value %q", f)
			}
			*dst[i] = uint16(v)
		}
	case "import":
		imp, err := parseImportComment(line, rest)
		if err != nil {
			return err
		}
		c.Imports = append(c.Imports, imp)
	}
	return nil
}

// parseImportComment parses the form the disassembler writes:
// kind "name" id=N ret=type.
func parseImportComment(line int, rest string) (Import, error) {
	var imp Import
	fields := strings.Fields(rest)
	if len(fields) < 4 {
		return imp, assembleErrorf(line, "malformed import comment %q", rest)
	}
	switch fields[0] {
	case "function":
		imp.Kind = ImportFunction
	case "variable":
		imp.Kind = ImportVariable
	default:
		return imp, assembleErrorf(line, "unknown import kind %q", fields[0])
	}
	name, err := strconv.Unquote(fields[1])
	if err != nil {
		return imp, assembleErrorf(line, "bad import name %s", fields[1])
	}
	imp.Name = name
	for _, f := range fields[2:] {
		k, v, found := strings.Cut(f, "=")
		if !found {
			return imp, assembleErrorf(line, "malformed import attribute %q", f)
		}
		switch k {
		case "id":
			n, err := parseNumber(v)
			if err != nil {
				return imp, assembleErrorf(line, "bad import id %q", v)
			}
			imp.ID = uint16(n)
		case "ret":
			switch v {
			case "void":
				imp.Return = RetVoid
			case "int":
				imp.Return = RetInt
			case "string":
				imp.Return = RetString
			default:
				return imp, assembleErrorf(line, "unknown return type %q", v)
			}
		}
	}
	return imp, nil
}
