package session

import (
	"regexp"
	"strconv"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

// substPattern matches display-time substitution tokens: @ followed by the
// source (G absolute global, S frame-relative, P pointer through a
// frame-relative cell), the kind (S string, I integer), and a cell number.
var substPattern = regexp.MustCompile(`@([GSP])([SI])(-?\d+)`)

// expandText resolves substitution tokens against live VM memory. Tokens
// that cannot resolve are left in place rather than dropped, which keeps
// data problems visible in the transcript.
func expandText(vm *cnv.VM, strs *StringTable, block int, text string) string {
	return substPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := substPattern.FindStringSubmatch(match)
		num, err := strconv.Atoi(groups[3])
		if err != nil {
			return match
		}

		var value uint16
		switch groups[1] {
		case "G":
			value = vm.Cell(uint16(num))
		case "S":
			value = vm.Cell(uint16(vm.BP() + num))
		case "P":
			ptr := vm.Cell(uint16(vm.BP() + num))
			value = vm.Cell(ptr)
		}

		if groups[2] == "I" {
			return strconv.Itoa(int(int16(value)))
		}
		s, err := strs.String(block, int(value))
		if err != nil {
			return match
		}
		return s
	})
}
