package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

type cgListener struct {
	says  []uint16
	menus [][]cnv.MenuOption
	asks  int
}

func (l *cgListener) OnSay(id uint16)              { l.says = append(l.says, id) }
func (l *cgListener) OnMenu(opts []cnv.MenuOption) { l.menus = append(l.menus, opts) }
func (l *cgListener) OnAsk()                       { l.asks++ }

type cgQuests map[int]uint16

func (m cgQuests) QuestFlag(id int) uint16       { return m[id] }
func (m cgQuests) SetQuestFlag(id int, v uint16) { m[id] = v }

// progStrings serves a compiled program's own string table to the VM.
type progStrings []string

func (p progStrings) String(block, index int) (string, error) {
	if index < 0 || index >= len(p) {
		return "", fmt.Errorf("no string %d", index)
	}
	return p[index], nil
}

func compileSource(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile: %v\nsource:\n%s", err, src)
	}
	return prog
}

// runProgram compiles and runs a script to its first suspension or halt.
func runProgram(t *testing.T, src string, env *cnv.ImportEnv, listener cnv.Listener) (*Program, *cnv.VM) {
	t.Helper()
	prog := compileSource(t, src)
	if env == nil {
		env = &cnv.ImportEnv{}
	}
	if env.Strings == nil {
		env.Strings = progStrings(prog.Strings)
	}
	vm := cnv.NewVM(prog.Conversation, env.Table(), listener)
	if _, err := vm.Run(0); err != nil {
		t.Fatalf("Run: %v\nassembly:\n%s", err, prog.Assembly)
	}
	return prog, vm
}

// globalCell reads a main-program variable out of VM memory.
func globalCell(t *testing.T, prog *Program, vm *cnv.VM, name string) uint16 {
	t.Helper()
	off, ok := prog.Globals[name]
	if !ok {
		t.Fatalf("no global %q in %v", name, prog.Globals)
	}
	return vm.Cell(uint16(int(prog.Conversation.Header.MemorySlots) + off))
}

func TestCompileSay(t *testing.T) {
	listener := &cgListener{}
	prog, vm := runProgram(t, "say \"Hello Avatar\"\n", nil, listener)
	if vm.State() != cnv.StateHalted {
		t.Fatalf("state = %s, want halted", vm.State())
	}
	if len(listener.says) != 1 {
		t.Fatalf("says = %d, want 1", len(listener.says))
	}
	if got := prog.Strings[listener.says[0]]; got != "Hello Avatar" {
		t.Errorf("said %q, want Hello Avatar", got)
	}
	if prog.Strings[0] != "" {
		t.Errorf("string id 0 = %q, must stay reserved", prog.Strings[0])
	}
}

func TestCompileArithmetic(t *testing.T) {
	src := `
let x = 2 + 3 * 4
let y = (10 - 4) / 3
let z = 17 % 5
let w = -x
`
	prog, vm := runProgram(t, src, nil, nil)
	checks := map[string]int16{"x": 14, "y": 2, "z": 2, "w": -14}
	for name, want := range checks {
		if got := int16(globalCell(t, prog, vm, name)); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestCompileComparisonsAndLogic(t *testing.T) {
	src := `
let a = 3 < 5
let b = 3 >= 5
let c = 1 and 0
let d = 1 or 0
let e = not 0
let f = 2 == 2 and 3 != 4
`
	prog, vm := runProgram(t, src, nil, nil)
	checks := map[string]uint16{"a": 1, "b": 0, "c": 0, "d": 1, "e": 1, "f": 1}
	for name, want := range checks {
		if got := globalCell(t, prog, vm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestCompileWhileLoop(t *testing.T) {
	src := `
let i = 1
let sum = 0
while i <= 5
	sum = sum + i
	i = i + 1
endwhile
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "sum"); got != 15 {
		t.Errorf("sum = %d, want 15", got)
	}
	if got := globalCell(t, prog, vm, "i"); got != 6 {
		t.Errorf("i = %d, want 6", got)
	}
}

func TestCompileIfElseChain(t *testing.T) {
	for input, want := range map[int]uint16{1: 10, 2: 20, 3: 30} {
		src := fmt.Sprintf(`
let x = %d
let out = 0
if x == 1
	out = 10
elseif x == 2
	out = 20
else
	out = 30
endif
`, input)
		prog, vm := runProgram(t, src, nil, nil)
		if got := globalCell(t, prog, vm, "out"); got != want {
			t.Errorf("x = %d: out = %d, want %d", input, got, want)
		}
	}
}

func TestCompileArrays(t *testing.T) {
	src := `
let arr = [10, 20, 30]
let x = arr[2]
arr[3] = 99
let y = arr[3]
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "x"); got != 20 {
		t.Errorf("arr[2] = %d, want 20", got)
	}
	if got := globalCell(t, prog, vm, "y"); got != 99 {
		t.Errorf("arr[3] after store = %d, want 99", got)
	}
}

func TestCompileGoto(t *testing.T) {
	src := `
let x = 1
goto past
x = 2
label past
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "x"); got != 1 {
		t.Errorf("x = %d, want 1 (assignment must be skipped)", got)
	}
}

func TestCompileUserFunction(t *testing.T) {
	src := `
function double(n)
	return n * 2
endfunction
let a = 3
let b = a + double(4)
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "b"); got != 11 {
		t.Errorf("b = %d, want 11 (left operand must survive the call)", got)
	}
}

func TestCompileNestedCallKeepsOperand(t *testing.T) {
	// The pending left operand must survive a call whose callee itself
	// calls another function.
	src := `
function inner(x)
	return x * 2
endfunction
function f(n)
	return inner(n) + 1
endfunction
let a = 7
let r = a + f(3)
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "r"); got != 14 {
		t.Errorf("r = %d, want 14", got)
	}
	if got := globalCell(t, prog, vm, "a"); got != 7 {
		t.Errorf("a = %d, want 7 (operand clobbered across nested calls)", got)
	}
}

func TestCompileFunctionMultipleParams(t *testing.T) {
	src := `
function weigh(a, b, c)
	return a * 100 + b * 10 + c
endfunction
let r = weigh(1, 2, 3)
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "r"); got != 123 {
		t.Errorf("r = %d, want 123 (parameter order)", got)
	}
}

func TestCompileFunctionImplicitReturn(t *testing.T) {
	src := `
function noop()
	let x = 5
endfunction
let r = noop() + 7
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "r"); got != 7 {
		t.Errorf("r = %d, want 7 (implicit return 0)", got)
	}
}

func TestCompileFunctionLocalsIsolated(t *testing.T) {
	src := `
function scratch()
	let x = 99
	return x
endfunction
let x = 5
let r = scratch()
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "x"); got != 5 {
		t.Errorf("global x = %d, want 5 (function local must not clobber it)", got)
	}
	if got := globalCell(t, prog, vm, "r"); got != 99 {
		t.Errorf("r = %d, want 99", got)
	}
}

func TestCompileGlobalAccessInFunction(t *testing.T) {
	src := `
let counter = 0
function bump()
	counter = counter + 1
	return 0
endfunction
bump()
bump()
bump()
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "counter"); got != 3 {
		t.Errorf("counter = %d, want 3 (globals in functions use absolute cells)", got)
	}
}

func TestCompileRecursion(t *testing.T) {
	src := `
function fact(n)
	if n <= 1
		return 1
	endif
	return n * fact(n - 1)
endfunction
let r = fact(5)
`
	prog, vm := runProgram(t, src, nil, nil)
	if got := globalCell(t, prog, vm, "r"); got != 120 {
		t.Errorf("fact(5) = %d, want 120", got)
	}
}

func TestCompileMenuChoice(t *testing.T) {
	listener := &cgListener{}
	src := `
menu choice ["Yes", "No"]
say "done"
`
	prog := compileSource(t, src)
	env := &cnv.ImportEnv{Strings: progStrings(prog.Strings)}
	vm := cnv.NewVM(prog.Conversation, env.Table(), listener)

	state, err := vm.Run(0)
	if err != nil {
		t.Fatalf("Run: %v\nassembly:\n%s", err, prog.Assembly)
	}
	if state != cnv.StateWaiting {
		t.Fatalf("state = %s, want waiting at menu", state)
	}
	if len(listener.menus) != 1 || len(listener.menus[0]) != 2 {
		t.Fatalf("menu options = %+v, want 2", listener.menus)
	}
	if got := prog.Strings[listener.menus[0][0].StringID]; got != "Yes" {
		t.Errorf("option 1 = %q, want Yes", got)
	}
	if got := prog.Strings[listener.menus[0][1].StringID]; got != "No" {
		t.Errorf("option 2 = %q, want No", got)
	}

	if err := vm.Resume(2); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := vm.Run(0); err != nil {
		t.Fatalf("Run after resume: %v", err)
	}
	if got := globalCell(t, prog, vm, "choice"); got != 2 {
		t.Errorf("choice = %d, want 2", got)
	}
	if len(listener.says) != 1 {
		t.Errorf("says after resume = %d, want 1", len(listener.says))
	}
}

func TestCompileFilterMenu(t *testing.T) {
	listener := &cgListener{}
	src := `
let show = 0
filtermenu c ["A", 1, "B", show, "C", 1]
`
	prog := compileSource(t, src)
	env := &cnv.ImportEnv{Strings: progStrings(prog.Strings)}
	vm := cnv.NewVM(prog.Conversation, env.Table(), listener)
	state, err := vm.Run(0)
	if err != nil {
		t.Fatalf("Run: %v\nassembly:\n%s", err, prog.Assembly)
	}
	if state != cnv.StateWaiting {
		t.Fatalf("state = %s, want waiting", state)
	}
	opts := listener.menus[0]
	if len(opts) != 2 {
		t.Fatalf("filtered options = %+v, want 2", opts)
	}
	// Positions keep the unfiltered numbering.
	if opts[0].Position != 1 || opts[1].Position != 3 {
		t.Errorf("positions = %d, %d; want 1 and 3", opts[0].Position, opts[1].Position)
	}

	if err := vm.Resume(3); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := vm.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := globalCell(t, prog, vm, "c"); got != 3 {
		t.Errorf("c = %d, want 3", got)
	}
}

func TestCompileAsk(t *testing.T) {
	listener := &cgListener{}
	prog := compileSource(t, "ask answer\n")
	env := &cnv.ImportEnv{Strings: progStrings(prog.Strings)}
	vm := cnv.NewVM(prog.Conversation, env.Table(), listener)
	state, err := vm.Run(0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != cnv.StateWaiting || listener.asks != 1 {
		t.Fatalf("state = %s, asks = %d; want waiting after prompt", state, listener.asks)
	}
	if err := vm.Resume(17); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := vm.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := globalCell(t, prog, vm, "answer"); got != 17 {
		t.Errorf("answer = %d, want stored string id 17", got)
	}
}

func TestCompileBuiltinCalls(t *testing.T) {
	quests := cgQuests{}
	src := `
set_quest(7, 3)
let q = get_quest(3)
let r = random(1)
`
	env := &cnv.ImportEnv{Quests: quests, Rand: func(max int) int { return max }}
	prog, vm := runProgram(t, src, env, nil)
	if quests[3] != 7 {
		t.Errorf("quest 3 = %d, want 7", quests[3])
	}
	if got := globalCell(t, prog, vm, "q"); got != 7 {
		t.Errorf("q = %d, want 7", got)
	}
	if got := globalCell(t, prog, vm, "r"); got != 1 {
		t.Errorf("r = %d, want 1", got)
	}
}

func TestCompileNestedBuiltinArgs(t *testing.T) {
	// Each staged argument gets its own temp cell, even when argument
	// expressions contain calls themselves.
	quests := cgQuests{8: 2, 5: 42}
	src := `
let q = get_quest(get_quest(8) + 3)
`
	env := &cnv.ImportEnv{Quests: quests}
	prog, vm := runProgram(t, src, env, nil)
	if got := globalCell(t, prog, vm, "q"); got != 42 {
		t.Errorf("q = %d, want 42", got)
	}
}

func TestCompileStringConcat(t *testing.T) {
	listener := &cgListener{}
	src := `
let name = "Avatar"
say "Hello, " + name
`
	prog, _ := runProgram(t, src, nil, listener)
	if len(listener.says) != 1 {
		t.Fatalf("says = %d, want 1", len(listener.says))
	}
	got := prog.Strings[listener.says[0]]
	off := prog.Globals["name"]
	want := fmt.Sprintf("Hello, @SS%d", off)
	if got != want {
		t.Errorf("concat text = %q, want %q", got, want)
	}
}

func TestCompileIntConcatToken(t *testing.T) {
	listener := &cgListener{}
	src := `
let hp = 30
say "Health: " + hp
`
	prog, _ := runProgram(t, src, nil, listener)
	got := prog.Strings[listener.says[0]]
	want := fmt.Sprintf("Health: @SI%d", prog.Globals["hp"])
	if got != want {
		t.Errorf("concat text = %q, want %q", got, want)
	}
}

func TestCompileConcatChain(t *testing.T) {
	listener := &cgListener{}
	src := `
let cost = 7
say "For you, " + cost + " coins."
`
	prog, _ := runProgram(t, src, nil, listener)
	got := prog.Strings[listener.says[0]]
	want := fmt.Sprintf("For you, @SI%d coins.", prog.Globals["cost"])
	if got != want {
		t.Errorf("concat chain = %q, want %q", got, want)
	}
}

func TestCompileBuiltinInConcat(t *testing.T) {
	listener := &cgListener{}
	src := `
say "Fare thee well, " + sex("milady", "milord")
`
	prog := compileSource(t, src)
	env := &cnv.ImportEnv{Strings: progStrings(prog.Strings), PlayerFemale: true}
	vm := cnv.NewVM(prog.Conversation, env.Table(), listener)
	if _, err := vm.Run(0); err != nil {
		t.Fatalf("Run: %v\nassembly:\n%s", err, prog.Assembly)
	}

	got := prog.Strings[listener.says[0]]
	if !strings.HasPrefix(got, "Fare thee well, @SS") {
		t.Fatalf("concat text = %q, want a staged result token", got)
	}
	cell, err := strconv.Atoi(strings.TrimPrefix(got, "Fare thee well, @SS"))
	if err != nil {
		t.Fatalf("token cell in %q: %v", got, err)
	}
	id := vm.Cell(uint16(int(prog.Conversation.Header.MemorySlots) + cell))
	if text := prog.Strings[id]; text != "milady" {
		t.Errorf("staged cell holds %q, want milady", text)
	}
}

func TestCompileLiteralConcatFolds(t *testing.T) {
	listener := &cgListener{}
	prog, _ := runProgram(t, "say \"fore\" + \"aft\"\n", nil, listener)
	if got := prog.Strings[listener.says[0]]; got != "foreaft" {
		t.Errorf("folded literal = %q, want foreaft", got)
	}
}

func TestCompileStringInterning(t *testing.T) {
	listener := &cgListener{}
	prog, _ := runProgram(t, "say \"twice\"\nsay \"twice\"\n", nil, listener)
	if len(listener.says) != 2 || listener.says[0] != listener.says[1] {
		t.Errorf("says = %v, want the same interned id twice", listener.says)
	}
	if len(prog.Strings) != 2 {
		t.Errorf("string table = %d entries, want 2 (reserved plus one literal)", len(prog.Strings))
	}
}

func TestCompileImportTable(t *testing.T) {
	src := `
menu c ["Hi"]
let q = get_quest(1)
`
	prog := compileSource(t, src)
	imports := prog.Conversation.Imports
	if len(imports) != 2 {
		t.Fatalf("imports = %+v, want babl_menu and get_quest", imports)
	}
	if imports[0].Name != "babl_menu" || imports[0].ID != cnv.FnBablMenu {
		t.Errorf("import[0] = %+v, want babl_menu", imports[0])
	}
	if imports[1].Name != "get_quest" || imports[1].ID != cnv.FnGetQuest {
		t.Errorf("import[1] = %+v, want get_quest", imports[1])
	}
}

func TestCompileHeaderOptions(t *testing.T) {
	prog, err := Compile("exit\n", Options{Slot: 9, StringBlock: 0x0E11, MemorySlots: 96})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	c := prog.Conversation
	if c.Slot != 9 || c.Header.StringBlock != 0x0E11 || c.Header.MemorySlots != 96 {
		t.Errorf("header = slot %d, block 0x%04X, slots %d", c.Slot, c.Header.StringBlock, c.Header.MemorySlots)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined variable", "let x = y\n", "undefined variable"},
		{"duplicate variable", "let x = 1\nlet x = 2\n", "already declared"},
		{"undefined function", "let x = nope(1)\n", "undefined function"},
		{"arity mismatch", "function f(a)\nreturn a\nendfunction\nlet x = f(1, 2)\n", "takes 1 arguments"},
		{"duplicate function", "function f()\nreturn 0\nendfunction\nfunction f()\nreturn 0\nendfunction\n", "already defined"},
		{"builtin shadow", "function print(x)\nreturn 0\nendfunction\n", "shadows a built-in"},
		{"return outside function", "return 1\n", "outside a function"},
		{"undefined label", "goto nowhere\n", "not defined"},
		{"duplicate label", "label a\nlabel a\n", "already defined"},
		{"nested function", "function f()\nfunction g()\nreturn 0\nendfunction\nreturn 0\nendfunction\n", "nested function"},
		{"array in expression", "let x = [1, 2] + 3\n", "let initializer"},
		{"concat needs literal", "let a = \"x\"\nlet b = \"y\"\nsay a + b\n", "string literal"},
	}
	for _, tc := range tests {
		_, err := Compile(tc.src, Options{})
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestCompileAssemblyGoesThroughAssembler(t *testing.T) {
	prog := compileSource(t, "say \"hi\"\n")
	reassembled, err := cnv.Assemble(prog.Assembly)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(reassembled.Code) != len(prog.Conversation.Code) {
		t.Fatalf("reassembled %d words, want %d", len(reassembled.Code), len(prog.Conversation.Code))
	}
	for i := range prog.Conversation.Code {
		if reassembled.Code[i] != prog.Conversation.Code[i] {
			t.Errorf("code[%d] = 0x%04X, want 0x%04X", i, reassembled.Code[i], prog.Conversation.Code[i])
		}
	}
}
