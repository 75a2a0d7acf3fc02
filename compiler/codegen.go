package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

// ---------------------------------------------------------------------------
// Code generation: UWScript AST to conversation assembly
// ---------------------------------------------------------------------------

// Options configures a compilation.
type Options struct {
	Slot        int
	StringBlock uint16
	MemorySlots uint16
}

// Program is a compiled conversation: the encoded record, the assembly it
// was built from, and the string table the code's string ids index into.
// String id 0 is reserved as the menu array terminator.
type Program struct {
	Conversation *cnv.Conversation
	Assembly     string
	Strings      []string
	Globals      map[string]int // variable name to frame offset
}

// builtin describes one engine function callable from script.
type builtin struct {
	id  uint16
	ret cnv.ReturnType
}

var builtins = map[string]builtin{
	"babl_menu":  {cnv.FnBablMenu, cnv.RetInt},
	"babl_fmenu": {cnv.FnBablFMenu, cnv.RetInt},
	"print":      {cnv.FnPrint, cnv.RetVoid},
	"babl_ask":   {cnv.FnBablAsk, cnv.RetString},
	"compare":    {cnv.FnCompare, cnv.RetInt},
	"random":     {cnv.FnRandom, cnv.RetInt},
	"contains":   {cnv.FnContains, cnv.RetInt},
	"length":     {cnv.FnLength, cnv.RetInt},
	"get_quest":  {cnv.FnGetQuest, cnv.RetInt},
	"set_quest":  {cnv.FnSetQuest, cnv.RetVoid},
	"sex":        {cnv.FnSex, cnv.RetString},
	"gronk_door": {cnv.FnGronkDoor, cnv.RetInt},
}

// Compile translates UWScript source into a conversation record. The
// generated assembly goes through the regular assembler, so the compiler
// and hand-written assembly share one encoding path.
func Compile(src string, opts Options) (*Program, error) {
	if opts.MemorySlots == 0 {
		opts.MemorySlots = 64
	}
	parser := NewParser(src)
	script, err := parser.ParseScript()
	if err != nil {
		return nil, err
	}

	g := newCodeGen(opts)
	if err := g.genScript(script); err != nil {
		return nil, err
	}

	asm := g.assemblyText()
	conv, err := cnv.Assemble(asm)
	if err != nil {
		return nil, fmt.Errorf("assembling generated code: %w", err)
	}

	globals := make(map[string]int, len(g.globals.vars))
	for name, v := range g.globals.vars {
		globals[name] = v.offset
	}
	return &Program{
		Conversation: conv,
		Assembly:     asm,
		Strings:      g.strings,
		Globals:      globals,
	}, nil
}

type codeGen struct {
	opts Options

	main []string // main program assembly lines
	fns  []string // function assembly lines, emitted after EXIT_OP
	cur  *[]string

	globals *scope
	fn      *funcScope // nil while generating main code
	temps   *tempAlloc

	strings   []string
	stringIDs map[string]int

	funcs  map[string]int // function name to parameter count
	labels map[string]bool

	used   map[string]bool // builtins referenced by the script
	labelN int
}

func newCodeGen(opts Options) *codeGen {
	g := &codeGen{
		opts:      opts,
		globals:   newScope(),
		temps:     newTempAlloc(),
		strings:   []string{""}, // id 0 terminates menu arrays
		stringIDs: make(map[string]int),
		funcs:     make(map[string]int),
		labels:    make(map[string]bool),
		used:      make(map[string]bool),
	}
	g.cur = &g.main
	return g
}

func (g *codeGen) emit(line string) {
	*g.cur = append(*g.cur, "\t"+line)
}

func (g *codeGen) emitf(format string, args ...interface{}) {
	g.emit(fmt.Sprintf(format, args...))
}

func (g *codeGen) emitLabel(name string) {
	*g.cur = append(*g.cur, name+":")
}

func (g *codeGen) newLabel() string {
	g.labelN++
	return fmt.Sprintf("__L%d", g.labelN)
}

// intern returns the string id for a literal, adding it on first use.
func (g *codeGen) intern(s string) int {
	if id, ok := g.stringIDs[s]; ok {
		return id
	}
	id := len(g.strings)
	g.strings = append(g.strings, s)
	g.stringIDs[s] = id
	return id
}

// genScript drives the whole translation: declarations first, then main
// code bracketed by START and EXIT_OP, then function bodies.
func (g *codeGen) genScript(script *Script) error {
	for _, stmt := range script.Stmts {
		switch s := stmt.(type) {
		case *FuncDecl:
			if _, dup := g.funcs[s.Name]; dup {
				return compileErrorf(s.Pos(), "function %q already defined", s.Name)
			}
			if _, isBuiltin := builtins[s.Name]; isBuiltin {
				return compileErrorf(s.Pos(), "function %q shadows a built-in", s.Name)
			}
			g.funcs[s.Name] = len(s.Params)
		case *LabelStmt:
			if g.labels[s.Name] {
				return compileErrorf(s.Pos(), "label %q already defined", s.Name)
			}
			g.labels[s.Name] = true
		}
	}

	g.emit("START")
	for _, stmt := range script.Stmts {
		if _, isFn := stmt.(*FuncDecl); isFn {
			continue
		}
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	g.emit("EXIT_OP")

	g.cur = &g.fns
	for _, stmt := range script.Stmts {
		if fn, ok := stmt.(*FuncDecl); ok {
			if err := g.genFunction(fn); err != nil {
				return err
			}
		}
	}
	g.cur = &g.main
	return nil
}

func (g *codeGen) genFunction(fn *FuncDecl) error {
	fs := newFuncScope(fn.Params)
	g.fn = fs
	defer func() { g.fn = nil }()

	if err := g.declareLocals(fn.Body); err != nil {
		return err
	}

	g.emitLabel("fn_" + fn.Name)
	g.emit("PUSHBP")
	g.emit("SPTOBP")
	if n := fs.localCells(); n > 0 {
		g.emitf("PUSHI %d", n)
		g.emit("ADDSP")
	}
	for _, stmt := range fn.Body {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	// Implicit return 0 for bodies that fall off the end.
	g.emit("PUSHI 0")
	g.emit("SAVE_REG")
	g.emit("BPTOSP")
	g.emit("POPBP")
	g.emit("RET")
	return nil
}

// declareLocals allocates every local a function body will use, so the
// prologue can reserve them with one ADDSP before any statement runs.
func (g *codeGen) declareLocals(body []Stmt) error {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *LetStmt:
			if g.fn.lookup(s.Name) != nil {
				return compileErrorf(s.Pos(), "variable %q already declared", s.Name)
			}
			size := 1
			if arr, ok := s.Value.(*ArrayLiteral); ok {
				size = len(arr.Elements)
			}
			if g.fn.declare(s.Name, size) == nil {
				return compileErrorf(s.Pos(), "out of variable space declaring %q", s.Name)
			}
		case *AskStmt:
			if err := g.declareResultVar(s.Pos(), s.Var); err != nil {
				return err
			}
		case *MenuStmt:
			if err := g.declareResultVar(s.Pos(), s.Var); err != nil {
				return err
			}
		case *FilterMenuStmt:
			if err := g.declareResultVar(s.Pos(), s.Var); err != nil {
				return err
			}
		case *IfStmt:
			if err := g.declareLocals(s.Then); err != nil {
				return err
			}
			if err := g.declareLocals(s.Else); err != nil {
				return err
			}
		case *WhileStmt:
			if err := g.declareLocals(s.Body); err != nil {
				return err
			}
		case *FuncDecl:
			return compileErrorf(s.Pos(), "nested function %q", s.Name)
		}
	}
	return nil
}

// declareResultVar allocates a menu or ask result variable on first use
// inside a function body.
func (g *codeGen) declareResultVar(pos Position, name string) error {
	if name == "" || g.fn.lookup(name) != nil {
		return nil
	}
	if g.globals.lookup(name) != nil {
		return nil
	}
	if g.fn.declare(name, 1) == nil {
		return compileErrorf(pos, "out of variable space declaring %q", name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *codeGen) genStmt(stmt Stmt) error {
	// Temps are statement scoped.
	g.temps.enter()
	defer g.temps.exit()

	switch s := stmt.(type) {
	case *LetStmt:
		return g.genLet(s)
	case *AssignStmt:
		return g.genAssign(s)
	case *IfStmt:
		return g.genIf(s)
	case *WhileStmt:
		return g.genWhile(s)
	case *GotoStmt:
		if !g.labels[s.Label] {
			return compileErrorf(s.Pos(), "label %q is not defined", s.Label)
		}
		g.emitf("BRA %s", s.Label)
		return nil
	case *LabelStmt:
		g.emitLabel(s.Name)
		return nil
	case *ExitStmt:
		g.emit("EXIT_OP")
		return nil
	case *ReturnStmt:
		return g.genReturn(s)
	case *SayStmt:
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.emit("SAY_OP")
		return nil
	case *AskStmt:
		return g.genAsk(s)
	case *MenuStmt:
		return g.genMenu(s)
	case *FilterMenuStmt:
		return g.genFilterMenu(s)
	case *ExprStmt:
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.emit("POP")
		return nil
	default:
		return compileErrorf(stmt.Pos(), "cannot generate code for this statement")
	}
}

func (g *codeGen) genLet(s *LetStmt) error {
	if arr, ok := s.Value.(*ArrayLiteral); ok {
		v, err := g.declareVar(s.Pos(), s.Name, len(arr.Elements))
		if err != nil {
			return err
		}
		for i, el := range arr.Elements {
			if err := g.genExpr(el); err != nil {
				return err
			}
			g.emitf("PUSHI_EFF %d", v.offset+i)
			g.emit("SWAP")
			g.emit("STO")
		}
		return nil
	}

	v, err := g.declareVar(s.Pos(), s.Name, 1)
	if err != nil {
		return err
	}
	if err := g.genExpr(s.Value); err != nil {
		return err
	}
	v.isString = g.isStringExpr(s.Value)
	g.storeFrame(v.offset)
	return nil
}

// declareVar introduces a variable in the active scope. Function locals
// were already allocated by declareLocals.
func (g *codeGen) declareVar(pos Position, name string, size int) (*variable, error) {
	if g.fn != nil {
		v := g.fn.lookup(name)
		if v == nil {
			return nil, compileErrorf(pos, "internal: local %q missing from declaration pass", name)
		}
		return v, nil
	}
	if g.globals.lookup(name) != nil {
		return nil, compileErrorf(pos, "variable %q already declared", name)
	}
	v := g.globals.declare(name, size)
	if v == nil {
		return nil, compileErrorf(pos, "out of variable space declaring %q", name)
	}
	return v, nil
}

func (g *codeGen) genAssign(s *AssignStmt) error {
	switch target := s.Target.(type) {
	case *Ident:
		v, absolute, err := g.resolve(target.Token.Pos, target.Name)
		if err != nil {
			return err
		}
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		if g.isStringExpr(s.Value) {
			v.isString = true
		}
		if absolute {
			g.storeAbsolute(v.offset)
		} else {
			g.storeFrame(v.offset)
		}
		return nil
	case *IndexExpr:
		v, absolute, err := g.resolve(target.Token.Pos, target.Name)
		if err != nil {
			return err
		}
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.pushBase(v.offset, absolute)
		if err := g.genExpr(target.Index); err != nil {
			return err
		}
		g.emit("OFFSET")
		g.emit("SWAP")
		g.emit("STO")
		return nil
	default:
		return compileErrorf(s.Pos(), "cannot assign to this expression")
	}
}

func (g *codeGen) genIf(s *IfStmt) error {
	if err := g.genExpr(s.Cond); err != nil {
		return err
	}
	end := g.newLabel()
	if len(s.Else) == 0 {
		g.emitf("BEQ %s", end)
		for _, st := range s.Then {
			if err := g.genStmt(st); err != nil {
				return err
			}
		}
		g.emitLabel(end)
		return nil
	}

	elseLabel := g.newLabel()
	g.emitf("BEQ %s", elseLabel)
	for _, st := range s.Then {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	g.emitf("BRA %s", end)
	g.emitLabel(elseLabel)
	for _, st := range s.Else {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	g.emitLabel(end)
	return nil
}

func (g *codeGen) genWhile(s *WhileStmt) error {
	cond := g.newLabel()
	end := g.newLabel()
	g.emitLabel(cond)
	if err := g.genExpr(s.Cond); err != nil {
		return err
	}
	g.emitf("BEQ %s", end)
	for _, st := range s.Body {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	g.emitf("BRA %s", cond)
	g.emitLabel(end)
	return nil
}

func (g *codeGen) genReturn(s *ReturnStmt) error {
	if g.fn == nil {
		return compileErrorf(s.Pos(), "return outside a function")
	}
	if s.Value != nil {
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
	} else {
		g.emit("PUSHI 0")
	}
	g.emit("SAVE_REG")
	g.emit("BPTOSP")
	g.emit("POPBP")
	g.emit("RET")
	return nil
}

func (g *codeGen) genAsk(s *AskStmt) error {
	g.used["babl_ask"] = true
	g.emit("PUSHI 0")
	g.emitf("CALLI %d", cnv.FnBablAsk)
	if s.Var == "" {
		return nil
	}
	v, absolute, err := g.resolveResultVar(s.Pos(), s.Var)
	if err != nil {
		return err
	}
	v.isString = true
	g.emit("PUSH_REG")
	if absolute {
		g.storeAbsolute(v.offset)
	} else {
		g.storeFrame(v.offset)
	}
	return nil
}

func (g *codeGen) genMenu(s *MenuStmt) error {
	g.used["babl_menu"] = true
	arr := g.temps.alloc(len(s.Items) + 1)
	if arr < 0 {
		return compileErrorf(s.Pos(), "menu too large for temp space")
	}
	for i, item := range s.Items {
		if err := g.genExpr(item); err != nil {
			return err
		}
		g.emitf("PUSHI_EFF %d", arr+i)
		g.emit("SWAP")
		g.emit("STO")
	}
	g.emit("PUSHI 0")
	g.emitf("PUSHI_EFF %d", arr+len(s.Items))
	g.emit("SWAP")
	g.emit("STO")

	g.emitf("PUSHI_EFF %d", arr)
	g.emit("PUSHI 1")
	g.emitf("CALLI %d", cnv.FnBablMenu)
	return g.storeChoice(s.Pos(), s.Var)
}

func (g *codeGen) genFilterMenu(s *FilterMenuStmt) error {
	g.used["babl_fmenu"] = true
	items := g.temps.alloc(len(s.Items) + 1)
	flags := g.temps.alloc(len(s.Flags))
	if items < 0 || flags < 0 {
		return compileErrorf(s.Pos(), "filtermenu too large for temp space")
	}
	for i := range s.Items {
		if err := g.genExpr(s.Items[i]); err != nil {
			return err
		}
		g.emitf("PUSHI_EFF %d", items+i)
		g.emit("SWAP")
		g.emit("STO")
		if err := g.genExpr(s.Flags[i]); err != nil {
			return err
		}
		g.emitf("PUSHI_EFF %d", flags+i)
		g.emit("SWAP")
		g.emit("STO")
	}
	g.emit("PUSHI 0")
	g.emitf("PUSHI_EFF %d", items+len(s.Items))
	g.emit("SWAP")
	g.emit("STO")

	// Arguments go on the stack in reverse, so the option array is on top.
	g.emitf("PUSHI_EFF %d", flags)
	g.emitf("PUSHI_EFF %d", items)
	g.emit("PUSHI 2")
	g.emitf("CALLI %d", cnv.FnBablFMenu)
	return g.storeChoice(s.Pos(), s.Var)
}

// storeChoice saves the result register into a menu result variable.
func (g *codeGen) storeChoice(pos Position, name string) error {
	if name == "" {
		return nil
	}
	v, absolute, err := g.resolveResultVar(pos, name)
	if err != nil {
		return err
	}
	g.emit("PUSH_REG")
	if absolute {
		g.storeAbsolute(v.offset)
	} else {
		g.storeFrame(v.offset)
	}
	return nil
}

// resolveResultVar finds or auto-declares the target of ask or menu.
func (g *codeGen) resolveResultVar(pos Position, name string) (*variable, bool, error) {
	if v, absolute, err := g.resolve(pos, name); err == nil {
		return v, absolute, nil
	}
	if g.fn != nil {
		return nil, false, compileErrorf(pos, "internal: local %q missing from declaration pass", name)
	}
	v := g.globals.declare(name, 1)
	if v == nil {
		return nil, false, compileErrorf(pos, "out of variable space declaring %q", name)
	}
	return v, false, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// resolve finds a variable. Inside a function, main-program globals are
// reached by absolute address since the frame pointer no longer points at
// the global area; the second result reports that addressing mode.
func (g *codeGen) resolve(pos Position, name string) (*variable, bool, error) {
	if g.fn != nil {
		if v := g.fn.lookup(name); v != nil {
			return v, false, nil
		}
		if v := g.globals.lookup(name); v != nil {
			return v, true, nil
		}
		return nil, false, compileErrorf(pos, "undefined variable %q", name)
	}
	if v := g.globals.lookup(name); v != nil {
		return v, false, nil
	}
	return nil, false, compileErrorf(pos, "undefined variable %q", name)
}

// absoluteAddr converts a global's frame offset to its memory address.
func (g *codeGen) absoluteAddr(offset int) int {
	return int(g.opts.MemorySlots) + offset
}

func (g *codeGen) pushBase(offset int, absolute bool) {
	if absolute {
		g.emitf("PUSHI %d", g.absoluteAddr(offset))
	} else {
		g.emitf("PUSHI_EFF %d", offset)
	}
}

// storeFrame stores the value on top of the stack at a frame offset.
func (g *codeGen) storeFrame(offset int) {
	g.emitf("PUSHI_EFF %d", offset)
	g.emit("SWAP")
	g.emit("STO")
}

// storeAbsolute stores the value on top of the stack at a memory address.
func (g *codeGen) storeAbsolute(offset int) {
	g.emitf("PUSHI %d", g.absoluteAddr(offset))
	g.emit("SWAP")
	g.emit("STO")
}

// isStringExpr reports whether an expression yields a string id.
func (g *codeGen) isStringExpr(e Expr) bool {
	switch v := e.(type) {
	case *StringLiteral:
		return true
	case *Ident:
		if g.fn != nil {
			if fv := g.fn.lookup(v.Name); fv != nil {
				return fv.isString
			}
		}
		if gv := g.globals.lookup(v.Name); gv != nil {
			return gv.isString
		}
		return false
	case *CallExpr:
		if b, ok := builtins[v.Name]; ok {
			return b.ret == cnv.RetString
		}
		return false
	case *BinaryExpr:
		return v.Token.Type == TokenPlus &&
			(g.isStringExpr(v.Left) || g.isStringExpr(v.Right))
	default:
		return false
	}
}

var binaryOps = map[TokenType]string{
	TokenPlus:    "OPADD",
	TokenMinus:   "OPSUB",
	TokenStar:    "OPMUL",
	TokenSlash:   "OPDIV",
	TokenPercent: "OPMOD",
	TokenEq:      "TSTEQ",
	TokenNe:      "TSTNE",
	TokenLt:      "TSTLT",
	TokenLe:      "TSTLE",
	TokenGt:      "TSTGT",
	TokenGe:      "TSTGE",
	TokenAnd:     "OPAND",
	TokenOr:      "OPOR",
}

func (g *codeGen) genExpr(e Expr) error {
	switch v := e.(type) {
	case *IntLiteral:
		g.emitf("PUSHI %d", v.Value)
		return nil
	case *StringLiteral:
		g.emitf("PUSHI %d", g.intern(v.Value))
		return nil
	case *Ident:
		va, absolute, err := g.resolve(v.Pos(), v.Name)
		if err != nil {
			return err
		}
		g.pushBase(va.offset, absolute)
		g.emit("FETCHM")
		return nil
	case *IndexExpr:
		va, absolute, err := g.resolve(v.Pos(), v.Name)
		if err != nil {
			return err
		}
		g.pushBase(va.offset, absolute)
		if err := g.genExpr(v.Index); err != nil {
			return err
		}
		g.emit("OFFSET")
		g.emit("FETCHM")
		return nil
	case *UnaryExpr:
		if err := g.genExpr(v.Operand); err != nil {
			return err
		}
		if v.Token.Type == TokenMinus {
			g.emit("OPNEG")
		} else {
			g.emit("OPNOT")
		}
		return nil
	case *BinaryExpr:
		return g.genBinary(v)
	case *CallExpr:
		return g.genCall(v)
	case *ArrayLiteral:
		return compileErrorf(v.Pos(), "array literal is only legal as a let initializer")
	default:
		return compileErrorf(e.Pos(), "cannot generate code for this expression")
	}
}

func (g *codeGen) genBinary(v *BinaryExpr) error {
	if v.Token.Type == TokenPlus && (g.isStringExpr(v.Left) || g.isStringExpr(v.Right)) {
		return g.genStringConcat(v)
	}
	if err := g.genExpr(v.Left); err != nil {
		return err
	}
	if err := g.genExpr(v.Right); err != nil {
		return err
	}
	g.emit(binaryOps[v.Token.Type])
	return nil
}

// genStringConcat rewrites a chain of string-plus operands into a single
// literal carrying substitution tokens, resolved by the host when the
// text is displayed. No string concatenation happens at run time.
func (g *codeGen) genStringConcat(v *BinaryExpr) error {
	text, hasLit, err := g.concatText(v)
	if err != nil {
		return err
	}
	if !hasLit {
		return compileErrorf(v.Pos(), "string concatenation needs a string literal operand")
	}
	g.emitf("PUSHI %d", g.intern(text))
	return nil
}

// concatText flattens a concat chain into literal text and substitution
// tokens. The bool reports whether any plain string literal appeared.
func (g *codeGen) concatText(e Expr) (string, bool, error) {
	switch o := e.(type) {
	case *StringLiteral:
		return o.Value, true, nil
	case *Ident:
		token, err := g.substToken(o)
		return token, false, err
	case *CallExpr:
		b, ok := builtins[o.Name]
		if !ok || b.ret == cnv.RetVoid {
			break
		}
		// Stage the result in a temp cell the display token can read.
		cell := g.temps.alloc(1)
		if cell < 0 {
			return "", false, compileErrorf(o.Pos(), "out of temp space calling %q", o.Name)
		}
		if err := g.genCall(o); err != nil {
			return "", false, err
		}
		g.emitf("PUSHI_EFF %d", cell)
		g.emit("SWAP")
		g.emit("STO")
		kind := "I"
		if b.ret == cnv.RetString {
			kind = "S"
		}
		return fmt.Sprintf("@S%s%d", kind, cell), false, nil
	case *BinaryExpr:
		if o.Token.Type != TokenPlus {
			break
		}
		left, litL, err := g.concatText(o.Left)
		if err != nil {
			return "", false, err
		}
		right, litR, err := g.concatText(o.Right)
		if err != nil {
			return "", false, err
		}
		return left + right, litL || litR, nil
	}
	return "", false, compileErrorf(e.Pos(), "only a variable can be joined to a string literal")
}

// substToken builds the display-time substitution token for a variable:
// @S for frame-relative cells, @G for absolute globals, with I or S for
// the value kind.
func (g *codeGen) substToken(ident *Ident) (string, error) {
	v, absolute, err := g.resolve(ident.Pos(), ident.Name)
	if err != nil {
		return "", err
	}
	kind := "I"
	if v.isString {
		kind = "S"
	}
	if absolute {
		return fmt.Sprintf("@G%s%d", kind, g.absoluteAddr(v.offset)), nil
	}
	return fmt.Sprintf("@S%s%d", kind, v.offset), nil
}

func (g *codeGen) genCall(v *CallExpr) error {
	if b, ok := builtins[v.Name]; ok {
		return g.genBuiltinCall(v, b)
	}
	params, ok := g.funcs[v.Name]
	if !ok {
		return compileErrorf(v.Pos(), "undefined function %q", v.Name)
	}
	if len(v.Args) != params {
		return compileErrorf(v.Pos(), "function %q takes %d arguments, got %d", v.Name, params, len(v.Args))
	}
	// Arguments push in reverse so the first parameter sits nearest the
	// frame; the caller pops them back off after the call.
	for i := len(v.Args) - 1; i >= 0; i-- {
		if err := g.genExpr(v.Args[i]); err != nil {
			return err
		}
	}
	g.emitf("CALL fn_%s", v.Name)
	for range v.Args {
		g.emit("POP")
	}
	g.emit("PUSH_REG")
	return nil
}

// genBuiltinCall stages each argument in a temp cell and passes the cell
// addresses, since imported functions take their arguments by reference.
func (g *codeGen) genBuiltinCall(v *CallExpr, b builtin) error {
	g.used[v.Name] = true
	cells := make([]int, len(v.Args))
	for i, arg := range v.Args {
		cell := g.temps.alloc(1)
		if cell < 0 {
			return compileErrorf(v.Pos(), "out of temp space calling %q", v.Name)
		}
		cells[i] = cell
		if err := g.genExpr(arg); err != nil {
			return err
		}
		g.emitf("PUSHI_EFF %d", cell)
		g.emit("SWAP")
		g.emit("STO")
	}
	for i := len(cells) - 1; i >= 0; i-- {
		g.emitf("PUSHI_EFF %d", cells[i])
	}
	g.emitf("PUSHI %d", len(cells))
	g.emitf("CALLI %d", b.id)
	g.emit("PUSH_REG")
	return nil
}

// ---------------------------------------------------------------------------
// Assembly output
// ---------------------------------------------------------------------------

// assemblyText renders the generated program, with the header metadata and
// import table the assembler folds into the record.
func (g *codeGen) assemblyText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "; slot: %d\n", g.opts.Slot)
	fmt.Fprintf(&b, "; string_block: %d\n", g.opts.StringBlock)
	fmt.Fprintf(&b, "; memory_slots: %d\n", g.opts.MemorySlots)

	names := make([]string, 0, len(g.used))
	for name := range g.used {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return builtins[names[i]].id < builtins[names[j]].id
	})
	for _, name := range names {
		info := builtins[name]
		ret := "void"
		switch info.ret {
		case cnv.RetInt:
			ret = "int"
		case cnv.RetString:
			ret = "string"
		}
		fmt.Fprintf(&b, "; import: function %q id=%d ret=%s\n", name, info.id, ret)
	}
	b.WriteString("\n")
	for _, line := range g.main {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, line := range g.fns {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
