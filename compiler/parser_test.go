package compiler

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	script, err := NewParser(src).ParseScript()
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	return script
}

func TestParseLet(t *testing.T) {
	script := mustParse(t, "let x = 5\n")
	if len(script.Stmts) != 1 {
		t.Fatalf("statements = %d, want 1", len(script.Stmts))
	}
	let, ok := script.Stmts[0].(*LetStmt)
	if !ok {
		t.Fatalf("statement is %T, want *LetStmt", script.Stmts[0])
	}
	if let.Name != "x" {
		t.Errorf("name = %q, want x", let.Name)
	}
	lit, ok := let.Value.(*IntLiteral)
	if !ok || lit.Value != 5 {
		t.Errorf("value = %#v, want IntLiteral 5", let.Value)
	}
}

func TestParseLetArray(t *testing.T) {
	script := mustParse(t, "let arr = [1, 2, 3]\n")
	let := script.Stmts[0].(*LetStmt)
	arr, ok := let.Value.(*ArrayLiteral)
	if !ok {
		t.Fatalf("value is %T, want *ArrayLiteral", let.Value)
	}
	if len(arr.Elements) != 3 {
		t.Errorf("elements = %d, want 3", len(arr.Elements))
	}
}

func TestParsePrecedence(t *testing.T) {
	script := mustParse(t, "let x = 1 + 2 * 3\n")
	let := script.Stmts[0].(*LetStmt)
	add, ok := let.Value.(*BinaryExpr)
	if !ok || add.Token.Type != TokenPlus {
		t.Fatalf("top operator = %#v, want +", let.Value)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Token.Type != TokenStar {
		t.Errorf("right operand = %#v, want * expression", add.Right)
	}
}

func TestParseLogicalPrecedence(t *testing.T) {
	// or binds looser than and.
	script := mustParse(t, "let x = a and b or c\n")
	let := script.Stmts[0].(*LetStmt)
	or, ok := let.Value.(*BinaryExpr)
	if !ok || or.Token.Type != TokenOr {
		t.Fatalf("top operator = %#v, want or", let.Value)
	}
	and, ok := or.Left.(*BinaryExpr)
	if !ok || and.Token.Type != TokenAnd {
		t.Errorf("left operand = %#v, want and expression", or.Left)
	}
}

func TestParseIfChain(t *testing.T) {
	src := `
if x == 1
	say 1
elseif x == 2
	say 2
else
	say 3
endif
`
	script := mustParse(t, src)
	outer, ok := script.Stmts[0].(*IfStmt)
	if !ok {
		t.Fatalf("statement is %T, want *IfStmt", script.Stmts[0])
	}
	if len(outer.Then) != 1 || len(outer.Else) != 1 {
		t.Fatalf("then = %d stmts, else = %d stmts; want 1 and 1", len(outer.Then), len(outer.Else))
	}
	inner, ok := outer.Else[0].(*IfStmt)
	if !ok {
		t.Fatalf("elseif did not nest: else[0] is %T", outer.Else[0])
	}
	if len(inner.Then) != 1 || len(inner.Else) != 1 {
		t.Errorf("nested if: then = %d, else = %d; want 1 and 1", len(inner.Then), len(inner.Else))
	}
}

func TestParseWhile(t *testing.T) {
	script := mustParse(t, "while x < 10\n\tx = x + 1\nendwhile\n")
	loop, ok := script.Stmts[0].(*WhileStmt)
	if !ok {
		t.Fatalf("statement is %T, want *WhileStmt", script.Stmts[0])
	}
	if len(loop.Body) != 1 {
		t.Errorf("body = %d statements, want 1", len(loop.Body))
	}
	if _, ok := loop.Body[0].(*AssignStmt); !ok {
		t.Errorf("body[0] is %T, want *AssignStmt", loop.Body[0])
	}
}

func TestParseFunction(t *testing.T) {
	script := mustParse(t, "function greet(name, times)\n\treturn times\nendfunction\n")
	fn, ok := script.Stmts[0].(*FuncDecl)
	if !ok {
		t.Fatalf("statement is %T, want *FuncDecl", script.Stmts[0])
	}
	if fn.Name != "greet" || len(fn.Params) != 2 {
		t.Errorf("decl = %s(%v), want greet with 2 params", fn.Name, fn.Params)
	}
	ret, ok := fn.Body[0].(*ReturnStmt)
	if !ok || ret.Value == nil {
		t.Errorf("body[0] = %#v, want return with value", fn.Body[0])
	}
}

func TestParseMenu(t *testing.T) {
	script := mustParse(t, "menu choice [\"Yes\", \"No\"]\n")
	m, ok := script.Stmts[0].(*MenuStmt)
	if !ok {
		t.Fatalf("statement is %T, want *MenuStmt", script.Stmts[0])
	}
	if m.Var != "choice" || len(m.Items) != 2 {
		t.Errorf("menu = var %q, %d items; want choice with 2", m.Var, len(m.Items))
	}
}

func TestParseMenuMultiline(t *testing.T) {
	src := "menu choice [\n\t\"Yes\",\n\t\"No\"\n]\n"
	script := mustParse(t, src)
	m := script.Stmts[0].(*MenuStmt)
	if len(m.Items) != 2 {
		t.Errorf("items = %d, want 2", len(m.Items))
	}
}

func TestParseFilterMenu(t *testing.T) {
	script := mustParse(t, "filtermenu c [\"A\", 1, \"B\", flag]\n")
	fm, ok := script.Stmts[0].(*FilterMenuStmt)
	if !ok {
		t.Fatalf("statement is %T, want *FilterMenuStmt", script.Stmts[0])
	}
	if len(fm.Items) != 2 || len(fm.Flags) != 2 {
		t.Errorf("items = %d, flags = %d; want 2 and 2", len(fm.Items), len(fm.Flags))
	}
}

func TestParseFilterMenuOddList(t *testing.T) {
	_, err := NewParser("filtermenu c [\"A\", 1, \"B\"]\n").ParseScript()
	if err == nil {
		t.Fatal("expected error for odd item list")
	}
	if !strings.Contains(err.Error(), "enable flag") {
		t.Errorf("error = %v, want mention of enable flag", err)
	}
}

func TestParseAskAndSay(t *testing.T) {
	script := mustParse(t, "say \"name?\"\nask answer\nask\n")
	if _, ok := script.Stmts[0].(*SayStmt); !ok {
		t.Errorf("stmt[0] is %T, want *SayStmt", script.Stmts[0])
	}
	ask := script.Stmts[1].(*AskStmt)
	if ask.Var != "answer" {
		t.Errorf("ask var = %q, want answer", ask.Var)
	}
	bare := script.Stmts[2].(*AskStmt)
	if bare.Var != "" {
		t.Errorf("bare ask var = %q, want empty", bare.Var)
	}
}

func TestParseGotoAndLabel(t *testing.T) {
	script := mustParse(t, "label start\ngoto start\nexit\n")
	if lbl := script.Stmts[0].(*LabelStmt); lbl.Name != "start" {
		t.Errorf("label = %q, want start", lbl.Name)
	}
	if g := script.Stmts[1].(*GotoStmt); g.Label != "start" {
		t.Errorf("goto = %q, want start", g.Label)
	}
	if _, ok := script.Stmts[2].(*ExitStmt); !ok {
		t.Errorf("stmt[2] is %T, want *ExitStmt", script.Stmts[2])
	}
}

func TestParseIndexAssignment(t *testing.T) {
	script := mustParse(t, "arr[2] = 7\n")
	assign := script.Stmts[0].(*AssignStmt)
	idx, ok := assign.Target.(*IndexExpr)
	if !ok || idx.Name != "arr" {
		t.Fatalf("target = %#v, want arr[...]", assign.Target)
	}
}

func TestParseCallStatement(t *testing.T) {
	script := mustParse(t, "set_quest(1, 4)\n")
	es, ok := script.Stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("statement is %T, want *ExprStmt", script.Stmts[0])
	}
	call, ok := es.Value.(*CallExpr)
	if !ok || call.Name != "set_quest" || len(call.Args) != 2 {
		t.Errorf("call = %#v, want set_quest with 2 args", es.Value)
	}
}

func TestParseErrorsReportLine(t *testing.T) {
	_, err := NewParser("let x = 1\nlet = 2\n").ParseScript()
	if err == nil {
		t.Fatal("expected parse error")
	}
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("error is %T, want *CompileError", err)
	}
	if ce.Line != 2 {
		t.Errorf("error line = %d, want 2", ce.Line)
	}
}

func TestParseTrueFalse(t *testing.T) {
	script := mustParse(t, "let a = true\nlet b = false\n")
	if v := script.Stmts[0].(*LetStmt).Value.(*IntLiteral); v.Value != 1 {
		t.Errorf("true = %d, want 1", v.Value)
	}
	if v := script.Stmts[1].(*LetStmt).Value.(*IntLiteral); v.Value != 0 {
		t.Errorf("false = %d, want 0", v.Value)
	}
}
