package compiler

// Position represents a location in source code.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt()
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// IntLiteral is an integer literal. True and false parse to 1 and 0.
type IntLiteral struct {
	Token Token
	Value int
}

// StringLiteral is a double-quoted string literal.
type StringLiteral struct {
	Token Token
	Value string
}

// Ident is a variable reference.
type Ident struct {
	Token Token
	Name  string
}

// ArrayLiteral is a bracketed element list, legal only as a let initializer.
type ArrayLiteral struct {
	Token    Token
	Elements []Expr
}

// IndexExpr is a one-based array element access.
type IndexExpr struct {
	Token Token
	Name  string
	Index Expr
}

// UnaryExpr is negation or logical not.
type UnaryExpr struct {
	Token   Token // the operator
	Operand Expr
}

// BinaryExpr is an infix operation. Addition with a string literal operand
// is string substitution, resolved during code generation.
type BinaryExpr struct {
	Token Token // the operator
	Left  Expr
	Right Expr
}

// CallExpr invokes a built-in or script function.
type CallExpr struct {
	Token Token
	Name  string
	Args  []Expr
}

func (n *IntLiteral) Pos() Position    { return n.Token.Pos }
func (n *StringLiteral) Pos() Position { return n.Token.Pos }
func (n *Ident) Pos() Position         { return n.Token.Pos }
func (n *ArrayLiteral) Pos() Position  { return n.Token.Pos }
func (n *IndexExpr) Pos() Position     { return n.Token.Pos }
func (n *UnaryExpr) Pos() Position     { return n.Token.Pos }
func (n *BinaryExpr) Pos() Position    { return n.Token.Pos }
func (n *CallExpr) Pos() Position      { return n.Token.Pos }

func (*IntLiteral) node()    {}
func (*StringLiteral) node() {}
func (*Ident) node()         {}
func (*ArrayLiteral) node()  {}
func (*IndexExpr) node()     {}
func (*UnaryExpr) node()     {}
func (*BinaryExpr) node()    {}
func (*CallExpr) node()      {}

func (*IntLiteral) expr()    {}
func (*StringLiteral) expr() {}
func (*Ident) expr()         {}
func (*ArrayLiteral) expr()  {}
func (*IndexExpr) expr()     {}
func (*UnaryExpr) expr()     {}
func (*BinaryExpr) expr()    {}
func (*CallExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// LetStmt declares a variable, optionally with an array initializer.
type LetStmt struct {
	Token Token
	Name  string
	Value Expr
}

// AssignStmt stores into a declared variable or array element.
type AssignStmt struct {
	Token  Token
	Target Expr // *Ident or *IndexExpr
	Value  Expr
}

// IfStmt is an if/elseif/else/endif chain. Elifs nest as the Else branch.
type IfStmt struct {
	Token Token
	Cond  Expr
	Then  []Stmt
	Else  []Stmt
}

// WhileStmt is a while/endwhile loop.
type WhileStmt struct {
	Token Token
	Cond  Expr
	Body  []Stmt
}

// GotoStmt jumps to a script label.
type GotoStmt struct {
	Token Token
	Label string
}

// LabelStmt declares a jump target.
type LabelStmt struct {
	Token Token
	Name  string
}

// ExitStmt ends the conversation.
type ExitStmt struct {
	Token Token
}

// FuncDecl declares a script function.
type FuncDecl struct {
	Token  Token
	Name   string
	Params []string
	Body   []Stmt
}

// ReturnStmt returns from a function, with 0 when no value is given.
type ReturnStmt struct {
	Token Token
	Value Expr
}

// SayStmt displays conversation text.
type SayStmt struct {
	Token Token
	Value Expr
}

// AskStmt prompts for free text, storing the resulting string id.
type AskStmt struct {
	Token Token
	Var   string // empty to discard the result
}

// MenuStmt presents dialogue options and stores the one-based choice.
type MenuStmt struct {
	Token Token
	Var   string // empty to discard the choice
	Items []Expr
}

// FilterMenuStmt is a menu with a parallel enable flag per option. The
// stored choice is the option's position in the unfiltered list.
type FilterMenuStmt struct {
	Token Token
	Var   string
	Items []Expr
	Flags []Expr
}

// ExprStmt evaluates a call for its effect and discards the result.
type ExprStmt struct {
	Token Token
	Value Expr
}

// Script is a parsed source file.
type Script struct {
	Stmts []Stmt
}

func (n *LetStmt) Pos() Position        { return n.Token.Pos }
func (n *AssignStmt) Pos() Position     { return n.Token.Pos }
func (n *IfStmt) Pos() Position         { return n.Token.Pos }
func (n *WhileStmt) Pos() Position      { return n.Token.Pos }
func (n *GotoStmt) Pos() Position       { return n.Token.Pos }
func (n *LabelStmt) Pos() Position      { return n.Token.Pos }
func (n *ExitStmt) Pos() Position       { return n.Token.Pos }
func (n *FuncDecl) Pos() Position       { return n.Token.Pos }
func (n *ReturnStmt) Pos() Position     { return n.Token.Pos }
func (n *SayStmt) Pos() Position        { return n.Token.Pos }
func (n *AskStmt) Pos() Position        { return n.Token.Pos }
func (n *MenuStmt) Pos() Position       { return n.Token.Pos }
func (n *FilterMenuStmt) Pos() Position { return n.Token.Pos }
func (n *ExprStmt) Pos() Position       { return n.Token.Pos }

func (*LetStmt) node()        {}
func (*AssignStmt) node()     {}
func (*IfStmt) node()         {}
func (*WhileStmt) node()      {}
func (*GotoStmt) node()       {}
func (*LabelStmt) node()      {}
func (*ExitStmt) node()       {}
func (*FuncDecl) node()       {}
func (*ReturnStmt) node()     {}
func (*SayStmt) node()        {}
func (*AskStmt) node()        {}
func (*MenuStmt) node()       {}
func (*FilterMenuStmt) node() {}
func (*ExprStmt) node()       {}

func (*LetStmt) stmt()        {}
func (*AssignStmt) stmt()     {}
func (*IfStmt) stmt()         {}
func (*WhileStmt) stmt()      {}
func (*GotoStmt) stmt()       {}
func (*LabelStmt) stmt()      {}
func (*ExitStmt) stmt()       {}
func (*FuncDecl) stmt()       {}
func (*ReturnStmt) stmt()     {}
func (*SayStmt) stmt()        {}
func (*AskStmt) stmt()        {}
func (*MenuStmt) stmt()       {}
func (*FilterMenuStmt) stmt() {}
func (*ExprStmt) stmt()       {}
