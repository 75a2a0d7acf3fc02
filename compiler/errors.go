package compiler

import "fmt"

// CompileError is a positional, terminal compilation error.
type CompileError struct {
	Line   int
	Column int
	Msg    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Msg)
}

func compileErrorf(pos Position, format string, args ...interface{}) *CompileError {
	return &CompileError{Line: pos.Line, Column: pos.Column, Msg: fmt.Sprintf(format, args...)}
}
