package cnv

import "fmt"

// DecodeError reports a malformed container or conversation record.
// Offset is a byte offset into the input except where the message says
// otherwise (code decoding reports word addresses).
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Msg)
}

func decodeErrorf(offset int, format string, args ...interface{}) error {
	return &DecodeError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// AssembleError reports a problem in assembly source, with a one-based
// source line number.
type AssembleError struct {
	Line int
	Msg  string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func assembleErrorf(line int, format string, args ...interface{}) error {
	return &AssembleError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
