package compiler

// ---------------------------------------------------------------------------
// Variable and temp cell allocation
// ---------------------------------------------------------------------------

// tempBase is the frame-relative offset where statement temp cells begin.
// Script variables in a scope must stay below it.
const tempBase = 256

// tempLimit caps the temp area; the stack begins at frame offset 512.
const tempLimit = 512

// variable is one allocated script variable.
type variable struct {
	offset   int  // frame-relative cell offset; negative for parameters
	size     int  // cells, >1 for arrays
	isString bool // holds a string id, for say substitution
}

// scope allocates main-program globals sequentially from frame offset 0.
type scope struct {
	vars map[string]*variable
	next int
}

func newScope() *scope {
	return &scope{vars: make(map[string]*variable)}
}

func (s *scope) lookup(name string) *variable {
	return s.vars[name]
}

// declare allocates cells for a new variable. Returns nil when the scope's
// variable area would overflow into the temp area.
func (s *scope) declare(name string, size int) *variable {
	if s.next+size > tempBase {
		return nil
	}
	v := &variable{offset: s.next, size: size}
	s.vars[name] = v
	s.next += size
	return v
}

// funcScope tracks one function's parameters and locals. Parameters sit at
// negative frame offsets: the last argument is pushed first, so parameter i
// lands at -(3+i) under the saved frame pointer and return address. Locals
// are reserved by ADDSP and run upward from offset 0.
type funcScope struct {
	scope
	params int
}

func newFuncScope(params []string) *funcScope {
	fs := &funcScope{scope: *newScope(), params: len(params)}
	for i, name := range params {
		fs.vars[name] = &variable{offset: -(3 + i), size: 1}
	}
	return fs
}

// localCells returns how many cells the function prologue must reserve.
func (fs *funcScope) localCells() int {
	return fs.next
}

// tempAlloc hands out statement-scoped temp cells linearly. Statement entry
// marks the watermark and statement exit restores it, so temps never
// overlap while a statement is still evaluating and are reclaimed as soon
// as it finishes.
type tempAlloc struct {
	next  int
	marks []int
}

func newTempAlloc() *tempAlloc {
	return &tempAlloc{next: tempBase}
}

func (t *tempAlloc) enter() {
	t.marks = append(t.marks, t.next)
}

func (t *tempAlloc) exit() {
	n := len(t.marks) - 1
	t.next = t.marks[n]
	t.marks = t.marks[:n]
}

// alloc reserves size contiguous temp cells. Returns -1 on overflow.
func (t *tempAlloc) alloc(size int) int {
	if t.next+size > tempLimit {
		return -1
	}
	off := t.next
	t.next += size
	return off
}
