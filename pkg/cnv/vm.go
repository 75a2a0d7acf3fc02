package cnv

import (
	"errors"
	"fmt"
)

// MemorySize is the addressable cell count; addresses are 16-bit.
const MemorySize = 65536

// DefaultStepBudget bounds how many instructions one Run call may execute
// before yielding back to the host. Exceeding it is not an error; the VM
// stays runnable.
const DefaultStepBudget = 5000

// stackOffset places the stack base this many cells above the base pointer,
// leaving room for script statics and temp cells.
const stackOffset = 512

// VMState tracks where a conversation is in its lifecycle.
type VMState int

const (
	StateReady   VMState = iota // loaded, not yet stepped
	StateRunning                // executing
	StateWaiting                // suspended in a dialogue import, needs Resume
	StateHalted                 // EXIT_OP reached
	StateFaulted                // terminal error, see Fault
)

func (s VMState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// FaultReason classifies terminal VM errors.
type FaultReason int

const (
	FaultUnknownOpcode FaultReason = iota
	FaultUnsupportedOpcode
	FaultStackUnderflow
	FaultStackOverflow
	FaultBadAddress
	FaultBadReturn
	FaultDivideByZero
	FaultUnknownImport
	FaultImportFailed
)

func (r FaultReason) String() string {
	switch r {
	case FaultUnknownOpcode:
		return "unknown opcode"
	case FaultUnsupportedOpcode:
		return "unsupported opcode"
	case FaultStackUnderflow:
		return "stack underflow"
	case FaultStackOverflow:
		return "stack overflow"
	case FaultBadAddress:
		return "address out of range"
	case FaultBadReturn:
		return "unmatched RET"
	case FaultDivideByZero:
		return "division by zero"
	case FaultUnknownImport:
		return "unknown imported function"
	case FaultImportFailed:
		return "imported function failed"
	}
	return "fault"
}

// Fault is a terminal VM error with the program counter where it happened.
type Fault struct {
	Reason FaultReason
	PC     int
	Op     Opcode
	Detail string
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s at pc %d (%s)", f.Reason, f.PC, f.Op)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

// Listener receives conversation output from the VM. String ids are not
// resolved by the VM; the host looks them up and applies text substitution
// at display time.
type Listener interface {
	// OnSay is called when SAY_OP emits a string id.
	OnSay(stringID uint16)
	// OnMenu presents dialogue options before the VM suspends for input.
	// Each option keeps its original one-based position, which is what
	// Resume must be called with.
	OnMenu(options []MenuOption)
	// OnAsk signals a free-text prompt before the VM suspends for input.
	OnAsk()
}

// MenuOption is one dialogue choice offered by babl_menu or babl_fmenu.
type MenuOption struct {
	Position int    // one-based position in the unfiltered option array
	StringID uint16 // string block index of the option text
}

// Router dispatches CALLI ids to imported function implementations. The VM
// does no argument handling around CALLI; the handler pops what it needs
// and may set the result register or suspend the VM for input.
type Router interface {
	Invoke(vm *VM, id uint16) error
}

// VM executes conversation bytecode over a flat 16-bit cell memory.
// Execution is cooperative: Run returns whenever the conversation halts,
// faults, needs player input, or exhausts its step budget.
type VM struct {
	mem  []uint16
	code []uint16

	pc int
	bp int
	sp int
	rv uint16

	stackBase int
	state     VMState
	fault     *Fault

	router   Router
	listener Listener
}

// NewVM prepares a VM for a decoded conversation. The base pointer starts
// at the top of the conversation's reserved globals; the stack begins
// stackOffset cells above it.
func NewVM(c *Conversation, router Router, listener Listener) *VM {
	bp := int(c.Header.MemorySlots)
	vm := &VM{
		mem:       make([]uint16, MemorySize),
		code:      c.Code,
		bp:        bp,
		sp:        bp + stackOffset,
		stackBase: bp + stackOffset,
		state:     StateReady,
		router:    router,
		listener:  listener,
	}
	return vm
}

// State returns the current lifecycle state.
func (vm *VM) State() VMState { return vm.state }

// Fault returns the terminal fault, nil unless state is StateFaulted.
func (vm *VM) Fault() *Fault { return vm.fault }

// PC returns the current program counter in code words.
func (vm *VM) PC() int { return vm.pc }

// BP returns the current base pointer, needed by the host to resolve
// frame-relative text substitutions.
func (vm *VM) BP() int { return vm.bp }

// Result returns the result register.
func (vm *VM) Result() uint16 { return vm.rv }

// SetResult stores into the result register. Import handlers use this to
// return values to the script.
func (vm *VM) SetResult(v uint16) { vm.rv = v }

// Cell reads one memory cell.
func (vm *VM) Cell(addr uint16) uint16 { return vm.mem[addr] }

// SetCell writes one memory cell.
func (vm *VM) SetCell(addr uint16, v uint16) { vm.mem[addr] = v }

// PopArg pops one value from the operand stack, for import handlers
// consuming their arguments.
func (vm *VM) PopArg() (uint16, error) {
	if vm.sp <= vm.stackBase {
		return 0, fmt.Errorf("argument stack empty")
	}
	vm.sp--
	return vm.mem[vm.sp], nil
}

// AwaitInput suspends the VM for player input. Called by dialogue import
// handlers; the VM stops stepping with the program counter already past the
// CALLI, so Resume continues with the next instruction.
func (vm *VM) AwaitInput() {
	vm.state = StateWaiting
}

// Resume supplies the player's input after a dialogue suspension. The value
// lands in the result register, where the script expects its menu choice.
func (vm *VM) Resume(value uint16) error {
	if vm.state != StateWaiting {
		return fmt.Errorf("resume in state %s", vm.state)
	}
	vm.rv = value
	vm.state = StateRunning
	return nil
}

// Run executes until the conversation halts, faults, suspends for input, or
// maxSteps instructions have run. maxSteps <= 0 means DefaultStepBudget.
// The returned state is StateRunning when only the budget was exhausted;
// calling Run again continues.
func (vm *VM) Run(maxSteps int) (VMState, error) {
	switch vm.state {
	case StateReady:
		vm.state = StateRunning
	case StateRunning:
	case StateWaiting:
		return vm.state, fmt.Errorf("run while waiting for input")
	default:
		return vm.state, fmt.Errorf("run in state %s", vm.state)
	}
	if maxSteps <= 0 {
		maxSteps = DefaultStepBudget
	}
	for i := 0; i < maxSteps && vm.state == StateRunning; i++ {
		if err := vm.Step(); err != nil {
			return vm.state, err
		}
	}
	return vm.state, nil
}

// Step executes exactly one instruction. A returned error is always a
// *Fault and leaves the VM in StateFaulted.
func (vm *VM) Step() error {
	if vm.pc < 0 || vm.pc >= len(vm.code) {
		return vm.faultf(FaultBadAddress, OpNop, "pc %d outside code of %d words", vm.pc, len(vm.code))
	}
	op := Opcode(vm.code[vm.pc])
	if !op.Defined() {
		return vm.faultf(FaultUnknownOpcode, op, "word 0x%04X", vm.code[vm.pc])
	}
	var arg uint16
	if op.HasOperand() {
		if vm.pc+1 >= len(vm.code) {
			return vm.faultf(FaultBadAddress, op, "operand past end of code")
		}
		arg = vm.code[vm.pc+1]
	}

	switch op {

	// --------------------------------------------------------------------
	// Arithmetic and logic
	// --------------------------------------------------------------------

	case OpNop, OpStart:

	case OpAdd:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(a + b)
	case OpMul:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(a * b)
	case OpSub:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(a - b)
	case OpDiv:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		if b == 0 {
			return vm.faultf(FaultDivideByZero, op, "")
		}
		vm.push(uint16(int16(a) / int16(b)))
	case OpMod:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		if b == 0 {
			return vm.faultf(FaultDivideByZero, op, "")
		}
		vm.push(uint16(int16(a) % int16(b)))
	case OpOr:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(boolWord(a != 0 || b != 0))
	case OpAnd:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(boolWord(a != 0 && b != 0))
	case OpNot:
		a, err := vm.pop(op)
		if err != nil {
			return err
		}
		vm.push(boolWord(a == 0))
	case OpNeg:
		a, err := vm.pop(op)
		if err != nil {
			return err
		}
		vm.push(uint16(-int16(a)))

	// --------------------------------------------------------------------
	// Comparisons: signed, s[1] against s[0]
	// --------------------------------------------------------------------

	case OpTstGt, OpTstGe, OpTstLt, OpTstLe, OpTstEq, OpTstNe:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(boolWord(compare(op, int16(a), int16(b))))

	// --------------------------------------------------------------------
	// Control flow
	// --------------------------------------------------------------------

	case OpJmp:
		vm.pc = int(arg)
		return nil
	case OpBeq, OpBne:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		taken := (v == 0) == (op == OpBeq)
		if taken {
			vm.pc += 2 + int(int16(arg))
		} else {
			vm.pc += 2
		}
		return nil
	case OpBra:
		vm.pc += 2 + int(int16(arg))
		return nil
	case OpCall:
		if err := vm.pushChecked(op, uint16(vm.pc+2)); err != nil {
			return err
		}
		vm.pc = int(arg)
		return nil
	case OpCalli:
		// Advance first so a suspended handler resumes past the call.
		vm.pc += 2
		if vm.router == nil {
			return vm.faultf(FaultUnknownImport, op, "id %d with no router", arg)
		}
		if err := vm.router.Invoke(vm, arg); err != nil {
			if errors.Is(err, ErrUnknownImport) {
				return vm.faultf(FaultUnknownImport, op, "id %d", arg)
			}
			return vm.faultf(FaultImportFailed, op, "id %d: %v", arg, err)
		}
		return nil
	case OpRet:
		addr, err := vm.pop(op)
		if err != nil {
			return err
		}
		if int(addr) >= len(vm.code) {
			return vm.faultf(FaultBadReturn, op, "return address %d outside code", addr)
		}
		vm.pc = int(addr)
		return nil

	// --------------------------------------------------------------------
	// Stack and frame
	// --------------------------------------------------------------------

	case OpPushi:
		if err := vm.pushChecked(op, arg); err != nil {
			return err
		}
	case OpPushiEff:
		if err := vm.pushChecked(op, uint16(vm.bp+int(int16(arg)))); err != nil {
			return err
		}
	case OpPop:
		if _, err := vm.pop(op); err != nil {
			return err
		}
	case OpSwap:
		b, a, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(b)
		vm.push(a)
	case OpPushBP:
		if err := vm.pushChecked(op, uint16(vm.bp)); err != nil {
			return err
		}
	case OpPopBP:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		vm.bp = int(v)
	case OpSPtoBP:
		vm.bp = vm.sp
	case OpBPtoSP:
		vm.sp = vm.bp
	case OpAddSP:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		n := int(int16(v))
		next := vm.sp + n
		if next < vm.stackBase {
			return vm.faultf(FaultStackUnderflow, op, "releasing %d cells below stack base", -n)
		}
		if next > MemorySize {
			return vm.faultf(FaultStackOverflow, op, "reserving %d cells past memory end", n)
		}
		for i := vm.sp; i < next; i++ {
			vm.mem[i] = 0
		}
		vm.sp = next

	// --------------------------------------------------------------------
	// Memory
	// --------------------------------------------------------------------

	case OpFetchM:
		addr, err := vm.pop(op)
		if err != nil {
			return err
		}
		vm.push(vm.mem[addr])
	case OpSto:
		v, addr, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.mem[addr] = v
	case OpOffset:
		idx, base, err := vm.pop2(op)
		if err != nil {
			return err
		}
		vm.push(base + idx - 1)

	// --------------------------------------------------------------------
	// System
	// --------------------------------------------------------------------

	case OpSaveReg:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		vm.rv = v
	case OpPushReg:
		if err := vm.pushChecked(op, vm.rv); err != nil {
			return err
		}
	case OpSay:
		id, err := vm.pop(op)
		if err != nil {
			return err
		}
		if vm.listener != nil {
			vm.listener.OnSay(id)
		}
	case OpExit:
		vm.state = StateHalted
		vm.pc += op.Width()
		return nil
	case OpStrCmp, OpRespond:
		return vm.faultf(FaultUnsupportedOpcode, op, "")
	}

	vm.pc += op.Width()
	return nil
}

func compare(op Opcode, a, b int16) bool {
	switch op {
	case OpTstGt:
		return a > b
	case OpTstGe:
		return a >= b
	case OpTstLt:
		return a < b
	case OpTstLe:
		return a <= b
	case OpTstEq:
		return a == b
	default:
		return a != b
	}
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) push(v uint16) {
	vm.mem[vm.sp] = v
	vm.sp++
}

func (vm *VM) pushChecked(op Opcode, v uint16) error {
	if vm.sp >= MemorySize {
		return vm.faultf(FaultStackOverflow, op, "")
	}
	vm.push(v)
	return nil
}

func (vm *VM) pop(op Opcode) (uint16, error) {
	if vm.sp <= vm.stackBase {
		return 0, vm.faultf(FaultStackUnderflow, op, "")
	}
	vm.sp--
	return vm.mem[vm.sp], nil
}

// pop2 pops the top two values, returning them top first.
func (vm *VM) pop2(op Opcode) (top, under uint16, err error) {
	if top, err = vm.pop(op); err != nil {
		return 0, 0, err
	}
	if under, err = vm.pop(op); err != nil {
		return 0, 0, err
	}
	return top, under, nil
}

func (vm *VM) faultf(reason FaultReason, op Opcode, format string, args ...interface{}) error {
	f := &Fault{Reason: reason, PC: vm.pc, Op: op, Detail: fmt.Sprintf(format, args...)}
	vm.state = StateFaulted
	vm.fault = f
	return f
}
