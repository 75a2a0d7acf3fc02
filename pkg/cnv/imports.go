package cnv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownImport is returned by a router when no handler is registered
// for a CALLI id; the VM turns it into a FaultUnknownImport.
var ErrUnknownImport = errors.New("unknown imported function")

// Imported function ids used by retail conversations.
const (
	FnBablMenu  = 0
	FnBablFMenu = 1
	FnPrint     = 2
	FnBablAsk   = 3
	FnCompare   = 4
	FnRandom    = 5
	FnContains  = 7
	FnLength    = 11
	FnGetQuest  = 15
	FnSetQuest  = 16
	FnSex       = 17
	FnGronkDoor = 37
)

// ImportFunc implements one imported function. It pops its own arguments:
// the argument count first, then one cell address per argument in declared
// order.
type ImportFunc func(vm *VM) error

// ImportTable routes CALLI ids to handlers. Hosts can register extension
// ids beyond the retail suite.
type ImportTable struct {
	funcs map[uint16]ImportFunc
	names map[uint16]string
}

// NewImportTable returns an empty routing table.
func NewImportTable() *ImportTable {
	return &ImportTable{
		funcs: make(map[uint16]ImportFunc),
		names: make(map[uint16]string),
	}
}

// Register binds an id to a handler, replacing any previous binding.
func (t *ImportTable) Register(id uint16, name string, fn ImportFunc) {
	t.funcs[id] = fn
	t.names[id] = name
}

// Name returns the registered name for an id, empty if unbound.
func (t *ImportTable) Name(id uint16) string {
	return t.names[id]
}

// Invoke implements Router.
func (t *ImportTable) Invoke(vm *VM, id uint16) error {
	fn, ok := t.funcs[id]
	if !ok {
		return fmt.Errorf("id %d: %w", id, ErrUnknownImport)
	}
	return fn(vm)
}

// StringSource provides conversation text by string block and index.
type StringSource interface {
	String(block, index int) (string, error)
}

// QuestStore holds the quest flags get_quest and set_quest operate on.
type QuestStore interface {
	QuestFlag(id int) uint16
	SetQuestFlag(id int, value uint16)
}

// ImportEnv carries the game-side context the retail import suite needs.
type ImportEnv struct {
	Strings      StringSource
	Block        int // string block of the running conversation
	Quests       QuestStore
	Rand         func(max int) int // uniform in [1, max]
	PlayerFemale bool

	// DoorHook, when set, observes gronk_door calls.
	DoorHook func(x, y, flag uint16)
}

// Table builds the retail imported function suite over this environment.
func (e *ImportEnv) Table() *ImportTable {
	t := NewImportTable()
	t.Register(FnBablMenu, "babl_menu", e.bablMenu)
	t.Register(FnBablFMenu, "babl_fmenu", e.bablFMenu)
	t.Register(FnPrint, "print", e.printString)
	t.Register(FnBablAsk, "babl_ask", e.bablAsk)
	t.Register(FnCompare, "compare", e.compareStrings)
	t.Register(FnRandom, "random", e.random)
	t.Register(FnContains, "contains", e.contains)
	t.Register(FnLength, "length", e.length)
	t.Register(FnGetQuest, "get_quest", e.getQuest)
	t.Register(FnSetQuest, "set_quest", e.setQuest)
	t.Register(FnSex, "sex", e.sex)
	t.Register(FnGronkDoor, "gronk_door", e.gronkDoor)
	return t
}

// popArgs pops the argument count and then count cell addresses, returned
// in declared order.
func popArgs(vm *VM, want int) ([]uint16, error) {
	n, err := vm.PopArg()
	if err != nil {
		return nil, err
	}
	if int(n) != want {
		return nil, fmt.Errorf("expected %d arguments, script pushed %d", want, n)
	}
	args := make([]uint16, want)
	for i := 0; i < want; i++ {
		if args[i], err = vm.PopArg(); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// readOptions walks a zero-terminated string id array.
func readOptions(vm *VM, base uint16) []MenuOption {
	var options []MenuOption
	for i := uint16(0); ; i++ {
		id := vm.Cell(base + i)
		if id == 0 {
			break
		}
		options = append(options, MenuOption{Position: int(i) + 1, StringID: id})
	}
	return options
}

func (e *ImportEnv) bablMenu(vm *VM) error {
	args, err := popArgs(vm, 1)
	if err != nil {
		return err
	}
	options := readOptions(vm, args[0])
	if vm.listener != nil {
		vm.listener.OnMenu(options)
	}
	vm.AwaitInput()
	return nil
}

func (e *ImportEnv) bablFMenu(vm *VM) error {
	args, err := popArgs(vm, 2)
	if err != nil {
		return err
	}
	all := readOptions(vm, args[0])
	flags := args[1]
	var options []MenuOption
	for _, opt := range all {
		if vm.Cell(flags+uint16(opt.Position-1)) != 0 {
			options = append(options, opt)
		}
	}
	if vm.listener != nil {
		vm.listener.OnMenu(options)
	}
	vm.AwaitInput()
	return nil
}

func (e *ImportEnv) printString(vm *VM) error {
	args, err := popArgs(vm, 1)
	if err != nil {
		return err
	}
	if vm.listener != nil {
		vm.listener.OnSay(vm.Cell(args[0]))
	}
	return nil
}

func (e *ImportEnv) bablAsk(vm *VM) error {
	if _, err := popArgs(vm, 0); err != nil {
		return err
	}
	if vm.listener != nil {
		vm.listener.OnAsk()
	}
	vm.AwaitInput()
	return nil
}

// lookup resolves a cell holding a string id to its text. Missing sources
// and bad ids read as empty text rather than faulting the conversation.
func (e *ImportEnv) lookup(vm *VM, ptr uint16) string {
	if e.Strings == nil {
		return ""
	}
	s, err := e.Strings.String(e.Block, int(vm.Cell(ptr)))
	if err != nil {
		return ""
	}
	return s
}

func (e *ImportEnv) compareStrings(vm *VM) error {
	args, err := popArgs(vm, 2)
	if err != nil {
		return err
	}
	a := e.lookup(vm, args[0])
	b := e.lookup(vm, args[1])
	vm.SetResult(boolWord(strings.EqualFold(a, b)))
	return nil
}

func (e *ImportEnv) random(vm *VM) error {
	args, err := popArgs(vm, 1)
	if err != nil {
		return err
	}
	max := int(vm.Cell(args[0]))
	if max < 1 || e.Rand == nil {
		vm.SetResult(0)
		return nil
	}
	vm.SetResult(uint16(e.Rand(max)))
	return nil
}

func (e *ImportEnv) contains(vm *VM) error {
	args, err := popArgs(vm, 2)
	if err != nil {
		return err
	}
	haystack := strings.ToLower(e.lookup(vm, args[0]))
	needle := strings.ToLower(e.lookup(vm, args[1]))
	vm.SetResult(boolWord(strings.Contains(haystack, needle)))
	return nil
}

func (e *ImportEnv) length(vm *VM) error {
	args, err := popArgs(vm, 1)
	if err != nil {
		return err
	}
	vm.SetResult(uint16(len(e.lookup(vm, args[0]))))
	return nil
}

func (e *ImportEnv) getQuest(vm *VM) error {
	args, err := popArgs(vm, 1)
	if err != nil {
		return err
	}
	if e.Quests == nil {
		vm.SetResult(0)
		return nil
	}
	vm.SetResult(e.Quests.QuestFlag(int(vm.Cell(args[0]))))
	return nil
}

func (e *ImportEnv) setQuest(vm *VM) error {
	args, err := popArgs(vm, 2)
	if err != nil {
		return err
	}
	if e.Quests != nil {
		e.Quests.SetQuestFlag(int(vm.Cell(args[1])), vm.Cell(args[0]))
	}
	return nil
}

func (e *ImportEnv) sex(vm *VM) error {
	args, err := popArgs(vm, 2)
	if err != nil {
		return err
	}
	female := vm.Cell(args[0])
	male := vm.Cell(args[1])
	if e.PlayerFemale {
		vm.SetResult(female)
	} else {
		vm.SetResult(male)
	}
	return nil
}

func (e *ImportEnv) gronkDoor(vm *VM) error {
	args, err := popArgs(vm, 3)
	if err != nil {
		return err
	}
	if e.DoorHook != nil {
		e.DoorHook(vm.Cell(args[0]), vm.Cell(args[1]), vm.Cell(args[2]))
	}
	vm.SetResult(1)
	return nil
}
