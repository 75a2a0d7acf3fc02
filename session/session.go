package session

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

var log = commonlog.GetLogger("uwcnv.session")

// defaultFrameLimit bounds how many step-budget slices one turn may burn
// before the conversation is declared stuck.
const defaultFrameLimit = 1000

// Choice is one selectable dialogue option with its text resolved.
type Choice struct {
	Position int // value to pass to Choose
	Text     string
}

// Turn is what the conversation produced since the last player action.
type Turn struct {
	Says     []string // spoken lines, substitutions applied
	Choices  []Choice // non-empty when the script showed a menu
	NeedText bool     // true when the script asked for free text
	Done     bool     // conversation halted
}

// MapQuestStore is an in-memory quest flag store. Persistence layers load
// it before a session and save it after.
type MapQuestStore struct {
	Flags map[int]uint16
}

func NewMapQuestStore() *MapQuestStore {
	return &MapQuestStore{Flags: make(map[int]uint16)}
}

func (m *MapQuestStore) QuestFlag(id int) uint16 {
	return m.Flags[id]
}

func (m *MapQuestStore) SetQuestFlag(id int, value uint16) {
	m.Flags[id] = value
}

// Config carries the game-side state a conversation runs against.
type Config struct {
	Strings      *StringTable
	Quests       cnv.QuestStore
	GameGlobals  []uint16 // nil for defaults
	Private      []uint16 // saved private globals, nil for a fresh NPC
	PlayerFemale bool
	FrameLimit   int
	Rand         func(max int) int // nil for math/rand
}

// Session drives one conversation from start to halt, suspending whenever
// the script needs player input.
type Session struct {
	ID uuid.UUID

	conv    *cnv.Conversation
	vm      *cnv.VM
	strings *StringTable
	block   int
	limit   int

	pendingSays []uint16
	pendingMenu []cnv.MenuOption
	pendingAsk  bool
}

// New prepares a session for a decoded conversation. Game globals and any
// saved private globals are copied into VM memory before the first step.
func New(conv *cnv.Conversation, cfg Config) *Session {
	s := &Session{
		ID:      uuid.New(),
		conv:    conv,
		strings: cfg.Strings,
		block:   int(conv.Header.StringBlock),
		limit:   cfg.FrameLimit,
	}
	if s.strings == nil {
		s.strings = NewStringTable()
	}
	if s.limit <= 0 {
		s.limit = defaultFrameLimit
	}

	rnd := cfg.Rand
	if rnd == nil {
		rnd = func(max int) int { return rand.Intn(max) + 1 }
	}
	env := &cnv.ImportEnv{
		Strings:      s.strings,
		Block:        s.block,
		Quests:       cfg.Quests,
		Rand:         rnd,
		PlayerFemale: cfg.PlayerFemale,
	}
	s.vm = cnv.NewVM(conv, env.Table(), s)

	cnv.ApplyGameGlobals(s.vm, cfg.GameGlobals)
	for i, v := range cfg.Private {
		addr := cnv.NumGameGlobals + i
		if addr >= int(conv.Header.MemorySlots) {
			break
		}
		s.vm.SetCell(uint16(addr), v)
	}

	log.Infof("session %s: slot %d, block %d, %d code words",
		s.ID, conv.Slot, s.block, len(conv.Code))
	return s
}

// VM exposes the underlying machine, mainly for tests and inspection.
func (s *Session) VM() *cnv.VM { return s.vm }

// OnSay implements the VM listener.
func (s *Session) OnSay(stringID uint16) {
	s.pendingSays = append(s.pendingSays, stringID)
}

// OnMenu implements the VM listener.
func (s *Session) OnMenu(options []cnv.MenuOption) {
	s.pendingMenu = options
}

// OnAsk implements the VM listener.
func (s *Session) OnAsk() {
	s.pendingAsk = true
}

// Start runs the conversation to its first suspension or halt.
func (s *Session) Start() (*Turn, error) {
	return s.drive()
}

// Choose resumes a menu suspension with the chosen option's position.
func (s *Session) Choose(position int) (*Turn, error) {
	if err := s.vm.Resume(uint16(position)); err != nil {
		return nil, err
	}
	return s.drive()
}

// Answer resumes a free-text suspension. The text joins the string table
// and its id goes to the script.
func (s *Session) Answer(text string) (*Turn, error) {
	id := s.strings.Add(s.block, text)
	if err := s.vm.Resume(uint16(id)); err != nil {
		return nil, err
	}
	return s.drive()
}

// drive runs budget slices until the VM yields for input or halts, then
// packages the pending output with text resolved.
func (s *Session) drive() (*Turn, error) {
	for frame := 0; ; frame++ {
		state, err := s.vm.Run(cnv.DefaultStepBudget)
		if err != nil {
			return nil, err
		}
		if state == cnv.StateRunning {
			if frame+1 >= s.limit {
				return nil, fmt.Errorf("conversation did not yield after %d frames", s.limit)
			}
			continue
		}
		return s.buildTurn(state)
	}
}

func (s *Session) buildTurn(state cnv.VMState) (*Turn, error) {
	turn := &Turn{Done: state == cnv.StateHalted}

	for _, id := range s.pendingSays {
		raw, err := s.strings.String(s.block, int(id))
		if err != nil {
			log.Warningf("session %s: %v", s.ID, err)
			raw = fmt.Sprintf("[missing string %d]", id)
		}
		turn.Says = append(turn.Says, expandText(s.vm, s.strings, s.block, raw))
	}
	s.pendingSays = nil

	for _, opt := range s.pendingMenu {
		raw, err := s.strings.String(s.block, int(opt.StringID))
		if err != nil {
			raw = fmt.Sprintf("[missing string %d]", opt.StringID)
		}
		turn.Choices = append(turn.Choices, Choice{
			Position: opt.Position,
			Text:     expandText(s.vm, s.strings, s.block, raw),
		})
	}
	s.pendingMenu = nil

	turn.NeedText = s.pendingAsk
	s.pendingAsk = false

	if turn.Done {
		log.Infof("session %s: conversation halted", s.ID)
	}
	return turn, nil
}

// PrivateGlobals reads the conversation's persistent cells back out, for
// saving once the conversation halts.
func (s *Session) PrivateGlobals() []uint16 {
	n := int(s.conv.Header.MemorySlots) - cnv.NumGameGlobals
	if n <= 0 {
		return nil
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = s.vm.Cell(uint16(cnv.NumGameGlobals + i))
	}
	return out
}

// GameGlobals reads the engine copy-out region.
func (s *Session) GameGlobals() []uint16 {
	return cnv.ExtractGameGlobals(s.vm)
}
