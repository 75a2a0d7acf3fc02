package integration_test

import (
	"path/filepath"
	"testing"

	"github.com/uwtools/uwcnv/compiler"
	"github.com/uwtools/uwcnv/pkg/cnv"
	"github.com/uwtools/uwcnv/session"
	"github.com/uwtools/uwcnv/store"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

const gatekeeperScript = `
let greeted = get_quest(10)
if greeted == 0
	say "Halt! Who approaches the keep?"
	ask name
	say "Well met, " + name
	set_quest(1, 10)
else
	say "Back again, are ye?"
endif

menu choice ["I seek passage.", "Farewell."]
if choice == 1
	say "The toll is two coins. Pass."
else
	say "Mind the portcullis."
endif
exit
`

// compileScript compiles source into a conversation record plus its strings.
func compileScript(t *testing.T, src string, slot int, block uint16) *compiler.Program {
	t.Helper()
	prog, err := compiler.Compile(src, compiler.Options{Slot: slot, StringBlock: block})
	if err != nil {
		t.Fatalf("compile error: %v\nsource: %s", err, src)
	}
	return prog
}

// throughArchive sends a conversation through the full container path:
// encode into an archive, compress, decompress, decode back out.
func throughArchive(t *testing.T, prog *compiler.Program) *cnv.Conversation {
	t.Helper()
	a := cnv.NewArchive(16)
	a.SetSlot(prog.Conversation.Slot, prog.Conversation.Encode())

	data := cnv.ArkCompress(a.Encode())
	back, err := cnv.DecodeArchive(cnv.ArkDecompress(data))
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	conv, err := back.DecodeSlot(prog.Conversation.Slot)
	if err != nil {
		t.Fatalf("decode slot %d: %v", prog.Conversation.Slot, err)
	}
	return conv
}

func newSession(t *testing.T, conv *cnv.Conversation, prog *compiler.Program, quests *session.MapQuestStore) *session.Session {
	t.Helper()
	strs := session.NewStringTable()
	strs.SetBlock(int(conv.Header.StringBlock), prog.Strings)
	return session.New(conv, session.Config{Strings: strs, Quests: quests})
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestConversationThroughArchive(t *testing.T) {
	prog := compileScript(t, gatekeeperScript, 1, 0x0E01)
	conv := throughArchive(t, prog)

	quests := session.NewMapQuestStore()
	sess := newSession(t, conv, prog, quests)

	turn, err := sess.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(turn.Says) != 1 || turn.Says[0] != "Halt! Who approaches the keep?" {
		t.Fatalf("opening = %q", turn.Says)
	}
	if !turn.NeedText {
		t.Fatal("expected a free-text prompt")
	}

	turn, err = sess.Answer("the Avatar")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(turn.Says) != 1 || turn.Says[0] != "Well met, the Avatar" {
		t.Errorf("greeting = %q, want the answer substituted", turn.Says)
	}
	if len(turn.Choices) != 2 {
		t.Fatalf("choices = %+v, want 2", turn.Choices)
	}
	if turn.Choices[0].Text != "I seek passage." {
		t.Errorf("choice 1 = %q", turn.Choices[0].Text)
	}

	turn, err = sess.Choose(1)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if !turn.Done {
		t.Fatal("conversation should have halted")
	}
	if len(turn.Says) != 1 || turn.Says[0] != "The toll is two coins. Pass." {
		t.Errorf("closing = %q", turn.Says)
	}
	if quests.Flags[10] != 1 {
		t.Errorf("quest 10 = %d, want 1", quests.Flags[10])
	}
}

func TestQuestStatePersistsAcrossSessions(t *testing.T) {
	prog := compileScript(t, gatekeeperScript, 1, 0x0E01)
	conv := throughArchive(t, prog)
	dbPath := filepath.Join(t.TempDir(), "save.db")

	// First visit: introduce yourself, then save.
	{
		quests := session.NewMapQuestStore()
		sess := newSession(t, conv, prog, quests)
		if _, err := sess.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if _, err := sess.Answer("a stranger"); err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if _, err := sess.Choose(2); err != nil {
			t.Fatalf("Choose: %v", err)
		}

		db, err := store.Open(dbPath)
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		if err := db.SaveQuests(quests.Flags); err != nil {
			t.Fatalf("SaveQuests: %v", err)
		}
		if err := db.SaveSlot(conv.Slot, sess.PrivateGlobals()); err != nil {
			t.Fatalf("SaveSlot: %v", err)
		}
		db.Close()
	}

	// Second visit: reload, the guard remembers.
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer db.Close()
	flags, err := db.LoadQuests()
	if err != nil {
		t.Fatalf("LoadQuests: %v", err)
	}
	private, err := db.LoadSlot(conv.Slot)
	if err != nil {
		t.Fatalf("LoadSlot: %v", err)
	}

	quests := &session.MapQuestStore{Flags: flags}
	strs := session.NewStringTable()
	strs.SetBlock(int(conv.Header.StringBlock), prog.Strings)
	sess := session.New(conv, session.Config{Strings: strs, Quests: quests, Private: private})

	turn, err := sess.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(turn.Says) != 1 || turn.Says[0] != "Back again, are ye?" {
		t.Errorf("returning greeting = %q, want Back again, are ye?", turn.Says)
	}
	if turn.NeedText {
		t.Error("returning visit must not re-ask for a name")
	}
}

func TestDisassembleCompiledScript(t *testing.T) {
	prog := compileScript(t, "say \"hello\"\nexit\n", 3, 0x0E02)
	text, err := cnv.Disassemble(prog.Conversation)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	reassembled, err := cnv.Assemble(text)
	if err != nil {
		t.Fatalf("reassembling disassembly: %v", err)
	}
	if len(reassembled.Code) != len(prog.Conversation.Code) {
		t.Fatalf("code length %d, want %d", len(reassembled.Code), len(prog.Conversation.Code))
	}
	for i, w := range prog.Conversation.Code {
		if reassembled.Code[i] != w {
			t.Errorf("code[%d] = 0x%04X, want 0x%04X", i, reassembled.Code[i], w)
		}
	}
}
