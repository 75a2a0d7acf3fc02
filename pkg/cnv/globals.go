package cnv

// GameGlobal is one engine variable copied into the low cells of
// conversation memory before execution and copied back out after.
type GameGlobal struct {
	Name    string
	Default uint16
}

// GameGlobals lists the canonical copy-in slots in memory order. Cell 14,
// npc_whoami, carries the conversation slot the NPC speaks with.
var GameGlobals = []GameGlobal{
	{"play_hunger", 0},
	{"play_health", 30},
	{"play_arms", 0},
	{"play_power", 0},
	{"play_hp", 30},
	{"play_mana", 30},
	{"play_level", 3},
	{"new_player_exp", 0},
	{"play_name", 0},
	{"play_poison", 0},
	{"play_drawn", 0},
	{"play_sex", 0},
	{"npc_xhome", 32},
	{"npc_yhome", 32},
	{"npc_whoami", 0x010C},
	{"npc_hunger", 0},
	{"npc_health", 30},
	{"npc_hp", 30},
	{"npc_arms", 0},
	{"npc_power", 0},
	{"npc_goal", 8},
	{"npc_attitude", 3},
	{"npc_gtarg", 0},
	{"npc_talkedto", 0},
	{"npc_level", 0},
	{"npc_name", 0},
	{"dungeon_level", 1},
	{"riddlecounter", 0},
	{"game_time", 1},
	{"game_days", 1},
	{"game_mins", 1},
	{"first_encounter", 0},
}

// NumGameGlobals is the size of the copy-in region at the bottom of memory.
var NumGameGlobals = len(GameGlobals)

// GameGlobalIndex returns the memory cell of a named game global, -1 when
// the name is unknown.
func GameGlobalIndex(name string) int {
	for i, g := range GameGlobals {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// ApplyGameGlobals writes values into the copy-in region. A nil slice
// applies the defaults; a short slice leaves the remaining cells at their
// defaults.
func ApplyGameGlobals(vm *VM, values []uint16) {
	for i, g := range GameGlobals {
		v := g.Default
		if i < len(values) {
			v = values[i]
		}
		vm.SetCell(uint16(i), v)
	}
}

// ExtractGameGlobals reads the copy-in region back out, in GameGlobals
// order.
func ExtractGameGlobals(vm *VM) []uint16 {
	out := make([]uint16, len(GameGlobals))
	for i := range GameGlobals {
		out[i] = vm.Cell(uint16(i))
	}
	return out
}
