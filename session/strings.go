package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// StringTable holds conversation text grouped into numbered blocks. The
// file format is line oriented: "block: <id>" opens a block (hex ids with a
// leading zero, like 0e01, are accepted) and "<index>: <text>" lines fill
// it. Index 0 of every block is reserved empty.
type StringTable struct {
	blocks map[int][]string
}

// NewStringTable returns an empty table.
func NewStringTable() *StringTable {
	return &StringTable{blocks: make(map[int][]string)}
}

// LoadStringsFile reads a string block file from disk.
func LoadStringsFile(path string) (*StringTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseStrings(f)
}

// ParseStrings reads the block format from a reader.
func ParseStrings(r io.Reader) (*StringTable, error) {
	t := NewStringTable()
	scanner := bufio.NewScanner(r)
	block := -1
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "block:"); ok {
			rest = strings.TrimSpace(strings.SplitN(rest, ";", 2)[0])
			id, err := parseBlockID(rest)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad block id %q", lineNo, rest)
			}
			block = id
			if t.blocks[block] == nil {
				t.blocks[block] = []string{""}
			}
			continue
		}
		idx, text, found := strings.Cut(line, ":")
		if !found || block < 0 {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil {
			continue
		}
		entries := t.blocks[block]
		for len(entries) <= i {
			entries = append(entries, "")
		}
		entries[i] = strings.TrimSpace(text)
		t.blocks[block] = entries
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// parseBlockID accepts decimal ids and zero-led hex ids like 0e01.
func parseBlockID(s string) (int, error) {
	if len(s) > 1 && s[0] == '0' {
		v, err := strconv.ParseInt(s, 16, 32)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

// SetBlock installs a whole block, as produced by the script compiler.
func (t *StringTable) SetBlock(block int, entries []string) {
	t.blocks[block] = append([]string(nil), entries...)
}

// String implements the VM string source.
func (t *StringTable) String(block, index int) (string, error) {
	entries, ok := t.blocks[block]
	if !ok {
		return "", fmt.Errorf("string block %d not loaded", block)
	}
	if index < 0 || index >= len(entries) {
		return "", fmt.Errorf("string %d not in block %d", index, block)
	}
	return entries[index], nil
}

// Add appends text to a block and returns its new string id. Free-text
// answers enter the table this way so scripts can refer to them.
func (t *StringTable) Add(block int, text string) int {
	entries, ok := t.blocks[block]
	if !ok {
		entries = []string{""}
	}
	entries = append(entries, text)
	t.blocks[block] = entries
	return len(entries) - 1
}

// Blocks returns the loaded block ids in ascending order.
func (t *StringTable) Blocks() []int {
	ids := make([]int, 0, len(t.blocks))
	for id := range t.blocks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Format writes the table back out in the block file format.
func (t *StringTable) Format(w io.Writer) error {
	for _, id := range t.Blocks() {
		if _, err := fmt.Fprintf(w, "block: %d\n", id); err != nil {
			return err
		}
		for i, text := range t.blocks[id] {
			if i == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "%d: %s\n", i, text); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile saves the table to disk.
func (t *StringTable) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Format(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
