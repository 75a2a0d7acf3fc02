// Package manifest handles uwcnv.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a uwcnv.toml project configuration. A project maps a
// set of script sources onto slots of one conversation archive.
type Manifest struct {
	Project       Project        `toml:"project"`
	Archive       Archive        `toml:"archive"`
	Strings       Strings        `toml:"strings"`
	Conversations []Conversation `toml:"conversation"`

	// Dir is the directory containing the uwcnv.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Archive configures the output archive.
type Archive struct {
	Output   string `toml:"output"`
	Slots    int    `toml:"slots"`
	Compress bool   `toml:"compress"`
}

// Strings configures the string file produced alongside the archive.
type Strings struct {
	Output string `toml:"output"`
}

// Conversation maps one script source onto an archive slot.
type Conversation struct {
	Slot        int    `toml:"slot"`
	Source      string `toml:"source"`
	StringBlock int    `toml:"string-block"`
	MemorySlots int    `toml:"memory-slots"`
}

// Load parses a uwcnv.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "uwcnv.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Archive.Output == "" {
		m.Archive.Output = "cnv.ark"
	}
	if m.Archive.Slots == 0 {
		m.Archive.Slots = 256
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a uwcnv.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "uwcnv.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks slot ranges and source uniqueness.
func (m *Manifest) Validate() error {
	seen := make(map[int]string, len(m.Conversations))
	for _, c := range m.Conversations {
		if c.Source == "" {
			return fmt.Errorf("conversation for slot %d has no source", c.Slot)
		}
		if c.Slot < 0 || c.Slot >= m.Archive.Slots {
			return fmt.Errorf("%s: slot %d out of range [0, %d)",
				c.Source, c.Slot, m.Archive.Slots)
		}
		if prev, ok := seen[c.Slot]; ok {
			return fmt.Errorf("slot %d claimed by both %s and %s", c.Slot, prev, c.Source)
		}
		seen[c.Slot] = c.Source
	}
	return nil
}

// SourcePath returns the absolute path of a conversation's script source.
func (m *Manifest) SourcePath(c Conversation) string {
	return filepath.Join(m.Dir, c.Source)
}

// OutputPath returns the absolute path of the output archive.
func (m *Manifest) OutputPath() string {
	return filepath.Join(m.Dir, m.Archive.Output)
}
