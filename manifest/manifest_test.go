package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uwcnv.toml"), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "keep-of-shame"
version = "0.1.0"

[archive]
output = "keep.ark"
slots = 64
compress = true

[strings]
output = "keep.str"

[[conversation]]
slot = 1
source = "scripts/guard.uws"
string-block = 3585
memory-slots = 96

[[conversation]]
slot = 2
source = "scripts/smith.uws"
`)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "keep-of-shame", m.Project.Name)
	assert.Equal(t, "keep.ark", m.Archive.Output)
	assert.Equal(t, 64, m.Archive.Slots)
	assert.True(t, m.Archive.Compress)
	assert.Equal(t, "keep.str", m.Strings.Output)

	require.Len(t, m.Conversations, 2)
	c := m.Conversations[0]
	assert.Equal(t, 1, c.Slot)
	assert.Equal(t, 3585, c.StringBlock)
	assert.Equal(t, 96, c.MemorySlots)
	assert.Equal(t, filepath.Join(m.Dir, "scripts/guard.uws"), m.SourcePath(c))
	assert.Equal(t, filepath.Join(m.Dir, "keep.ark"), m.OutputPath())
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "bare"
`)
	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "cnv.ark", m.Archive.Output)
	assert.Equal(t, 256, m.Archive.Slots)
	assert.Empty(t, m.Conversations)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoadBadToml(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[archive\n")
	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{
			"missing source",
			"[[conversation]]\nslot = 1\n",
			"has no source",
		},
		{
			"slot out of range",
			"[archive]\nslots = 4\n\n[[conversation]]\nslot = 4\nsource = \"a.uws\"\n",
			"out of range",
		},
		{
			"negative slot",
			"[[conversation]]\nslot = -1\nsource = \"a.uws\"\n",
			"out of range",
		},
		{
			"duplicate slot",
			"[[conversation]]\nslot = 2\nsource = \"a.uws\"\n\n[[conversation]]\nslot = 2\nsource = \"b.uws\"\n",
			"claimed by both",
		},
	}
	for _, tc := range tests {
		dir := t.TempDir()
		writeManifest(t, dir, tc.toml)
		_, err := Load(dir)
		if assert.Error(t, err, tc.name) {
			assert.Contains(t, err.Error(), tc.want, tc.name)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"nested\"\n")
	deep := filepath.Join(root, "scripts", "town")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	m, err := FindAndLoad(deep)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "nested", m.Project.Name)

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, abs, m.Dir)
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, m)
}
