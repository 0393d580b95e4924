package commands

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	data := []byte(`
commands:
  - id: git.status
    category: Git
    label: Show Status
    when: "!os.plan9"
    run: git status
  - id: " spaced "
    label: Spaced
`)
	c, err := ParseCatalog(data)
	require.NoError(t, err)

	cmds := c.ListCommands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "git.status", cmds[0].ID)
	assert.Equal(t, "!os.plan9", cmds[0].Precondition)
	assert.Equal(t, "spaced", cmds[1].ID)

	got, ok := c.Command("git.status")
	require.True(t, ok)
	assert.Equal(t, "git status", got.Run)
	_, ok = c.Command("nope")
	assert.False(t, ok)
}

func TestParseCatalog_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "missing id", data: "commands:\n  - label: x\n"},
		{name: "duplicate id", data: "commands:\n  - id: a\n  - id: a\n"},
		{name: "bad precondition", data: "commands:\n  - id: a\n    when: os\n"},
		{name: "not yaml", data: "commands: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCatalog([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	cmds := c.ListCommands()
	require.NotEmpty(t, cmds)
	for _, cmd := range cmds {
		assert.NotEmpty(t, cmd.Label, cmd.ID)
		assert.NotEmpty(t, cmd.Run, cmd.ID)
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	c, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, len(DefaultCatalog().ListCommands()), len(c.ListCommands()))

	path := filepath.Join(dir, "commands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands:\n  - id: only\n    label: Only\n"), 0o600))
	c, err = LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.ListCommands(), 1)

	require.NoError(t, os.WriteFile(path, []byte("commands:\n  - label: broken\n"), 0o600))
	_, err = LoadCatalog(path)
	assert.ErrorContains(t, err, path)
}

func TestEvalPrecondition(t *testing.T) {
	t.Setenv("PALETTE_TEST_FLAG", "1")
	t.Setenv("PALETTE_TEST_EMPTY", "")

	tests := []struct {
		expr string
		want bool
	}{
		{expr: "true", want: true},
		{expr: "!true", want: false},
		{expr: "os." + runtime.GOOS, want: true},
		{expr: "!os." + runtime.GOOS, want: false},
		{expr: "os.plan9 && os." + runtime.GOOS, want: runtime.GOOS == "plan9"},
		{expr: "env.PALETTE_TEST_FLAG", want: true},
		{expr: "env.PALETTE_TEST_EMPTY", want: false},
		{expr: "!env.PALETTE_TEST_UNSET && env.PALETTE_TEST_FLAG", want: true},
		{expr: "bogus", want: false},
		{expr: "", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EvalPrecondition(tt.expr), tt.expr)
	}
}
