package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/config"
)

const testCatalog = `
commands:
  - id: say.hello
    label: Say Hello
    run: echo hello
  - id: say.bye
    category: Greet
    label: Say Goodbye
    alias: Farewell
    run: echo bye
  - id: fail.now
    label: Fail Now
    run: sh -c "exit 4"
`

type queryGlobals struct {
	accept bool
}

type historyGlobals struct {
	limit int
	yes   bool
}

// withTestHome points every palette path at a temp dir, writes the test
// catalog, and saves cfg (defaults when nil) as the config file.
func withTestHome(t *testing.T, cfg *config.Config) *config.Paths {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("commands need a POSIX shell")
	}

	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("PALETTE_STORAGE_PATH", "")
	t.Setenv("PALETTE_HISTORY_CAPACITY", "")
	t.Setenv("COLUMNS", "200")

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() failed: %v", err)
	}
	if err := os.WriteFile(paths.CommandsFile(), []byte(testCatalog), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.SaveToFile(paths.ConfigFile()); err != nil {
		t.Fatalf("SaveToFile() failed: %v", err)
	}

	oldCfgFile := cfgFile
	cfgFile = ""
	t.Cleanup(func() { cfgFile = oldCfgFile })

	withoutColors(t)
	return paths
}

func withoutColors(t *testing.T) {
	t.Helper()
	disableColors()
	t.Cleanup(func() {
		if !shouldDisableColors() {
			enableColors()
		}
	})
}

func withQueryGlobals(t *testing.T, g queryGlobals) {
	t.Helper()
	old := queryGlobals{accept: queryAccept}
	queryAccept = g.accept
	t.Cleanup(func() { queryAccept = old.accept })
}

func withHistoryGlobals(t *testing.T, g historyGlobals) {
	t.Helper()
	old := historyGlobals{limit: historyLimit, yes: historyYes}
	historyLimit = g.limit
	historyYes = g.yes
	t.Cleanup(func() {
		historyLimit = old.limit
		historyYes = old.yes
	})
}

func withRunKey(t *testing.T, key string) {
	t.Helper()
	old := runKey
	runKey = key
	t.Cleanup(func() { runKey = old })
}

// testCmd returns a command carrying a context, as cobra sets one up on
// Execute.
func testCmd(t *testing.T) *cobra.Command {
	t.Helper()
	c := &cobra.Command{}
	c.SetContext(context.Background())
	return c
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	out := <-outC
	_ = r.Close()
	return out
}
