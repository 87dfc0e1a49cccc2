package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/uidmgr/internal/debug"
	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/version"
)

// run executes the CLI with args and returns its standard output
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, args...)
	return out, err
}

func runWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"uidmgr"}, args...))
	return out.String(), errOut.String(), err
}

func TestCLI_PutGetDrop(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "uids.db")
	cfg := filepath.Join(dir, "absent.kdl")

	out, err := run(t, "--config", cfg, "--db", db, "put",
		"--unit", "2", "--kind", "class", "--file", "7", "--start", "10", "--end", "90",
		"--name", "Widget", "--text", "class Widget {}")
	require.NoError(t, err)
	keyText := strings.TrimSpace(out)

	k, err := keys.Parse(keyText)
	require.NoError(t, err)
	assert.Equal(t, keys.Key{Unit: 2, Kind: keys.KindClass, File: 7, Start: 10, End: 90, Name: "Widget"}, k)

	out, err = run(t, "--config", cfg, "--db", db, "get", keyText)
	require.NoError(t, err)
	assert.Equal(t, "class Widget [10-90] class Widget {}\n", out)

	out, err = run(t, "--config", cfg, "--db", db, "get", "--json", keyText)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, keyText, decoded["key"])
	assert.Equal(t, "Widget", decoded["name"])

	out, err = run(t, "--config", cfg, "--db", db, "drop", "2")
	require.NoError(t, err)
	assert.Equal(t, "dropped 1 entities of unit 2\n", out)

	_, err = run(t, "--config", cfg, "--db", db, "get", keyText)
	assert.ErrorContains(t, err, "no entity")
}

func TestCLI_RequiresSQLite(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "absent.kdl")
	_, err := run(t, "--config", cfg, "drop", "1")
	assert.ErrorContains(t, err, "sqlite")
}

func TestCLI_ConfigSelectsSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "uidmgr.toml")
	content := "[repository]\ndriver = \"sqlite\"\npath = \"" + filepath.ToSlash(filepath.Join(dir, "from-config.db")) + "\"\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))

	_, err := run(t, "--config", cfg, "put", "--name", "f")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "from-config.db"))
	assert.NoError(t, err)
}

func TestCLI_Decode(t *testing.T) {
	k := keys.Key{Unit: 1, Kind: keys.KindFunction, File: 3, Start: 5, End: 8, Name: "run"}
	out, err := run(t, "decode", k.String())
	require.NoError(t, err)
	assert.Contains(t, out, "unit:  1\n")
	assert.Contains(t, out, "kind:  function\n")
	assert.Contains(t, out, "span:  5-8\n")
	assert.Contains(t, out, "name:  run\n")

	_, err = run(t, "decode", "not a key!")
	assert.Error(t, err)
	_, err = run(t, "decode")
	assert.Error(t, err)
}

func TestCLI_Bench(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "absent.kdl")
	out, err := run(t, "--config", cfg, "bench", "--workers", "4", "--keys", "500", "--rounds", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "interned 500 keys from 4 workers")
	assert.Contains(t, out, "interned=500")

	_, err = run(t, "--config", cfg, "bench", "--workers", "0")
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.FullInfo()+"\n", out)
}

func TestCLI_InvalidConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "bad.kdl")
	require.NoError(t, os.WriteFile(cfg, []byte("store {\n    shards 3\n}\n"), 0o644))
	_, err := run(t, "--config", cfg, "bench")
	assert.ErrorContains(t, err, "failed to load config")
}

func TestCLI_JSONSuppressesDebug(t *testing.T) {
	prevDebug := debug.EnableDebug
	t.Cleanup(func() {
		debug.EnableDebug = prevDebug
		debug.SetDebugOutput(nil)
		debug.SetQuietMode(false)
	})

	dir := t.TempDir()
	db := filepath.Join(dir, "uids.db")
	cfg := filepath.Join(dir, "absent.kdl")

	out, err := run(t, "--config", cfg, "--db", db, "put", "--unit", "1", "--name", "f")
	require.NoError(t, err)
	keyText := strings.TrimSpace(out)

	_, stderr, err := runWithStderr(t, "--config", cfg, "--db", db, "--debug", "get", keyText)
	require.NoError(t, err)
	assert.Contains(t, stderr, "[DEBUG:REPO]")

	out, stderr, err = runWithStderr(t, "--config", cfg, "--db", db, "--debug", "get", "--json", keyText)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "[DEBUG")
	assert.NotContains(t, out, "[DEBUG")
	assert.False(t, debug.QuietMode)
}
