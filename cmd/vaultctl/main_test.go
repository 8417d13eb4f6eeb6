package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv isolates the CLI from the process environment.
func testEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

type harness struct {
	t      *testing.T
	db     string
	env    map[string]string
	vault  string
	output string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	vault := filepath.Join(dir, "vault")
	require.NoError(t, os.MkdirAll(vault, 0o755))
	return &harness{
		t:     t,
		db:    filepath.Join(dir, "etl.db"),
		vault: vault,
		env: map[string]string{
			"VAULT_ROOT":          vault,
			"RESTORE_DESTINATION": filepath.Join(dir, "restored"),
			"LOG_LEVEL":           "error",
		},
	}
}

func (h *harness) run(args ...string) error {
	h.t.Helper()
	root, closeApp := newRootCmd(testEnv(h.env))
	defer closeApp()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--sqlite", h.db}, args...))
	err := root.ExecuteContext(context.Background())
	h.output = out.String()
	return err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	require.NoError(h.t, h.run(args...), h.output)
	return h.output
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportRestoreVerify(t *testing.T) {
	h := newHarness(t)

	// Only A1 exists on disk.
	require.NoError(t, os.WriteFile(filepath.Join(h.vault, "000000000000A1"), []byte("part"), 0o644))
	input := h.writeFile("files.csv", "NOME_ORIGINAL,NOME_ARQUIVO_HEX\na1.prt,A1\nb2.prt,B2\n")

	var imported []core.ImportResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("import", input)), &imported))
	require.Len(t, imported, 1)
	assert.Equal(t, 2, imported[0].Inserted)

	var restored struct {
		Requested int      `json:"requested"`
		Copied    int      `json:"copied"`
		Errors    []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("restore", "1", "2")), &restored))
	assert.Equal(t, 2, restored.Requested)
	assert.Equal(t, 1, restored.Copied)
	assert.Len(t, restored.Errors, 1)

	data, err := os.ReadFile(filepath.Join(h.env["RESTORE_DESTINATION"], "a1.prt"))
	require.NoError(t, err)
	assert.Equal(t, "part", string(data))

	var verified struct {
		Verified int `json:"verified"`
		Failed   int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "1", "2")), &verified))
	assert.Equal(t, 1, verified.Verified)
	assert.Equal(t, 1, verified.Failed)

	var stats store.Stats
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("stats")), &stats))
	assert.Equal(t, int64(2), stats.Files)
	assert.Equal(t, int64(1), stats.PendingMissing)

	var missing []store.MissingItem
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("missing")), &missing))
	require.Len(t, missing, 1)
	assert.Equal(t, int64(2), missing[0].FileID)
}

func TestSettingsAndPath(t *testing.T) {
	h := newHarness(t)

	var settings core.VaultSettings
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("settings", "set", "vault_root", "/srv/vault")), &settings))
	assert.Equal(t, "/srv/vault", settings.Root)

	var p core.PathPreview
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("path", "c97e80.fv")), &p))
	assert.Equal(t, "C97E80", p.Hex)
	assert.Equal(t, "/srv/vault/00000000C97E80", p.PhysicalPath)

	err := h.run("settings", "set", "add_fv_extension", "maybe")
	assert.ErrorIs(t, err, core.ErrInvalidSetting)
}

func TestExportToFile(t *testing.T) {
	h := newHarness(t)
	input := h.writeFile("files.csv", "NOME_ORIGINAL,NOME_ARQUIVO_HEX\na1.prt,A1\n")
	h.mustRun("import", input)

	out := filepath.Join(t.TempDir(), "files.json")
	h.mustRun("export", "--format", "json", "-o", out)
	assert.Contains(t, h.output, "exported 1 files")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var files []core.ExportedFile
	require.NoError(t, json.Unmarshal(data, &files))
	require.Len(t, files, 1)
	assert.Equal(t, "A1", files[0].Hex)

	err = h.run("export", "--format", "xml")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	input := h.writeFile("files.csv", "NOME_ORIGINAL,NOME_ARQUIVO_HEX\na1.prt,A1\n")
	h.mustRun("import", input)

	assert.ErrorIs(t, h.run("reset"), errResetNotConfirmed)
	h.mustRun("reset", "--yes")

	var stats store.Stats
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("stats")), &stats))
	assert.Zero(t, stats.Files)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "42"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 42}, ids)

	for _, bad := range []string{"0", "-3", "x"} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestUnknownFormatFromCLI(t *testing.T) {
	h := newHarness(t)
	input := h.writeFile("files.xlsx", "irrelevant")
	err := h.run("import", input)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), input), err.Error())
	assert.True(t, core.IsUserFacing(err))
}
