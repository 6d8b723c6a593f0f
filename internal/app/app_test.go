package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/calcnote/internal/app"
)

func writeNote(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_PrintsBlockReport(t *testing.T) {
	path := writeNote(t, "```calc\napples = 2\n2 + 3 =>\n```\n")

	cfg, err := app.NewConfig(app.Config{NotePath: path, LogLevel: "error"})
	require.NoError(t, err)

	var out bytes.Buffer
	calcApp, err := app.NewApp(&out, cfg)
	require.NoError(t, err)
	require.NoError(t, calcApp.Run(context.Background()))

	require.Contains(t, out.String(), "block 1:")
	require.Contains(t, out.String(), "apples = 2 => 2")
	require.Contains(t, out.String(), "2 + 3 => 5")
}

func TestRun_WriteBackRewritesNote(t *testing.T) {
	path := writeNote(t, "```calc\n[total::0] = 2 + 3\n```\n")

	cfg, err := app.NewConfig(app.Config{NotePath: path, Write: true, LogLevel: "error"})
	require.NoError(t, err)

	var out bytes.Buffer
	calcApp, err := app.NewApp(&out, cfg)
	require.NoError(t, err)
	require.NoError(t, calcApp.Run(context.Background()))

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(updated), "[total::5] = 2 + 3")
}

func TestRun_SubstitutionRules(t *testing.T) {
	path := writeNote(t, "```calc\nprice = 5€\n```\n")

	cfg, err := app.NewConfig(app.Config{
		NotePath: path,
		Rules:    []string{"€=*1"},
		LogLevel: "error",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	calcApp, err := app.NewApp(&out, cfg)
	require.NoError(t, err)
	require.NoError(t, calcApp.Run(context.Background()))
	require.Contains(t, out.String(), "price = 5*1 => 5")
}

func TestRun_BoltBackedCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("```calc\n$seen = 1\n```\n"), 0o644))

	cfg, err := app.NewConfig(app.Config{
		NotePath:  path,
		CachePath: filepath.Join(dir, "globals.db"),
		LogLevel:  "error",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	calcApp, err := app.NewApp(&out, cfg)
	require.NoError(t, err)
	require.NoError(t, calcApp.Run(context.Background()))

	_, err = os.Stat(filepath.Join(dir, "globals.db"))
	require.NoError(t, err)
}

func TestNewConfig_RequiresNotePath(t *testing.T) {
	_, err := app.NewConfig(app.Config{})
	require.Error(t, err)
}

func TestNewApp_RejectsMalformedRule(t *testing.T) {
	cfg, err := app.NewConfig(app.Config{NotePath: "note.md", Rules: []string{"nopair"}})
	require.NoError(t, err)
	_, err = app.NewApp(&bytes.Buffer{}, cfg)
	require.Error(t, err)
}
