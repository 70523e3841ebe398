package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args from an empty working
// directory and returns what it wrote to stdout and stderr.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	resetFlags(rootCmd)

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default so
// runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDemoCommand(t *testing.T) {
	out, _, err := runCLI(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS demo: 9 steps, 0 failures (backed)")
	assert.Contains(t, out, "Page size: 1,024 bytes")
}

func TestDemoCommand_JSON(t *testing.T) {
	out, _, err := runCLI(t, "demo", "--json")
	require.NoError(t, err)

	var res struct {
		Name     string           `json:"name"`
		Steps    int              `json:"steps"`
		Backed   bool             `json:"backed"`
		Failures []map[string]any `json:"failures"`
		Stats    map[string]any   `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "demo", res.Name)
	assert.Equal(t, 9, res.Steps)
	assert.True(t, res.Backed)
	assert.NotNil(t, res.Failures)
	assert.Empty(t, res.Failures)
	assert.InDelta(t, 4096, res.Stats["p_pos"], 0)
}

func TestDemoCommand_NoArena(t *testing.T) {
	out, _, err := runCLI(t, "demo", "--no-arena")
	require.NoError(t, err)
	assert.Contains(t, out, "(unbacked)")

	t.Setenv("EARLYALLOC_ARENA_ENABLED", "false")
	out, _, err = runCLI(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "(unbacked)")
}

func TestDemoCommand_DebugLog(t *testing.T) {
	_, stderr, err := runCLI(t, "demo", "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"message":"configuration loaded"`)
	assert.Contains(t, stderr, `"event":"alloc_pages"`)
	assert.Contains(t, stderr, `"message":"step done"`)
}

func TestRunCommand(t *testing.T) {
	path := writeScenario(t, `
name: boot
page_size: 4096
span: {start: 0x100000, size: 0x10000}
steps:
  - {op: alloc, id: a, size: 100, align: 8}
  - {op: pages, id: p, count: 2}
  - {op: free, id: a}
  - {op: expect, used_bytes: 0, used_pages: 2}
`)
	out, _, err := runCLI(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS boot: 4 steps, 0 failures (backed)")
	assert.Contains(t, out, "Pages:     total 16  used 2  available 14")
}

func TestRunCommand_Failure(t *testing.T) {
	path := writeScenario(t, `
name: broken
page_size: 1024
span: {start: 0, size: 4096}
steps:
  - {op: alloc, size: 8}
  - {op: expect, b_pos: 16}
`)
	out, _, err := runCLI(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 step(s) failed")
	assert.Contains(t, out, "FAIL broken")
	assert.Contains(t, out, "step 1 (expect): b_pos=8, want 16")
}

func TestRunCommand_BadInput(t *testing.T) {
	_, _, err := runCLI(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeScenario(t, "page_size: 3\nspan: {start: 0, size: 4096}\n")
	_, _, err = runCLI(t, "run", path)
	assert.ErrorContains(t, err, "not a power of two")

	_, _, err = runCLI(t, "run")
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	out, _, err := runCLI(t, "stats",
		"--start", "0", "--size", "4096", "--page-size", "1024",
		"--bytes", "100", "--pages", "1", "--json")
	require.NoError(t, err)

	var stats map[string]uint64
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, uint64(100), stats["b_pos"])
	assert.Equal(t, uint64(3072), stats["p_pos"])
	assert.Equal(t, uint64(2), stats["available_pages"])
	assert.Equal(t, uint64(3), stats["total_pages"])
}

func TestStatsCommand_Defaults(t *testing.T) {
	out, _, err := runCLI(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Span:      0x100000 - 0x1100000 (16.0 MB)")
	assert.Contains(t, out, "Pages:     total 4,096  used 0  available 4,096")
}

func TestStatsCommand_Errors(t *testing.T) {
	_, _, err := runCLI(t, "stats", "--page-size", "1000")
	assert.ErrorContains(t, err, "page_size 1000")

	_, _, err = runCLI(t, "stats", "--start", "0", "--size", "4096", "--page-size", "1024", "--bytes", "5000")
	assert.ErrorContains(t, err, "allocate 5000 bytes")
}

func TestStatsCommand_ConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("span: {start: 0x8000, size: 0x8000}\npage_size: 0x2000\n"), 0o644))

	out, _, err := runCLI(t, "stats", "--config", cfgPath, "--json")
	require.NoError(t, err)

	var stats map[string]uint64
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, uint64(0x8000), stats["start"])
	assert.Equal(t, uint64(0x2000), stats["page_size"])
	assert.Equal(t, uint64(4), stats["total_pages"])
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "earlyalloc dev")
	assert.Contains(t, out, "commit: none")
}
