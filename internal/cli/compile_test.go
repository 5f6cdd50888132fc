package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotYAML = `
captured_at: "2026-08-01T00:00:00Z"
series:
  - id: "2.x"
    name: "Stele 2"
    status: active
    releases:
      - version: "2.0.0"
        date: "2026-01-10"
        summary: "Initial release"
      - version: "2.0.1"
        date: "2026-02-14"
        security: true
        disclosures: ["D-2026-001"]
disclosures:
  - id: "D-2026-001"
    severity: high
    score: "8.1"
    affected: ["2.0.0"]
    fixed_in: ["2.0.1"]
    published: "2026-02-14"
    summary: "Path traversal in archive extraction"
`

func writeSnapshotFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshotYAML), 0644))
	return path
}

func runCompileCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestCompileCommandPublishesTree(t *testing.T) {
	base := t.TempDir()
	snapshot := writeSnapshotFile(t, base)
	out := filepath.Join(base, "published")

	buf, err := runCompileCommand(t, "text", snapshot, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "published")

	for _, rel := range []string{
		"index.json",
		"manifest.json",
		"viewport.json",
		"series/2.x/index.json",
		"series/2.x/2.0.1.json",
		"timeline/2026/02.json",
	} {
		_, err := os.Stat(filepath.Join(out, rel))
		assert.NoError(t, err, "missing %s", rel)
	}

	_, err = os.Stat(out + ".staging")
	assert.True(t, os.IsNotExist(err), "staging cleaned up after swap")
}

func TestCompileCommandVerboseDiagnostics(t *testing.T) {
	base := t.TempDir()
	snapshot := writeSnapshotFile(t, base)
	out := filepath.Join(base, "published")

	errBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{snapshot, "--out", out})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errBuf.String(), "Loaded snapshot")
	assert.Contains(t, errBuf.String(), "Compiled 9 resources")
	assert.Contains(t, errBuf.String(), "publishing")
}

func TestCompileCommandJSONSummary(t *testing.T) {
	base := t.TempDir()
	snapshot := writeSnapshotFile(t, base)
	out := filepath.Join(base, "published")

	buf, err := runCompileCommand(t, "json", snapshot, "--out", out)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["cycle_id"])
	assert.NotEmpty(t, data["tree_hash"])
	assert.Equal(t, out, data["published"])
}

func TestCompileCommandRecompileIsStable(t *testing.T) {
	// A second cycle over the same snapshot must republish cleanly: every
	// leaf byte matches, so the immutability gate passes.
	base := t.TempDir()
	snapshot := writeSnapshotFile(t, base)
	out := filepath.Join(base, "published")

	_, err := runCompileCommand(t, "text", snapshot, "--out", out)
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(out, "series/2.x/2.0.1.json"))
	require.NoError(t, err)

	_, err = runCompileCommand(t, "text", snapshot, "--out", out)
	require.NoError(t, err)

	second, err := os.ReadFile(filepath.Join(out, "series/2.x/2.0.1.json"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileCommandDefectiveSnapshotFails(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
captured_at: "2026-08-01T00:00:00Z"
series:
  - id: "2.x"
    status: active
    releases:
      - version: "2.0.0"
`), 0644))
	out := filepath.Join(base, "published")

	_, err := runCompileCommand(t, "text", path, "--out", out)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "nothing published on failure")
}

func TestCompileCommandMissingSnapshot(t *testing.T) {
	base := t.TempDir()
	_, err := runCompileCommand(t, "text",
		filepath.Join(base, "absent.yaml"), "--out", filepath.Join(base, "published"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileCommandLeafMutationBlocksPublish(t *testing.T) {
	base := t.TempDir()
	snapshot := writeSnapshotFile(t, base)
	out := filepath.Join(base, "published")

	_, err := runCompileCommand(t, "text", snapshot, "--out", out)
	require.NoError(t, err)

	// Rewriting history: the summary of an already-published release
	// changes, so the new cycle must be rejected and the old tree stay live.
	edited := bytes.Replace([]byte(snapshotYAML),
		[]byte(`summary: "Initial release"`),
		[]byte(`summary: "Rewritten after the fact"`), 1)
	require.NoError(t, os.WriteFile(snapshot, edited, 0644))

	before, err := os.ReadFile(filepath.Join(out, "series/2.x/2.0.0.json"))
	require.NoError(t, err)

	_, err = runCompileCommand(t, "text", snapshot, "--out", out)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	after, err := os.ReadFile(filepath.Join(out, "series/2.x/2.0.0.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "published tree untouched by the rejected cycle")
}
