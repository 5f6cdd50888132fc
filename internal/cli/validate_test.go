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

func publishFixture(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	snapshot := writeSnapshotFile(t, base)
	out := filepath.Join(base, "published")
	_, err := runCompileCommand(t, "text", snapshot, "--out", out)
	require.NoError(t, err)
	return out
}

func runValidateCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestValidateCommandCleanTree(t *testing.T) {
	out := publishFixture(t)

	buf, err := runValidateCommand(t, "text", out)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "consistent")
}

func TestValidateCommandJSON(t *testing.T) {
	out := publishFixture(t)

	buf, err := runValidateCommand(t, "json", out)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateCommandDetectsTampering(t *testing.T) {
	out := publishFixture(t)

	// Flip a denormalized copy in the series-index; the authoritative
	// release-detail still says false.
	indexPath := filepath.Join(out, "series/2.x/index.json")
	raw, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	tampered := bytes.ReplaceAll(raw, []byte(`"security":false`), []byte(`"security":true`))
	require.NotEqual(t, raw, tampered, "fixture must contain a non-security release")
	require.NoError(t, os.WriteFile(indexPath, tampered, 0644))

	_, err = runValidateCommand(t, "text", out)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateCommandDetectsLeafMutation(t *testing.T) {
	out := publishFixture(t)

	previous := filepath.Join(filepath.Dir(out), "previous")
	require.NoError(t, os.CopyFS(previous, os.DirFS(out)))

	detailPath := filepath.Join(out, "series/2.x/2.0.0.json")
	raw, err := os.ReadFile(detailPath)
	require.NoError(t, err)
	mutated := bytes.ReplaceAll(raw, []byte("Initial release"), []byte("Edited later"))
	require.NotEqual(t, raw, mutated)
	require.NoError(t, os.WriteFile(detailPath, mutated, 0644))

	_, err = runValidateCommand(t, "text", out, "--previous", previous)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateCommandMissingDir(t *testing.T) {
	_, err := runValidateCommand(t, "text", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
