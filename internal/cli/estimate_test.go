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

const traceYAML = `
name: cold-walk
turns:
  - fetches:
      - {path: /index.json, size: 410}
  - fetches:
      - {path: /series/2.x/index.json, size: 1900}
  - fetches:
      - {path: /series/2.x/2.0.1.json, size: 2400}
`

func runEstimateCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewEstimateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestEstimateCommandTextReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(traceYAML), 0644))

	buf, err := runEstimateCommand(t, "text", path)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "cold-walk")
	assert.Contains(t, out, "3 turn(s)")
	assert.Contains(t, out, "4710 bytes")
	assert.Contains(t, out, "small-first")
	assert.Contains(t, out, "collapsed")
}

func TestEstimateCommandJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(traceYAML), 0644))

	buf, err := runEstimateCommand(t, "json", path)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cold-walk", data["trace"])
	assert.Equal(t, float64(3), data["turn_count"])

	cost, ok := data["cost"].(map[string]any)
	require.True(t, ok)
	collapsed, ok := data["collapsed"].(map[string]any)
	require.True(t, ok)
	assert.Less(t, collapsed["cumulative"].(float64), cost["cumulative"].(float64))
}

func TestEstimateCommandMissingTrace(t *testing.T) {
	_, err := runEstimateCommand(t, "text", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
