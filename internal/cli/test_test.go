package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrosaalves/industrial-model/internal/testutil"
)

const scenariosDir = "testdata/scenarios"

const failingScenario = `name: wrong_count
description: "Expects a count the data cannot produce"
views: assets.cue
setup:
  - view: Asset
    items:
      - {externalId: root, space: plant-a, name: root}
flow:
  - name: all
    view: Asset
    query: {}
    expect:
      count: 5
`

func copyScenario(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(scenariosDir, "assets.yaml"))
	require.NoError(t, err)
	return testutil.WriteFile(t, dir, "assets.yaml", string(data))
}

func TestTestCommandPasses(t *testing.T) {
	out, err := execute(t, "test", viewsDir, scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ assets")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(t, "test", viewsDir, scenariosDir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "assets", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "wrong_count.yaml", failingScenario)

	out, err := execute(t, "test", viewsDir, dir)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitFailure, exitErr.Code)
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "step all: expected 5 item(s), got 1")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "wrong_count.yaml", failingScenario)

	out, err := execute(t, "test", viewsDir, dir, "--format", "json")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeTestFailed)
	assert.Contains(t, out, "1 scenario(s) failed")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir)

	_, err := execute(t, "test", viewsDir, dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "assets.golden")
	require.FileExists(t, golden)

	out, err := execute(t, "test", viewsDir, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ assets")

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario":"assets","trace":[]}`), 0o644))
	out, err = execute(t, "test", viewsDir, dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file assets.golden")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir)
	testutil.WriteFile(t, dir, "wrong_count.yaml", failingScenario)

	out, err := execute(t, "test", viewsDir, dir, "--filter", "asset*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
	assert.NotContains(t, out, "wrong_count")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(t, "test", viewsDir, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDirs(t *testing.T) {
	tests := []struct {
		name  string
		views string
		scens string
	}{
		{"views", "testdata/nope", scenariosDir},
		{"scenarios", viewsDir, "testdata/nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "test", tt.views, tt.scens)
			require.Error(t, err)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, ExitCommandError, exitErr.Code)
		})
	}
}
