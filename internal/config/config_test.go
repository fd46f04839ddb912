package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrosaalves/industrial-model/internal/schema"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "industrial-model.db", cfg.Database)
	assert.Equal(t, "|", cfg.Separator)
	assert.Equal(t, 1000, cfg.DefaultLimit)
	assert.Equal(t, schema.DefaultPolicy(), cfg.SchemaPolicy())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "imodel.yaml", `
database: /tmp/assets.db
separator: "."
default_limit: 50
space: plant-a
policy:
  self_chain_depth: 5
  max_type_visits: 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/assets.db", cfg.Database)
	assert.Equal(t, ".", cfg.Separator)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, "plant-a", cfg.Space)
	assert.Equal(t, schema.Policy{SelfChainDepth: 5, MaxTypeVisits: 1}, cfg.SchemaPolicy())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "imodel.yaml", "database: other.db\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "other.db", cfg.Database)
	assert.Equal(t, "|", cfg.Separator)
	assert.Equal(t, 3, cfg.Policy.SelfChainDepth)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "imodel.yaml", "database: file.db\ndefault_limit: 10\n")
	t.Setenv("IMODEL_DATABASE", "env.db")
	t.Setenv("IMODEL_POLICY_MAX_TYPE_VISITS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, 10, cfg.DefaultLimit)
	assert.Equal(t, 4, cfg.Policy.MaxTypeVisits)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "zero limit",
			content: "default_limit: 0\n",
			wantErr: "default_limit must be positive",
		},
		{
			name:    "empty separator",
			content: "separator: \"\"\n",
			wantErr: "separator must not be empty",
		},
		{
			name:    "bad policy",
			content: "policy:\n  self_chain_depth: 0\n",
			wantErr: "self chain depth",
		},
		{
			name:    "negative limit from env",
			content: "database: x.db\n",
			env:     map[string]string{"IMODEL_DEFAULT_LIMIT": "-1"},
			wantErr: "default_limit must be positive",
		},
		{
			name:    "malformed yaml",
			content: "database: [unterminated\n",
			wantErr: "read config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "imodel.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidateJoinsErrors(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	for _, want := range []string{"database", "separator", "default_limit", "policy"} {
		assert.Contains(t, err.Error(), want)
	}
}
