package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearKeyEnv keeps ambient API keys from leaking into provider selection.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DASHSCOPE_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearKeyEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 8, cfg.Batch.MaxWorkers)
	assert.Equal(t, SemanticStrict, cfg.Correction.SemanticCheck)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
llm:
  provider: gemini
  model: gemini-2.0-flash
databases:
  root: /data/bird
  exec_timeout: 30s
correction:
  semantic_check: relaxed
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	clearKeyEnv(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "/data/bird", cfg.Databases.Root)
	assert.Equal(t, 30*time.Second, cfg.GetExecTimeout())
	assert.Equal(t, SemanticRelaxed, cfg.Correction.SemanticCheck)
	// Untouched keys keep defaults.
	assert.Equal(t, 5, cfg.Databases.PreviewRows)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")
	t.Setenv("DYNSQL_DB_ROOT", "/mnt/databases")

	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "/mnt/databases", cfg.Databases.Root)
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Databases.Root = "/data/dev_databases"

	assert.Equal(t,
		filepath.Join("/data/dev_databases", "california_schools", "california_schools.sqlite"),
		cfg.DatabasePath("california_schools"))
}

func TestGetTimeouts_BadValuesFallBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	cfg.Databases.ExecTimeout = ""

	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 60*time.Second, cfg.GetExecTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) { c.LLM.APIKey = "sk-test" },
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) {},
			wantErr: "API key",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.LLM.APIKey = "sk-test"
				c.LLM.Provider = "anthropic"
			},
			wantErr: "invalid LLM provider",
		},
		{
			name: "bad semantic mode",
			mutate: func(c *Config) {
				c.LLM.APIKey = "sk-test"
				c.Correction.SemanticCheck = "lenient"
			},
			wantErr: "semantic_check",
		},
		{
			name: "negative workers",
			mutate: func(c *Config) {
				c.LLM.APIKey = "sk-test"
				c.Batch.MaxWorkers = -1
			},
			wantErr: "max_workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Databases.Root = "/data/bird"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/bird", loaded.Databases.Root)
}
