package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Detect.TopN)
	assert.Equal(t, 50, cfg.Detect.EmbeddingDim)
	assert.Equal(t, "/api/deepseek", cfg.Relay.Prefix)
	assert.Equal(t, ":5173", cfg.Relay.Addr)
}

func TestLoadTOMLThenEnv(t *testing.T) {
	path := writeFile(t, "config.toml", `
[model]
base_url = "https://models.example/v1"
timeout_ms = 5000

[detect]
top_n = 5
segment_mode = "window"
window_words = 40
overlap_words = 10
`)
	t.Setenv("AI_TOP_N", "7")
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://models.example/v1", cfg.Model.BaseURL)
	assert.Equal(t, 5000, cfg.Model.TimeoutMs)
	assert.Equal(t, 7, cfg.Detect.TopN)
	assert.Equal(t, "window", cfg.Detect.SegmentMode)
	assert.Equal(t, ":9000", cfg.Relay.Addr)
	assert.Equal(t, "judge", cfg.Model.JudgeAction, "unset fields keep defaults")
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "detect:\n  local_embedding: true\n  embedding_dim: 16\ndatabase:\n  driver: postgres\n  dsn: postgres://u@localhost/db\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Detect.LocalEmbedding)
	assert.Equal(t, 16, cfg.Detect.EmbeddingDim)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "config.toml", `
[detect]
top_n = 0
segment_mode = "paragraph"

[log]
level = "loud"
`)
	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{"top_n", "segment_mode", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "config.ini", "x=1"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("DEEPSEEK_BASE_URL", "https://upstream.example")
	t.Setenv("AI_LOCAL_EMBEDDING", "yes")
	t.Setenv("AI_MODEL_TIMEOUT_MS", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://upstream.example", cfg.Relay.Upstream)
	assert.True(t, cfg.Detect.LocalEmbedding)
	assert.Equal(t, 30000, cfg.Model.TimeoutMs, "unparsable values fall back")
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "AI_DOTENV_PROBE=from-file\nAI_DOTENV_KEEP=from-file\n")
	t.Setenv("AI_DOTENV_KEEP", "from-env")
	t.Setenv("AI_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("AI_DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("AI_DOTENV_PROBE"))
	assert.Equal(t, "from-env", os.Getenv("AI_DOTENV_KEEP"))
	require.NoError(t, os.Unsetenv("AI_DOTENV_PROBE"))
}
