package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxFormSize)
	assert.Equal(t, "./master_data.md", cfg.MasterData.LocalPath)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryBackoff)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MASTER_DATA_URL", "https://example.com/profile.md")
	t.Setenv("OPENAI_TIMEOUT", "30s")
	t.Setenv("OPENAI_MAX_RETRIES", "3")
	t.Setenv("MAX_FORM_SIZE", "1048576")

	cfg := LoadConfig()
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://example.com/profile.md", cfg.MasterData.SourceURL)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxFormSize)
}

func TestLoadConfigIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("OPENAI_TIMEOUT", "soon")
	t.Setenv("OPENAI_MAX_RETRIES", "lots")

	cfg := LoadConfig()
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.Server.HTTPAddr = ""
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.MasterData.SourceURL = ""
	cfg.MasterData.LocalPath = ""
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Server.MaxFormSize = 0
	assert.Error(t, cfg.Validate())
}
