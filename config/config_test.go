package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Document.ChunkSize)
	assert.Equal(t, 50, cfg.Document.ChunkOverlap)
	assert.Equal(t, 4, cfg.Search.RetrievalK)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", cfg.LLM.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1/chat/completions", cfg.LLM.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2000, cfg.LLM.SummaryLimit)
	assert.Equal(t, "ollama", cfg.Embed.Provider)
	assert.Empty(t, cfg.Embed.Model)
	assert.Equal(t, "memory", cfg.VectorDB.Type)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Chart.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: llama-3.3-70b-versatile
  api_key: ${TEST_COMPLETION_KEY}
  temperature: 0.2
document:
  chunk_size: 800
  chunk_overlap: 100
search:
  retrieval_k: 6
session:
  ttl: 30m
`)
	t.Setenv("TEST_COMPLETION_KEY", "secret-from-env")
	t.Setenv("SEARCH_RETRIEVAL_K", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, "secret-from-env", cfg.LLM.APIKey)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 800, cfg.Document.ChunkSize)
	assert.Equal(t, 100, cfg.Document.ChunkOverlap)
	assert.Equal(t, 8, cfg.Search.RetrievalK)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}

func TestLoadGroqKeyFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
}

func TestLoadRejectsInvalidChunking(t *testing.T) {
	path := writeConfig(t, `
document:
  chunk_size: 100
  chunk_overlap: 100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChunkOverlap")
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	bad := *cfg
	bad.Search.RetrievalK = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.LLM.Provider = "bedrock"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Embed.Provider = "openai"
	bad.Embed.APIKey = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Embed.Provider = "local"
	assert.NoError(t, bad.Validate())

	bad = *cfg
	bad.VectorDB.Type = "qdrant"
	assert.Error(t, bad.Validate())
}
