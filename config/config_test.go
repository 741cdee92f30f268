package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.3, cfg.Router.DispatchThreshold)
	assert.Equal(t, 0.1, cfg.Router.AmbiguityMargin)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.NotEmpty(t, cfg.Router.TabularKeywords)
	assert.NotEmpty(t, cfg.Router.ResearchKeywords)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dispatch threshold", func(c *Config) { c.Router.DispatchThreshold = 0 }},
		{"negative margin", func(c *Config) { c.Router.AmbiguityMargin = -0.1 }},
		{"overlap >= max size", func(c *Config) { c.Chunking.Overlap = c.Chunking.MaxSize }},
		{"zero top-k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"similarity out of range", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }},
		{"bad port", func(c *Config) { c.Server.HTTPPort = -1 }},
		{"persistence without path", func(c *Config) {
			c.Persistence.Enabled = true
			c.Persistence.Path = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
router:
  dispatch_threshold: 0.4
retrieval:
  top_k: 7
chunking:
  max_size: 800
  overlap: 80
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.Router.DispatchThreshold)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, 800, cfg.Chunking.MaxSize)
	// 未覆盖的字段保留默认值
	assert.Equal(t, 0.1, cfg.Router.AmbiguityMargin)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("QUERYDESK_RETRIEVAL_TOP_K", "9")
	t.Setenv("QUERYDESK_EMBEDDING_MODEL", "test-model")
	t.Setenv("QUERYDESK_ROUTER_DISPATCH_THRESHOLD", "0.55")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Retrieval.TopK)
	assert.Equal(t, "test-model", cfg.Embedding.Model)
	assert.Equal(t, 0.55, cfg.Router.DispatchThreshold)
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("QD_RETRIEVAL_TOP_K", "11")

	cfg, err := NewLoader().WithEnvPrefix("QD").Load()
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Retrieval.TopK)
}
