package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "nats": {"url": "nats://broker:4222", "name": "autoreplyd-prod"},
	  "rules": {"source": "kv", "kv_bucket": "autoreply-rules", "watch": true},
	  "metrics": {"addr": ":9100"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "kv", cfg.Rules.Source)
	assert.Equal(t, "autoreply-rules", cfg.Rules.KVBucket)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)

	// Unset sections keep their defaults.
	assert.Equal(t, "conversations.inbound", cfg.Subjects.Inbound)
	assert.Equal(t, 4, cfg.Engine.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().NATS.URL, cfg.NATS.URL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOREPLY_NATS_URL", "nats://override:4222")
	t.Setenv("AUTOREPLY_RULES_SOURCE", "kv")
	t.Setenv("AUTOREPLY_RULES_BUCKET", "rules-bucket")
	t.Setenv("AUTOREPLY_ENGINE_WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, "kv", cfg.Rules.Source)
	assert.Equal(t, "rules-bucket", cfg.Rules.KVBucket)
	assert.Equal(t, 8, cfg.Engine.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing nats url", func(c *Config) { c.NATS.URL = "" }},
		{"unknown rules source", func(c *Config) { c.Rules.Source = "database" }},
		{"file source without path", func(c *Config) { c.Rules.FilePath = "" }},
		{"kv source without bucket", func(c *Config) { c.Rules.Source = "kv"; c.Rules.KVBucket = "" }},
		{"missing inbound subject", func(c *Config) { c.Subjects.Inbound = "" }},
		{"negative workers", func(c *Config) { c.Engine.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
