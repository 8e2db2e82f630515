// Package config loads and validates the autoreplyd service configuration
// from a JSON file with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/convodesk/autoreply/errors"
)

// Config is the full service configuration.
type Config struct {
	NATS     NATSConfig     `json:"nats"`
	Rules    RulesConfig    `json:"rules"`
	Subjects SubjectsConfig `json:"subjects"`
	Engine   EngineConfig   `json:"engine"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	MaxReconnects int    `json:"max_reconnects"`
}

// RulesConfig configures where rule definitions come from.
type RulesConfig struct {
	// Source is "file" or "kv".
	Source string `json:"source"`
	// FilePath is the JSON rule definition file for the file source.
	FilePath string `json:"file_path,omitempty"`
	// KVBucket is the JetStream KV bucket for the kv source.
	KVBucket string `json:"kv_bucket,omitempty"`
	// Watch enables hot reload on KV changes.
	Watch bool `json:"watch"`
}

// SubjectsConfig is the NATS subject layout for conversation traffic.
type SubjectsConfig struct {
	Inbound        string `json:"inbound"`
	Agent          string `json:"agent"`
	OutboundPrefix string `json:"outbound_prefix"`
	Events         string `json:"events"`
}

// EngineConfig sizes the engine's internals.
type EngineConfig struct {
	Workers             int `json:"workers"`
	QueueSize           int `json:"queue_size"`
	DispatchLogCapacity int `json:"dispatch_log_capacity"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the
	// endpoint.
	Addr string `json:"addr"`
}

// Default returns a runnable configuration for local development.
func Default() Config {
	return Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "autoreplyd",
			MaxReconnects: -1,
		},
		Rules: RulesConfig{
			Source:   "file",
			FilePath: "configs/rules.json",
		},
		Subjects: SubjectsConfig{
			Inbound:        "conversations.inbound",
			Agent:          "conversations.agent",
			OutboundPrefix: "conversations.outbound",
			Events:         "autoreply.events",
		},
		Engine: EngineConfig{
			Workers:             4,
			QueueSize:           256,
			DispatchLogCapacity: 4096,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads a JSON config file, applies environment overrides, and
// validates the result. A missing path yields the defaults with overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "config", "Load", "read "+path)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.WrapInvalid(err, "config", "Load", "decode "+path)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUTOREPLY_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("AUTOREPLY_RULES_SOURCE"); v != "" {
		c.Rules.Source = v
	}
	if v := os.Getenv("AUTOREPLY_RULES_FILE"); v != "" {
		c.Rules.FilePath = v
	}
	if v := os.Getenv("AUTOREPLY_RULES_BUCKET"); v != "" {
		c.Rules.KVBucket = v
	}
	if v := os.Getenv("AUTOREPLY_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("AUTOREPLY_ENGINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.Workers = n
		}
	}
}

// Validate checks cross-field consistency before the service starts.
func (c Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats.url is required")
	}

	switch c.Rules.Source {
	case "file":
		if c.Rules.FilePath == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"rules.file_path is required for the file source")
		}
	case "kv":
		if c.Rules.KVBucket == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"rules.kv_bucket is required for the kv source")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("rules.source %q (want file or kv)", c.Rules.Source))
	}

	if c.Subjects.Inbound == "" || c.Subjects.Agent == "" || c.Subjects.OutboundPrefix == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"subjects.inbound, subjects.agent, and subjects.outbound_prefix are required")
	}

	if c.Engine.Workers < 0 || c.Engine.QueueSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"engine sizes must be non-negative")
	}
	return nil
}
