// Package config loads the runtime configuration file with environment
// variable interpolation and validates it before any component starts.
package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"aria/internal/errors"
)

// RuntimeConfig is the full runtime configuration document.
type RuntimeConfig struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Runtime   CoreConfig      `yaml:"runtime"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Decision  DecisionConfig  `yaml:"decision"`
	Update    UpdateConfig    `yaml:"update"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// CoreConfig configures routing and inference.
type CoreConfig struct {
	InputDim     int    `yaml:"input_dim"`
	ManifestPath string `yaml:"manifest_path"`
	SessionCache int    `yaml:"session_cache"`
}

// TelemetryConfig configures the sampled event journal.
type TelemetryConfig struct {
	Path        string         `yaml:"path"`
	DefaultRate float64        `yaml:"default_rate"`
	Rules       []SamplingRule `yaml:"rules"`
}

// SamplingRule maps an event-name prefix to a sampling rate.
type SamplingRule struct {
	Prefix string  `yaml:"prefix"`
	Rate   float64 `yaml:"rate"`
}

// DecisionConfig configures the confidence gate.
type DecisionConfig struct {
	DefaultGate float64            `yaml:"default_gate"`
	SafetyGate  float64            `yaml:"safety_gate"`
	Gates       map[string]float64 `yaml:"gates"`
	Calibration []float64          `yaml:"calibration"`
	Disclaimer  string             `yaml:"disclaimer"`
}

// UpdateConfig configures the signed-update worker.
type UpdateConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ManifestURL     string `yaml:"manifest_url"`
	PublicKeyBase64 string `yaml:"public_key"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// Interval returns the update check interval.
func (u UpdateConfig) Interval() time.Duration {
	if u.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(u.IntervalSeconds) * time.Second
}

// Default returns the configuration used when no file is present.
func Default() RuntimeConfig {
	return RuntimeConfig{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Runtime: CoreConfig{InputDim: 64},
		Telemetry: TelemetryConfig{
			Path:        "~/.aria/telemetry.jsonl",
			DefaultRate: 1.0,
		},
		Decision: DecisionConfig{
			DefaultGate: 0.7,
			SafetyGate:  0.8,
			Calibration: []float64{0.10, 0.30, 0.52, 0.71, 0.88},
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with environment values; unset
// variables expand to the empty string.
func ExpandEnv(value string) string {
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		return os.Getenv(name)
	})
}

// Load reads a YAML config file, applies env interpolation and defaults, and
// validates the result. An empty path or missing file yields the defaults.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, nil
			}
			return RuntimeConfig{}, fmt.Errorf("read config file: %w", err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			expanded := ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return RuntimeConfig{}, errors.NewConfigError("parse config file", err)
			}
		}
	}

	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *RuntimeConfig) {
	defaults := Default()
	if cfg.Runtime.InputDim <= 0 {
		cfg.Runtime.InputDim = defaults.Runtime.InputDim
	}
	if cfg.Telemetry.Path == "" {
		cfg.Telemetry.Path = defaults.Telemetry.Path
	}
	if cfg.Decision.DefaultGate == 0 {
		cfg.Decision.DefaultGate = defaults.Decision.DefaultGate
	}
	if cfg.Decision.SafetyGate == 0 {
		cfg.Decision.SafetyGate = defaults.Decision.SafetyGate
	}
	if len(cfg.Decision.Calibration) == 0 {
		cfg.Decision.Calibration = defaults.Decision.Calibration
	}
	cfg.Telemetry.Path = expandHome(cfg.Telemetry.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

// Validate checks cross-field constraints before components start.
func Validate(cfg RuntimeConfig) error {
	if cfg.Runtime.InputDim <= 0 {
		return errors.NewConfigError("runtime.input_dim must be positive", nil)
	}
	if cfg.Telemetry.DefaultRate < 0 || cfg.Telemetry.DefaultRate > 1 {
		return errors.NewConfigError("telemetry.default_rate must be in [0, 1]", nil)
	}
	for _, rule := range cfg.Telemetry.Rules {
		if rule.Prefix == "" {
			return errors.NewConfigError("telemetry rule missing prefix", nil)
		}
		if rule.Rate < 0 || rule.Rate > 1 {
			return errors.NewConfigError(fmt.Sprintf("telemetry rule %q rate must be in [0, 1]", rule.Prefix), nil)
		}
	}
	if len(cfg.Decision.Calibration) != 5 {
		return errors.NewConfigError("decision.calibration must have exactly 5 bucket accuracies", nil)
	}
	for i, accuracy := range cfg.Decision.Calibration {
		if accuracy < 0 || accuracy > 1 {
			return errors.NewConfigError(fmt.Sprintf("decision.calibration[%d] must be in [0, 1]", i), nil)
		}
	}
	for id, gate := range cfg.Decision.Gates {
		if gate <= 0 || gate > 1 {
			return errors.NewConfigError(fmt.Sprintf("decision gate for %q must be in (0, 1]", id), nil)
		}
	}
	if cfg.Update.Enabled {
		if cfg.Update.ManifestURL == "" {
			return errors.NewConfigError("update.manifest_url required when update is enabled", nil)
		}
		if cfg.Update.PublicKeyBase64 == "" {
			return errors.NewConfigError("update.public_key required when update is enabled", nil)
		}
	}
	return nil
}
