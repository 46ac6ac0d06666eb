// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dpsmeter/internal/capture"
	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/meter"
)

// Config represents the top-level configuration.
// Maps to the `dpsmeter:` root key in YAML.
type Config struct {
	Capture capture.Options  `mapstructure:"capture" yaml:"capture"`
	Meter   MeterConfig      `mapstructure:"meter" yaml:"meter"`
	Log     log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Report  ReportConfig     `mapstructure:"report" yaml:"report"`
}

// ─── Meter ───

// MeterConfig tunes the statistics aggregator.
type MeterConfig struct {
	Cadence    time.Duration `mapstructure:"cadence" yaml:"cadence"`         // periodic notification interval while running
	CityWorlds []int         `mapstructure:"city_worlds" yaml:"city_worlds"` // world ids that auto-suspend the meter
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Reporters ───

// ReportConfig configures snapshot consumers.
type ReportConfig struct {
	Console ConsoleReportConfig `mapstructure:"console" yaml:"console"`
	Kafka   KafkaReportConfig   `mapstructure:"kafka" yaml:"kafka"`
}

// ConsoleReportConfig configures the terminal table.
type ConsoleReportConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"` // minimum time between redraws
}

// KafkaReportConfig configures the encounter summary exporter.
type KafkaReportConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	Compression  string        `mapstructure:"compression" yaml:"compression"` // none|gzip|snappy|lz4
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `dpsmeter: ...`.
type configRoot struct {
	DPSMeter Config `mapstructure:"dpsmeter"`
}

// Load loads configuration from file. An empty path yields defaults plus
// environment overrides (e.g. DPSMETER_CAPTURE_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "dpsmeter.log.level" maps to env "DPSMETER_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.DPSMeter

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "dpsmeter." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	def := capture.DefaultOptions()

	// Capture defaults
	v.SetDefault("dpsmeter.capture.backend", string(def.Backend))
	v.SetDefault("dpsmeter.capture.device", def.Device)
	v.SetDefault("dpsmeter.capture.interface", "")
	v.SetDefault("dpsmeter.capture.port", def.Port)
	v.SetDefault("dpsmeter.capture.snap_len", def.SnapLen)
	v.SetDefault("dpsmeter.capture.timeout", def.Timeout.String())
	v.SetDefault("dpsmeter.capture.promiscuous", def.Promiscuous)
	v.SetDefault("dpsmeter.capture.buffer_size_mb", def.BufferSizeMB)
	v.SetDefault("dpsmeter.capture.file", "")
	v.SetDefault("dpsmeter.capture.dump_file", "")

	// Meter defaults
	v.SetDefault("dpsmeter.meter.cadence", meter.DefaultCadence.String())
	v.SetDefault("dpsmeter.meter.city_worlds", defaultCityWorlds())

	// Log defaults
	v.SetDefault("dpsmeter.log.level", "info")
	v.SetDefault("dpsmeter.log.pattern", log.DefaultPattern)
	v.SetDefault("dpsmeter.log.time", log.DefaultTimeLayout)
	v.SetDefault("dpsmeter.log.caller", false)
	v.SetDefault("dpsmeter.log.stdout", false)
	v.SetDefault("dpsmeter.log.file.filename", "")
	v.SetDefault("dpsmeter.log.file.max_size", 50)
	v.SetDefault("dpsmeter.log.file.max_backups", 3)
	v.SetDefault("dpsmeter.log.file.max_age", 7)
	v.SetDefault("dpsmeter.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("dpsmeter.metrics.enabled", false)
	v.SetDefault("dpsmeter.metrics.listen", "127.0.0.1:9091")
	v.SetDefault("dpsmeter.metrics.path", "/metrics")

	// Reporter defaults
	v.SetDefault("dpsmeter.report.console.enabled", true)
	v.SetDefault("dpsmeter.report.console.interval", "500ms")
	v.SetDefault("dpsmeter.report.kafka.enabled", false)
	v.SetDefault("dpsmeter.report.kafka.brokers", []string{})
	v.SetDefault("dpsmeter.report.kafka.topic", "dpsmeter.encounters")
	v.SetDefault("dpsmeter.report.kafka.compression", "snappy")
	v.SetDefault("dpsmeter.report.kafka.batch_timeout", "100ms")
	v.SetDefault("dpsmeter.report.kafka.max_attempts", 3)
}

func defaultCityWorlds() []int {
	ids := make([]int, 0, len(meter.DefaultCityWorlds))
	for _, id := range meter.DefaultCityWorlds {
		ids = append(ids, int(id))
	}
	return ids
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}

	// ── Capture ──
	if cfg.Capture.Backend == "" {
		cfg.Capture.Backend = capture.TypePCAP
	}
	if err := cfg.Capture.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	// ── Meter ──
	if cfg.Meter.Cadence <= 0 {
		return fmt.Errorf("%w: meter.cadence must be positive, got %s", core.ErrConfigInvalid, cfg.Meter.Cadence)
	}
	for _, w := range cfg.Meter.CityWorlds {
		if w < 0 || w > 0xFFFF {
			return fmt.Errorf("%w: meter.city_worlds entry %d out of range", core.ErrConfigInvalid, w)
		}
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// ── Kafka reporter ──
	if cfg.Report.Kafka.Enabled {
		if len(cfg.Report.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: report.kafka.brokers is required when report.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Report.Kafka.Topic == "" {
			return fmt.Errorf("%w: report.kafka.topic is required when report.kafka.enabled=true", core.ErrConfigInvalid)
		}
		switch cfg.Report.Kafka.Compression {
		case "", "none", "gzip", "snappy", "lz4":
		default:
			return fmt.Errorf("%w: invalid report.kafka.compression: %s", core.ErrConfigInvalid, cfg.Report.Kafka.Compression)
		}
	}

	return nil
}

// CityWorldIDs returns meter.city_worlds as world ids.
func (cfg *Config) CityWorldIDs() []uint16 {
	ids := make([]uint16, 0, len(cfg.Meter.CityWorlds))
	for _, w := range cfg.Meter.CityWorlds {
		ids = append(ids, uint16(w))
	}
	return ids
}

// YAML renders the effective configuration under the `dpsmeter:` root key.
func (cfg *Config) YAML() ([]byte, error) {
	return yaml.Marshal(map[string]*Config{"dpsmeter": cfg})
}
