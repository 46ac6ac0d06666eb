package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dpsmeter/internal/capture"
	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/meter"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dpsmeter.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, capture.TypePCAP, cfg.Capture.Backend)
	assert.Equal(t, "any", cfg.Capture.Device)
	assert.Equal(t, uint16(15011), cfg.Capture.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Capture.Timeout)
	assert.Equal(t, 40*time.Millisecond, cfg.Meter.Cadence)
	assert.Equal(t, meter.DefaultCityWorlds, cfg.CityWorldIDs())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Report.Console.Enabled)
	assert.False(t, cfg.Report.Kafka.Enabled)
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
dpsmeter:
  capture:
    backend: af_packet
    interface: eth0
    port: 16000
    buffer_size_mb: 4
  meter:
    cadence: 100ms
    city_worlds: [1, 2]
  log:
    level: debug
  metrics:
    enabled: true
    listen: ":9100"
  report:
    kafka:
      enabled: true
      brokers: ["localhost:9092"]
      topic: encounters
      compression: lz4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, capture.TypeAFPacket, cfg.Capture.Backend)
	assert.Equal(t, "eth0", cfg.Capture.Interface)
	assert.Equal(t, uint16(16000), cfg.Capture.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Meter.Cadence)
	assert.Equal(t, []uint16{1, 2}, cfg.CityWorldIDs())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Report.Kafka.Brokers)
	assert.Equal(t, "lz4", cfg.Report.Kafka.Compression)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DPSMETER_CAPTURE_PORT", "17000")
	t.Setenv("DPSMETER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint16(17000), cfg.Capture.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"bad log level", "dpsmeter:\n  log:\n    level: loud\n"},
		{"file backend without file", "dpsmeter:\n  capture:\n    backend: file\n"},
		{"zero cadence", "dpsmeter:\n  meter:\n    cadence: 0s\n"},
		{"kafka without brokers", "dpsmeter:\n  report:\n    kafka:\n      enabled: true\n"},
		{"bad compression", "dpsmeter:\n  report:\n    kafka:\n      enabled: true\n      brokers: [a]\n      compression: zstd9\n"},
		{"world out of range", "dpsmeter:\n  meter:\n    city_worlds: [70000]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid), "got %v", err)
		})
	}
}

func TestUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, "dpsmeter:\n  capture:\n    backend: windivert\n"))
	assert.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	require.Contains(t, doc, "dpsmeter")
	assert.Contains(t, doc["dpsmeter"], "capture")

	reloaded, err := Load(writeConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Capture, reloaded.Capture)
	assert.Equal(t, cfg.Meter, reloaded.Meter)
}
