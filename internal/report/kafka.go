package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/dpsmeter/internal/engine"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/meter"
)

const (
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// KafkaConfig configures the encounter exporter.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Compression  string // none|gzip|snappy|lz4
	BatchTimeout time.Duration
	MaxAttempts  int
}

// messageWriter is the part of *kafka.Writer the exporter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes an encounter summary each time the meter leaves the
// running state with statistics to report.
type Kafka struct {
	writer messageWriter
	config KafkaConfig
	logger log.Logger

	lastState meter.State

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// NewKafka creates the exporter and its writer.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}

	switch cfg.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	default:
		return nil, fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	k := newKafka(kafka.NewWriter(writerConfig), cfg)
	k.logger.WithFields(map[string]interface{}{
		"brokers":     cfg.Brokers,
		"topic":       cfg.Topic,
		"compression": cfg.Compression,
	}).Info("kafka exporter configured")
	return k, nil
}

func newKafka(w messageWriter, cfg KafkaConfig) *Kafka {
	return &Kafka{
		writer: w,
		config: cfg,
		logger: log.GetLogger().WithField("reporter", "kafka"),
	}
}

func (k *Kafka) Name() string {
	return "kafka"
}

// Accept keeps the views where a running encounter got suspended.
func (k *Kafka) Accept(v engine.View) bool {
	ended := k.lastState == meter.Running && v.State.Suspended()
	k.lastState = v.State
	return ended && len(v.Rows) > 0
}

func (k *Kafka) Report(ctx context.Context, v engine.View) error {
	enc := NewEncounter(v, time.Now())
	value, err := json.Marshal(enc)
	if err != nil {
		k.errorCount.Add(1)
		return fmt.Errorf("serialize encounter failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(int(v.WorldID))),
		Value: value,
		Time:  enc.EndedAt,
		Headers: []kafka.Header{
			{Key: "world", Value: []byte(strconv.Itoa(int(v.WorldID)))},
			{Key: "state", Value: []byte(v.State.String())},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	k.reportedCount.Add(1)
	return nil
}

func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return err
	}
	k.logger.WithFields(map[string]interface{}{
		"total_reported": k.reportedCount.Load(),
		"total_errors":   k.errorCount.Load(),
	}).Info("kafka exporter stopped")
	return nil
}

// Encounter is the exported summary of one encounter.
type Encounter struct {
	WorldID    uint16          `json:"world_id"`
	EndedAt    time.Time       `json:"ended_at"`
	Duration   float64         `json:"duration_seconds"`
	State      string          `json:"state"`
	TeamDamage uint64          `json:"team_damage"`
	Players    []PlayerSummary `json:"players"`
}

// PlayerSummary is one ranked player of an Encounter.
type PlayerSummary struct {
	meter.Row
	DPS         float64 `json:"dps"`
	DamageShare float64 `json:"damage_share"`
}

// NewEncounter summarizes v.
func NewEncounter(v engine.View, endedAt time.Time) Encounter {
	duration := v.Elapsed
	if math.IsNaN(duration) {
		duration = 0
	}
	enc := Encounter{
		WorldID:    v.WorldID,
		EndedAt:    endedAt,
		Duration:   duration,
		State:      v.State.String(),
		TeamDamage: v.TeamDamage(),
		Players:    make([]PlayerSummary, 0, len(v.Rows)),
	}
	for _, r := range v.Rows {
		enc.Players = append(enc.Players, PlayerSummary{
			Row:         r,
			DPS:         r.DPS(v.Elapsed),
			DamageShare: r.DamageShare(),
		})
	}
	return enc
}
