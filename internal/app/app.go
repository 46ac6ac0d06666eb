// Package app assembles the meter from configuration and manages its
// lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/dpsmeter/internal/capture"
	"firestige.xyz/dpsmeter/internal/config"
	"firestige.xyz/dpsmeter/internal/engine"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/meter"
	"firestige.xyz/dpsmeter/internal/metrics"
	"firestige.xyz/dpsmeter/internal/report"
)

// Options adjust how the configuration is run.
type Options struct {
	Output      io.Writer // console table destination
	ClearScreen bool      // redraw the console table in place
	FrameClock  bool      // time encounters by capture timestamps
}

// App owns every component of a running meter.
type App struct {
	config *config.Config
	opts   Options
	logger log.Logger

	source        capture.Source // nil when capture could not be opened
	engine        *engine.Engine
	dispatcher    *report.Dispatcher
	metricsServer *metrics.Server

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	sigChan      chan os.Signal
}

// New creates an App for cfg.
func New(cfg *config.Config, opts Options) *App {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config:       cfg,
		opts:         opts,
		logger:       log.GetLogger().WithField("stage", "app"),
		ctx:          ctx,
		cancel:       cancel,
		shutdownChan: make(chan struct{}),
	}
}

// Start opens the capture, builds the reporters and starts the engine.
// A capture that fails to open leaves the meter running without input.
func (a *App) Start() error {
	a.logger.WithFields(map[string]interface{}{
		"backend": string(a.config.Capture.Backend),
		"port":    a.config.Capture.Port,
	}).Info("starting dpsmeter")

	if err := a.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	a.source = a.openSource()
	a.dispatcher = report.NewDispatcher(report.DefaultQueueSize, a.reporters()...)

	a.engine = engine.New(engine.Config{
		Source:     a.source,
		Listeners:  []engine.Listener{a.dispatcher.Listener()},
		FrameClock: a.opts.FrameClock,
		Meter: []meter.Option{
			meter.WithCadence(a.config.Meter.Cadence),
			meter.WithCityWorlds(a.config.CityWorldIDs()),
		},
	})

	a.dispatcher.Start(a.ctx)
	if err := a.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	return nil
}

func (a *App) openSource() capture.Source {
	src, err := capture.New(a.config.Capture)
	if err != nil {
		a.logger.WithError(err).Warn("capture unavailable, meter will not update")
		return nil
	}
	if err := src.Open(a.config.Capture.Port); err != nil {
		a.logger.WithError(err).Warn("capture failed to open, meter will not update")
		_ = src.Close()
		return nil
	}
	return src
}

func (a *App) reporters() []report.Reporter {
	var rs []report.Reporter
	if c := a.config.Report.Console; c.Enabled {
		rs = append(rs, report.NewConsole(a.opts.Output, c.Interval, a.opts.ClearScreen))
	}
	if k := a.config.Report.Kafka; k.Enabled {
		r, err := report.NewKafka(report.KafkaConfig{
			Brokers:      k.Brokers,
			Topic:        k.Topic,
			Compression:  k.Compression,
			BatchTimeout: k.BatchTimeout,
			MaxAttempts:  k.MaxAttempts,
		})
		if err != nil {
			// non-fatal: the console still works
			a.logger.WithError(err).Error("failed to create kafka exporter")
		} else {
			rs = append(rs, r)
		}
	}
	return rs
}

func (a *App) startMetrics() error {
	if !a.config.Metrics.Enabled {
		return nil
	}
	a.metricsServer = metrics.NewServer(a.config.Metrics.Listen, a.config.Metrics.Path)
	return a.metricsServer.Start(a.ctx)
}

// Engine returns the running engine. It is nil before Start.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Capturing reports whether a packet source is attached.
func (a *App) Capturing() bool {
	return a.source != nil
}

// Shutdown asks Run to stop. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() { close(a.shutdownChan) })
}

// Run blocks until SIGINT/SIGTERM or Shutdown, then stops the App.
func (a *App) Run() error {
	a.sigChan = make(chan os.Signal, 1)
	signal.Notify(a.sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-a.sigChan:
		a.logger.WithField("signal", sig.String()).Info("received shutdown signal")
	case <-a.shutdownChan:
		a.logger.Info("shutdown requested")
	}
	return a.Stop()
}

// Stop shuts every component down in dependency order.
func (a *App) Stop() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if a.engine != nil {
		keep(a.engine.Stop())
	}
	if a.dispatcher != nil {
		keep(a.dispatcher.Stop())
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		keep(a.metricsServer.Stop(shutdownCtx))
		cancel()
	}
	a.cancel()
	if a.sigChan != nil {
		signal.Stop(a.sigChan)
	}

	a.logger.Info("dpsmeter stopped")
	return first
}
