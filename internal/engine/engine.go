// Package engine runs the capture, reassembly, decoding and aggregation
// stages. Everything after the capture goroutine runs on a single pipeline
// goroutine; other goroutines talk to it through commands.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/dpsmeter/internal/capture"
	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/meter"
	"firestige.xyz/dpsmeter/internal/protocol"
	"firestige.xyz/dpsmeter/internal/stream"
)

// Listener receives a fresh View after every change. It is called on the
// pipeline goroutine and must not block.
type Listener func(View)

// Config configures an Engine.
type Config struct {
	Source    capture.Source // nil runs the engine without input
	Listeners []Listener
	Meter     []meter.Option

	// FrameClock drives the encounter clock from capture timestamps
	// instead of the wall clock, for replays.
	FrameClock bool

	Logger log.Logger
}

type command struct {
	fn    func()
	reply chan struct{}
}

// Engine owns the pipeline stages.
type Engine struct {
	source    capture.Source
	listeners []Listener
	logger    log.Logger

	reasm *stream.Reassembler
	dec   *protocol.Decoder
	meter *meter.Meter

	frames chan core.Frame
	cmds   chan command

	frameTime time.Time
	dirty     bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopped     chan struct{}
	captureDone chan struct{}
}

// New wires the stages. The engine does nothing until Start.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		source:      cfg.Source,
		listeners:   cfg.Listeners,
		logger:      logger.WithField("stage", "engine"),
		frames:      make(chan core.Frame),
		cmds:        make(chan command),
		ctx:         ctx,
		cancel:      cancel,
		stopped:     make(chan struct{}),
		captureDone: make(chan struct{}),
	}

	opts := []meter.Option{meter.WithLogger(logger)}
	opts = append(opts, cfg.Meter...)
	opts = append(opts, meter.WithListener(e.markDirty))
	if cfg.FrameClock {
		opts = append(opts, meter.WithClock(e.now))
	}
	e.meter = meter.New(opts...)
	e.dec = protocol.NewDecoder(e.meter.Apply, logger)
	e.reasm = stream.NewReassembler(e.decode, logger)
	return e
}

// Start launches the pipeline goroutine and, when a source is configured,
// the capture goroutine.
func (e *Engine) Start() error {
	e.logger.Info("engine starting")

	e.wg.Add(1)
	go e.processLoop()

	if e.source == nil {
		close(e.captureDone)
		return nil
	}
	e.wg.Add(1)
	go e.captureLoop()
	return nil
}

// Stop stops both goroutines and waits for them.
func (e *Engine) Stop() error {
	e.logger.Info("engine stopping")
	e.cancel()
	e.wg.Wait()
	if e.source != nil {
		if err := e.source.Close(); err != nil {
			return fmt.Errorf("close source: %w", err)
		}
	}
	return nil
}

// CaptureDone is closed once the source stops producing frames. Every
// frame it produced has been processed by then.
func (e *Engine) CaptureDone() <-chan struct{} {
	return e.captureDone
}

// Suspend freezes the encounter clock; see meter.Meter.Suspend.
func (e *Engine) Suspend(ctx context.Context, autoResume bool) error {
	return e.exec(ctx, func() { e.meter.Suspend(autoResume) })
}

// Resume resumes a suspended encounter clock.
func (e *Engine) Resume(ctx context.Context) error {
	return e.exec(ctx, e.meter.Resume)
}

// Reset clears all statistics, forgets the tracked connection and drops
// any partially decoded message.
func (e *Engine) Reset(ctx context.Context) error {
	return e.exec(ctx, func() {
		e.reasm.Reset()
		e.dec.Reset()
		e.meter.Reset()
	})
}

// View returns a snapshot of the current state.
func (e *Engine) View(ctx context.Context) (View, error) {
	var v View
	err := e.exec(ctx, func() { v = e.view() })
	return v, err
}

func (e *Engine) exec(ctx context.Context, fn func()) error {
	c := command{fn: fn, reply: make(chan struct{})}
	select {
	case e.cmds <- c:
	case <-e.stopped:
		return core.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.reply:
		return nil
	case <-e.stopped:
		return core.ErrEngineStopped
	}
}

func (e *Engine) captureLoop() {
	defer e.wg.Done()
	defer close(e.captureDone)

	if err := e.source.Serve(e.ctx, e.frames); err != nil {
		if e.ctx.Err() == nil {
			e.logger.WithError(err).Error("capture failed")
		}
	}
	// Serve only returns after its last send was received; a round trip
	// through the pipeline goroutine ensures that frame was processed.
	_ = e.exec(e.ctx, func() {})
	e.logger.Info("capture finished")
}

func (e *Engine) processLoop() {
	defer e.wg.Done()
	defer close(e.stopped)
	defer e.meter.Cadence().Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case f := <-e.frames:
			e.feed(f)
		case c := <-e.cmds:
			c.fn()
			close(c.reply)
		case <-e.meter.Cadence().C():
			e.meter.Tick()
		}
		e.flush()
	}
}

func (e *Engine) feed(f core.Frame) {
	if !f.Timestamp.IsZero() {
		e.frameTime = f.Timestamp
	}
	if err := e.reasm.Feed(f.Data); err != nil && e.logger.IsDebugEnabled() {
		e.logger.WithError(err).WithField("link", f.Link.String()).Debug("packet dropped")
	}
}

func (e *Engine) decode(p []byte) {
	_, _ = e.dec.Write(p)
}

func (e *Engine) now() time.Time {
	return e.frameTime
}

func (e *Engine) markDirty() {
	e.dirty = true
}

// flush publishes one View per pipeline step no matter how many
// notifications the step produced.
func (e *Engine) flush() {
	if !e.dirty {
		return
	}
	e.dirty = false
	if len(e.listeners) == 0 {
		return
	}
	v := e.view()
	for _, l := range e.listeners {
		l(v)
	}
}
