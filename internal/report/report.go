// Package report delivers engine views to reporters. Each reporter runs
// on its own goroutine behind a bounded queue so a slow reporter never
// stalls the pipeline.
package report

import (
	"context"
	"sync"

	"firestige.xyz/dpsmeter/internal/engine"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/metrics"
)

// Reporter consumes views.
type Reporter interface {
	// Name identifies the reporter in logs and metrics.
	Name() string

	// Accept is called on the pipeline goroutine for every view, in
	// order. Returning true queues the view for Report. It must not block.
	Accept(v engine.View) bool

	// Report handles one accepted view on the reporter goroutine.
	Report(ctx context.Context, v engine.View) error

	// Close flushes and releases the reporter.
	Close() error
}

// DefaultQueueSize is the number of accepted views a reporter may lag
// behind before views are dropped.
const DefaultQueueSize = 16

type worker struct {
	reporter Reporter
	queue    chan engine.View
}

// Dispatcher fans views out to reporters.
type Dispatcher struct {
	mu      sync.Mutex
	workers []*worker
	closed  bool
	wg      sync.WaitGroup
	logger  log.Logger
}

// NewDispatcher creates a dispatcher for reporters.
func NewDispatcher(queueSize int, reporters ...Reporter) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{logger: log.GetLogger().WithField("stage", "report")}
	for _, r := range reporters {
		d.workers = append(d.workers, &worker{
			reporter: r,
			queue:    make(chan engine.View, queueSize),
		})
	}
	return d
}

// Start launches one goroutine per reporter.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, w := range d.workers {
		d.wg.Add(1)
		go d.run(ctx, w)
		d.logger.WithField("reporter", w.reporter.Name()).Info("reporter started")
	}
}

// Listener returns the engine listener feeding this dispatcher.
func (d *Dispatcher) Listener() engine.Listener {
	return d.offer
}

func (d *Dispatcher) offer(v engine.View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, w := range d.workers {
		if !w.reporter.Accept(v) {
			continue
		}
		select {
		case w.queue <- v:
		default:
			metrics.ReporterErrorsTotal.WithLabelValues(w.reporter.Name()).Inc()
			d.logger.WithField("reporter", w.reporter.Name()).Warn("reporter queue full, view dropped")
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, w *worker) {
	defer d.wg.Done()
	for v := range w.queue {
		if err := w.reporter.Report(ctx, v); err != nil {
			metrics.ReporterErrorsTotal.WithLabelValues(w.reporter.Name()).Inc()
			d.logger.WithError(err).WithField("reporter", w.reporter.Name()).Error("report failed")
		}
	}
}

// Stop drains the queues, waits for the reporters and closes them.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()

	var first error
	for _, w := range d.workers {
		if err := w.reporter.Close(); err != nil {
			d.logger.WithError(err).WithField("reporter", w.reporter.Name()).Error("reporter close failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
