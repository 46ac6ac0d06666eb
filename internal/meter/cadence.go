package meter

import "time"

// Cadence is a restartable periodic tick. C returns nil while stopped so a
// select on it blocks.
type Cadence struct {
	interval time.Duration
	ticker   *time.Ticker
}

// NewCadence creates a stopped cadence.
func NewCadence(interval time.Duration) *Cadence {
	return &Cadence{interval: interval}
}

// Start starts the cadence, or restarts its period if already running.
func (c *Cadence) Start() {
	if c.interval <= 0 {
		return
	}
	if c.ticker == nil {
		c.ticker = time.NewTicker(c.interval)
		return
	}
	c.ticker.Reset(c.interval)
}

// Stop stops the cadence.
func (c *Cadence) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// Active reports whether the cadence is running.
func (c *Cadence) Active() bool {
	return c.ticker != nil
}

// C returns the tick channel, nil while stopped.
func (c *Cadence) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C
}

// Interval returns the tick period.
func (c *Cadence) Interval() time.Duration {
	return c.interval
}
