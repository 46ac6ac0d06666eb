// Package meter aggregates decoded combat events into per-player
// statistics with a suspendable encounter clock.
package meter

import (
	"math"
	"time"

	"firestige.xyz/dpsmeter/internal/core"
	"firestige.xyz/dpsmeter/internal/log"
	"firestige.xyz/dpsmeter/internal/metrics"
)

// PlayerThreshold separates player ids (below) from monsters, summons and
// other non-player entities (at or above).
const PlayerThreshold uint32 = 1 << 30

// MaxClass is the highest known class id; anything above is reported as 0.
const MaxClass uint8 = 8

// DefaultCadence is the notification period while running.
const DefaultCadence = 40 * time.Millisecond

// DefaultCityWorlds are hub worlds where no combat is expected.
var DefaultCityWorlds = []uint16{10002, 10003, 10021, 10031, 10041, 11001, 10051, 10061}

// PlayerStats are the counters kept per player.
type PlayerStats struct {
	MaxCombo       uint16 `json:"max_combo"`
	Hits           uint64 `json:"hits"`
	DamageDealt    uint64 `json:"damage_dealt"`
	DamageReceived uint64 `json:"damage_received"`
	Misses         uint64 `json:"misses"`
	Crits          uint64 `json:"crits"`
	SpecialHits    uint64 `json:"special_hits"`
}

// Listener is notified after every state change and on each cadence tick
// while running. It runs on the caller's goroutine.
type Listener func()

type member struct {
	nickname string
	class    uint8
}

// Meter is the statistics aggregator. It is not safe for concurrent use;
// every method must be called from the pipeline goroutine.
type Meter struct {
	clock    func() time.Time
	listener Listener
	cadence  *Cadence
	logger   log.Logger
	cities   map[uint16]struct{}

	state       State
	start       time.Time
	suspendedAt time.Time
	offset      time.Duration

	localID   uint32
	curWorld  uint16
	lastWorld uint16

	roster map[uint32]member
	owners map[uint32]uint32
	stats  map[uint32]*PlayerStats
	order  []uint32
}

// Option configures a Meter.
type Option func(*Meter)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Meter) { m.clock = clock }
}

// WithListener sets the change listener.
func WithListener(l Listener) Option {
	return func(m *Meter) { m.listener = l }
}

// WithCadence sets the periodic notification interval.
func WithCadence(d time.Duration) Option {
	return func(m *Meter) { m.cadence = NewCadence(d) }
}

// WithCityWorlds replaces the set of worlds that auto-suspend the clock.
func WithCityWorlds(ids []uint16) Option {
	return func(m *Meter) {
		m.cities = make(map[uint16]struct{}, len(ids))
		for _, id := range ids {
			m.cities[id] = struct{}{}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Meter) { m.logger = l }
}

// New creates an idle meter.
func New(opts ...Option) *Meter {
	m := &Meter{
		clock:  time.Now,
		roster: make(map[uint32]member),
		owners: make(map[uint32]uint32),
		stats:  make(map[uint32]*PlayerStats),
	}
	WithCityWorlds(DefaultCityWorlds)(m)
	for _, opt := range opts {
		opt(m)
	}
	if m.cadence == nil {
		m.cadence = NewCadence(DefaultCadence)
	}
	if m.logger == nil {
		m.logger = log.GetLogger()
	}
	m.logger = m.logger.WithField("stage", "meter")
	return m
}

// Apply routes a decoded event to its handler. It satisfies core.EventSink.
func (m *Meter) Apply(ev core.Event) {
	switch e := ev.(type) {
	case core.WorldChange:
		m.WorldChange(e.ActorID, e.WorldID)
	case core.OwnerMapping:
		m.OwnerMapping(e.EntityID, e.OwnerID)
	case core.Damage:
		m.Damage(e)
	case core.PartyMember:
		m.PartyMember(e.PlayerID, e.Nickname, e.Class)
	case core.MazeEnd:
		m.MazeEnd()
	}
}

// WorldChange records the local player and current world. City worlds
// auto-suspend; any other world starts a fresh encounter unless the meter
// is manually suspended. Owner mappings never survive a world change.
func (m *Meter) WorldChange(actorID uint32, worldID uint16) {
	m.localID = actorID
	m.curWorld = worldID

	if m.isCity(worldID) {
		m.Suspend(true)
	} else if m.state != SuspendedManual {
		m.reset()
		m.lastWorld = worldID
	}
	clear(m.owners)

	m.logger.WithFields(map[string]interface{}{
		"actor": actorID,
		"world": worldID,
		"state": m.state.String(),
	}).Debug("world change")
	m.notify(false)
}

// OwnerMapping attributes entity damage to owner.
func (m *Meter) OwnerMapping(entityID, ownerID uint32) {
	m.owners[entityID] = ownerID
}

// Damage records one hit.
func (m *Meter) Damage(d core.Damage) {
	if m.state == SuspendedManual {
		return
	}

	src, dst := d.SourceID, d.TargetID
	if owner, ok := m.owners[src]; ok {
		src = owner
	}

	fromPlayer := true
	if src >= PlayerThreshold {
		if dst >= PlayerThreshold {
			return
		}
		src, dst = dst, src
		fromPlayer = false
	}

	ps := m.player(src)
	if fromPlayer {
		ps.MaxCombo = max(ps.MaxCombo, d.Combo)
		if d.TotalDamage > 0 {
			ps.Hits++
			ps.DamageDealt += uint64(d.TotalDamage)
			if d.Miss {
				ps.Misses++
			}
			if d.Crit {
				ps.Crits++
			}
			if d.SpecialDamage > 0 {
				ps.SpecialHits++
			}
		}
	} else {
		ps.DamageReceived += uint64(d.TotalDamage)
	}

	if m.state == Idle {
		m.start = m.clock()
		m.fire(onDamage)
		m.cadence.Start()
	} else if m.state == SuspendedAuto {
		m.resume()
	}
	m.notify(true)
}

// MazeEnd auto-suspends the clock at the end of an instance.
func (m *Meter) MazeEnd() {
	m.Suspend(true)
}

// PartyMember upserts a roster entry and notifies when it changed.
func (m *Meter) PartyMember(playerID uint32, nickname string, class uint8) {
	if class > MaxClass {
		class = 0
	}
	next := member{nickname: nickname, class: class}
	if cur, ok := m.roster[playerID]; ok && cur == next {
		return
	}
	m.roster[playerID] = next
	m.notify(false)
}

// Suspend freezes the clock. autoResume selects whether the next damage
// event resumes it. A manual request on an auto-suspended meter only
// blocks auto resume; an idle meter is left untouched.
func (m *Meter) Suspend(autoResume bool) {
	t := onSuspendAuto
	if !autoResume {
		t = onSuspendManual
	}
	from := m.state
	if from == Idle || from.Suspended() {
		m.fire(t)
		if from != m.state {
			m.notify(false)
		}
		return
	}

	m.cadence.Stop()
	m.suspendedAt = m.clock()
	m.fire(t)
	m.notify(false)
}

// Resume unfreezes a suspended clock. The suspended interval is excluded
// from Elapsed and the current world becomes the encounter world.
func (m *Meter) Resume() {
	if !m.state.Suspended() {
		return
	}
	m.resume()
	m.notify(false)
}

// Reset discards the clock and all player statistics. Roster and owner
// mappings are kept.
func (m *Meter) Reset() {
	m.reset()
	m.notify(false)
}

// Tick is called on each cadence tick and notifies while running.
func (m *Meter) Tick() {
	if m.state == Running {
		m.notify(false)
	}
}

// Cadence exposes the periodic tick source.
func (m *Meter) Cadence() *Cadence {
	return m.cadence
}

// State returns the clock state.
func (m *Meter) State() State {
	return m.state
}

// Elapsed returns encounter seconds excluding suspended time, or NaN when
// idle.
func (m *Meter) Elapsed() float64 {
	if m.state == Idle {
		return math.NaN()
	}
	now := m.suspendedAt
	if !m.state.Suspended() {
		now = m.clock()
	}
	return (now.Sub(m.start) - m.offset).Seconds()
}

// WorldID returns the encounter world, or the current world when no
// encounter world is known.
func (m *Meter) WorldID() uint16 {
	if m.lastWorld != 0 {
		return m.lastWorld
	}
	return m.curWorld
}

// LocalID returns the id of the local player.
func (m *Meter) LocalID() uint32 {
	return m.localID
}

// PlayerCount returns the number of players with statistics.
func (m *Meter) PlayerCount() int {
	return len(m.stats)
}

func (m *Meter) resume() {
	now := m.clock()
	m.offset += now.Sub(m.suspendedAt)
	m.suspendedAt = time.Time{}
	m.fire(onResume)
	m.cadence.Start()
	m.lastWorld = m.curWorld
}

func (m *Meter) reset() {
	m.cadence.Stop()
	m.fire(onReset)
	m.start = time.Time{}
	m.suspendedAt = time.Time{}
	m.offset = 0
	m.lastWorld = 0
	clear(m.stats)
	m.order = m.order[:0]
	metrics.MeterPlayers.Set(0)
}

func (m *Meter) fire(t trigger) {
	to, ok := next(m.state, t)
	if !ok {
		m.logger.WithFields(map[string]interface{}{
			"state":   m.state.String(),
			"trigger": t.String(),
		}).Warn("rejected state transition")
		return
	}
	if to != m.state {
		m.logger.WithFields(map[string]interface{}{
			"from": m.state.String(),
			"to":   to.String(),
		}).Debug("state transition")
	}
	m.state = to
	metrics.MeterState.Set(float64(to))
}

func (m *Meter) player(id uint32) *PlayerStats {
	ps, ok := m.stats[id]
	if !ok {
		ps = &PlayerStats{}
		m.stats[id] = ps
		m.order = append(m.order, id)
		metrics.MeterPlayers.Set(float64(len(m.stats)))
	}
	return ps
}

func (m *Meter) isCity(worldID uint16) bool {
	_, ok := m.cities[worldID]
	return ok
}

// notify fires the listener. restart restarts the cadence period; an
// active cadence is always restarted.
func (m *Meter) notify(restart bool) {
	if restart || m.cadence.Active() {
		if m.state == Running {
			m.cadence.Start()
		}
	}
	if m.listener != nil {
		m.listener()
	}
}
