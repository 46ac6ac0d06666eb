package meter

import (
	"math"
	"slices"
	"strconv"
)

// LocalName is shown instead of the local player's nickname.
const LocalName = "[YOU]"

// Row is one ranked line of a snapshot.
type Row struct {
	Rank       int         `json:"rank"`
	PlayerID   uint32      `json:"player_id"`
	Name       string      `json:"name"`
	Class      uint8       `json:"class"`
	TeamDamage uint64      `json:"-"`
	Stats      PlayerStats `json:"stats"`
}

// Snapshot returns the players ranked by damage dealt, highest first.
// Ties keep first-seen order.
func (m *Meter) Snapshot() []Row {
	var team uint64
	rows := make([]Row, 0, len(m.order))
	for _, id := range m.order {
		ps := m.stats[id]
		team += ps.DamageDealt
		rows = append(rows, Row{
			PlayerID: id,
			Name:     m.name(id),
			Class:    m.roster[id].class,
			Stats:    *ps,
		})
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		switch {
		case a.Stats.DamageDealt > b.Stats.DamageDealt:
			return -1
		case a.Stats.DamageDealt < b.Stats.DamageDealt:
			return 1
		}
		return 0
	})
	for i := range rows {
		rows[i].Rank = i + 1
		rows[i].TeamDamage = team
	}
	return rows
}

func (m *Meter) name(id uint32) string {
	if id == m.localID {
		return LocalName
	}
	if mem, ok := m.roster[id]; ok {
		return mem.nickname
	}
	return strconv.FormatUint(uint64(id), 10)
}

// seconds maps a missing or non-positive elapsed time to one second.
func seconds(elapsed float64) float64 {
	if math.IsNaN(elapsed) || elapsed <= 0 {
		return 1
	}
	return elapsed
}

func ratio(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// DPS is damage dealt per second of encounter time.
func (r Row) DPS(elapsed float64) float64 {
	return float64(r.Stats.DamageDealt) / seconds(elapsed)
}

// HitsPerSecond is hits per second of encounter time.
func (r Row) HitsPerSecond(elapsed float64) float64 {
	return float64(r.Stats.Hits) / seconds(elapsed)
}

// DamageShare is the fraction of the team's damage dealt by this player.
func (r Row) DamageShare() float64 {
	return ratio(r.Stats.DamageDealt, r.TeamDamage)
}

// MissRate is the fraction of hits that missed.
func (r Row) MissRate() float64 {
	return ratio(r.Stats.Misses, r.Stats.Hits)
}

// CritRate is the fraction of hits that crit.
func (r Row) CritRate() float64 {
	return ratio(r.Stats.Crits, r.Stats.Hits)
}

// SpecialRate is the fraction of hits carrying special damage.
func (r Row) SpecialRate() float64 {
	return ratio(r.Stats.SpecialHits, r.Stats.Hits)
}
