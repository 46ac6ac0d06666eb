package engine

import (
	"firestige.xyz/dpsmeter/internal/meter"
	"firestige.xyz/dpsmeter/internal/protocol"
	"firestige.xyz/dpsmeter/internal/stream"
)

// View is a copy of the pipeline state, safe to use from any goroutine.
type View struct {
	State   meter.State
	Elapsed float64 // seconds, NaN while idle
	WorldID uint16
	LocalID uint32
	Players int
	Rows    []meter.Row

	Stream  stream.Stats
	Decoder protocol.Stats
}

// TeamDamage is the damage dealt by all players.
func (v View) TeamDamage() uint64 {
	if len(v.Rows) == 0 {
		return 0
	}
	return v.Rows[0].TeamDamage
}

func (e *Engine) view() View {
	return View{
		State:   e.meter.State(),
		Elapsed: e.meter.Elapsed(),
		WorldID: e.meter.WorldID(),
		LocalID: e.meter.LocalID(),
		Players: e.meter.PlayerCount(),
		Rows:    e.meter.Snapshot(),
		Stream:  e.reasm.Stats(),
		Decoder: e.dec.Stats(),
	}
}
