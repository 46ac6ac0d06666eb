package meter

// State is the aggregator clock state.
type State uint8

const (
	// Idle: the clock was never started or was reset.
	Idle State = iota
	// Running: the clock advances and damage is recorded.
	Running
	// SuspendedAuto: the clock is frozen; the next accepted damage resumes it.
	SuspendedAuto
	// SuspendedManual: the clock is frozen and damage is ignored until Resume.
	SuspendedManual
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case SuspendedAuto:
		return "suspended_auto"
	case SuspendedManual:
		return "suspended_manual"
	default:
		return "unknown"
	}
}

// Suspended reports whether the clock is frozen.
func (s State) Suspended() bool {
	return s == SuspendedAuto || s == SuspendedManual
}

type trigger uint8

const (
	onDamage trigger = iota
	onSuspendAuto
	onSuspendManual
	onResume
	onReset
)

func (t trigger) String() string {
	switch t {
	case onDamage:
		return "damage"
	case onSuspendAuto:
		return "suspend_auto"
	case onSuspendManual:
		return "suspend_manual"
	case onResume:
		return "resume"
	case onReset:
		return "reset"
	default:
		return "unknown"
	}
}

// transitions lists every legal (state, trigger) pair. A missing pair
// means the trigger is rejected in that state.
var transitions = map[State]map[trigger]State{
	Idle: {
		onDamage:        Running,
		onSuspendAuto:   Idle,
		onSuspendManual: Idle,
		onResume:        Idle,
		onReset:         Idle,
	},
	Running: {
		onDamage:        Running,
		onSuspendAuto:   SuspendedAuto,
		onSuspendManual: SuspendedManual,
		onResume:        Running,
		onReset:         Idle,
	},
	SuspendedAuto: {
		onDamage:        Running,
		onSuspendAuto:   SuspendedAuto,
		onSuspendManual: SuspendedManual,
		onResume:        Running,
		onReset:         Idle,
	},
	SuspendedManual: {
		onSuspendAuto:   SuspendedManual,
		onSuspendManual: SuspendedManual,
		onResume:        Running,
		onReset:         Idle,
	},
}

// next returns the target state for t, or false when t is rejected.
func next(s State, t trigger) (State, bool) {
	to, ok := transitions[s][t]
	return to, ok
}
