package power

// Phase is the sequencer state
type Phase int

const (
	PhaseUnarmed Phase = iota
	PhaseArmed
	PhasePressTracking
	PhaseShutdownRequested
	PhaseCutting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseUnarmed:
		return "unarmed"
	case PhaseArmed:
		return "armed"
	case PhasePressTracking:
		return "press-tracking"
	case PhaseShutdownRequested:
		return "shutdown-requested"
	case PhaseCutting:
		return "cutting"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}
