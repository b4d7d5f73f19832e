package startup

// Phase is one step of the startup sequence. Phases run strictly in
// ascending order; a failure in any phase aborts the whole sequence.
type Phase int

const (
	PhaseBootstrap Phase = iota + 1
	PhaseSingletonContributing
	PhaseSingletonCreation
	PhaseSingletonUsing
	PhaseStart
)

// String returns the phase name used in logs and error messages.
func (p Phase) String() string {
	switch p {
	case PhaseBootstrap:
		return "BOOTSTRAP"
	case PhaseSingletonContributing:
		return "SINGLETON_CONTRIBUTING"
	case PhaseSingletonCreation:
		return "SINGLETON_CREATION"
	case PhaseSingletonUsing:
		return "SINGLETON_USING"
	case PhaseStart:
		return "START"
	default:
		return "UNKNOWN"
	}
}
