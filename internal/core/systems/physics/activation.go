package physics

// ActivationState mirrors the activation states exposed by rigid-body engines.
type ActivationState uint8

const (
	ActivationUnknown ActivationState = iota
	ActivationActive
	ActivationIslandSleeping
	ActivationWantsDeactivation
	ActivationDisableDeactivation
	ActivationDisableSimulation
)

func (s ActivationState) String() string {
	switch s {
	case ActivationActive:
		return "active"
	case ActivationIslandSleeping:
		return "island_sleeping"
	case ActivationWantsDeactivation:
		return "wants_deactivation"
	case ActivationDisableDeactivation:
		return "disable_deactivation"
	case ActivationDisableSimulation:
		return "disable_simulation"
	default:
		return "unknown"
	}
}

// Simulated reports whether a body in this state takes part in stepping.
func (s ActivationState) Simulated() bool {
	return s == ActivationActive || s == ActivationDisableDeactivation || s == ActivationWantsDeactivation
}
