package kernel

// State is the kernel's top-level mode.
type State string

const (
	// StateModelling is the only state in which topology entities may be
	// created, edited, or destroyed.
	StateModelling State = "MODELLING"
	// StateOperating is the only state in which transport orders are
	// created and driven, and in which the Dispatcher/Router/Resource
	// Manager are active.
	StateOperating State = "OPERATING"
	// StateShutdown is terminal.
	StateShutdown State = "SHUTDOWN"
)

// legalTransition reports whether to is reachable from from: MODELLING ->
// OPERATING, OPERATING -> MODELLING, and any -> SHUTDOWN.
func legalTransition(from, to State) bool {
	if to == StateShutdown {
		return from != StateShutdown
	}
	switch from {
	case StateModelling:
		return to == StateOperating
	case StateOperating:
		return to == StateModelling
	default:
		return false
	}
}
