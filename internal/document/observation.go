package document

// ObservationState tells whether structural mutations are currently being
// captured as user-originated edits.
type ObservationState int

const (
	// Observing delivers mutations to the registered observer.
	Observing ObservationState = iota
	// Suspended swallows mutations; used around programmatic rewrites so
	// server-driven updates never loop back as user edits.
	Suspended
)

// Guard is the two-state switch around mutation observation. Documents start
// out Observing.
type Guard struct {
	state ObservationState
}

// State returns the current observation state.
func (g *Guard) State() ObservationState { return g.state }

// Observing reports whether mutations are currently captured.
func (g *Guard) Observing() bool { return g.state == Observing }

// ObservationState exposes the guard's current state.
func (d *Document) ObservationState() ObservationState {
	return d.guard.State()
}

// WithSuspended runs a programmatic document rewrite with observation
// suspended, restoring the previous state on every exit path, panics
// included. All server-driven structural changes go through here.
func (d *Document) WithSuspended(mutate func()) {
	prev := d.guard.state
	d.guard.state = Suspended
	defer func() { d.guard.state = prev }()
	mutate()
}
