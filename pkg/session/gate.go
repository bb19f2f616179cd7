package session

// GateState is the suppression gate state.
type GateState int

const (
	// GateOpen admits every call.
	GateOpen GateState = iota
	// GateGated admits only user-initiated calls.
	GateGated
)

func (s GateState) String() string {
	if s == GateGated {
		return "GATED"
	}
	return "OPEN"
}

// intent tags who triggered a call.
type intent int

const (
	intentAuto intent = iota
	intentUser
)

func (i intent) String() string {
	if i == intentUser {
		return "user"
	}
	return "auto"
}

// gate blocks automatic calls once a plan has been generated, so a
// duplicated initialization cannot advance the workflow twice.
type gate struct {
	state GateState
	// sealed records that the current plan already closed the gate once.
	sealed bool
}

func (g *gate) admit(in intent) error {
	if in == intentAuto && g.state == GateGated {
		return ErrSuppressed
	}
	return nil
}

// close is called on the first successful plan load.
func (g *gate) close() { g.state = GateGated }

// seal closes the gate the first time a live plan is served and is a no-op
// afterwards, so an approval is not undone by a later cached read.
func (g *gate) seal() {
	if !g.sealed {
		g.sealed = true
		g.close()
	}
}

// reset forgets the previous plan.
func (g *gate) reset() { g.sealed = false }

// open is called on a successful approval.
func (g *gate) open() { g.state = GateOpen }
