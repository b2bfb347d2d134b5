package engine

import "errors"

// Precondition errors. Each aborts the requested operation and leaves the
// village as it was.
var (
	ErrNoActiveSimulation       = errors.New("no active simulation")
	ErrAlreadyAnnounced         = errors.New("announcement already made")
	ErrAlreadyFinished          = errors.New("puzzle already finished")
	ErrSimulationDidNotConverge = errors.New("simulation did not converge")
)
