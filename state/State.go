// Package state implements the compact per-environment state snapshot
// that the control and reward engines consume. A State is a typed
// record: every quantity the engines read by name is a statically
// checked member here, never an index into a shared buffer.
package state

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// NumDOF is the number of robot joints captured per snapshot
const NumDOF int = 9

// State is the snapshot of a single environment at one tick. All pose
// and velocity fields are overwritten by the Projector every refresh;
// the goal fields are owned by the reset sampler and the two counters
// persist across ticks until an episode reset zeroes them.
type State struct {
	// Robot
	Q      *mat.VecDense // joint positions
	Qd     *mat.VecDense // joint velocities
	EEFPos r3.Vec
	EEFQuat quat.Number
	EEFVel *mat.VecDense // 6-dimensional twist, linear then angular

	// Manipulated object
	ObjectPos  r3.Vec
	ObjectQuat quat.Number
	ObjectVel  r3.Vec

	// Goal configuration, written on reset only
	GoalPos  r3.Vec
	GoalQuat quat.Number

	// HoldCounter counts consecutive refreshes with the object within
	// the success threshold of the goal
	HoldCounter int

	// ContactTime counts refreshes with the end effector within the
	// contact threshold of the object, accumulated over the episode
	ContactTime int
}

// NewState returns a State with identity orientations so that a
// first-tick snapshot taken before any reset never holds degenerate
// quaternions
func NewState() *State {
	return &State{
		Q:          mat.NewVecDense(NumDOF, nil),
		Qd:         mat.NewVecDense(NumDOF, nil),
		EEFQuat:    quatutils.Identity(),
		EEFVel:     mat.NewVecDense(6, nil),
		ObjectQuat: quatutils.Identity(),
		GoalQuat:   quatutils.Identity(),
	}
}

// GoalDist returns the distance from the object to the goal position
func (s *State) GoalDist() float64 {
	return r3.Norm(r3.Sub(s.GoalPos, s.ObjectPos))
}

// GoalDiff returns the vector from the object to the goal position
func (s *State) GoalDiff() r3.Vec {
	return r3.Sub(s.GoalPos, s.ObjectPos)
}

// ContactDist returns the distance from the end effector to the object
func (s *State) ContactDist() float64 {
	return r3.Norm(r3.Sub(s.ObjectPos, s.EEFPos))
}
