package state

import (
	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// Projector turns raw simulator buffers into State snapshots for the
// whole batch. Projection is a pure function of the simulator state
// except for the hold counter and contact timer, which accumulate
// across refreshes and are zeroed on episode reset.
type Projector struct {
	states []*State

	successThreshold float64
	contactThreshold float64
}

// NewProjector allocates the snapshot pool for numEnvs environments.
// The thresholds gate the hold counter (object-to-goal distance) and
// the contact timer (end-effector-to-object distance).
func NewProjector(numEnvs int, successThreshold,
	contactThreshold float64) *Projector {
	states := make([]*State, numEnvs)
	for i := range states {
		states[i] = NewState()
	}

	return &Projector{
		states:           states,
		successThreshold: successThreshold,
		contactThreshold: contactThreshold,
	}
}

// States returns the snapshot pool. The slice is owned by the
// Projector; callers read the snapshots and the reset sampler writes
// the goal fields.
func (p *Projector) States() []*State {
	return p.states
}

// NumEnvs returns the number of environments in the pool
func (p *Projector) NumEnvs() int {
	return len(p.states)
}

// Refresh copies the simulator state of every environment into the
// snapshot pool and advances the hold counters and contact timers.
// Quaternions read from the simulator are normalized with a degeneracy
// guard, so a refresh before the first reset still produces valid
// snapshots.
func (p *Projector) Refresh(s sim.Simulator) {
	for i, st := range p.states {
		s.JointPositions(i, st.Q)
		s.JointVelocities(i, st.Qd)

		eef := s.EEF(i)
		st.EEFPos = eef.Pos
		st.EEFQuat = quatutils.Normalize(eef.Quat)
		st.EEFVel.SetVec(0, eef.LinVel.X)
		st.EEFVel.SetVec(1, eef.LinVel.Y)
		st.EEFVel.SetVec(2, eef.LinVel.Z)
		st.EEFVel.SetVec(3, eef.AngVel.X)
		st.EEFVel.SetVec(4, eef.AngVel.Y)
		st.EEFVel.SetVec(5, eef.AngVel.Z)

		obj := s.Object(i)
		st.ObjectPos = obj.Pos
		st.ObjectQuat = quatutils.Normalize(obj.Quat)
		st.ObjectVel = obj.LinVel

		if st.GoalDist() < p.successThreshold {
			st.HoldCounter++
		} else {
			st.HoldCounter = 0
		}

		// Contact time accumulates over the whole episode; leaving
		// contact range does not clear it, only an episode reset does
		if st.ContactDist() < p.contactThreshold {
			st.ContactTime++
		}
	}
}

// ResetCounters zeroes the hold counter and contact timer of the given
// environments
func (p *Projector) ResetCounters(indices []int) {
	for _, i := range indices {
		p.states[i].HoldCounter = 0
		p.states[i].ContactTime = 0
	}
}
