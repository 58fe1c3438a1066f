// Package reset implements the episodic reset/randomization sampler:
// it draws fresh object, goal, and robot configurations for the
// environments flagged for reset and zeroes their episode counters.
package reset

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/samuelfneumann/gomanip/control"
	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/utils/matutils"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// Config describes the reset distributions. Object and goal x/y are
// sampled uniformly within a noise band around the nominal centre plus
// a fixed shift; z is fixed by the table height and object size.
// Orientation noise parameters are accepted for config compatibility
// but the sampler always writes the identity orientation.
type Config struct {
	Centre [2]float64

	ObjectShift [2]float64
	ObjectNoise float64

	GoalShift [2]float64
	GoalNoise float64

	ObjectOriNoise float64 // accepted, never applied
	GoalOriNoise   float64 // accepted, never applied

	TableHeight float64
	ObjectSize  float64

	// DefaultPose is the home joint configuration; joint noise is
	// applied to the arm joints only, never to the gripper
	DefaultPose *mat.VecDense
	DOFNoise    float64
}

// Sampler draws episode start configurations. Given a fixed random
// stream the sampler is deterministic: resetting the same indices with
// the same stream produces the same configurations.
type Sampler struct {
	config Config

	objectRng *distmv.Uniform
	goalRng   *distmv.Uniform
	dofRng    *distmv.Uniform
}

// NewSampler returns a new Sampler seeded with seed
func NewSampler(config Config, seed uint64) (*Sampler, error) {
	if config.DefaultPose == nil || config.DefaultPose.Len() != state.NumDOF {
		return nil, fmt.Errorf("newSampler: default pose must have %v "+
			"joints", state.NumDOF)
	}
	if config.ObjectNoise < 0 || config.GoalNoise < 0 || config.DOFNoise < 0 {
		return nil, fmt.Errorf("newSampler: noise magnitudes must be " +
			"non-negative")
	}

	objectBounds := noiseBounds(2, config.ObjectNoise)
	goalBounds := noiseBounds(2, config.GoalNoise)
	dofBounds := noiseBounds(control.NumArmDOF, config.DOFNoise)

	return &Sampler{
		config:    config,
		objectRng: distmv.NewUniform(objectBounds, rand.NewSource(seed)),
		goalRng:   distmv.NewUniform(goalBounds, rand.NewSource(seed+1)),
		dofRng:    distmv.NewUniform(dofBounds, rand.NewSource(seed+2)),
	}, nil
}

func noiseBounds(dims int, noise float64) []r1.Interval {
	bounds := make([]r1.Interval, dims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -noise, Max: noise}
	}
	return bounds
}

// Reset resamples the given environments: object and goal poses, the
// robot joint configuration, and all episode counters, including the
// control law's integral accumulator. Fresh values are written to both
// the simulator and the snapshot pool so no stale pre-reset state can
// be read afterwards.
func (s *Sampler) Reset(indices []int, proj *state.Projector,
	sm sim.Simulator, ctrl control.Controller) {
	cfg := s.config
	states := proj.States()

	surfaceZ := cfg.TableHeight + cfg.ObjectSize/2.0
	lower, upper := sm.JointLimits()

	q := mat.NewVecDense(state.NumDOF, nil)
	qd := mat.NewVecDense(state.NumDOF, nil)

	for _, i := range indices {
		objXY := s.objectRng.Rand(nil)
		goalXY := s.goalRng.Rand(nil)

		object := sim.BodyState{Quat: quatutils.Identity()}
		object.Pos.X = cfg.Centre[0] + cfg.ObjectShift[0] + objXY[0]
		object.Pos.Y = cfg.Centre[1] + cfg.ObjectShift[1] + objXY[1]
		object.Pos.Z = surfaceZ
		sm.SetObject(i, object)

		st := states[i]
		st.ObjectPos = object.Pos
		st.ObjectQuat = object.Quat
		st.ObjectVel = object.LinVel

		st.GoalPos.X = cfg.Centre[0] + cfg.GoalShift[0] + goalXY[0]
		st.GoalPos.Y = cfg.Centre[1] + cfg.GoalShift[1] + goalXY[1]
		st.GoalPos.Z = surfaceZ
		st.GoalQuat = quatutils.Identity()

		// Arm joints: default pose plus uniform noise, clamped to the
		// joint limits. The gripper joints always start at the
		// default with no noise.
		dofNoise := s.dofRng.Rand(nil)
		q.CopyVec(cfg.DefaultPose)
		for j := 0; j < control.NumArmDOF; j++ {
			q.SetVec(j, q.AtVec(j)+dofNoise[j])
		}
		matutils.VecClipVec(q, lower, upper)
		qd.Zero()
		sm.SetJointState(i, q, qd)
	}

	proj.ResetCounters(indices)
	ctrl.Reset(indices)
}
