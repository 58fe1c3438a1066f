// Package vecenv implements the lockstep batched environment: one Step
// drives every environment through act, physics, reset, projection,
// and reward in a fixed order and returns a batched timestep.
package vecenv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gomanip/control"
	"github.com/samuelfneumann/gomanip/privinfo"
	"github.com/samuelfneumann/gomanip/reset"
	"github.com/samuelfneumann/gomanip/reward"
	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/spec"
	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/timestep"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// Observation widths. The scripted primitive observes the object
// position only; every other control law observes the full layout of
// object pose, end-effector pose, object velocity, and goal offset.
const (
	primitiveObsDims int = 3
	fullObsDims      int = 20
)

// VecEnv is a fixed-size batch of environments stepped in lockstep.
// Environments flagged done on one tick are resampled at the start of
// the next tick, before state projection, so the observations returned
// by Step never mix pre-reset and post-reset state.
type VecEnv struct {
	sim     sim.Simulator
	proj    *state.Projector
	ctrl    control.Controller
	sampler *reset.Sampler
	engine  *reward.Engine
	priv    *privinfo.Collector // nil when privileged info is disabled

	progress []int
	pending  []int // environments to resample on the next tick

	obsDims    int
	stepNumber int
	started    bool
}

// New assembles a VecEnv from its components. The privileged-info
// collector may be nil, in which case observations carry no parameter
// columns. Reset must be called once before the first Step.
func New(sm sim.Simulator, proj *state.Projector, ctrl control.Controller,
	sampler *reset.Sampler, engine *reward.Engine,
	priv *privinfo.Collector) (*VecEnv, error) {
	if sm.NumEnvs() != proj.NumEnvs() {
		return nil, fmt.Errorf("new: simulator has %v environments but "+
			"the projector has %v", sm.NumEnvs(), proj.NumEnvs())
	}

	obsDims := fullObsDims
	if ctrl.Scripted() {
		obsDims = primitiveObsDims
	}
	if priv != nil {
		obsDims += priv.Width()
	}

	return &VecEnv{
		sim:      sm,
		proj:     proj,
		ctrl:     ctrl,
		sampler:  sampler,
		engine:   engine,
		priv:     priv,
		progress: make([]int, sm.NumEnvs()),
		obsDims:  obsDims,
	}, nil
}

// NumEnvs returns the batch size
func (v *VecEnv) NumEnvs() int {
	return v.sim.NumEnvs()
}

// Reset resamples every environment and returns the initial timestep.
// The initial timestep carries zero rewards and clear termination
// masks.
func (v *VecEnv) Reset() (timestep.TimeStep, error) {
	all := make([]int, v.NumEnvs())
	for i := range all {
		all[i] = i
	}

	v.sampler.Reset(all, v.proj, v.sim, v.ctrl)
	if v.priv != nil {
		if err := v.priv.Collect(all, v.sim); err != nil {
			return timestep.TimeStep{}, fmt.Errorf("reset: %v", err)
		}
	}

	for i := range v.progress {
		v.progress[i] = 0
	}
	v.pending = nil
	v.stepNumber = 0
	v.started = true

	v.proj.Refresh(v.sim)

	t := timestep.New(v.NumEnvs(), v.obsDims, 0)
	v.observe(t.Observations)
	return t, nil
}

// Step advances the whole batch by one tick: apply the actions, run
// physics, resample the environments flagged done on the previous
// tick, refresh the snapshots, and score the new state. actions must
// hold one row per environment.
func (v *VecEnv) Step(actions *mat.Dense) (timestep.TimeStep, error) {
	if !v.started {
		panic("step: stepped before the first reset")
	}

	if err := v.ctrl.Act(actions, v.proj.States(), v.sim); err != nil {
		return timestep.TimeStep{}, fmt.Errorf("step: %v", err)
	}

	// Scripted control laws advance physics inside Act
	if !v.ctrl.Scripted() {
		v.sim.Advance()
	}

	// Environments flagged done on the previous tick start a fresh
	// episode now, before projection, so this tick scores their new
	// state
	if len(v.pending) > 0 {
		v.sampler.Reset(v.pending, v.proj, v.sim, v.ctrl)
		if v.priv != nil {
			if err := v.priv.Collect(v.pending, v.sim); err != nil {
				return timestep.TimeStep{}, fmt.Errorf("step: %v", err)
			}
		}
		for _, i := range v.pending {
			v.progress[i] = 0
		}
		v.pending = nil
	}

	v.proj.Refresh(v.sim)

	// The engine scores the zero-based step count: a fresh episode's
	// first tick is step 0 and the cutoff fires on the episode
	// length'th tick. The count advances only after scoring.
	v.stepNumber++
	t := timestep.New(v.NumEnvs(), v.obsDims, v.stepNumber)
	v.engine.Compute(v.proj.States(), v.progress, t.Rewards, t.Done,
		t.Success)
	v.pending = t.DoneIndices()

	for i := range v.progress {
		v.progress[i]++
	}

	v.observe(t.Observations)
	return t, nil
}

// observe fills one observation row per environment from the snapshot
// pool
func (v *VecEnv) observe(dst *mat.Dense) {
	for i, st := range v.proj.States() {
		row := dst.RawRowView(i)

		row[0] = st.ObjectPos.X
		row[1] = st.ObjectPos.Y
		row[2] = st.ObjectPos.Z

		if !v.ctrl.Scripted() {
			row[3], row[4], row[5], row[6] = quatutils.XYZW(st.ObjectQuat)

			row[7] = st.EEFPos.X
			row[8] = st.EEFPos.Y
			row[9] = st.EEFPos.Z
			row[10], row[11], row[12], row[13] = quatutils.XYZW(st.EEFQuat)

			row[14] = st.ObjectVel.X
			row[15] = st.ObjectVel.Y
			row[16] = st.ObjectVel.Z

			diff := st.GoalDiff()
			row[17] = diff.X
			row[18] = diff.Y
			row[19] = diff.Z
		}

		if v.priv != nil {
			copy(row[v.obsDims-v.priv.Width():], v.priv.Row(i))
		}
	}
}

// ObservationSpec returns the per-environment observation layout. All
// observation features are unbounded.
func (v *VecEnv) ObservationSpec() spec.Environment {
	shape := mat.NewVecDense(1, []float64{float64(v.obsDims)})

	low := make([]float64, v.obsDims)
	high := make([]float64, v.obsDims)
	for i := range low {
		low[i] = math.Inf(-1)
		high[i] = math.Inf(1)
	}

	return spec.NewEnvironment(shape, spec.Observation,
		mat.NewVecDense(v.obsDims, low), mat.NewVecDense(v.obsDims, high))
}

// ActionSpec returns the per-environment action layout. Actions are
// conventionally bounded in [-1, 1]; the control laws scale them into
// their command limits.
func (v *VecEnv) ActionSpec() spec.Environment {
	dims := v.ctrl.ActionDims()
	shape := mat.NewVecDense(1, []float64{float64(dims)})

	low := make([]float64, dims)
	high := make([]float64, dims)
	for i := range low {
		low[i] = -1.0
		high[i] = 1.0
	}

	return spec.NewEnvironment(shape, spec.Action,
		mat.NewVecDense(dims, low), mat.NewVecDense(dims, high))
}

// RewardSpec returns the scalar reward specification
func (v *VecEnv) RewardSpec() spec.Environment {
	shape := mat.NewVecDense(1, []float64{1.0})
	low := mat.NewVecDense(1, []float64{math.Inf(-1)})
	high := mat.NewVecDense(1, []float64{math.Inf(1)})

	return spec.NewEnvironment(shape, spec.Reward, low, high)
}
