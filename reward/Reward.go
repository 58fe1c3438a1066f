// Package reward implements the reward and termination engine: a pure
// function of the state snapshots producing per-environment reward,
// reset, and success signals.
package reward

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// normEpsilon floors vector norms before normalization so the
// velocity-alignment term can never divide by zero
const normEpsilon float64 = 1e-7

// rewardSharpness is the distance scale inside the saturating
// nonlinearity: each shaped term is 1 − tanh(10·d)
const rewardSharpness float64 = 10.0

// speedSharpness scales object speed inside the saturating speed term
const speedSharpness float64 = 0.5

// SuccessRule selects the task-variant success condition
type SuccessRule int

const (
	// Threshold succeeds the instant the object is within the success
	// threshold of the goal
	Threshold SuccessRule = iota

	// Hold succeeds once the object has stayed within the success
	// threshold for more than the required consecutive ticks
	Hold

	// Settled succeeds when the object is within the success
	// threshold and nearly at rest
	Settled
)

func (r SuccessRule) String() string {
	switch r {
	case Threshold:
		return "threshold"
	case Hold:
		return "hold"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// ParseSuccessRule converts a configuration string into a SuccessRule
func ParseSuccessRule(name string) (SuccessRule, error) {
	switch name {
	case "threshold":
		return Threshold, nil
	case "hold":
		return Hold, nil
	case "settled":
		return Settled, nil
	}
	return 0, fmt.Errorf("parseSuccessRule: no such success rule %q", name)
}

// Settings are the immutable per-run reward coefficients. A zero scale
// removes its term from the sum.
type Settings struct {
	PosScale     float64
	OriScale     float64
	ContactScale float64
	VelScale     float64
	SpeedScale   float64
	SuccessScale float64

	// SuccessThreshold is the object-to-goal distance below which the
	// success conditions consider the object at the goal
	SuccessThreshold float64

	// HoldSteps is the number of consecutive within-threshold ticks
	// the Hold rule requires before success
	HoldSteps int

	// SettleVelocity is the object speed below which the Settled rule
	// considers the object at rest
	SettleVelocity float64

	Rule SuccessRule
}

// Engine computes rewards and termination decisions for a batch. It
// holds no mutable state: every Compute is a deterministic transform
// of its inputs.
type Engine struct {
	settings         Settings
	maxEpisodeLength int
}

// NewEngine returns a reward engine for episodes of maxEpisodeLength
// ticks
func NewEngine(settings Settings, maxEpisodeLength int) (*Engine, error) {
	if maxEpisodeLength < 1 {
		return nil, fmt.Errorf("newEngine: max episode length must be "+
			"positive, got %v", maxEpisodeLength)
	}
	if settings.SuccessThreshold <= 0 {
		return nil, fmt.Errorf("newEngine: success threshold must be "+
			"positive, got %v", settings.SuccessThreshold)
	}
	return &Engine{settings: settings, maxEpisodeLength: maxEpisodeLength}, nil
}

// Settings returns the engine's reward settings
func (e *Engine) Settings() Settings {
	return e.settings
}

// Compute fills rewards, done, and success for every environment from
// its snapshot and episode step count. done is the termination rule:
// the episode ends on success or when the step count reaches the
// episode length.
func (e *Engine) Compute(states []*state.State, progress []int,
	rewards *mat.VecDense, done, success []bool) {
	s := e.settings

	for i, st := range states {
		dist := st.GoalDist()

		succeeded := e.succeeded(st, dist, progress[i])

		r := s.PosScale * shaped(dist)
		r += s.OriScale * shaped(quatDiffNorm(st))
		r += s.ContactScale * shaped(st.ContactDist())
		r += s.VelScale * velAlignment(st)
		r += s.SpeedScale * math.Tanh(speedSharpness*r3.Norm(st.ObjectVel))
		if succeeded {
			r += s.SuccessScale * float64(e.maxEpisodeLength)
		}

		rewards.SetVec(i, r)
		success[i] = succeeded
		done[i] = succeeded || progress[i] >= e.maxEpisodeLength-1
	}
}

// succeeded evaluates the configured success rule for one environment
func (e *Engine) succeeded(st *state.State, dist float64,
	progress int) bool {
	s := e.settings

	switch s.Rule {
	case Hold:
		return st.HoldCounter > s.HoldSteps

	case Settled:
		return dist < s.SuccessThreshold &&
			r3.Norm(st.ObjectVel) < s.SettleVelocity &&
			progress > 0

	default:
		return dist < s.SuccessThreshold
	}
}

// shaped passes a distance through the saturating nonlinearity,
// yielding a reward in (0, 1] that is 1 at zero distance
func shaped(dist float64) float64 {
	return 1.0 - math.Tanh(rewardSharpness*dist)
}

// velAlignment is the clamped non-negative dot product of the
// normalized goal direction and the normalized object velocity
func velAlignment(st *state.State) float64 {
	goalDir := st.GoalDiff()
	goalDir = r3.Scale(1.0/(r3.Norm(goalDir)+normEpsilon), goalDir)

	velDir := st.ObjectVel
	velDir = r3.Scale(1.0/(r3.Norm(velDir)+normEpsilon), velDir)

	return math.Max(0.0, r3.Dot(goalDir, velDir))
}

// quatDiffNorm is the norm of the object-to-goal difference
// quaternion. For unit quaternions this saturates near 1 regardless of
// the rotation; downstream consumers rely on the scale staying put, so
// it is not swapped for a geodesic distance.
func quatDiffNorm(st *state.State) float64 {
	return quatutils.DiffNorm(st.ObjectQuat, st.GoalQuat)
}
