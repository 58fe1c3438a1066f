package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/utils/floatutils"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// Scripted-primitive parameters: the push start point in the plane,
// the per-waypoint convergence tolerance and iteration caps, and the
// planar displacement limit
const (
	primitiveEpsilon float64 = 1e-3
	preApproachSteps int     = 50
	pushSteps        int     = 100
	primitiveXYLimit float64 = 0.25
)

var primitiveXYStart = [2]float64{-4.1652e-04, -9.9628e-02}

// primitiveControl is the scripted multi-waypoint push macro: a single
// Act drives the end effector to a pre-approach point above the push
// start and then through the commanded planar displacement, invoking
// the OSC law and advancing physics itself until each waypoint's
// convergence test passes or its iteration cap is hit. There is no
// cancellation point inside the sub-loops; an external reset cannot
// interrupt an in-progress primitive.
type primitiveControl struct {
	proj *state.Projector

	gains       Gains
	nullGains   Gains
	defaultPose *mat.VecDense
	quatDesired quat.Number

	actionScale float64
	workHeight  float64
	actionDims  int
}

func newPrimitive(c Config, proj *state.Projector) (*primitiveControl, error) {
	if c.Gripper {
		return nil, fmt.Errorf("newPrimitive: gripper channel is only " +
			"available under joint-velocity control")
	}

	// Stiffer rotational gains keep the end effector flat against the
	// table during the push
	gains := NewConstGains(6, DefaultKp)
	for d := 3; d < 6; d++ {
		gains.SetKp(d, PrimitiveRotKp)
	}

	return &primitiveControl{
		proj:        proj,
		gains:       gains,
		nullGains:   NewConstGains(NumArmDOF, KpNull),
		defaultPose: c.DefaultPose,
		quatDesired: quatutils.FromXYZW(1.0, 0.0, 0.0, 0.0),
		actionScale: c.ActionScale,
		workHeight:  c.WorkHeight,
		actionDims:  c.ActionDims(),
	}, nil
}

func (p *primitiveControl) Scripted() bool {
	return true
}

func (p *primitiveControl) ActionDims() int {
	return p.actionDims
}

// Reset is a no-op: the primitive carries no per-environment
// accumulator
func (p *primitiveControl) Reset(indices []int) {}

// Act runs the whole macro-action: approach the push start at the work
// height, then push through the commanded planar displacement. The
// push sub-loop always runs its full iteration cap so the object is
// carried through the motion rather than stopped at first contact.
func (p *primitiveControl) Act(actions mat.Matrix, states []*state.State,
	s sim.Simulator) error {
	rows, cols := actions.Dims()
	if rows != len(states) || cols != p.actionDims {
		return fmt.Errorf("act: expected action dimensions (%v, %v), "+
			"got (%v, %v)", len(states), p.actionDims, rows, cols)
	}

	pre := make([]r3.Vec, len(states))
	push := make([]r3.Vec, len(states))
	for i := range states {
		dx := floatutils.Clip(actions.At(i, 0), -1.0, 1.0) *
			primitiveXYLimit / p.actionScale
		dy := floatutils.Clip(actions.At(i, 1), -1.0, 1.0) *
			primitiveXYLimit / p.actionScale

		pre[i] = r3.Vec{
			X: primitiveXYStart[0],
			Y: primitiveXYStart[1],
			Z: p.workHeight,
		}
		push[i] = r3.Vec{
			X: primitiveXYStart[0] + dx,
			Y: primitiveXYStart[1] + dy,
			Z: p.workHeight,
		}
	}

	p.goTo(pre, primitiveEpsilon, preApproachSteps, s)
	p.goTo(push, math.Inf(-1), pushSteps, s)
	return nil
}

// goTo closes the loop on one waypoint: refresh the snapshots, stop if
// every environment in the batch is within epsilon of its target,
// otherwise apply one OSC tick toward the targets and advance physics
func (p *primitiveControl) goTo(targets []r3.Vec, epsilon float64,
	maxSteps int, s sim.Simulator) {
	limits := armEffortLimits(s)
	dpose := mat.NewVecDense(6, nil)
	tau := mat.NewVecDense(NumArmDOF, nil)
	cmd := sim.NewCommand(s.NumDOF())

	for step := 0; step < maxSteps; step++ {
		p.proj.Refresh(s)
		states := p.proj.States()

		converged := true
		for i, st := range states {
			if r3.Norm(r3.Sub(targets[i], st.EEFPos)) >= epsilon {
				converged = false
				break
			}
		}
		if converged {
			break
		}

		for i, st := range states {
			diff := r3.Sub(targets[i], st.EEFPos)
			oriErr := quatutils.OriError(p.quatDesired, st.EEFQuat)

			dpose.SetVec(0, diff.X)
			dpose.SetVec(1, diff.Y)
			dpose.SetVec(2, diff.Z)
			dpose.SetVec(3, oriErr.X)
			dpose.SetVec(4, oriErr.Y)
			dpose.SetVec(5, oriErr.Z)

			oscTorques(dpose, st, s.Jacobian(i), s.MassMatrix(i), p.gains,
				p.nullGains, p.defaultPose, limits, tau)

			stageCommand(&cmd, tau, p.defaultPose, s)
			s.Apply(i, cmd)
		}

		s.Advance()
	}
}
