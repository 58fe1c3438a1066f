package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/utils/matutils"
)

// jointVelPID implements per-joint velocity tracking with a
// proportional-integral law. Joints listed in controlled follow the
// commanded velocities; every other arm joint is regulated toward zero
// velocity.
type jointVelPID struct {
	kpVel *mat.VecDense
	kiVel *mat.VecDense

	// integral accumulates raw velocity error every tick with no
	// decay and no anti-windup clamp. Long episodes with a persistent
	// error can wind the accumulator up without bound; resets are the
	// only relief valve.
	integral []*mat.VecDense

	controlled  []int
	actionScale float64
	actionDims  int
	gripper     bool
	defaultPose *mat.VecDense
}

func newJointVelPID(c Config, numEnvs int) (*jointVelPID, error) {
	if len(c.ControlledJoints) == 0 {
		return nil, fmt.Errorf("newJointVelPID: at least one controlled " +
			"joint is required")
	}
	for _, j := range c.ControlledJoints {
		if j < 0 || j >= NumArmDOF {
			return nil, fmt.Errorf("newJointVelPID: controlled joint %v "+
				"outside the arm's %v joints", j, NumArmDOF)
		}
	}

	kp := make([]float64, NumArmDOF)
	ki := make([]float64, NumArmDOF)
	for j := 0; j < NumArmDOF; j++ {
		kp[j] = KpVel
		ki[j] = KiVel
	}

	integral := make([]*mat.VecDense, numEnvs)
	for i := range integral {
		integral[i] = mat.NewVecDense(NumArmDOF, nil)
	}

	return &jointVelPID{
		kpVel:       mat.NewVecDense(NumArmDOF, kp),
		kiVel:       mat.NewVecDense(NumArmDOF, ki),
		integral:    integral,
		controlled:  c.ControlledJoints,
		actionScale: c.ActionScale,
		actionDims:  c.ActionDims(),
		gripper:     c.Gripper,
		defaultPose: c.DefaultPose,
	}, nil
}

func (p *jointVelPID) Scripted() bool {
	return false
}

func (p *jointVelPID) ActionDims() int {
	return p.actionDims
}

// Reset zeroes the integral accumulator of the given environments. No
// other component touches the accumulator.
func (p *jointVelPID) Reset(indices []int) {
	for _, i := range indices {
		p.integral[i].Zero()
	}
}

// Integral returns the integral-error accumulator of one environment.
// The returned vector is owned by the controller and must not be
// mutated.
func (p *jointVelPID) Integral(env int) mat.Vector {
	return p.integral[env]
}

func (p *jointVelPID) Act(actions mat.Matrix, states []*state.State,
	s sim.Simulator) error {
	rows, cols := actions.Dims()
	if rows != len(states) || cols != p.actionDims {
		return fmt.Errorf("act: expected action dimensions (%v, %v), "+
			"got (%v, %v)", len(states), p.actionDims, rows, cols)
	}

	limits := armEffortLimits(s)
	lower, upper := s.JointLimits()
	cmd := sim.NewCommand(s.NumDOF())

	velCmd := mat.NewVecDense(NumArmDOF, nil)
	velErr := mat.NewVecDense(NumArmDOF, nil)
	tau := mat.NewVecDense(NumArmDOF, nil)

	for i, st := range states {
		// Velocity commands are scaled by the per-joint effort limits
		// before the action-scale division
		velCmd.Zero()
		for k, j := range p.controlled {
			velCmd.SetVec(j, actions.At(i, k)*limits.AtVec(j)/p.actionScale)
		}

		// Uncontrolled joints carry a zero command, so their error
		// drives them toward zero velocity
		for j := 0; j < NumArmDOF; j++ {
			velErr.SetVec(j, velCmd.AtVec(j)-st.Qd.AtVec(j))
		}

		p.integral[i].AddVec(p.integral[i], velErr)

		for j := 0; j < NumArmDOF; j++ {
			tau.SetVec(j, p.kpVel.AtVec(j)*velErr.AtVec(j)+
				p.kiVel.AtVec(j)*p.integral[i].AtVec(j))
		}

		matutils.VecZeroNaN(tau)
		matutils.VecClipSym(tau, limits)

		stageCommand(&cmd, tau, p.defaultPose, s)
		if p.gripper {
			p.stageGripper(actions.At(i, p.actionDims-1), &cmd, lower, upper,
				s)
		}
		s.Apply(i, cmd)
	}

	return nil
}

// stageGripper maps the scalar gripper command onto fully open or
// fully closed finger position targets
func (p *jointVelPID) stageGripper(u float64, cmd *sim.Command,
	lower, upper mat.Vector, s sim.Simulator) {
	for j := NumArmDOF; j < s.NumDOF(); j++ {
		if u >= 0.0 {
			cmd.PosTargets.SetVec(j, upper.AtVec(j))
		} else {
			cmd.PosTargets.SetVec(j, lower.AtVec(j))
		}
	}
}
