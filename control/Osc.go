package control

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
	"github.com/samuelfneumann/gomanip/utils/floatutils"
	"github.com/samuelfneumann/gomanip/utils/matutils"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// oscControl implements task-space impedance control following
// Khatib's operational-space formulation: task-space wrenches are
// mapped to joint torques through the Jacobian and the task-space
// effective mass, with a nullspace term regulating the redundant
// joints toward the default pose.
type oscControl struct {
	input       Input
	actionScale float64
	actionDims  int

	variableImp bool
	impDims     int // leading stiffness dimensions driven by the logits
	impRange    r1.Interval
	baseGains   Gains // stiffness used when variable impedance is off
	nullGains   Gains

	cmdLimit    *mat.VecDense
	defaultPose *mat.VecDense
	quatDesired quat.Number
	workHeight  float64

	noise *distuv.Normal // nil when action noise is disabled

	ticks int
}

func newOSC(c Config, seed uint64) (*oscControl, error) {
	if c.Gripper {
		return nil, fmt.Errorf("newOSC: gripper channel is only available " +
			"under joint-velocity control")
	}

	var noise *distuv.Normal
	if c.ActionBias > 0 {
		noise = &distuv.Normal{
			Mu:    c.ActionBias,
			Sigma: c.ActionVar,
			Src:   rand.NewSource(seed),
		}
	}

	return &oscControl{
		input:       c.Input,
		actionScale: c.ActionScale,
		actionDims:  c.ActionDims(),
		variableImp: c.VariableImpedance,
		impDims:     c.Input.impedanceDims(),
		impRange:    c.ImpedanceRange,
		baseGains:   NewConstGains(6, DefaultKp),
		nullGains:   NewConstGains(NumArmDOF, KpNull),
		cmdLimit:    mat.NewVecDense(6, defaultCmdLimit),
		defaultPose: c.DefaultPose,
		quatDesired: quatutils.FromXYZW(1.0, 0.0, 0.0, 0.0),
		workHeight:  c.WorkHeight,
		noise:       noise,
	}, nil
}

func (o *oscControl) Scripted() bool {
	return false
}

func (o *oscControl) ActionDims() int {
	return o.actionDims
}

// Reset is a no-op: the OSC law carries no per-environment accumulator
func (o *oscControl) Reset(indices []int) {}

func (o *oscControl) Act(actions mat.Matrix, states []*state.State,
	s sim.Simulator) error {
	rows, cols := actions.Dims()
	if rows != len(states) || cols != o.actionDims {
		return fmt.Errorf("act: expected action dimensions (%v, %v), "+
			"got (%v, %v)", len(states), o.actionDims, rows, cols)
	}

	limits := armEffortLimits(s)
	gains := o.baseGains.Clone()
	dpose := mat.NewVecDense(6, nil)
	tau := mat.NewVecDense(NumArmDOF, nil)
	cmd := sim.NewCommand(s.NumDOF())

	baseDims := o.input.dims()
	for i, st := range states {
		// Variable impedance gains are recomputed from this tick's
		// logits and never carried over. Under pose2d only the x/y
		// stiffness is driven; the remaining gains keep their base
		// values.
		if o.variableImp {
			for d := 0; d < o.impDims; d++ {
				logit := actions.At(i, baseDims+d)
				gains.SetKp(d, ImpedanceFromLogit(o.impRange, logit))
			}
		}

		o.dpose(actions, i, st, dpose)

		oscTorques(dpose, st, s.Jacobian(i), s.MassMatrix(i), gains,
			o.nullGains, o.defaultPose, limits, tau)

		stageCommand(&cmd, tau, o.defaultPose, s)
		s.Apply(i, cmd)
	}

	o.ticks++
	return nil
}

// dpose builds the 6-dimensional task-space displacement for one
// environment from its action row
func (o *oscControl) dpose(actions mat.Matrix, i int, st *state.State,
	dst *mat.VecDense) {
	dst.Zero()

	switch o.input {
	case Pose2D:
		for d := 0; d < 2; d++ {
			dst.SetVec(d, o.scaled(actions.At(i, d), d))
		}
		dst.SetVec(2, o.workHeight-st.EEFPos.Z)
		o.setOriError(st, dst)

	case Pose3D:
		for d := 0; d < 3; d++ {
			dst.SetVec(d, o.scaled(actions.At(i, d), d))
		}
		o.setOriError(st, dst)

	case Pose6D:
		for d := 0; d < 6; d++ {
			dst.SetVec(d, o.scaled(actions.At(i, d), d))
		}
	}
}

// scaled applies optional action noise and shrinks the displacement
// component into the command limit of dimension d
func (o *oscControl) scaled(u float64, d int) float64 {
	if o.noise != nil {
		u += o.noise.Rand()
	}
	return u * o.cmdLimit.AtVec(d) / o.actionScale
}

// setOriError writes the fixed-orientation regulation error into the
// rotational components of dpose. On the very first tick the
// end-effector quaternion has not been sensed yet, so the error is
// left at zero.
func (o *oscControl) setOriError(st *state.State, dpose *mat.VecDense) {
	if o.ticks == 0 {
		return
	}
	oriErr := quatutils.OriError(o.quatDesired, st.EEFQuat)
	dpose.SetVec(3, oriErr.X)
	dpose.SetVec(4, oriErr.Y)
	dpose.SetVec(5, oriErr.Z)
}

// oscTorques transforms a task-space displacement into clamped joint
// torques: τ = Jᵀ·M_eef·(kp⊙dpose − kd⊙twist) plus the nullspace
// regulation term projected so it cannot disturb end-effector motion.
func oscTorques(dpose *mat.VecDense, st *state.State, jac, mm mat.Matrix,
	g, nullGains Gains, defaultPose, effortLimits mat.Vector,
	tau *mat.VecDense) {
	var mmInv mat.Dense
	safeInverse(&mmInv, mm)

	// M_eef = inverse(J · M⁻¹ · Jᵀ)
	var mEEFInv mat.Dense
	mEEFInv.Product(jac, &mmInv, jac.T())
	var mEEF mat.Dense
	safeInverse(&mEEF, &mEEFInv)

	wrench := mat.NewVecDense(6, nil)
	for d := 0; d < 6; d++ {
		wrench.SetVec(d, g.Kp(d)*dpose.AtVec(d)-g.Kd(d)*st.EEFVel.AtVec(d))
	}

	var taskForce mat.VecDense
	taskForce.MulVec(&mEEF, wrench)
	tau.MulVec(jac.T(), &taskForce)

	// Nullspace PD toward the default pose, with joint errors wrapped
	// so the regulation always takes the short way around
	uNull := mat.NewVecDense(NumArmDOF, nil)
	for j := 0; j < NumArmDOF; j++ {
		posErr := floatutils.WrapAngle(defaultPose.AtVec(j) - st.Q.AtVec(j))
		uNull.SetVec(j, nullGains.Kd(j)*(-st.Qd.AtVec(j))+
			nullGains.Kp(j)*posErr)
	}
	var mNull mat.VecDense
	mNull.MulVec(mm, uNull)

	// Projector I − Jᵀ·(M_eef·J·M⁻¹)
	var jInv mat.Dense
	jInv.Product(&mEEF, jac, &mmInv)
	var proj mat.Dense
	proj.Mul(jac.T(), &jInv)
	proj.Scale(-1.0, &proj)
	for j := 0; j < NumArmDOF; j++ {
		proj.Set(j, j, proj.At(j, j)+1.0)
	}

	var nullTorque mat.VecDense
	nullTorque.MulVec(&proj, &mNull)
	tau.AddVec(tau, &nullTorque)

	matutils.VecZeroNaN(tau)
	matutils.VecClipSym(tau, effortLimits)
}

// safeInverse inverts a into dst. A singular matrix gets a small
// diagonal floor before a second attempt; if even that fails dst is
// set to the identity so no NaN can flow into the torque path.
func safeInverse(dst *mat.Dense, a mat.Matrix) {
	err := dst.Inverse(a)
	if err == nil {
		return
	}
	if _, conditioned := err.(mat.Condition); conditioned {
		// Near-singular: the computed inverse is approximate but
		// finite, which the clamp stage tolerates
		return
	}

	n, _ := a.Dims()
	reg := mat.DenseCopyOf(a)
	for i := 0; i < n; i++ {
		reg.Set(i, i, reg.At(i, i)+eps)
	}
	if err := dst.Inverse(reg); err != nil {
		if _, conditioned := err.(mat.Condition); conditioned {
			return
		}
		dst.ReuseAs(n, n)
		dst.Zero()
		for i := 0; i < n; i++ {
			dst.Set(i, i, 1.0)
		}
	}
}

// armEffortLimits copies the arm-joint effort limits out of the
// simulator
func armEffortLimits(s sim.Simulator) *mat.VecDense {
	limits := mat.NewVecDense(NumArmDOF, nil)
	all := s.EffortLimits()
	for j := 0; j < NumArmDOF; j++ {
		limits.SetVec(j, all.AtVec(j))
	}
	return limits
}

// stageCommand writes arm torques into the effort channel and holds
// the gripper joints at the default pose through their position
// targets
func stageCommand(cmd *sim.Command, tau *mat.VecDense,
	defaultPose mat.Vector, s sim.Simulator) {
	for j := 0; j < NumArmDOF; j++ {
		cmd.Efforts.SetVec(j, tau.AtVec(j))
	}
	for j := NumArmDOF; j < s.NumDOF(); j++ {
		cmd.PosTargets.SetVec(j, defaultPose.AtVec(j))
	}
}
