package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/samuelfneumann/gomanip/utils/matutils"
	"github.com/samuelfneumann/gomanip/utils/quatutils"
)

// Arm layout shared with the real simulator backend: seven effort
// driven arm joints followed by two position driven gripper joints
const (
	NumDOF    int = 9
	NumArmDOF int = 7
	dt            = 0.01
)

// Default per-joint limits. Effort limits follow the Panda datasheet
// with the gripper override applied by the scene builder.
var (
	defaultEffortLimits = []float64{87, 87, 87, 87, 12, 12, 12, 200, 200}

	defaultLowerLimits = []float64{-2.8973, -1.7628, -2.8973, -3.0718,
		-2.8973, -0.0175, -2.8973, 0.0, 0.0}
	defaultUpperLimits = []float64{2.8973, 1.7628, 2.8973, -0.0698,
		2.8973, 3.7525, 2.8973, 0.04, 0.04}
)

// DoubleIntegrator is a deterministic stand-in for the external
// physics engine: every effort joint is a unit-inertia double
// integrator and the end effector moves linearly with the first six
// joints. It exists so the control core can be exercised and tested
// without a contact solver; it makes no claim of physical accuracy.
type DoubleIntegrator struct {
	numEnvs int

	q, qd []*mat.VecDense
	cmds  []Command

	objects []BodyState
	params  [][]float64

	jacobian   *mat.Dense
	massMatrix *mat.Dense

	effortLimits *mat.VecDense
	lowerLimits  *mat.VecDense
	upperLimits  *mat.VecDense
	driveModes   []DriveMode
}

// NewDoubleIntegrator returns a DoubleIntegrator batch with numEnvs
// environments, all joints at zero and objects at the origin
func NewDoubleIntegrator(numEnvs int) *DoubleIntegrator {
	q := make([]*mat.VecDense, numEnvs)
	qd := make([]*mat.VecDense, numEnvs)
	cmds := make([]Command, numEnvs)
	objects := make([]BodyState, numEnvs)
	params := make([][]float64, numEnvs)

	for i := 0; i < numEnvs; i++ {
		q[i] = mat.NewVecDense(NumDOF, nil)
		qd[i] = mat.NewVecDense(NumDOF, nil)
		cmds[i] = NewCommand(NumDOF)
		objects[i] = BodyState{Quat: quatutils.Identity()}
		params[i] = []float64{0.1, 0.5, 0.0, 0.0, 0.0}
	}

	jacobian := mat.NewDense(6, NumArmDOF, nil)
	for i := 0; i < 6; i++ {
		jacobian.Set(i, i, 1.0)
	}

	massMatrix := mat.NewDense(NumArmDOF, NumArmDOF, nil)
	for i := 0; i < NumArmDOF; i++ {
		massMatrix.Set(i, i, 1.0)
	}

	driveModes := make([]DriveMode, NumDOF)
	for i := NumArmDOF; i < NumDOF; i++ {
		driveModes[i] = PositionTarget
	}

	return &DoubleIntegrator{
		numEnvs:      numEnvs,
		q:            q,
		qd:           qd,
		cmds:         cmds,
		objects:      objects,
		params:       params,
		jacobian:     jacobian,
		massMatrix:   massMatrix,
		effortLimits: mat.NewVecDense(NumDOF, defaultEffortLimits),
		lowerLimits:  mat.NewVecDense(NumDOF, defaultLowerLimits),
		upperLimits:  mat.NewVecDense(NumDOF, defaultUpperLimits),
		driveModes:   driveModes,
	}
}

func (d *DoubleIntegrator) NumEnvs() int {
	return d.numEnvs
}

func (d *DoubleIntegrator) NumDOF() int {
	return NumDOF
}

func (d *DoubleIntegrator) JointPositions(env int, dst *mat.VecDense) {
	dst.CopyVec(d.q[env])
}

func (d *DoubleIntegrator) JointVelocities(env int, dst *mat.VecDense) {
	dst.CopyVec(d.qd[env])
}

// EEF maps the first three joints onto Cartesian end-effector
// position and the first six joint velocities onto the twist
func (d *DoubleIntegrator) EEF(env int) BodyState {
	q, qd := d.q[env], d.qd[env]
	return BodyState{
		Pos:    r3.Vec{X: q.AtVec(0), Y: q.AtVec(1), Z: q.AtVec(2)},
		Quat:   quatutils.Identity(),
		LinVel: r3.Vec{X: qd.AtVec(0), Y: qd.AtVec(1), Z: qd.AtVec(2)},
		AngVel: r3.Vec{X: qd.AtVec(3), Y: qd.AtVec(4), Z: qd.AtVec(5)},
	}
}

func (d *DoubleIntegrator) Object(env int) BodyState {
	return d.objects[env]
}

func (d *DoubleIntegrator) Jacobian(env int) mat.Matrix {
	return d.jacobian
}

func (d *DoubleIntegrator) MassMatrix(env int) mat.Matrix {
	return d.massMatrix
}

func (d *DoubleIntegrator) EffortLimits() mat.Vector {
	return d.effortLimits
}

func (d *DoubleIntegrator) JointLimits() (mat.Vector, mat.Vector) {
	return d.lowerLimits, d.upperLimits
}

func (d *DoubleIntegrator) DriveModes() []DriveMode {
	return d.driveModes
}

func (d *DoubleIntegrator) Apply(env int, cmd Command) {
	d.cmds[env].Efforts.CopyVec(cmd.Efforts)
	d.cmds[env].PosTargets.CopyVec(cmd.PosTargets)
}

// Advance integrates every environment forward by one tick using the
// staged commands
func (d *DoubleIntegrator) Advance() {
	for env := 0; env < d.numEnvs; env++ {
		q, qd, cmd := d.q[env], d.qd[env], d.cmds[env]

		for j := 0; j < NumDOF; j++ {
			switch d.driveModes[j] {
			case Effort:
				qd.SetVec(j, qd.AtVec(j)+cmd.Efforts.AtVec(j)*dt)
				q.SetVec(j, q.AtVec(j)+qd.AtVec(j)*dt)

			case PositionTarget:
				q.SetVec(j, cmd.PosTargets.AtVec(j))
				qd.SetVec(j, 0.0)
			}
		}
		matutils.VecClipVec(q, d.lowerLimits, d.upperLimits)

		obj := &d.objects[env]
		obj.Pos = r3.Add(obj.Pos, r3.Scale(dt, obj.LinVel))
	}
}

func (d *DoubleIntegrator) SetJointState(env int, q, qd mat.Vector) {
	d.q[env].CopyVec(q)
	d.qd[env].CopyVec(qd)
}

func (d *DoubleIntegrator) SetObject(env int, state BodyState) {
	d.objects[env] = state
}

func (d *DoubleIntegrator) PhysicalParams(env int) []float64 {
	return d.params[env]
}

// SetPhysicalParams overrides the ground-truth object parameters of
// one environment
func (d *DoubleIntegrator) SetPhysicalParams(env int, params []float64) {
	d.params[env] = params
}

// Dt returns the physics timestep
func (d *DoubleIntegrator) Dt() float64 {
	return dt
}

func (d *DoubleIntegrator) String() string {
	return fmt.Sprintf("DoubleIntegrator | envs: %v  |  dofs: %v", d.numEnvs,
		NumDOF)
}
