// Package sim defines the boundary to the external rigid-body
// simulator. The control core never holds a long-lived reference into
// simulator memory: state is read out as snapshots and actuation is
// handed back as Command values once per tick.
package sim

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DriveMode denotes how a joint's actuator is driven
type DriveMode int

const (
	// Effort joints consume the Efforts field of a Command as torques
	Effort DriveMode = iota

	// PositionTarget joints consume the PosTargets field of a Command
	// as position setpoints
	PositionTarget
)

// BodyState is the pose and velocity snapshot of a single rigid body
type BodyState struct {
	Pos    r3.Vec
	Quat   quat.Number
	LinVel r3.Vec
	AngVel r3.Vec
}

// Command is the per-environment actuation handed to the simulator
// each tick. Both fields span all joints; each joint reads the field
// selected by its drive mode.
type Command struct {
	Efforts    *mat.VecDense
	PosTargets *mat.VecDense
}

// NewCommand returns a zero Command for a robot with numDOF joints
func NewCommand(numDOF int) Command {
	return Command{
		Efforts:    mat.NewVecDense(numDOF, nil),
		PosTargets: mat.NewVecDense(numDOF, nil),
	}
}

// Simulator is the external physics engine the control core drives. It
// owns every buffer it exposes; the Jacobian and mass matrix are
// refreshed by the simulator each tick and must be treated as
// read-only by callers.
type Simulator interface {
	NumEnvs() int
	NumDOF() int

	// JointPositions and JointVelocities copy the joint state of one
	// environment into dst
	JointPositions(env int, dst *mat.VecDense)
	JointVelocities(env int, dst *mat.VecDense)

	// EEF and Object return rigid-body snapshots for one environment
	EEF(env int) BodyState
	Object(env int) BodyState

	// Jacobian returns the 6×7 end-effector Jacobian for one
	// environment, MassMatrix the 7×7 generalized mass matrix of the
	// arm joints
	Jacobian(env int) mat.Matrix
	MassMatrix(env int) mat.Matrix

	EffortLimits() mat.Vector
	JointLimits() (lower, upper mat.Vector)
	DriveModes() []DriveMode

	// Apply stages the actuation command for one environment. Staged
	// commands take effect on the next Advance.
	Apply(env int, cmd Command)

	// Advance steps the physics of the whole batch by a single tick
	Advance()

	// SetJointState teleports the joint state of one environment,
	// used on episode reset
	SetJointState(env int, q, qd mat.Vector)

	// SetObject teleports the manipulated object of one environment
	SetObject(env int, state BodyState)

	// PhysicalParams returns ground-truth physical parameters of the
	// manipulated object (mass, friction, centre of mass) that are
	// hidden from the policy
	PhysicalParams(env int) []float64
}
