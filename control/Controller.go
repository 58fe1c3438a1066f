// Package control implements the control-law engine: it maps batch
// action matrices and state snapshots into joint actuation commands
// under one of three mutually exclusive control laws, selected once at
// construction.
package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
)

// NumArmDOF is the number of effort-driven arm joints the control laws
// operate on; the remaining joints are the position-driven gripper
const NumArmDOF int = 7

// Default control gains
const (
	DefaultKp      float64 = 200.0 // task-space stiffness
	PrimitiveRotKp float64 = 500.0 // rotational stiffness for the primitive
	KpNull         float64 = 10.0  // nullspace joint stiffness
	KpVel          float64 = 10.0  // joint-velocity proportional gain
	KiVel          float64 = 50.0  // joint-velocity integral gain
)

// Task-space command limits for the OSC law: metres for the
// translational dimensions, radians for the rotational ones
var defaultCmdLimit = []float64{0.1, 0.1, 0.1, 0.5, 0.5, 0.5}

const eps float64 = 1e-6

// Mode selects the control law. It is resolved from configuration
// once at construction; no per-tick string comparison happens anywhere.
type Mode int

const (
	// OSC is task-space impedance (operational-space) control
	OSC Mode = iota

	// JointVelocity is per-joint velocity PID tracking
	JointVelocity

	// ScriptedPrimitive is the closed-loop multi-waypoint push macro
	ScriptedPrimitive
)

func (m Mode) String() string {
	switch m {
	case OSC:
		return "osc"
	case JointVelocity:
		return "jvel"
	case ScriptedPrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// ParseMode converts a configuration string into a Mode
func ParseMode(name string) (Mode, error) {
	switch name {
	case "osc":
		return OSC, nil
	case "jvel":
		return JointVelocity, nil
	case "primitive":
		return ScriptedPrimitive, nil
	}
	return 0, fmt.Errorf("parseMode: no such control mode %q", name)
}

// Input selects the semantic layout of the action vector for the OSC
// law
type Input int

const (
	// Pose2D commands x/y displacement at a fixed work height with
	// regulated orientation
	Pose2D Input = iota

	// Pose3D commands x/y/z displacement with regulated orientation
	Pose3D

	// Pose6D commands the full task-space displacement
	Pose6D
)

func (in Input) String() string {
	switch in {
	case Pose2D:
		return "pose2d"
	case Pose3D:
		return "pose3d"
	case Pose6D:
		return "pose6d"
	default:
		return "unknown"
	}
}

// ParseInput converts a configuration string into an Input
func ParseInput(name string) (Input, error) {
	switch name {
	case "pose2d":
		return Pose2D, nil
	case "pose3d":
		return Pose3D, nil
	case "pose6d":
		return Pose6D, nil
	}
	return 0, fmt.Errorf("parseInput: no such control input %q", name)
}

// dims returns the number of task-space displacement components the
// input layout carries
func (in Input) dims() int {
	switch in {
	case Pose2D:
		return 2
	case Pose3D:
		return 3
	default:
		return 6
	}
}

// impedanceDims returns the number of gain logits variable impedance
// appends under this input layout, which is also the number of leading
// task-space stiffnesses those logits drive. The planar layout tunes
// only the x/y stiffness; the z and rotational gains stay fixed.
func (in Input) impedanceDims() int {
	if in == Pose2D {
		return 2
	}
	return 6
}

// Config describes a control-law engine. Mode and Input are resolved
// by ParseMode/ParseInput before construction; New rejects
// combinations the engine cannot realize.
type Config struct {
	Mode  Mode
	Input Input

	// ActionScale divides scaled commands, shrinking policy actions
	// into the command limits
	ActionScale float64

	// VariableImpedance appends gain logits to the action vector (two
	// under pose2d, six otherwise); stiffness is recomputed from them
	// every tick and never persisted
	VariableImpedance bool
	ImpedanceRange    r1.Interval

	// Gripper appends one open/close command to the action vector
	// (joint-velocity law only)
	Gripper bool

	// ControlledJoints lists the arm joints driven by the
	// joint-velocity law; all other joints are regulated toward zero
	// velocity
	ControlledJoints []int

	// DefaultPose is the home joint configuration used by the
	// nullspace term and the gripper position targets
	DefaultPose *mat.VecDense

	// WorkHeight is the fixed end-effector z for Pose2D and the
	// scripted primitive
	WorkHeight float64

	// ActionBias and ActionVar inject Gaussian action noise to
	// simulate unmodeled effects; disabled when ActionBias <= 0
	ActionBias float64
	ActionVar  float64
}

// ActionDims returns the length of the per-environment action vector
// the configured engine consumes
func (c Config) ActionDims() int {
	var n int
	switch c.Mode {
	case JointVelocity:
		n = len(c.ControlledJoints)
	case ScriptedPrimitive:
		n = 2
	default:
		n = c.Input.dims()
	}

	if c.VariableImpedance {
		n += c.Input.impedanceDims()
	}
	if c.Gripper {
		n++
	}
	return n
}

// Controller is a control-law engine bound to one batch of
// environments. Act consumes one action row per environment and stages
// actuation commands on the simulator; for the scripted primitive this
// single call spans multiple physics ticks.
type Controller interface {
	Act(actions mat.Matrix, states []*state.State, s sim.Simulator) error

	// Reset zeroes any persistent per-environment accumulator for the
	// given indices
	Reset(indices []int)

	// Scripted reports whether Act advances physics internally, in
	// which case the caller must not advance it again
	Scripted() bool

	ActionDims() int
}

// New resolves the configured control law into a concrete Controller.
// Unsupported mode/input combinations are fatal here, at construction.
func New(c Config, numEnvs int, proj *state.Projector,
	seed uint64) (Controller, error) {
	if c.ActionScale <= 0 {
		return nil, fmt.Errorf("new: action scale must be positive, got %v",
			c.ActionScale)
	}
	if c.DefaultPose == nil || c.DefaultPose.Len() != state.NumDOF {
		return nil, fmt.Errorf("new: default pose must have %v joints",
			state.NumDOF)
	}

	switch c.Mode {
	case OSC:
		return newOSC(c, seed)

	case JointVelocity:
		if c.VariableImpedance {
			return nil, fmt.Errorf("new: variable impedance requires the " +
				"osc control mode")
		}
		return newJointVelPID(c, numEnvs)

	case ScriptedPrimitive:
		if c.VariableImpedance {
			return nil, fmt.Errorf("new: variable impedance cannot be " +
				"combined with the scripted primitive")
		}
		if proj == nil {
			return nil, fmt.Errorf("new: scripted primitive requires a " +
				"state projector")
		}
		return newPrimitive(c, proj)
	}

	return nil, fmt.Errorf("new: no such control mode %v", c.Mode)
}
