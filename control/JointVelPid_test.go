package control

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
)

func jvelConfig() Config {
	c := testConfig(JointVelocity, Pose3D)
	c.ControlledJoints = []int{1, 3, 5}
	return c
}

func TestJointVelPIDIntegralAccumulates(t *testing.T) {
	s := sim.NewDoubleIntegrator(1)
	proj := state.NewProjector(1, 0.05, 0.2)
	ctrl, err := New(jvelConfig(), 1, proj, 0)
	if err != nil {
		t.Fatal(err)
	}
	pid := ctrl.(*jointVelPID)

	proj.Refresh(s)

	// A constant velocity command against a motionless arm yields a
	// constant error, so the accumulator grows strictly every tick
	actions := mat.NewDense(1, ctrl.ActionDims(), []float64{0.5, 0.5, 0.5})

	previous := 0.0
	for tick := 0; tick < 3; tick++ {
		if err := ctrl.Act(actions, proj.States(), s); err != nil {
			t.Fatal(err)
		}

		integral := pid.Integral(0).AtVec(1)
		if integral <= previous {
			t.Fatalf("tick %v: expected the accumulator to grow, went "+
				"from %v to %v", tick, previous, integral)
		}
		previous = integral
	}
}

func TestJointVelPIDResetZeroesIntegral(t *testing.T) {
	s := sim.NewDoubleIntegrator(2)
	proj := state.NewProjector(2, 0.05, 0.2)
	ctrl, err := New(jvelConfig(), 2, proj, 0)
	if err != nil {
		t.Fatal(err)
	}
	pid := ctrl.(*jointVelPID)

	proj.Refresh(s)

	actions := mat.NewDense(2, ctrl.ActionDims(), []float64{
		1.0, 1.0, 1.0,
		1.0, 1.0, 1.0,
	})
	if err := ctrl.Act(actions, proj.States(), s); err != nil {
		t.Fatal(err)
	}

	ctrl.Reset([]int{0})

	if norm := mat.Norm(pid.Integral(0), 2); norm != 0.0 {
		t.Errorf("expected a zeroed accumulator after reset, got norm %v",
			norm)
	}
	if norm := mat.Norm(pid.Integral(1), 2); norm == 0.0 {
		t.Error("expected the other environment's accumulator untouched")
	}
}

func TestJointVelPIDTorque(t *testing.T) {
	s := sim.NewDoubleIntegrator(1)
	proj := state.NewProjector(1, 0.05, 0.2)
	ctrl, err := New(jvelConfig(), 1, proj, 0)
	if err != nil {
		t.Fatal(err)
	}

	proj.Refresh(s)

	// First tick from rest: velErr equals the command, the integral
	// holds one error sample, so tau = (kp + ki) · velErr before the
	// clamp
	command := 0.01
	actions := mat.NewDense(1, ctrl.ActionDims(), []float64{command, 0.0,
		0.0})
	if err := ctrl.Act(actions, proj.States(), s); err != nil {
		t.Fatal(err)
	}
	s.Advance()
	proj.Refresh(s)

	limits := s.EffortLimits()
	velErr := command * limits.AtVec(1)
	expected := (KpVel + KiVel) * velErr * s.Dt()

	st := proj.States()[0]
	if math.Abs(st.Qd.AtVec(1)-expected) > 1e-9 {
		t.Errorf("expected velocity %v on the controlled joint, got %v",
			expected, st.Qd.AtVec(1))
	}

	// Uncontrolled arm joints see a zero command and zero error, so
	// they stay at rest
	for _, j := range []int{0, 2, 4, 6} {
		if math.Abs(st.Qd.AtVec(j)) > 1e-12 {
			t.Errorf("joint %v: expected an uncontrolled joint at rest, "+
				"got velocity %v", j, st.Qd.AtVec(j))
		}
	}
}

func TestJointVelPIDGripperChannel(t *testing.T) {
	s := sim.NewDoubleIntegrator(1)
	proj := state.NewProjector(1, 0.05, 0.2)

	c := jvelConfig()
	c.Gripper = true
	ctrl, err := New(c, 1, proj, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.ActionDims() != 4 {
		t.Fatalf("expected the gripper channel appended, got %v action "+
			"dims", ctrl.ActionDims())
	}

	proj.Refresh(s)

	// A non-negative gripper command opens the fingers to their upper
	// limits
	actions := mat.NewDense(1, 4, []float64{0.0, 0.0, 0.0, 1.0})
	if err := ctrl.Act(actions, proj.States(), s); err != nil {
		t.Fatal(err)
	}
	s.Advance()
	proj.Refresh(s)

	_, upper := s.JointLimits()
	st := proj.States()[0]
	for j := NumArmDOF; j < state.NumDOF; j++ {
		if st.Q.AtVec(j) != upper.AtVec(j) {
			t.Errorf("joint %v: expected the finger at its upper limit "+
				"%v, got %v", j, upper.AtVec(j), st.Q.AtVec(j))
		}
	}
}
