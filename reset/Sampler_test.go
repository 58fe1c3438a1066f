package reset

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gomanip/control"
	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
)

var testPose = []float64{0.0, 0.1963, 0.0, -2.6180, 0.0, 2.9416, 0.7854,
	0.001, 0.001}

func testConfig() Config {
	return Config{
		Centre:      [2]float64{0.0, 0.0},
		GoalShift:   [2]float64{0.0, 0.25},
		TableHeight: 1.025,
		ObjectSize:  0.05,
		DefaultPose: mat.NewVecDense(state.NumDOF, append([]float64(nil),
			testPose...)),
	}
}

func testController(t *testing.T, proj *state.Projector) control.Controller {
	t.Helper()

	ctrl, err := control.New(control.Config{
		Mode:        control.OSC,
		Input:       control.Pose3D,
		ActionScale: 1.0,
		DefaultPose: mat.NewVecDense(state.NumDOF, append([]float64(nil),
			testPose...)),
		WorkHeight: 1.145,
	}, proj.NumEnvs(), proj, 0)
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func TestResetWithoutNoiseIsNominal(t *testing.T) {
	s := sim.NewDoubleIntegrator(1)
	proj := state.NewProjector(1, 0.05, 0.2)
	ctrl := testController(t, proj)

	sampler, err := NewSampler(testConfig(), 14)
	if err != nil {
		t.Fatal(err)
	}

	sampler.Reset([]int{0}, proj, s, ctrl)
	st := proj.States()[0]

	surfaceZ := 1.025 + 0.05/2.0
	if st.ObjectPos.X != 0.0 || st.ObjectPos.Y != 0.0 ||
		st.ObjectPos.Z != surfaceZ {
		t.Errorf("expected the object at the nominal spawn, got %v",
			st.ObjectPos)
	}
	if st.GoalPos.X != 0.0 || st.GoalPos.Y != 0.25 ||
		st.GoalPos.Z != surfaceZ {
		t.Errorf("expected the goal at the shifted spawn, got %v",
			st.GoalPos)
	}

	// Snapshot and simulator must agree after the reset
	if obj := s.Object(0); obj.Pos != st.ObjectPos {
		t.Errorf("expected the simulator object at %v, got %v",
			st.ObjectPos, obj.Pos)
	}

	proj.Refresh(s)
	for j := 0; j < state.NumDOF; j++ {
		if math.Abs(st.Q.AtVec(j)-testPose[j]) > 1e-12 {
			t.Errorf("joint %v: expected the default pose %v, got %v", j,
				testPose[j], st.Q.AtVec(j))
		}
		if st.Qd.AtVec(j) != 0.0 {
			t.Errorf("joint %v: expected the arm at rest, got %v", j,
				st.Qd.AtVec(j))
		}
	}
}

func TestResetJointNoiseClampedToLimits(t *testing.T) {
	s := sim.NewDoubleIntegrator(1)
	proj := state.NewProjector(1, 0.05, 0.2)
	ctrl := testController(t, proj)

	c := testConfig()
	c.DOFNoise = 100.0 // far beyond every joint range
	sampler, err := NewSampler(c, 14)
	if err != nil {
		t.Fatal(err)
	}

	sampler.Reset([]int{0}, proj, s, ctrl)
	proj.Refresh(s)

	lower, upper := s.JointLimits()
	st := proj.States()[0]
	for j := 0; j < control.NumArmDOF; j++ {
		q := st.Q.AtVec(j)
		if q < lower.AtVec(j) || q > upper.AtVec(j) {
			t.Errorf("joint %v: position %v outside limits [%v, %v]", j, q,
				lower.AtVec(j), upper.AtVec(j))
		}
	}

	// Gripper joints never receive noise
	for j := control.NumArmDOF; j < state.NumDOF; j++ {
		if st.Q.AtVec(j) != testPose[j] {
			t.Errorf("joint %v: expected the gripper at its default %v, "+
				"got %v", j, testPose[j], st.Q.AtVec(j))
		}
	}
}

func TestResetDeterministicPerSeed(t *testing.T) {
	c := testConfig()
	c.ObjectNoise = 0.1
	c.GoalNoise = 0.05

	run := func(seed uint64) (*state.State, *state.State) {
		s := sim.NewDoubleIntegrator(2)
		proj := state.NewProjector(2, 0.05, 0.2)
		ctrl := testController(t, proj)

		sampler, err := NewSampler(c, seed)
		if err != nil {
			t.Fatal(err)
		}
		sampler.Reset([]int{0, 1}, proj, s, ctrl)
		return proj.States()[0], proj.States()[1]
	}

	a0, a1 := run(14)
	b0, b1 := run(14)

	if a0.ObjectPos != b0.ObjectPos || a1.ObjectPos != b1.ObjectPos {
		t.Error("expected identical object spawns for identical seeds")
	}
	if a0.GoalPos != b0.GoalPos || a1.GoalPos != b1.GoalPos {
		t.Error("expected identical goals for identical seeds")
	}

	c0, _ := run(99)
	if a0.ObjectPos == c0.ObjectPos {
		t.Error("expected different object spawns for different seeds")
	}
}

func TestResetZeroesCounters(t *testing.T) {
	s := sim.NewDoubleIntegrator(1)
	proj := state.NewProjector(1, 0.05, 0.2)
	ctrl := testController(t, proj)

	sampler, err := NewSampler(testConfig(), 14)
	if err != nil {
		t.Fatal(err)
	}

	st := proj.States()[0]
	st.HoldCounter = 12
	st.ContactTime = 4

	sampler.Reset([]int{0}, proj, s, ctrl)

	if st.HoldCounter != 0 || st.ContactTime != 0 {
		t.Errorf("expected counters zeroed on reset, got hold %v contact %v",
			st.HoldCounter, st.ContactTime)
	}
}

func TestNewSamplerValidates(t *testing.T) {
	c := testConfig()
	c.DefaultPose = nil
	if _, err := NewSampler(c, 14); err == nil {
		t.Error("expected a missing default pose rejected")
	}

	c = testConfig()
	c.ObjectNoise = -0.1
	if _, err := NewSampler(c, 14); err == nil {
		t.Error("expected a negative noise magnitude rejected")
	}
}
