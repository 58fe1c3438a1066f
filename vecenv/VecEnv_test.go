package vecenv

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gomanip/control"
	"github.com/samuelfneumann/gomanip/privinfo"
	"github.com/samuelfneumann/gomanip/reset"
	"github.com/samuelfneumann/gomanip/reward"
	"github.com/samuelfneumann/gomanip/sim"
	"github.com/samuelfneumann/gomanip/state"
)

const (
	testEnvs          int = 4
	testEpisodeLength int = 5
)

var testPose = []float64{0.0, 0.1963, 0.0, -2.6180, 0.0, 2.9416, 0.7854,
	0.001, 0.001}

func defaultPose() *mat.VecDense {
	return mat.NewVecDense(state.NumDOF, append([]float64(nil), testPose...))
}

// testEnv assembles a deterministic batch: no reset noise, a goal a
// fixed 0.25 away from the object, and a motionless object, so no
// episode ever succeeds and every episode runs to the cutoff.
func testEnv(t *testing.T, mode control.Mode,
	priv *privinfo.Collector) (*VecEnv, *sim.DoubleIntegrator) {
	t.Helper()

	sm := sim.NewDoubleIntegrator(testEnvs)
	proj := state.NewProjector(testEnvs, 0.05, 0.2)

	ctrl, err := control.New(control.Config{
		Mode:        mode,
		Input:       control.Pose3D,
		ActionScale: 1.0,
		DefaultPose: defaultPose(),
		WorkHeight:  1.145,
	}, testEnvs, proj, 14)
	if err != nil {
		t.Fatal(err)
	}

	sampler, err := reset.NewSampler(reset.Config{
		GoalShift:   [2]float64{0.0, 0.25},
		TableHeight: 1.025,
		ObjectSize:  0.05,
		DefaultPose: defaultPose(),
	}, 14)
	if err != nil {
		t.Fatal(err)
	}

	engine, err := reward.NewEngine(reward.Settings{
		PosScale:         1.0,
		SuccessScale:     1.0,
		SuccessThreshold: 0.05,
		Rule:             reward.Threshold,
	}, testEpisodeLength)
	if err != nil {
		t.Fatal(err)
	}

	env, err := New(sm, proj, ctrl, sampler, engine, priv)
	if err != nil {
		t.Fatal(err)
	}
	return env, sm
}

func TestResetObservation(t *testing.T) {
	env, _ := testEnv(t, control.OSC, nil)

	first, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}

	rows, cols := first.Observations.Dims()
	if rows != testEnvs || cols != fullObsDims {
		t.Fatalf("expected a (%v, %v) observation, got (%v, %v)", testEnvs,
			fullObsDims, rows, cols)
	}
	if first.Number != 0 {
		t.Errorf("expected the initial timestep numbered 0, got %v",
			first.Number)
	}
	if first.AnyDone() {
		t.Error("expected no environment done on the initial timestep")
	}

	for i := 0; i < testEnvs; i++ {
		// Object at the nominal spawn on the table surface
		surfaceZ := 1.025 + 0.05/2.0
		if first.Observations.At(i, 2) != surfaceZ {
			t.Errorf("environment %v: expected the object at z %v, got %v",
				i, surfaceZ, first.Observations.At(i, 2))
		}

		// Goal offset occupies the last three columns
		if first.Observations.At(i, 18) != 0.25 {
			t.Errorf("environment %v: expected a goal offset of 0.25, "+
				"got %v", i, first.Observations.At(i, 18))
		}
	}
}

func TestEpisodeRunsToCutoff(t *testing.T) {
	env, _ := testEnv(t, control.OSC, nil)
	if _, err := env.Reset(); err != nil {
		t.Fatal(err)
	}

	actions := mat.NewDense(testEnvs, 3, nil)

	// With a motionless object far from the goal, an episode spans
	// exactly the episode length: done stays false on every tick and
	// flips true for the whole batch on the final one
	for tick := 1; tick <= testEpisodeLength; tick++ {
		ts, err := env.Step(actions)
		if err != nil {
			t.Fatal(err)
		}

		expectDone := tick == testEpisodeLength
		for i := 0; i < testEnvs; i++ {
			if ts.Done[i] != expectDone {
				t.Errorf("tick %v environment %v: expected done %v, got %v",
					tick, i, expectDone, ts.Done[i])
			}
			if ts.Success[i] {
				t.Errorf("tick %v environment %v: unexpected success", tick,
					i)
			}
		}
	}
}

func TestAutoResetStartsFreshEpisode(t *testing.T) {
	env, _ := testEnv(t, control.OSC, nil)
	if _, err := env.Reset(); err != nil {
		t.Fatal(err)
	}

	actions := mat.NewDense(testEnvs, 3, nil)

	var sawDone bool
	var terminations int
	for tick := 0; tick < 3*testEpisodeLength; tick++ {
		ts, err := env.Step(actions)
		if err != nil {
			t.Fatal(err)
		}

		if sawDone && ts.AnyDone() {
			// A fresh episode must run its full length before
			// terminating again
			t.Fatal("expected no termination on the tick after a reset")
		}
		sawDone = ts.AnyDone()
		if sawDone {
			terminations++
		}
	}

	// Three episode lengths fit three cutoffs: the first at the
	// cutoff tick and one per auto-reset episode after it
	if terminations < 2 {
		t.Errorf("expected repeated cutoffs across three episode "+
			"lengths, got %v", terminations)
	}
}

func TestRewardReflectsDistance(t *testing.T) {
	env, _ := testEnv(t, control.OSC, nil)
	if _, err := env.Reset(); err != nil {
		t.Fatal(err)
	}

	actions := mat.NewDense(testEnvs, 3, nil)
	ts, err := env.Step(actions)
	if err != nil {
		t.Fatal(err)
	}

	// The object sits 0.25 from the goal in every environment
	expected := 1.0 - math.Tanh(10.0*0.25)
	for i := 0; i < testEnvs; i++ {
		if math.Abs(ts.Rewards.AtVec(i)-expected) > 1e-9 {
			t.Errorf("environment %v: expected reward %v, got %v", i,
				expected, ts.Rewards.AtVec(i))
		}
	}
}

func TestPrivilegedInfoAppended(t *testing.T) {
	priv, err := privinfo.NewCollector(testEnvs, 5)
	if err != nil {
		t.Fatal(err)
	}

	env, sm := testEnv(t, control.OSC, priv)
	sm.SetPhysicalParams(0, []float64{0.3, 0.6, 0.01, -0.01, 0.0})

	first, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}

	_, cols := first.Observations.Dims()
	if cols != fullObsDims+5 {
		t.Fatalf("expected %v observation columns with privileged info, "+
			"got %v", fullObsDims+5, cols)
	}

	// The parameter block occupies the trailing columns
	if first.Observations.At(0, fullObsDims) != 0.3 {
		t.Errorf("expected the first physical parameter 0.3, got %v",
			first.Observations.At(0, fullObsDims))
	}
}

func TestPrimitiveObservesObjectOnly(t *testing.T) {
	env, _ := testEnv(t, control.ScriptedPrimitive, nil)

	first, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}

	_, cols := first.Observations.Dims()
	if cols != primitiveObsDims {
		t.Errorf("expected %v observation columns under the primitive, "+
			"got %v", primitiveObsDims, cols)
	}
}

func TestStepBeforeResetPanics(t *testing.T) {
	env, _ := testEnv(t, control.OSC, nil)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic stepping before the first reset")
		}
	}()
	env.Step(mat.NewDense(testEnvs, 3, nil))
}

func TestSpecs(t *testing.T) {
	env, _ := testEnv(t, control.OSC, nil)

	obs := env.ObservationSpec()
	if int(obs.Shape.AtVec(0)) != fullObsDims {
		t.Errorf("expected observation shape %v, got %v", fullObsDims,
			obs.Shape.AtVec(0))
	}

	action := env.ActionSpec()
	if int(action.Shape.AtVec(0)) != 3 {
		t.Errorf("expected action shape 3, got %v", action.Shape.AtVec(0))
	}
	if action.LowerBound.AtVec(0) != -1.0 ||
		action.UpperBound.AtVec(0) != 1.0 {
		t.Error("expected actions bounded in [-1, 1]")
	}
}
