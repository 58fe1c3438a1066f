package timestep

import "testing"

func TestDoneIndices(t *testing.T) {
	step := New(4, 3, 7)
	step.Done[1] = true
	step.Done[3] = true

	indices := step.DoneIndices()
	if len(indices) != 2 || indices[0] != 1 || indices[1] != 3 {
		t.Errorf("expected done indices [1 3], got %v", indices)
	}
	if !step.AnyDone() {
		t.Error("expected AnyDone with flagged environments")
	}
}

func TestAnyDoneEmpty(t *testing.T) {
	step := New(3, 2, 0)
	if step.AnyDone() {
		t.Error("expected no environment done on a fresh timestep")
	}
	if step.DoneIndices() != nil {
		t.Errorf("expected nil done indices, got %v", step.DoneIndices())
	}
}

func TestNumEnvs(t *testing.T) {
	step := New(6, 2, 0)
	if step.NumEnvs() != 6 {
		t.Errorf("expected 6 environments, got %v", step.NumEnvs())
	}
}
