package floatutils

import (
	"math"
	"testing"
)

const tolerance float64 = 1e-12

func TestClip(t *testing.T) {
	if got := Clip(2.0, -1.0, 1.0); got != 1.0 {
		t.Errorf("expected 1.0, got %v", got)
	}
	if got := Clip(-2.0, -1.0, 1.0); got != -1.0 {
		t.Errorf("expected -1.0, got %v", got)
	}
	if got := Clip(0.5, -1.0, 1.0); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct {
		in, out float64
	}{
		{0.0, 0.0},
		{3.0 * math.Pi / 2.0, -math.Pi / 2.0},
		{-3.0 * math.Pi / 2.0, math.Pi / 2.0},
		{2.0 * math.Pi, 0.0},
		{math.Pi, -math.Pi},
	}

	for _, c := range cases {
		if got := WrapAngle(c.in); math.Abs(got-c.out) > tolerance {
			t.Errorf("WrapAngle(%v): expected %v, got %v", c.in, c.out, got)
		}
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0.0); math.Abs(got-0.5) > tolerance {
		t.Errorf("expected 0.5 at zero, got %v", got)
	}
	if got := Sigmoid(50.0); math.Abs(got-1.0) > tolerance {
		t.Errorf("expected saturation at 1.0, got %v", got)
	}
}
