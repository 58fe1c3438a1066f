package control

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/gomanip/utils/floatutils"
)

// Gains holds a stiffness/damping pair for a control law. Damping is
// always derived from stiffness under the critical-damping assumption
// kd = 2·√kp; SetKp is the only way to mutate a Gains so the pair can
// never fall out of step.
type Gains struct {
	kp *mat.VecDense
	kd *mat.VecDense
}

// NewGains returns a Gains with the given stiffness values and
// critically damped damping
func NewGains(kp []float64) Gains {
	g := Gains{
		kp: mat.NewVecDense(len(kp), nil),
		kd: mat.NewVecDense(len(kp), nil),
	}
	for i, v := range kp {
		g.SetKp(i, v)
	}
	return g
}

// NewConstGains returns a Gains of dims dimensions all set to the same
// stiffness
func NewConstGains(dims int, kp float64) Gains {
	values := make([]float64, dims)
	for i := range values {
		values[i] = kp
	}
	return NewGains(values)
}

// SetKp sets the stiffness of dimension i and rederives its damping
func (g Gains) SetKp(i int, kp float64) {
	g.kp.SetVec(i, kp)
	g.kd.SetVec(i, 2.0*math.Sqrt(kp))
}

// Kp returns the stiffness of dimension i
func (g Gains) Kp(i int) float64 {
	return g.kp.AtVec(i)
}

// Kd returns the damping of dimension i
func (g Gains) Kd(i int) float64 {
	return g.kd.AtVec(i)
}

// Dims returns the number of task-space dimensions the gains cover
func (g Gains) Dims() int {
	return g.kp.Len()
}

// Clone returns an independent copy of g
func (g Gains) Clone() Gains {
	clone := Gains{
		kp: mat.NewVecDense(g.kp.Len(), nil),
		kd: mat.NewVecDense(g.kd.Len(), nil),
	}
	clone.kp.CopyVec(g.kp)
	clone.kd.CopyVec(g.kd)
	return clone
}

// ImpedanceFromLogit maps an unbounded gain logit into the configured
// stiffness range through a sigmoid, so the resulting gain is always
// within [rng.Min, rng.Max]
func ImpedanceFromLogit(rng r1.Interval, logit float64) float64 {
	return rng.Min + (rng.Max-rng.Min)*floatutils.Sigmoid(logit)
}
