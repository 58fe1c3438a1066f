// Package timestep implements timesteps of the agent-environment
// interaction for a lockstep batch of environments
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TimeStep packages together a single lockstep tick across a batch of
// environments. Observations holds one row per environment, Rewards
// one scalar per environment, and Done and Success the per-environment
// termination and task-success masks for the tick.
type TimeStep struct {
	Observations *mat.Dense
	Rewards      *mat.VecDense
	Done         []bool
	Success      []bool
	Number       int
}

// New returns a new TimeStep holding freshly allocated buffers for a
// batch of numEnvs environments with obsDims observation features each
func New(numEnvs, obsDims, number int) TimeStep {
	return TimeStep{
		Observations: mat.NewDense(numEnvs, obsDims, nil),
		Rewards:      mat.NewVecDense(numEnvs, nil),
		Done:         make([]bool, numEnvs),
		Success:      make([]bool, numEnvs),
		Number:       number,
	}
}

// NumEnvs returns the number of environments in the batch
func (t TimeStep) NumEnvs() int {
	return t.Rewards.Len()
}

// AnyDone returns whether any environment in the batch terminated on
// this tick
func (t TimeStep) AnyDone() bool {
	for _, done := range t.Done {
		if done {
			return true
		}
	}
	return false
}

// DoneIndices returns the indices of environments flagged for reset on
// this tick
func (t TimeStep) DoneIndices() []int {
	var indices []int
	for i, done := range t.Done {
		if done {
			indices = append(indices, i)
		}
	}
	return indices
}

func (t TimeStep) String() string {
	numDone := len(t.DoneIndices())
	meanReward := stat.Mean(t.Rewards.RawVector().Data, nil)

	str := "TimeStep | Number: %v  |  Mean Reward:  %.4f  |  Done: %v/%v"
	return fmt.Sprintf(str, t.Number, meanReward, numDone, t.NumEnvs())
}
