// Package privinfo collects per-environment physical parameters from
// the simulator into a fixed-width buffer that can be appended to the
// observations of privileged-information policies.
package privinfo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gomanip/sim"
)

// Collector snapshots the physical parameters of reset environments
// into a (numEnvs × width) buffer. Rows are rewritten only on reset,
// so a row stays valid for the whole episode.
type Collector struct {
	buffer *mat.Dense
	width  int
}

// NewCollector returns a Collector holding width parameters per
// environment
func NewCollector(numEnvs, width int) (*Collector, error) {
	if numEnvs < 1 {
		return nil, fmt.Errorf("newCollector: need at least one "+
			"environment, got %v", numEnvs)
	}
	if width < 1 {
		return nil, fmt.Errorf("newCollector: width must be positive, "+
			"got %v", width)
	}
	return &Collector{
		buffer: mat.NewDense(numEnvs, width, nil),
		width:  width,
	}, nil
}

// Width returns the number of parameters stored per environment
func (c *Collector) Width() int {
	return c.width
}

// Collect copies the physical parameters of the given environments out
// of the simulator. Parameter vectors shorter than the buffer width
// are zero-padded on the right; longer vectors are an error.
func (c *Collector) Collect(indices []int, s sim.Simulator) error {
	for _, i := range indices {
		params := s.PhysicalParams(i)
		if len(params) > c.width {
			return fmt.Errorf("collect: environment %v has %v physical "+
				"parameters but the buffer width is %v", i, len(params),
				c.width)
		}

		for j := 0; j < c.width; j++ {
			if j < len(params) {
				c.buffer.Set(i, j, params[j])
			} else {
				c.buffer.Set(i, j, 0.0)
			}
		}
	}
	return nil
}

// Row returns the parameter row of one environment. The slice aliases
// the collector's buffer and must not be mutated.
func (c *Collector) Row(env int) []float64 {
	return c.buffer.RawRowView(env)
}

// Buffer returns the full parameter matrix. The matrix aliases the
// collector's storage and must not be mutated.
func (c *Collector) Buffer() mat.Matrix {
	return c.buffer
}
