package layers

import (
	"fmt"

	"github.com/justinsb/lightgraph/pkg/config"
)

// matrix is a dense row-major matrix.
type matrix struct {
	rows, cols int
	data       []float64
}

func newMatrix(data []float64, rows, cols int) (matrix, error) {
	if len(data) != rows*cols {
		return matrix{}, fmt.Errorf("expected %dx%d=%d weights, got %d", rows, cols, rows*cols, len(data))
	}
	return matrix{rows: rows, cols: cols, data: data}, nil
}

// mulAdd returns m*x added onto acc, allocating acc when nil.
func (m matrix) mulAdd(x []float64, acc []float64) []float64 {
	if acc == nil {
		acc = make([]float64, m.rows)
	}
	for r := 0; r < m.rows; r++ {
		row := m.data[r*m.cols : (r+1)*m.cols]
		sum := 0.0
		for c, w := range row {
			sum += w * x[c]
		}
		acc[r] += sum
	}
	return acc
}

// affine computes W x + b.
type affine struct {
	w matrix
	b []float64
}

// newAffine infers the output width from the bias and checks the weights against nIn.
func newAffine(weights, bias []float64, nIn int) (affine, error) {
	if len(bias) == 0 {
		return affine{}, fmt.Errorf("bias must not be empty")
	}
	w, err := newMatrix(weights, len(bias), nIn)
	if err != nil {
		return affine{}, err
	}
	return affine{w: w, b: bias}, nil
}

func (a affine) nOut() int {
	return len(a.b)
}

func (a affine) apply(x []float64) []float64 {
	out := make([]float64, len(a.b))
	copy(out, a.b)
	return a.w.mulAdd(x, out)
}

// gate computes W x + U h + b for recurrent layers.
type gate struct {
	w matrix
	u matrix
	b []float64
}

func newGate(components map[string]config.ComponentConfig, name string, n, nIn int) (gate, error) {
	component, ok := components[name]
	if !ok {
		return gate{}, fmt.Errorf("missing component %q", name)
	}
	if len(component.Bias) != n {
		return gate{}, fmt.Errorf("component %q: expected %d biases, got %d", name, n, len(component.Bias))
	}
	w, err := newMatrix(component.Weights, n, nIn)
	if err != nil {
		return gate{}, fmt.Errorf("component %q weights: %w", name, err)
	}
	u, err := newMatrix(component.U, n, n)
	if err != nil {
		return gate{}, fmt.Errorf("component %q recurrent weights: %w", name, err)
	}
	return gate{w: w, u: u, b: component.Bias}, nil
}

func (g gate) apply(x, h []float64) []float64 {
	out := make([]float64, len(g.b))
	copy(out, g.b)
	g.w.mulAdd(x, out)
	return g.u.mulAdd(h, out)
}
