package engine

import (
	"slices"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine/layers"
)

// Inputs holds the values of the input nodes, by position in the graph
// description. A nil entry means the input was not supplied; a non-nil empty
// sequence is a valid sequence of length zero.
type Inputs struct {
	Vectors   [][]float64
	Sequences [][][]float64
}

// Result is the value of an output node. Exactly one of Vector and Sequence is
// meaningful, according to Shape.Kind. A Result never shares memory with the
// Inputs it was computed from.
type Result struct {
	Shape    Shape
	Vector   []float64
	Sequence [][]float64
}

// evaluation holds the values computed during a single call, indexed by NodeID.
type evaluation struct {
	vectors   [][]float64
	sequences [][][]float64
}

// Evaluate computes a single output.
func (g *Graph) Evaluate(in Inputs, out OutputID) (*Result, error) {
	results, err := g.EvaluateAll(in, out)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EvaluateAll computes several outputs in one pass; nodes they share are evaluated once.
// Results are returned in the order of outs.
func (g *Graph) EvaluateAll(in Inputs, outs ...OutputID) ([]*Result, error) {
	plan, err := g.Plan(outs...)
	if err != nil {
		return nil, err
	}
	if err := g.checkInputs(in, plan); err != nil {
		return nil, err
	}

	state := &evaluation{
		vectors:   make([][]float64, len(g.nodes)),
		sequences: make([][][]float64, len(g.nodes)),
	}
	for _, id := range plan {
		if err := g.evaluateNode(state, in, id); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, 0, len(outs))
	for _, out := range outs {
		id := g.outputs[out].node
		result := &Result{Shape: g.nodes[id].shape}
		if result.Shape.Kind == SequenceShape {
			rows := state.sequences[id]
			result.Sequence = make([][]float64, len(rows))
			for i, row := range rows {
				result.Sequence[i] = slices.Clone(row)
			}
		} else {
			result.Vector = slices.Clone(state.vectors[id])
		}
		results = append(results, result)
	}
	return results, nil
}

// checkInputs verifies that every input node in plan was supplied with the declared width.
func (g *Graph) checkInputs(in Inputs, plan []NodeID) error {
	for _, id := range plan {
		n := &g.nodes[id]
		switch n.kind {
		case InputNode:
			if n.input >= len(in.Vectors) || in.Vectors[n.input] == nil {
				return inputErrorf(n.name, ErrMissingNode, "vector input %q was not supplied", n.name)
			}
			if got := len(in.Vectors[n.input]); got != n.shape.Width {
				return inputErrorf(n.name, ErrVariableMismatch, "expected %d values, got %d", n.shape.Width, got)
			}
		case InputSequenceNode:
			if n.input >= len(in.Sequences) || in.Sequences[n.input] == nil {
				return inputErrorf(n.name, ErrMissingNode, "sequence input %q was not supplied", n.name)
			}
			for step, values := range in.Sequences[n.input] {
				if len(values) != n.shape.Width {
					return inputErrorf(n.name, ErrVariableMismatch, "step %d: expected %d values, got %d", step, n.shape.Width, len(values))
				}
			}
		}
	}
	return nil
}

func (g *Graph) evaluateNode(state *evaluation, in Inputs, id NodeID) error {
	n := &g.nodes[id]

	switch n.kind {
	case InputNode:
		state.vectors[id] = in.Vectors[n.input]

	case InputSequenceNode:
		state.sequences[id] = in.Sequences[n.input]

	case config.FeedForward:
		state.vectors[id] = layers.EvaluateStack(n.vectorLayers, state.vectors[n.deps[0]])

	case config.Concatenate:
		values := make([]float64, 0, n.shape.Width)
		for _, dep := range n.deps {
			values = append(values, state.vectors[dep]...)
		}
		state.vectors[id] = values

	case config.Add:
		values := make([]float64, n.shape.Width)
		for _, dep := range n.deps {
			for i, v := range state.vectors[dep] {
				values[i] += v
			}
		}
		state.vectors[id] = values

	case config.Sequence:
		rows, err := layers.ScanStack(n.sequenceLayers, state.sequences[n.deps[0]])
		if err != nil {
			return &InputError{Node: n.name, Err: err}
		}
		if n.shape.Kind == VectorShape {
			state.vectors[id] = rows[0]
		} else {
			state.sequences[id] = rows
		}

	case config.TimeDistributed:
		source := state.sequences[n.deps[0]]
		rows := make([][]float64, 0, len(source))
		for _, step := range source {
			rows = append(rows, layers.EvaluateStack(n.vectorLayers, step))
		}
		state.sequences[id] = rows

	case config.Sum:
		values := make([]float64, n.shape.Width)
		for _, step := range state.sequences[n.deps[0]] {
			for i, v := range step {
				values[i] += v
			}
		}
		state.vectors[id] = values
	}

	return nil
}
