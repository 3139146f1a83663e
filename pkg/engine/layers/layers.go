// Package layers implements the evaluators for every supported layer architecture.
//
// Layers are built once from their configuration, with every shape checked
// against the width of their input, and are immutable afterwards: Evaluate and
// Scan allocate their results and may be called from many goroutines at once.
package layers

import (
	"fmt"

	"github.com/justinsb/lightgraph/pkg/config"
)

// VectorLayer maps a fixed-size vector to another fixed-size vector.
type VectorLayer interface {
	NIn() int
	NOut() int
	Evaluate(in []float64) []float64

	vectorLayer()
}

// SequenceLayer consumes a sequence of step vectors, left to right.
//
// When ReturnsSequence is false, Scan returns exactly one row: the final state
// (the initial state for an empty sequence).
type SequenceLayer interface {
	NIn() int
	NOut() int
	ReturnsSequence() bool
	Scan(seq [][]float64) ([][]float64, error)

	sequenceLayer()
}

// NewVectorLayer builds a vector layer whose input has width nIn.
func NewVectorLayer(cfg config.LayerConfig, nIn int) (VectorLayer, error) {
	switch cfg.Architecture {
	case config.ArchitectureDense:
		return newDense(cfg, nIn)
	case config.ArchitectureNormalization:
		return newNormalization(cfg, nIn)
	case config.ArchitectureBias:
		return newBias(cfg, nIn)
	case config.ArchitectureActivation:
		return newActivationLayer(cfg, nIn)
	case config.ArchitectureHighway:
		return newHighway(cfg, nIn)
	case config.ArchitectureMaxout:
		return newMaxout(cfg, nIn)
	case config.ArchitectureLSTM, config.ArchitectureGRU, config.ArchitectureEmbedding:
		return nil, fmt.Errorf("%s layer consumes sequences, not vectors", cfg.Architecture)
	default:
		return nil, fmt.Errorf("unknown layer architecture %q", cfg.Architecture)
	}
}

// NewSequenceLayer builds a sequence layer whose steps have width nIn.
func NewSequenceLayer(cfg config.LayerConfig, nIn int) (SequenceLayer, error) {
	switch cfg.Architecture {
	case config.ArchitectureLSTM:
		return newLSTM(cfg, nIn)
	case config.ArchitectureGRU:
		return newGRU(cfg, nIn)
	case config.ArchitectureEmbedding:
		return newEmbedding(cfg, nIn)
	case config.ArchitectureDense, config.ArchitectureNormalization, config.ArchitectureBias,
		config.ArchitectureActivation, config.ArchitectureHighway, config.ArchitectureMaxout:
		return nil, fmt.Errorf("%s layer consumes vectors, not sequences", cfg.Architecture)
	default:
		return nil, fmt.Errorf("unknown layer architecture %q", cfg.Architecture)
	}
}

// NewVectorStack builds consecutive vector layers, chaining widths.
// It returns the final width.
func NewVectorStack(cfgs []config.LayerConfig, nIn int) ([]VectorLayer, int, error) {
	stack := make([]VectorLayer, 0, len(cfgs))
	n := nIn
	for i, cfg := range cfgs {
		layer, err := NewVectorLayer(cfg, n)
		if err != nil {
			return nil, 0, fmt.Errorf("layer %d: %w", i, err)
		}
		stack = append(stack, layer)
		n = layer.NOut()
	}
	return stack, n, nil
}

// EvaluateStack runs in through every layer in order.
func EvaluateStack(stack []VectorLayer, in []float64) []float64 {
	out := in
	for _, layer := range stack {
		out = layer.Evaluate(out)
	}
	return out
}
