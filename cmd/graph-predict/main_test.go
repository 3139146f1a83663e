package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/predictor"
)

func TestRamp(t *testing.T) {
	scale := 2.0
	v := config.InputVariable{Name: "x", Offset: 1, Scale: &scale}
	grid := []struct {
		i, n     int
		expected float64
	}{
		{0, 3, -1},
		{1, 3, 0},
		{2, 3, 1},
		{0, 1, 0},
	}
	for _, g := range grid {
		got := (ramp(v, g.i, g.n) + v.Offset) * scale
		if math.Abs(got-g.expected) > 1e-12 {
			t.Errorf("ramp(%d, %d): expected normalized %v, got %v", g.i, g.n, g.expected, got)
		}
	}

	if got := ramp(config.InputVariable{Name: "y"}, 0, 2); got != -1 {
		t.Errorf("absent scale should be treated as 1, got %v", got)
	}

	zero := 0.0
	if got := ramp(config.InputVariable{Name: "z", Offset: 3, Scale: &zero}, 0, 2); got != -3 {
		t.Errorf("zero scale should give the offset's negation, got %v", got)
	}
}

func TestPredict(t *testing.T) {
	cfg := &config.GraphConfig{
		Inputs: []config.InputNodeConfig{
			{Name: "node_in", Variables: []config.InputVariable{{Name: "a"}, {Name: "b"}}},
		},
		InputSequences: []config.InputNodeConfig{
			{Name: "steps", Variables: []config.InputVariable{{Name: "x"}}},
		},
		Nodes: []config.NodeConfig{
			{Name: "dense", Type: config.FeedForward, Sources: []string{"node_in"}, Layers: []config.LayerConfig{
				{Architecture: config.ArchitectureDense, Weights: []float64{2, 3}, Bias: []float64{0}},
			}},
			{Name: "per_step", Type: config.TimeDistributed, Sources: []string{"steps"}},
		},
		Outputs: []config.OutputNodeConfig{
			{Name: "score", Node: "dense", Labels: []string{"score"}},
			{Name: "steps", Node: "per_step", Labels: []string{"x"}},
		},
	}
	p, err := predictor.New(cfg, "score")
	if err != nil {
		t.Fatalf("failed to build predictor: %v", err)
	}

	var out bytes.Buffer
	if err := predict(&out, p); err != nil {
		t.Fatalf("failed to predict: %v", err)
	}
	// a = -1, b = 1; the single-variable sequence ramps to 0 at its last step
	expected := "score:\nscore 1\nsteps:\nx 0\n"
	if out.String() != expected {
		t.Errorf("expected %q, got %q", expected, out.String())
	}
}
