package main

import (
	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/predictor"
)

// ramp returns the raw value for variable i of n such that, once the
// variable's offset and scale are applied, the inputs are evenly spaced in [-1, 1].
// A variable scaled by zero always normalizes to 0, so -Offset is returned.
func ramp(v config.InputVariable, i, n int) float64 {
	x := 0.0
	if n > 1 {
		x = -1 + 2*float64(i)/float64(n-1)
	}
	return raw(v, x)
}

// raw inverts the preprocessing of v for the normalized value x.
func raw(v config.InputVariable, x float64) float64 {
	scale := v.ScaleOrDefault()
	if scale == 0 {
		return -v.Offset
	}
	return x/scale - v.Offset
}

func rampNodes(inputs []config.InputNodeConfig) predictor.NodeMap {
	nodes := make(predictor.NodeMap, len(inputs))
	for _, input := range inputs {
		values := make(map[string]float64, len(input.Variables))
		for i, v := range input.Variables {
			values[v.Name] = ramp(v, i, len(input.Variables))
		}
		nodes[input.Name] = values
	}
	return nodes
}

// rampSequences builds sequences whose step j is the normalized ramp scaled by (j+1)/steps.
func rampSequences(inputs []config.InputNodeConfig, steps int) predictor.SeqNodeMap {
	seqs := make(predictor.SeqNodeMap, len(inputs))
	for _, input := range inputs {
		sequence := make([]map[string]float64, steps)
		for j := range sequence {
			frac := float64(j+1) / float64(steps)
			values := make(map[string]float64, len(input.Variables))
			for i, v := range input.Variables {
				normalized := (ramp(v, i, len(input.Variables)) + v.Offset) * v.ScaleOrDefault()
				values[v.Name] = raw(v, normalized*frac)
			}
			sequence[j] = values
		}
		seqs[input.Name] = sequence
	}
	return seqs
}
