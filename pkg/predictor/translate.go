package predictor

import (
	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine"
)

// translate converts the named maps into the positional inputs of the given outputs.
// Only the input nodes those outputs read are consulted; everything else in the maps is ignored.
func (p *Predictor) translate(nodes NodeMap, seqs SeqNodeMap, outs ...engine.OutputID) (engine.Inputs, error) {
	vectors, sequences, err := p.graph.RequiredInputs(outs...)
	if err != nil {
		return engine.Inputs{}, err
	}

	in := engine.Inputs{
		Vectors:   make([][]float64, len(p.inputs)),
		Sequences: make([][][]float64, len(p.sequences)),
	}
	for _, i := range vectors {
		input := p.inputs[i]
		values, found := nodes[input.Name]
		if !found {
			return engine.Inputs{}, &engine.InputError{Node: input.Name, Err: engine.ErrMissingNode}
		}
		vector, err := preprocess(input, values)
		if err != nil {
			return engine.Inputs{}, err
		}
		in.Vectors[i] = vector
	}
	for _, i := range sequences {
		input := p.sequences[i]
		steps, found := seqs[input.Name]
		if !found {
			return engine.Inputs{}, &engine.InputError{Node: input.Name, Err: engine.ErrMissingNode}
		}
		sequence := make([][]float64, 0, len(steps))
		for _, values := range steps {
			vector, err := preprocess(input, values)
			if err != nil {
				return engine.Inputs{}, err
			}
			sequence = append(sequence, vector)
		}
		in.Sequences[i] = sequence
	}
	return in, nil
}

// preprocess orders values by the declared variables and applies offset and scale.
func preprocess(input config.InputNodeConfig, values map[string]float64) ([]float64, error) {
	vector := make([]float64, len(input.Variables))
	for i, variable := range input.Variables {
		v, found := values[variable.Name]
		if !found {
			return nil, &engine.InputError{Node: input.Name, Variable: variable.Name, Err: engine.ErrVariableMismatch}
		}
		vector[i] = (v + variable.Offset) * variable.ScaleOrDefault()
	}
	return vector, nil
}
