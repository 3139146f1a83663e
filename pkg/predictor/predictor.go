// Package predictor exposes a compiled graph through named value maps.
//
// Callers address inputs by node and variable name and receive outputs keyed
// by the labels declared in the configuration, so that their code does not
// depend on the positional layout the engine evaluates.
package predictor

import (
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine"
)

// NodeMap holds vector inputs: node name -> variable name -> value.
type NodeMap map[string]map[string]float64

// SeqNodeMap holds sequence inputs: node name -> steps, each variable name -> value.
type SeqNodeMap map[string][]map[string]float64

// ValueMap is a vector output: label -> value.
type ValueMap map[string]float64

// SequenceValueMap is a sequence output: label -> value at every step.
type SequenceValueMap map[string][]float64

// Predictor is safe for concurrent use.
type Predictor struct {
	graph         *engine.Graph
	defaultOutput string

	inputs    []config.InputNodeConfig
	sequences []config.InputNodeConfig
	outputs   []config.OutputNodeConfig
}

// New compiles cfg and binds defaultOutput as the output Compute returns.
func New(cfg *config.GraphConfig, defaultOutput string) (*Predictor, error) {
	graph, err := engine.Compile(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := graph.Output(defaultOutput); err != nil {
		return nil, fmt.Errorf("default output: %w", err)
	}

	p := &Predictor{
		graph:         graph,
		defaultOutput: defaultOutput,
		inputs:        cfg.Inputs,
		sequences:     cfg.InputSequences,
		outputs:       cfg.Outputs,
	}

	klog.V(2).InfoS("compiled graph", "nodes", len(graph.Nodes()), "inputs", len(p.inputs), "sequences", len(p.sequences), "outputs", cfg.OutputNames(), "default", defaultOutput)

	return p, nil
}

// DefaultOutput is the output Compute evaluates.
func (p *Predictor) DefaultOutput() string { return p.defaultOutput }

// Outputs returns the declared outputs, in declaration order.
func (p *Predictor) Outputs() []config.OutputNodeConfig { return p.outputs }

// VectorInputs returns the declared vector input nodes.
func (p *Predictor) VectorInputs() []config.InputNodeConfig { return p.inputs }

// SequenceInputs returns the declared sequence input nodes.
func (p *Predictor) SequenceInputs() []config.InputNodeConfig { return p.sequences }

// Graph returns the compiled graph.
func (p *Predictor) Graph() *engine.Graph { return p.graph }

// Compute evaluates the default output.
//
// Only the input nodes the output depends on must be present in nodes and seqs;
// an input node that does not feed the output may be absent, and extra nodes
// or variables are ignored.
func (p *Predictor) Compute(nodes NodeMap, seqs SeqNodeMap) (ValueMap, error) {
	return p.ComputeOutput(nodes, seqs, p.defaultOutput)
}

// ComputeOutput evaluates the named vector output.
// Inputs are required as for Compute.
func (p *Predictor) ComputeOutput(nodes NodeMap, seqs SeqNodeMap, output string) (ValueMap, error) {
	id, err := p.vectorOutput(output)
	if err != nil {
		return nil, err
	}
	in, err := p.translate(nodes, seqs, id)
	if err != nil {
		return nil, err
	}
	result, err := p.graph.Evaluate(in, id)
	if err != nil {
		return nil, err
	}
	return p.values(id, result.Vector), nil
}

// ComputeAll evaluates every vector output in a single pass.
// Sequence outputs are skipped; use Scan for those.
func (p *Predictor) ComputeAll(nodes NodeMap, seqs SeqNodeMap) (map[string]ValueMap, error) {
	var ids []engine.OutputID
	for _, info := range p.graph.Outputs() {
		if info.Shape.Kind == engine.VectorShape {
			ids = append(ids, info.ID)
		}
	}
	in, err := p.translate(nodes, seqs, ids...)
	if err != nil {
		return nil, err
	}
	results, err := p.graph.EvaluateAll(in, ids...)
	if err != nil {
		return nil, err
	}

	all := make(map[string]ValueMap, len(ids))
	for i, id := range ids {
		all[p.outputs[id].Name] = p.values(id, results[i].Vector)
	}
	return all, nil
}

// Scan evaluates the named sequence output.
func (p *Predictor) Scan(nodes NodeMap, seqs SeqNodeMap, output string) (SequenceValueMap, error) {
	id, err := p.graph.Output(output)
	if err != nil {
		return nil, err
	}
	if info, _ := p.graph.OutputInfo(id); info.Shape.Kind != engine.SequenceShape {
		return nil, &engine.ConfigurationError{Node: output, Err: fmt.Errorf("%w: output is a %s, use Compute", engine.ErrShape, info.Shape)}
	}
	in, err := p.translate(nodes, seqs, id)
	if err != nil {
		return nil, err
	}
	result, err := p.graph.Evaluate(in, id)
	if err != nil {
		return nil, err
	}

	labels := p.outputs[id].Labels
	values := make(SequenceValueMap, len(labels))
	for i, label := range labels {
		column := make([]float64, len(result.Sequence))
		for step, row := range result.Sequence {
			column[step] = row[i]
		}
		values[label] = column
	}
	return values, nil
}

func (p *Predictor) vectorOutput(output string) (engine.OutputID, error) {
	id, err := p.graph.Output(output)
	if err != nil {
		return 0, err
	}
	if info, _ := p.graph.OutputInfo(id); info.Shape.Kind != engine.VectorShape {
		return 0, &engine.ConfigurationError{Node: output, Err: fmt.Errorf("%w: output is a %s, use Scan", engine.ErrShape, info.Shape)}
	}
	return id, nil
}

func (p *Predictor) values(id engine.OutputID, vector []float64) ValueMap {
	labels := p.outputs[id].Labels
	values := make(ValueMap, len(labels))
	for i, label := range labels {
		values[label] = vector[i]
	}
	return values
}

// IsInputError reports whether err was caused by the values passed to a compute call.
func IsInputError(err error) bool {
	return errors.Is(err, engine.ErrInput)
}

// IsConfigurationError reports whether err was caused by the graph description or an unknown output name.
func IsConfigurationError(err error) bool {
	return errors.Is(err, engine.ErrConfiguration)
}
