// Package engine compiles a graph description into a fixed evaluation order
// and evaluates it for one set of inputs at a time.
//
// A compiled Graph is immutable: it holds no per-evaluation state, so a single
// Graph may be evaluated from many goroutines concurrently.
package engine

import (
	"fmt"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine/layers"
)

// NodeID is the position of a node in evaluation order.
// Every dependency of a node has a smaller NodeID.
type NodeID int

// OutputID identifies a declared output of a compiled graph.
type OutputID int

// Node types of input nodes; computed nodes use the config.NodeType they were declared with.
const (
	InputNode         config.NodeType = "input"
	InputSequenceNode config.NodeType = "input_sequence"
)

// ShapeKind distinguishes fixed-size vectors from variable-length sequences.
type ShapeKind int

const (
	VectorShape ShapeKind = iota
	SequenceShape
)

// Shape is the static shape of a node's value. For sequences, Width is the width of each step.
type Shape struct {
	Kind  ShapeKind
	Width int
}

func (s Shape) String() string {
	if s.Kind == SequenceShape {
		return fmt.Sprintf("sequence(%d)", s.Width)
	}
	return fmt.Sprintf("vector(%d)", s.Width)
}

type node struct {
	name  string
	kind  config.NodeType
	shape Shape
	deps  []NodeID

	// input is the position among vector or sequence inputs, for input nodes.
	input int

	vectorLayers   []layers.VectorLayer
	sequenceLayers []layers.SequenceLayer
}

type output struct {
	name   string
	node   NodeID
	labels []string
	plan   []NodeID
}

// NodeInfo describes a compiled node.
type NodeInfo struct {
	ID           NodeID
	Name         string
	Type         config.NodeType
	Shape        Shape
	Dependencies []NodeID
}

// OutputInfo describes a declared output.
type OutputInfo struct {
	ID     OutputID
	Name   string
	Node   NodeID
	Labels []string
	Shape  Shape
}

// Graph is a compiled graph description.
type Graph struct {
	nodes          []node
	vectorInputs   []NodeID
	sequenceInputs []NodeID
	outputs        []output
	outputsByName  map[string]OutputID
}

// Compile validates cfg and builds its evaluation order.
// On error no graph is returned; the error is always a *ConfigurationError.
func Compile(cfg *config.GraphConfig) (*Graph, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("graph config is nil")}
	}

	var vertices []vertex
	declared := make(map[string]bool)
	declare := func(name string, sources []string) error {
		if name == "" {
			return configErrorf("", ErrUnresolvedInput, "node %d has no name", len(vertices))
		}
		if declared[name] {
			return configErrorf(name, ErrDuplicateName, "node %q is declared more than once", name)
		}
		declared[name] = true
		vertices = append(vertices, vertex{name: name, sources: sources})
		return nil
	}

	for _, inputs := range [][]config.InputNodeConfig{cfg.Inputs, cfg.InputSequences} {
		for _, input := range inputs {
			if err := declare(input.Name, nil); err != nil {
				return nil, err
			}
			if err := checkVariables(input); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range cfg.Nodes {
		if err := declare(n.Name, n.Sources); err != nil {
			return nil, err
		}
	}

	var roots []string
	for _, out := range cfg.Outputs {
		if !declared[out.Node] {
			return nil, configErrorf(out.Name, ErrUnresolvedInput, "output is bound to undefined node %q", out.Node)
		}
		roots = append(roots, out.Node)
	}

	order, err := BuildDAG(vertices, roots)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:         make([]node, 0, len(order)),
		outputsByName: make(map[string]OutputID),
	}
	ids := make(map[string]NodeID, len(order))
	nInputs, nSequences := len(cfg.Inputs), len(cfg.Inputs)+len(cfg.InputSequences)
	g.vectorInputs = make([]NodeID, len(cfg.Inputs))
	g.sequenceInputs = make([]NodeID, len(cfg.InputSequences))

	for _, v := range order {
		id := NodeID(len(g.nodes))
		var n node
		switch {
		case v < nInputs:
			input := cfg.Inputs[v]
			n = node{name: input.Name, kind: InputNode, input: v, shape: Shape{Kind: VectorShape, Width: len(input.Variables)}}
			g.vectorInputs[v] = id
		case v < nSequences:
			input := cfg.InputSequences[v-nInputs]
			n = node{name: input.Name, kind: InputSequenceNode, input: v - nInputs, shape: Shape{Kind: SequenceShape, Width: len(input.Variables)}}
			g.sequenceInputs[v-nInputs] = id
		default:
			n, err = g.buildNode(cfg.Nodes[v-nSequences], ids)
			if err != nil {
				return nil, err
			}
		}
		ids[n.name] = id
		g.nodes = append(g.nodes, n)
	}

	for _, out := range cfg.Outputs {
		if out.Name == "" {
			return nil, configErrorf(out.Node, ErrUnknownOutput, "output bound to %q has no name", out.Node)
		}
		if _, found := g.outputsByName[out.Name]; found {
			return nil, configErrorf(out.Name, ErrDuplicateName, "output %q is declared more than once", out.Name)
		}
		id := ids[out.Node]
		shape := g.nodes[id].shape
		if len(out.Labels) != 0 && len(out.Labels) != shape.Width {
			return nil, configErrorf(out.Name, ErrShape, "output declares %d labels but node %q produces %s", len(out.Labels), out.Node, shape)
		}
		if err := checkLabels(out); err != nil {
			return nil, err
		}
		g.outputsByName[out.Name] = OutputID(len(g.outputs))
		g.outputs = append(g.outputs, output{
			name:   out.Name,
			node:   id,
			labels: out.Labels,
			plan:   g.planFor([]NodeID{id}),
		})
	}

	return g, nil
}

func checkLabels(out config.OutputNodeConfig) error {
	seen := make(map[string]bool, len(out.Labels))
	for _, label := range out.Labels {
		if seen[label] {
			return configErrorf(out.Name, ErrDuplicateName, "label %q is declared more than once", label)
		}
		seen[label] = true
	}
	return nil
}

func checkVariables(input config.InputNodeConfig) error {
	seen := make(map[string]bool, len(input.Variables))
	for _, variable := range input.Variables {
		if variable.Name == "" {
			return configErrorf(input.Name, ErrUnresolvedInput, "input has an unnamed variable")
		}
		if seen[variable.Name] {
			return configErrorf(input.Name, ErrDuplicateName, "variable %q is declared more than once", variable.Name)
		}
		seen[variable.Name] = true
	}
	return nil
}

// buildNode resolves the sources of cfg (all of which precede it in order) and
// builds its layers, checking every shape.
func (g *Graph) buildNode(cfg config.NodeConfig, ids map[string]NodeID) (node, error) {
	n := node{name: cfg.Name, kind: cfg.Type}
	var shapes []Shape
	for _, source := range cfg.Sources {
		id := ids[source]
		n.deps = append(n.deps, id)
		shapes = append(shapes, g.nodes[id].shape)
	}

	wantSources := func(kind ShapeKind, exactlyOne bool) error {
		if len(shapes) == 0 || (exactlyOne && len(shapes) != 1) {
			return configErrorf(cfg.Name, ErrShape, "%s node has %d sources", cfg.Type, len(shapes))
		}
		for i, shape := range shapes {
			if shape.Kind != kind {
				return configErrorf(cfg.Name, ErrShape, "source %q is a %s", cfg.Sources[i], shape)
			}
		}
		return nil
	}
	noLayers := func() error {
		if len(cfg.Layers) != 0 {
			return configErrorf(cfg.Name, ErrShape, "%s node cannot carry layers", cfg.Type)
		}
		return nil
	}
	layerError := func(err error) error {
		return &ConfigurationError{Node: cfg.Name, Err: fmt.Errorf("%w: %w", ErrShape, err)}
	}

	switch cfg.Type {
	case config.FeedForward:
		if err := wantSources(VectorShape, true); err != nil {
			return n, err
		}
		stack, width, err := layers.NewVectorStack(cfg.Layers, shapes[0].Width)
		if err != nil {
			return n, layerError(err)
		}
		n.vectorLayers = stack
		n.shape = Shape{Kind: VectorShape, Width: width}

	case config.Concatenate:
		if err := wantSources(VectorShape, false); err != nil {
			return n, err
		}
		if err := noLayers(); err != nil {
			return n, err
		}
		width := 0
		for _, shape := range shapes {
			width += shape.Width
		}
		n.shape = Shape{Kind: VectorShape, Width: width}

	case config.Add:
		if err := wantSources(VectorShape, false); err != nil {
			return n, err
		}
		if err := noLayers(); err != nil {
			return n, err
		}
		for i, shape := range shapes {
			if shape.Width != shapes[0].Width {
				return n, configErrorf(cfg.Name, ErrShape, "source %q is a %s, expected %s", cfg.Sources[i], shape, shapes[0])
			}
		}
		n.shape = shapes[0]

	case config.Sequence:
		if err := wantSources(SequenceShape, true); err != nil {
			return n, err
		}
		if len(cfg.Layers) == 0 {
			return n, configErrorf(cfg.Name, ErrShape, "sequence node needs at least one layer")
		}
		stack, width, err := layers.NewSequenceStack(cfg.Layers, shapes[0].Width)
		if err != nil {
			return n, layerError(err)
		}
		n.sequenceLayers = stack
		n.shape = Shape{Kind: SequenceShape, Width: width}
		if !stack[len(stack)-1].ReturnsSequence() {
			n.shape.Kind = VectorShape
		}

	case config.TimeDistributed:
		if err := wantSources(SequenceShape, true); err != nil {
			return n, err
		}
		stack, width, err := layers.NewVectorStack(cfg.Layers, shapes[0].Width)
		if err != nil {
			return n, layerError(err)
		}
		n.vectorLayers = stack
		n.shape = Shape{Kind: SequenceShape, Width: width}

	case config.Sum:
		if err := wantSources(SequenceShape, true); err != nil {
			return n, err
		}
		if err := noLayers(); err != nil {
			return n, err
		}
		n.shape = Shape{Kind: VectorShape, Width: shapes[0].Width}

	default:
		return n, &ConfigurationError{Node: cfg.Name, Err: fmt.Errorf("unknown node type %q", cfg.Type)}
	}

	return n, nil
}

// planFor returns, in evaluation order, every node the targets depend on (targets included).
func (g *Graph) planFor(targets []NodeID) []NodeID {
	needed := make([]bool, len(g.nodes))
	for _, id := range targets {
		needed[id] = true
	}
	// dependencies always have smaller ids, so one backwards sweep marks every ancestor
	for id := len(g.nodes) - 1; id >= 0; id-- {
		if !needed[id] {
			continue
		}
		for _, dep := range g.nodes[id].deps {
			needed[dep] = true
		}
	}

	var plan []NodeID
	for id, need := range needed {
		if need {
			plan = append(plan, NodeID(id))
		}
	}
	return plan
}

// Output looks up a declared output by name.
func (g *Graph) Output(name string) (OutputID, error) {
	id, found := g.outputsByName[name]
	if !found {
		return 0, configErrorf(name, ErrUnknownOutput, "output %q is not declared", name)
	}
	return id, nil
}

// Outputs describes every declared output, in declaration order.
func (g *Graph) Outputs() []OutputInfo {
	infos := make([]OutputInfo, 0, len(g.outputs))
	for i, out := range g.outputs {
		infos = append(infos, g.outputInfo(OutputID(i), out))
	}
	return infos
}

// OutputInfo describes a single output.
func (g *Graph) OutputInfo(id OutputID) (OutputInfo, error) {
	if err := g.checkOutput(id); err != nil {
		return OutputInfo{}, err
	}
	return g.outputInfo(id, g.outputs[id]), nil
}

func (g *Graph) outputInfo(id OutputID, out output) OutputInfo {
	return OutputInfo{
		ID:     id,
		Name:   out.name,
		Node:   out.node,
		Labels: out.labels,
		Shape:  g.nodes[out.node].shape,
	}
}

func (g *Graph) checkOutput(id OutputID) error {
	if id < 0 || int(id) >= len(g.outputs) {
		return configErrorf("", ErrUnknownOutput, "output id %d is not declared", id)
	}
	return nil
}

// Nodes describes every compiled node, in evaluation order.
func (g *Graph) Nodes() []NodeInfo {
	infos := make([]NodeInfo, 0, len(g.nodes))
	for i, n := range g.nodes {
		infos = append(infos, NodeInfo{
			ID:           NodeID(i),
			Name:         n.name,
			Type:         n.kind,
			Shape:        n.shape,
			Dependencies: append([]NodeID(nil), n.deps...),
		})
	}
	return infos
}

// Plan returns the nodes evaluated to produce the given outputs, in evaluation order.
// Nodes shared between outputs appear once.
func (g *Graph) Plan(outs ...OutputID) ([]NodeID, error) {
	if len(outs) == 1 {
		if err := g.checkOutput(outs[0]); err != nil {
			return nil, err
		}
		return append([]NodeID(nil), g.outputs[outs[0]].plan...), nil
	}
	var targets []NodeID
	for _, out := range outs {
		if err := g.checkOutput(out); err != nil {
			return nil, err
		}
		targets = append(targets, g.outputs[out].node)
	}
	return g.planFor(targets), nil
}

// RequiredInputs returns the positions of the vector and sequence inputs the given outputs read.
func (g *Graph) RequiredInputs(outs ...OutputID) (vectors []int, sequences []int, err error) {
	plan, err := g.Plan(outs...)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range plan {
		n := &g.nodes[id]
		switch n.kind {
		case InputNode:
			vectors = append(vectors, n.input)
		case InputSequenceNode:
			sequences = append(sequences, n.input)
		}
	}
	return vectors, sequences, nil
}

// NumVectorInputs is the number of declared vector inputs.
func (g *Graph) NumVectorInputs() int { return len(g.vectorInputs) }

// NumSequenceInputs is the number of declared sequence inputs.
func (g *Graph) NumSequenceInputs() int { return len(g.sequenceInputs) }
