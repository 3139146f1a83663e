package predictor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine"
)

// scoreGraph computes score = 2*a + 3*b, exposed as two outputs over the same layer,
// plus a per-step copy of a sequence input.
func scoreGraph() *config.GraphConfig {
	return &config.GraphConfig{
		Inputs: []config.InputNodeConfig{
			{Name: "node_in", Variables: []config.InputVariable{{Name: "a"}, {Name: "b"}}},
		},
		InputSequences: []config.InputNodeConfig{
			{Name: "steps", Variables: []config.InputVariable{{Name: "x", Offset: 1, Scale: float(2)}}},
		},
		Nodes: []config.NodeConfig{
			{Name: "dense", Type: config.FeedForward, Sources: []string{"node_in"}, Layers: []config.LayerConfig{
				{Architecture: config.ArchitectureDense, Weights: []float64{2, 3}, Bias: []float64{0}},
			}},
			{Name: "per_step", Type: config.TimeDistributed, Sources: []string{"steps"}},
		},
		Outputs: []config.OutputNodeConfig{
			{Name: "score", Node: "dense", Labels: []string{"score"}},
			{Name: "score_alt", Node: "dense", Labels: []string{"score"}},
			{Name: "unlabelled", Node: "dense"},
			{Name: "steps", Node: "per_step", Labels: []string{"x"}},
		},
	}
}

func float(v float64) *float64 { return &v }

func mustNew(t *testing.T, output string) *Predictor {
	t.Helper()
	p, err := New(scoreGraph(), output)
	if err != nil {
		t.Fatalf("failed to build predictor: %v", err)
	}
	return p
}

func TestCompute(t *testing.T) {
	p := mustNew(t, "score")

	values, err := p.Compute(NodeMap{"node_in": {"a": 1, "b": 2}}, nil)
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	if !reflect.DeepEqual(values, ValueMap{"score": 8}) {
		t.Errorf("expected {score: 8}, got %v", values)
	}
}

func TestComputeMissingVariable(t *testing.T) {
	p := mustNew(t, "score")

	_, err := p.Compute(NodeMap{"node_in": {"a": 1}}, nil)
	if !IsInputError(err) || !errors.Is(err, engine.ErrVariableMismatch) {
		t.Fatalf("expected variable mismatch, got %v", err)
	}
	var inputErr *engine.InputError
	if !errors.As(err, &inputErr) || inputErr.Variable != "b" {
		t.Errorf("expected error to name variable b, got %#v", err)
	}

	_, err = p.Compute(NodeMap{}, nil)
	if !IsInputError(err) || !errors.Is(err, engine.ErrMissingNode) {
		t.Errorf("expected missing node, got %v", err)
	}

	// still usable
	values, err := p.Compute(NodeMap{"node_in": {"a": 1, "b": 2}}, nil)
	if err != nil || values["score"] != 8 {
		t.Errorf("expected recovery after an input error, got %v %v", values, err)
	}
}

func TestComputeIgnoresExtras(t *testing.T) {
	p := mustNew(t, "score")

	nodes := NodeMap{
		"node_in": {"a": 1, "b": 2, "c": 100},
		"unused":  {"z": 1},
	}
	values, err := p.Compute(nodes, SeqNodeMap{"other": nil})
	if err != nil {
		t.Fatalf("extra inputs should be ignored: %v", err)
	}
	if values["score"] != 8 {
		t.Errorf("expected 8, got %v", values)
	}
}

func TestSharedOutputs(t *testing.T) {
	p := mustNew(t, "score")
	nodes := NodeMap{"node_in": {"a": 1, "b": 2}}

	score, err := p.ComputeOutput(nodes, nil, "score")
	if err != nil {
		t.Fatalf("failed to compute score: %v", err)
	}
	alt, err := p.ComputeOutput(nodes, nil, "score_alt")
	if err != nil {
		t.Fatalf("failed to compute score_alt: %v", err)
	}
	if !reflect.DeepEqual(score, alt) {
		t.Errorf("outputs over the same layer disagree: %v vs %v", score, alt)
	}

	all, err := p.ComputeAll(nodes, nil)
	if err != nil {
		t.Fatalf("failed to compute all: %v", err)
	}
	if len(all) != 3 || all["score"]["score"] != 8 || all["score_alt"]["score"] != 8 {
		t.Errorf("unexpected results %v", all)
	}

	g := p.Graph()
	scoreID, _ := g.Output("score")
	altID, _ := g.Output("score_alt")
	plan, err := g.Plan(scoreID, altID)
	if err != nil {
		t.Fatalf("failed to get plan: %v", err)
	}
	if len(plan) != 2 {
		t.Errorf("expected the shared layer to be planned once, got %v", plan)
	}
}

func TestUnlabelledOutput(t *testing.T) {
	p := mustNew(t, "unlabelled")
	values, err := p.Compute(NodeMap{"node_in": {"a": 1, "b": 2}}, nil)
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected an empty map, got %v", values)
	}
}

func TestScan(t *testing.T) {
	p := mustNew(t, "score")

	steps := SeqNodeMap{"steps": {{"x": 0}, {"x": 1}, {"x": 2}}}
	values, err := p.Scan(nil, steps, "steps")
	if err != nil {
		t.Fatalf("failed to scan: %v", err)
	}
	// (x + 1) * 2
	expected := SequenceValueMap{"x": {2, 4, 6}}
	if !reflect.DeepEqual(values, expected) {
		t.Errorf("expected %v, got %v", expected, values)
	}

	empty, err := p.Scan(nil, SeqNodeMap{"steps": {}}, "steps")
	if err != nil {
		t.Fatalf("empty sequence should scan: %v", err)
	}
	if len(empty["x"]) != 0 {
		t.Errorf("expected no steps, got %v", empty)
	}

	if _, err := p.Scan(nil, SeqNodeMap{"steps": {{"y": 1}}}, "steps"); !errors.Is(err, engine.ErrVariableMismatch) {
		t.Errorf("expected variable mismatch, got %v", err)
	}
	if _, err := p.Scan(nil, nil, "steps"); !errors.Is(err, engine.ErrMissingNode) {
		t.Errorf("expected missing node, got %v", err)
	}
}

func TestOutputKindMismatch(t *testing.T) {
	p := mustNew(t, "score")

	if _, err := p.ComputeOutput(nil, SeqNodeMap{"steps": {}}, "steps"); !IsConfigurationError(err) || !errors.Is(err, engine.ErrShape) {
		t.Errorf("expected shape error computing a sequence output, got %v", err)
	}
	if _, err := p.Scan(NodeMap{"node_in": {"a": 1, "b": 2}}, nil, "score"); !IsConfigurationError(err) {
		t.Errorf("expected configuration error scanning a vector output, got %v", err)
	}
	if _, err := p.ComputeOutput(nil, nil, "missing"); !errors.Is(err, engine.ErrUnknownOutput) {
		t.Errorf("expected unknown output, got %v", err)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(scoreGraph(), "nope"); !IsConfigurationError(err) || !errors.Is(err, engine.ErrUnknownOutput) {
		t.Errorf("expected unknown default output to fail, got %v", err)
	}

	cfg := scoreGraph()
	cfg.Nodes[0].Sources = []string{"dense"}
	p, err := New(cfg, "score")
	if !errors.Is(err, engine.ErrCycle) {
		t.Errorf("expected cycle error, got %v", err)
	}
	if p != nil {
		t.Errorf("no predictor should be returned on error")
	}
}

func TestExplicitScale(t *testing.T) {
	cfg := scoreGraph()
	cfg.Inputs[0].Variables[0].Scale = float(0)
	cfg.Inputs[0].Variables[1].Scale = float(0.5)
	p, err := New(cfg, "score")
	if err != nil {
		t.Fatalf("failed to build predictor: %v", err)
	}

	// 2*(1*0) + 3*(2*0.5)
	values, err := p.Compute(NodeMap{"node_in": {"a": 1, "b": 2}}, nil)
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	if !reflect.DeepEqual(values, ValueMap{"score": 3}) {
		t.Errorf("expected {score: 3}, got %v", values)
	}
}

func TestDuplicateLabels(t *testing.T) {
	cfg := scoreGraph()
	cfg.Nodes = append(cfg.Nodes, config.NodeConfig{Name: "pair", Type: config.FeedForward, Sources: []string{"node_in"}})
	cfg.Outputs = append(cfg.Outputs, config.OutputNodeConfig{Name: "pair", Node: "pair", Labels: []string{"x", "x"}})

	if _, err := New(cfg, "score"); !IsConfigurationError(err) || !errors.Is(err, engine.ErrDuplicateName) {
		t.Errorf("expected duplicate label to fail, got %v", err)
	}
}
