package enginetests

import (
	"math"
	"strings"
	"testing"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/predictor"
)

const taggerGraph = `{
  "inputs": [
    {"name": "node_in", "variables": [{"name": "a"}, {"name": "b"}]},
    {"name": "jet", "variables": [{"name": "pt", "offset": -10, "scale": 0.1}, {"name": "eta"}]}
  ],
  "input_sequences": [
    {"name": "tracks", "variables": [{"name": "d0"}, {"name": "z0"}]}
  ],
  "nodes": [
    {"name": "score_layer", "type": "feed_forward", "sources": ["node_in"],
     "layers": [{"architecture": "dense", "activation": "linear", "weights": [2, 3], "bias": [0]}]},
    {"name": "jet_hidden", "type": "feed_forward", "sources": ["jet"],
     "layers": [
       {"architecture": "normalization", "weights": [1, 2], "bias": [0, 0]},
       {"architecture": "dense", "activation": "rectified", "weights": [1, 0, 0, 1, 1, 1], "bias": [0, 0, 0]}
     ]},
    {"name": "track_rnn", "type": "sequence", "sources": ["tracks"],
     "layers": [{"architecture": "gru", "components": {
        "z": {"weights": [0, 0], "U": [0], "bias": [0]},
        "r": {"weights": [0, 0], "U": [0], "bias": [0]},
        "h": {"weights": [1, 1], "U": [0], "bias": [0]}
     }}]},
    {"name": "merged", "type": "concatenate", "sources": ["jet_hidden", "track_rnn"]},
    {"name": "classes", "type": "feed_forward", "sources": ["merged"],
     "layers": [{"architecture": "dense", "activation": "softmax",
                 "weights": [1, 0, 0, 1, 0, 1, 0, 0], "bias": [0, 0]}]}
  ],
  "outputs": [
    {"name": "score", "node": "score_layer", "labels": ["score"]},
    {"name": "score_alt", "node": "score_layer", "labels": ["score"]},
    {"name": "classes", "node": "classes", "labels": ["light", "heavy"]}
  ]
}`

func newPredictor(t *testing.T, defaultOutput string) *predictor.Predictor {
	t.Helper()
	cfg, err := config.Parse(strings.NewReader(taggerGraph))
	if err != nil {
		t.Fatalf("failed to parse graph: %v", err)
	}
	p, err := predictor.New(cfg, defaultOutput)
	if err != nil {
		t.Fatalf("failed to build predictor: %v", err)
	}
	return p
}

func TestEngine(t *testing.T) {
	p := newPredictor(t, "score")

	values, err := p.Compute(predictor.NodeMap{"node_in": {"a": 1.0, "b": 2.0}}, nil)
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	if len(values) != 1 || values["score"] != 8.0 {
		t.Fatalf("expected {score: 8}, got %v", values)
	}

	if _, err := p.Compute(predictor.NodeMap{"node_in": {"a": 1.0}}, nil); !predictor.IsInputError(err) {
		t.Fatalf("expected missing b to be an input error, got %v", err)
	}

	alt, err := p.ComputeOutput(predictor.NodeMap{"node_in": {"a": 1.0, "b": 2.0}}, nil, "score_alt")
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	if alt["score"] != values["score"] {
		t.Errorf("score_alt %v disagrees with score %v", alt, values)
	}
}

func TestClassifier(t *testing.T) {
	p := newPredictor(t, "classes")

	nodes := predictor.NodeMap{
		// pt preprocesses to (20 - 10) * 0.1 = 1, eta stays 0.5
		"jet": {"pt": 20, "eta": 0.5},
	}
	seqs := predictor.SeqNodeMap{
		"tracks": {{"d0": 0.5, "z0": 0.5}, {"d0": 0.1, "z0": -0.1}},
	}

	values, err := p.Compute(nodes, seqs)
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}

	// jet_hidden is relu([1, 1, 2]) once eta is normalized by 2.
	// In track_rnn the gates sit at 0.5 and the candidate is tanh(d0 + z0).
	h := 0.5 * math.Tanh(1)
	h = 0.5*h + 0.5*math.Tanh(0)
	light, heavy := 1.0+h, 1.0
	sum := math.Exp(light) + math.Exp(heavy)
	expected := []float64{math.Exp(light) / sum, math.Exp(heavy) / sum}

	got := []float64{values["light"], values["heavy"]}
	if !FloatingPointEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	again, err := p.Compute(nodes, seqs)
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	if again["light"] != values["light"] || again["heavy"] != values["heavy"] {
		t.Errorf("repeated computation differs: %v vs %v", values, again)
	}

	empty, err := p.Compute(nodes, predictor.SeqNodeMap{"tracks": {}})
	if err != nil {
		t.Fatalf("empty track sequence should compute: %v", err)
	}
	if math.Abs(empty["light"]-0.5) > 1e-9 {
		t.Errorf("with no tracks both classes should tie, got %v", empty)
	}
}

func TestComputeAll(t *testing.T) {
	p := newPredictor(t, "score")

	all, err := p.ComputeAll(predictor.NodeMap{
		"node_in": {"a": 1, "b": 2},
		"jet":     {"pt": 10, "eta": 0},
	}, predictor.SeqNodeMap{"tracks": {}})
	if err != nil {
		t.Fatalf("failed to compute all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 outputs, got %v", all)
	}
	if all["score"]["score"] != 8 || all["score_alt"]["score"] != 8 {
		t.Errorf("unexpected scores %v", all)
	}
	if total := all["classes"]["light"] + all["classes"]["heavy"]; math.Abs(total-1) > 1e-9 {
		t.Errorf("softmax should sum to 1, got %v", total)
	}
}

func FloatingPointEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, value := range a {
		if math.Abs(value-b[i]) > 0.00001 {
			return false
		}
	}
	return true
}
