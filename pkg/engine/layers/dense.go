package layers

import (
	"fmt"
	"math"

	"github.com/justinsb/lightgraph/pkg/config"
)

type dense struct {
	affine
	nIn        int
	activation Activation
}

func newDense(cfg config.LayerConfig, nIn int) (*dense, error) {
	a, err := newAffine(cfg.Weights, cfg.Bias, nIn)
	if err != nil {
		return nil, fmt.Errorf("dense: %w", err)
	}
	activation, err := NewActivation(cfg.Activation, "linear")
	if err != nil {
		return nil, fmt.Errorf("dense: %w", err)
	}
	return &dense{affine: a, nIn: nIn, activation: activation}, nil
}

func (l *dense) NIn() int  { return l.nIn }
func (l *dense) NOut() int { return l.nOut() }

func (l *dense) Evaluate(in []float64) []float64 {
	return l.activation(l.apply(in))
}

func (l *dense) vectorLayer() {}

// normalization computes (x + bias) * weights elementwise.
type normalization struct {
	weights []float64
	bias    []float64
}

func newNormalization(cfg config.LayerConfig, nIn int) (*normalization, error) {
	if len(cfg.Weights) != nIn || len(cfg.Bias) != nIn {
		return nil, fmt.Errorf("normalization: expected %d weights and biases, got %d and %d", nIn, len(cfg.Weights), len(cfg.Bias))
	}
	return &normalization{weights: cfg.Weights, bias: cfg.Bias}, nil
}

func (l *normalization) NIn() int  { return len(l.weights) }
func (l *normalization) NOut() int { return len(l.weights) }

func (l *normalization) Evaluate(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = (v + l.bias[i]) * l.weights[i]
	}
	return out
}

func (l *normalization) vectorLayer() {}

type bias struct {
	bias []float64
}

func newBias(cfg config.LayerConfig, nIn int) (*bias, error) {
	if len(cfg.Bias) != nIn {
		return nil, fmt.Errorf("bias: expected %d biases, got %d", nIn, len(cfg.Bias))
	}
	return &bias{bias: cfg.Bias}, nil
}

func (l *bias) NIn() int  { return len(l.bias) }
func (l *bias) NOut() int { return len(l.bias) }

func (l *bias) Evaluate(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = v + l.bias[i]
	}
	return out
}

func (l *bias) vectorLayer() {}

type activationLayer struct {
	n          int
	activation Activation
}

func newActivationLayer(cfg config.LayerConfig, nIn int) (*activationLayer, error) {
	if cfg.Activation.Function == "" {
		return nil, fmt.Errorf("activation: function is required")
	}
	activation, err := NewActivation(cfg.Activation, "")
	if err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}
	return &activationLayer{n: nIn, activation: activation}, nil
}

func (l *activationLayer) NIn() int  { return l.n }
func (l *activationLayer) NOut() int { return l.n }

func (l *activationLayer) Evaluate(in []float64) []float64 {
	return l.activation(in)
}

func (l *activationLayer) vectorLayer() {}

// highway mixes a transform H with the identity through a sigmoid gate T:
// y = T*H + (1-T)*x.
type highway struct {
	transform  affine
	gate       affine
	activation Activation
}

func newHighway(cfg config.LayerConfig, nIn int) (*highway, error) {
	h, ok := cfg.Components["h"]
	if !ok {
		return nil, fmt.Errorf("highway: missing component %q", "h")
	}
	t, ok := cfg.Components["t"]
	if !ok {
		return nil, fmt.Errorf("highway: missing component %q", "t")
	}
	transform, err := newAffine(h.Weights, h.Bias, nIn)
	if err != nil {
		return nil, fmt.Errorf("highway component h: %w", err)
	}
	carry, err := newAffine(t.Weights, t.Bias, nIn)
	if err != nil {
		return nil, fmt.Errorf("highway component t: %w", err)
	}
	if transform.nOut() != nIn || carry.nOut() != nIn {
		return nil, fmt.Errorf("highway: components must preserve width %d", nIn)
	}
	activation, err := NewActivation(cfg.Activation, "linear")
	if err != nil {
		return nil, fmt.Errorf("highway: %w", err)
	}
	return &highway{transform: transform, gate: carry, activation: activation}, nil
}

func (l *highway) NIn() int  { return l.gate.nOut() }
func (l *highway) NOut() int { return l.gate.nOut() }

func (l *highway) Evaluate(in []float64) []float64 {
	h := l.activation(l.transform.apply(in))
	t := l.gate.apply(in)
	out := make([]float64, len(in))
	for i := range out {
		g := sigmoid(t[i])
		out[i] = g*h[i] + (1-g)*in[i]
	}
	return out
}

func (l *highway) vectorLayer() {}

// maxout takes the elementwise maximum over several affine pieces.
type maxout struct {
	nIn        int
	pieces     []affine
	activation Activation
}

func newMaxout(cfg config.LayerConfig, nIn int) (*maxout, error) {
	if len(cfg.Sublayers) == 0 {
		return nil, fmt.Errorf("maxout: at least one sublayer is required")
	}
	l := &maxout{nIn: nIn}
	for i, sub := range cfg.Sublayers {
		piece, err := newAffine(sub.Weights, sub.Bias, nIn)
		if err != nil {
			return nil, fmt.Errorf("maxout sublayer %d: %w", i, err)
		}
		if i > 0 && piece.nOut() != l.pieces[0].nOut() {
			return nil, fmt.Errorf("maxout sublayer %d: width %d does not match %d", i, piece.nOut(), l.pieces[0].nOut())
		}
		l.pieces = append(l.pieces, piece)
	}
	activation, err := NewActivation(cfg.Activation, "linear")
	if err != nil {
		return nil, fmt.Errorf("maxout: %w", err)
	}
	l.activation = activation
	return l, nil
}

func (l *maxout) NIn() int  { return l.nIn }
func (l *maxout) NOut() int { return l.pieces[0].nOut() }

func (l *maxout) Evaluate(in []float64) []float64 {
	out := make([]float64, l.NOut())
	for i := range out {
		out[i] = math.Inf(-1)
	}
	for _, piece := range l.pieces {
		for i, v := range piece.apply(in) {
			out[i] = math.Max(out[i], v)
		}
	}
	return l.activation(out)
}

func (l *maxout) vectorLayer() {}
