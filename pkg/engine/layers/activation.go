package layers

import (
	"fmt"
	"math"

	"github.com/justinsb/lightgraph/pkg/config"
)

// Activation is an elementwise (or, for softmax, vector-wide) nonlinearity.
// It returns a new slice and never modifies its argument.
type Activation func(x []float64) []float64

// NewActivation resolves an activation by name. An empty name selects defaultFunction.
func NewActivation(cfg config.ActivationConfig, defaultFunction string) (Activation, error) {
	name := cfg.Function
	if name == "" {
		name = defaultFunction
	}

	switch name {
	case "linear":
		return elementwise(func(v float64) float64 { return v }), nil
	case "sigmoid":
		return elementwise(sigmoid), nil
	case "hard_sigmoid":
		return elementwise(hardSigmoid), nil
	case "tanh":
		return elementwise(math.Tanh), nil
	case "rectified", "relu":
		return elementwise(func(v float64) float64 { return math.Max(v, 0) }), nil
	case "softmax":
		return softmax, nil
	case "elu":
		alpha := alphaOr(cfg.Alpha, 1)
		return elementwise(func(v float64) float64 {
			if v > 0 {
				return v
			}
			return alpha * (math.Exp(v) - 1)
		}), nil
	case "leaky_relu":
		alpha := alphaOr(cfg.Alpha, 0.01)
		return elementwise(func(v float64) float64 {
			if v > 0 {
				return v
			}
			return alpha * v
		}), nil
	case "swish":
		alpha := alphaOr(cfg.Alpha, 1)
		return elementwise(func(v float64) float64 { return v * sigmoid(alpha*v) }), nil
	case "abs":
		return elementwise(math.Abs), nil
	default:
		return nil, fmt.Errorf("unknown activation function %q", name)
	}
}

func alphaOr(alpha, fallback float64) float64 {
	if alpha == 0 {
		return fallback
	}
	return alpha
}

func elementwise(f func(float64) float64) Activation {
	return func(x []float64) []float64 {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = f(v)
		}
		return out
	}
}

func sigmoid(v float64) float64 {
	// avoid overflow in exp for large negative inputs
	if v < -30 {
		return 0
	}
	return 1 / (1 + math.Exp(-v))
}

func hardSigmoid(v float64) float64 {
	return math.Min(math.Max(0.2*v+0.5, 0), 1)
}

func softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	maxValue := x[0]
	for _, v := range x {
		if v > maxValue {
			maxValue = v
		}
	}
	sum := 0.0
	for i, v := range x {
		out[i] = math.Exp(v - maxValue)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
