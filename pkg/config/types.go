// Package config holds the declarative description of an inference graph.
//
// The types here are plain data: they are decoded once (see Parse) and then
// treated as read-only by the engine.
package config

// NodeType identifies how a graph node combines its sources.
type NodeType string

const (
	// FeedForward applies a stack of vector layers to a single vector source.
	FeedForward NodeType = "feed_forward"
	// Concatenate joins vector sources end to end.
	Concatenate NodeType = "concatenate"
	// Add sums vector sources of equal width elementwise.
	Add NodeType = "add"
	// Sequence applies a stack of recurrent layers to a sequence source.
	Sequence NodeType = "sequence"
	// TimeDistributed applies a stack of vector layers to every step of a sequence source.
	TimeDistributed NodeType = "time_distributed"
	// Sum reduces a sequence source to a vector by summing over steps.
	Sum NodeType = "sum"
)

// Architecture tags for LayerConfig.
const (
	ArchitectureDense         = "dense"
	ArchitectureNormalization = "normalization"
	ArchitectureBias          = "bias"
	ArchitectureActivation    = "activation"
	ArchitectureHighway       = "highway"
	ArchitectureMaxout        = "maxout"
	ArchitectureLSTM          = "lstm"
	ArchitectureGRU           = "gru"
	ArchitectureEmbedding     = "embedding"
)

// GraphConfig is the full description of an inference graph.
type GraphConfig struct {
	Inputs         []InputNodeConfig  `json:"inputs"`
	InputSequences []InputNodeConfig  `json:"input_sequences"`
	Nodes          []NodeConfig       `json:"nodes"`
	Outputs        []OutputNodeConfig `json:"outputs"`
}

// InputNodeConfig declares a named input and the ordered variables it carries.
// For sequence inputs the variables describe a single time step.
type InputNodeConfig struct {
	Name      string          `json:"name"`
	Variables []InputVariable `json:"variables"`
}

// InputVariable is one named scalar feature. Values are preprocessed as
// (x + Offset) * Scale before they reach the graph.
type InputVariable struct {
	Name   string   `json:"name"`
	Offset float64  `json:"offset"`
	// Scale is 1 when nil. An explicit 0 is kept.
	Scale  *float64 `json:"scale,omitempty"`
}

// ScaleOrDefault returns Scale, or 1 if it was not set.
func (v InputVariable) ScaleOrDefault() float64 {
	if v.Scale == nil {
		return 1
	}
	return *v.Scale
}

// NodeConfig is a computed node in the graph.
type NodeConfig struct {
	Name    string        `json:"name"`
	Type    NodeType      `json:"type"`
	Sources []string      `json:"sources"`
	Layers  []LayerConfig `json:"layers,omitempty"`
}

// LayerConfig carries the pre-trained parameters of a single layer.
// Matrices are stored row-major, one row per output.
type LayerConfig struct {
	Architecture    string                     `json:"architecture"`
	Activation      ActivationConfig           `json:"activation"`
	InnerActivation ActivationConfig           `json:"inner_activation"`
	Weights         []float64                  `json:"weights,omitempty"`
	Bias            []float64                  `json:"bias,omitempty"`
	Components      map[string]ComponentConfig `json:"components,omitempty"`
	Sublayers       []ComponentConfig          `json:"sublayers,omitempty"`
	Embedding       []EmbeddingConfig          `json:"embedding,omitempty"`
	ReturnSequence  bool                       `json:"return_sequence,omitempty"`
}

// ComponentConfig is one affine block of a composite layer (a gate, a maxout piece).
// U holds the recurrent weights, where relevant.
type ComponentConfig struct {
	Weights []float64 `json:"weights"`
	U       []float64 `json:"U,omitempty"`
	Bias    []float64 `json:"bias"`
}

// EmbeddingConfig maps the categorical feature at Index to a learned vector of width NOut.
type EmbeddingConfig struct {
	Index   int       `json:"index"`
	Weights []float64 `json:"weights"`
	NOut    int       `json:"n_out"`
}

// ActivationConfig names an elementwise nonlinearity; Alpha is used by the
// parametrized ones (elu, leaky_relu, swish).
type ActivationConfig struct {
	Function string  `json:"function"`
	Alpha    float64 `json:"alpha,omitempty"`
}

// OutputNodeConfig binds an output name to a node, with one label per value.
type OutputNodeConfig struct {
	Name   string   `json:"name"`
	Node   string   `json:"node"`
	Labels []string `json:"labels"`
}

// OutputNames returns the declared output names, in declaration order.
func (c *GraphConfig) OutputNames() []string {
	names := make([]string, 0, len(c.Outputs))
	for _, output := range c.Outputs {
		names = append(names, output.Name)
	}
	return names
}
