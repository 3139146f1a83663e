package layers

import (
	"fmt"
	"math"

	"github.com/justinsb/lightgraph/pkg/config"
)

// recurrentActivations resolves the output and gate activations of a recurrent layer.
func recurrentActivations(cfg config.LayerConfig) (Activation, Activation, error) {
	activation, err := NewActivation(cfg.Activation, "tanh")
	if err != nil {
		return nil, nil, err
	}
	inner, err := NewActivation(cfg.InnerActivation, "sigmoid")
	if err != nil {
		return nil, nil, fmt.Errorf("inner activation: %w", err)
	}
	return activation, inner, nil
}

// hiddenSize is taken from the bias of the named component.
func hiddenSize(cfg config.LayerConfig, component string) (int, error) {
	c, ok := cfg.Components[component]
	if !ok {
		return 0, fmt.Errorf("missing component %q", component)
	}
	if len(c.Bias) == 0 {
		return 0, fmt.Errorf("component %q has no bias", component)
	}
	return len(c.Bias), nil
}

// collect returns the hidden state of every step, or just the last one.
func collect(states [][]float64, final []float64, returnSequence bool) [][]float64 {
	if returnSequence {
		return states
	}
	return [][]float64{final}
}

type lstm struct {
	nIn, n         int
	input, forget  gate
	cell, output   gate
	activation     Activation
	inner          Activation
	returnSequence bool
}

func newLSTM(cfg config.LayerConfig, nIn int) (*lstm, error) {
	n, err := hiddenSize(cfg, "i")
	if err != nil {
		return nil, fmt.Errorf("lstm: %w", err)
	}
	l := &lstm{nIn: nIn, n: n, returnSequence: cfg.ReturnSequence}
	for _, g := range []struct {
		name string
		dest *gate
	}{
		{"i", &l.input},
		{"f", &l.forget},
		{"c", &l.cell},
		{"o", &l.output},
	} {
		*g.dest, err = newGate(cfg.Components, g.name, n, nIn)
		if err != nil {
			return nil, fmt.Errorf("lstm: %w", err)
		}
	}
	l.activation, l.inner, err = recurrentActivations(cfg)
	if err != nil {
		return nil, fmt.Errorf("lstm: %w", err)
	}
	return l, nil
}

func (l *lstm) NIn() int              { return l.nIn }
func (l *lstm) NOut() int             { return l.n }
func (l *lstm) ReturnsSequence() bool { return l.returnSequence }

func (l *lstm) Scan(seq [][]float64) ([][]float64, error) {
	h := make([]float64, l.n)
	c := make([]float64, l.n)

	var states [][]float64
	if l.returnSequence {
		states = make([][]float64, 0, len(seq))
	}
	for _, x := range seq {
		i := l.inner(l.input.apply(x, h))
		f := l.inner(l.forget.apply(x, h))
		o := l.inner(l.output.apply(x, h))
		candidate := l.activation(l.cell.apply(x, h))

		next := make([]float64, l.n)
		for k := range next {
			next[k] = f[k]*c[k] + i[k]*candidate[k]
		}
		c = next

		activated := l.activation(c)
		h = make([]float64, l.n)
		for k := range h {
			h[k] = o[k] * activated[k]
		}
		if l.returnSequence {
			states = append(states, h)
		}
	}
	return collect(states, h, l.returnSequence), nil
}

func (l *lstm) sequenceLayer() {}

type gru struct {
	nIn, n         int
	update, reset  gate
	candidate      gate
	activation     Activation
	inner          Activation
	returnSequence bool
}

func newGRU(cfg config.LayerConfig, nIn int) (*gru, error) {
	n, err := hiddenSize(cfg, "z")
	if err != nil {
		return nil, fmt.Errorf("gru: %w", err)
	}
	l := &gru{nIn: nIn, n: n, returnSequence: cfg.ReturnSequence}
	if l.update, err = newGate(cfg.Components, "z", n, nIn); err != nil {
		return nil, fmt.Errorf("gru: %w", err)
	}
	if l.reset, err = newGate(cfg.Components, "r", n, nIn); err != nil {
		return nil, fmt.Errorf("gru: %w", err)
	}
	if l.candidate, err = newGate(cfg.Components, "h", n, nIn); err != nil {
		return nil, fmt.Errorf("gru: %w", err)
	}
	l.activation, l.inner, err = recurrentActivations(cfg)
	if err != nil {
		return nil, fmt.Errorf("gru: %w", err)
	}
	return l, nil
}

func (l *gru) NIn() int              { return l.nIn }
func (l *gru) NOut() int             { return l.n }
func (l *gru) ReturnsSequence() bool { return l.returnSequence }

func (l *gru) Scan(seq [][]float64) ([][]float64, error) {
	h := make([]float64, l.n)

	var states [][]float64
	if l.returnSequence {
		states = make([][]float64, 0, len(seq))
	}
	for _, x := range seq {
		z := l.inner(l.update.apply(x, h))
		r := l.inner(l.reset.apply(x, h))

		resetH := make([]float64, l.n)
		for k := range resetH {
			resetH[k] = r[k] * h[k]
		}
		candidate := l.activation(l.candidate.apply(x, resetH))

		next := make([]float64, l.n)
		for k := range next {
			next[k] = z[k]*h[k] + (1-z[k])*candidate[k]
		}
		h = next
		if l.returnSequence {
			states = append(states, h)
		}
	}
	return collect(states, h, l.returnSequence), nil
}

func (l *gru) sequenceLayer() {}

type embeddingTable struct {
	index   int
	nOut    int
	entries int
	weights []float64
}

// embedding replaces categorical columns with learned vectors.
// Output rows hold the embeddings in configuration order, then the remaining columns.
type embedding struct {
	nIn    int
	nOut   int
	tables []embeddingTable
	rest   []int
}

func newEmbedding(cfg config.LayerConfig, nIn int) (*embedding, error) {
	if len(cfg.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: at least one table is required")
	}
	l := &embedding{nIn: nIn}
	embedded := make(map[int]bool)
	for i, e := range cfg.Embedding {
		if e.Index < 0 || e.Index >= nIn {
			return nil, fmt.Errorf("embedding %d: index %d outside input of width %d", i, e.Index, nIn)
		}
		if embedded[e.Index] {
			return nil, fmt.Errorf("embedding %d: index %d embedded twice", i, e.Index)
		}
		if e.NOut <= 0 || len(e.Weights) == 0 || len(e.Weights)%e.NOut != 0 {
			return nil, fmt.Errorf("embedding %d: %d weights do not form rows of width %d", i, len(e.Weights), e.NOut)
		}
		embedded[e.Index] = true
		l.tables = append(l.tables, embeddingTable{
			index:   e.Index,
			nOut:    e.NOut,
			entries: len(e.Weights) / e.NOut,
			weights: e.Weights,
		})
		l.nOut += e.NOut
	}
	for i := 0; i < nIn; i++ {
		if !embedded[i] {
			l.rest = append(l.rest, i)
		}
	}
	l.nOut += len(l.rest)
	return l, nil
}

func (l *embedding) NIn() int              { return l.nIn }
func (l *embedding) NOut() int             { return l.nOut }
func (l *embedding) ReturnsSequence() bool { return true }

func (l *embedding) Scan(seq [][]float64) ([][]float64, error) {
	out := make([][]float64, 0, len(seq))
	for step, x := range seq {
		row := make([]float64, 0, l.nOut)
		for _, table := range l.tables {
			id := int(math.Round(x[table.index]))
			if id < 0 || id >= table.entries {
				return nil, fmt.Errorf("step %d: id %d at column %d outside embedding table of %d entries", step, id, table.index, table.entries)
			}
			row = append(row, table.weights[id*table.nOut:(id+1)*table.nOut]...)
		}
		for _, i := range l.rest {
			row = append(row, x[i])
		}
		out = append(out, row)
	}
	return out, nil
}

func (l *embedding) sequenceLayer() {}

// NewSequenceStack builds consecutive sequence layers. Every layer except the
// last must return a sequence. It returns the final width.
func NewSequenceStack(cfgs []config.LayerConfig, nIn int) ([]SequenceLayer, int, error) {
	stack := make([]SequenceLayer, 0, len(cfgs))
	n := nIn
	for i, cfg := range cfgs {
		if i > 0 && !stack[i-1].ReturnsSequence() {
			return nil, 0, fmt.Errorf("layer %d: previous layer does not return a sequence", i)
		}
		layer, err := NewSequenceLayer(cfg, n)
		if err != nil {
			return nil, 0, fmt.Errorf("layer %d: %w", i, err)
		}
		stack = append(stack, layer)
		n = layer.NOut()
	}
	return stack, n, nil
}

// ScanStack runs seq through every layer in order.
func ScanStack(stack []SequenceLayer, seq [][]float64) ([][]float64, error) {
	out := seq
	for i, layer := range stack {
		var err error
		out, err = layer.Scan(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return out, nil
}
