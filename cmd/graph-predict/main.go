package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/justinsb/lightgraph/pkg/blobs"
	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine"
	"github.com/justinsb/lightgraph/pkg/predictor"
	"k8s.io/klog/v2"
)

// sequenceSteps is the length of the generated input sequences.
const sequenceSteps = 20

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <graph config>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Runs every output of the graph on generated ramp inputs and prints the results.\n")
	fmt.Fprintf(os.Stderr, "The config may be a local path, gs://<bucket>/<object> or http(s)://<graph-store>/<hash>.\n")
}

func run(ctx context.Context) error {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	location := flag.Arg(0)

	data, err := blobs.Fetch(ctx, location, 5)
	if err != nil {
		return err
	}
	cfg, err := config.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parsing graph config %q: %w", location, err)
	}
	names := cfg.OutputNames()
	if len(names) == 0 {
		return fmt.Errorf("graph config %q declares no outputs", location)
	}

	p, err := predictor.New(cfg, names[0])
	if err != nil {
		return fmt.Errorf("building predictor: %w", err)
	}

	return predict(os.Stdout, p)
}

// predict runs every output on generated inputs, writing "<output>:" followed by
// one "<label> <value>" line per label. Sequence outputs show their last step.
func predict(w io.Writer, p *predictor.Predictor) error {
	nodes := rampNodes(p.VectorInputs())
	seqs := rampSequences(p.SequenceInputs(), sequenceSteps)

	for _, out := range p.Graph().Outputs() {
		values := predictor.ValueMap{}
		if out.Shape.Kind == engine.SequenceShape {
			steps, err := p.Scan(nodes, seqs, out.Name)
			if err != nil {
				return fmt.Errorf("scanning %q: %w", out.Name, err)
			}
			for label, column := range steps {
				if len(column) != 0 {
					values[label] = column[len(column)-1]
				}
			}
		} else {
			var err error
			values, err = p.ComputeOutput(nodes, seqs, out.Name)
			if err != nil {
				return fmt.Errorf("computing %q: %w", out.Name, err)
			}
		}

		fmt.Fprintf(w, "%s:\n", out.Name)
		labels := make([]string, 0, len(values))
		for label := range values {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(w, "%s %g\n", label, values[label])
		}
	}
	return nil
}
