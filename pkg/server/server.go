// Package server exposes a predictor over gRPC and HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/justinsb/lightgraph/pkg/engine"
	"github.com/justinsb/lightgraph/pkg/predictor"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

// Request is the payload accepted by both the gRPC and the HTTP surface.
type Request struct {
	// Output names the output to compute; empty means the default output.
	Output string `json:"output,omitempty"`

	Inputs    predictor.NodeMap    `json:"inputs,omitempty"`
	Sequences predictor.SeqNodeMap `json:"sequences,omitempty"`

	// Scan requests a sequence output; the per-step values are returned in Steps.
	Scan bool `json:"scan,omitempty"`
}

type Response struct {
	Output string                     `json:"output"`
	Values predictor.ValueMap         `json:"values,omitempty"`
	Steps  predictor.SequenceValueMap `json:"steps,omitempty"`
}

// OutputInfo describes one output of the served graph.
type OutputInfo struct {
	Name     string   `json:"name"`
	Labels   []string `json:"labels"`
	Sequence bool     `json:"sequence"`
	Default  bool     `json:"default,omitempty"`
}

// Server answers requests against a single predictor.
// It holds no per-request state and is safe for concurrent use.
type Server struct {
	predictor *predictor.Predictor
}

func New(p *predictor.Predictor) *Server {
	return &Server{predictor: p}
}

// Handle runs a single request.
func (s *Server) Handle(ctx context.Context, req *Request) (*Response, error) {
	output := req.Output
	if output == "" {
		output = s.predictor.DefaultOutput()
	}

	log := klog.FromContext(ctx).WithValues("requestID", uuid.NewString(), "output", output)
	log.V(2).Info("handling request", "scan", req.Scan, "inputs", len(req.Inputs), "sequences", len(req.Sequences))

	response := &Response{Output: output}
	if req.Scan {
		steps, err := s.predictor.Scan(req.Inputs, req.Sequences, output)
		if err != nil {
			log.Info("request failed", "err", err)
			return nil, err
		}
		response.Steps = steps
	} else {
		values, err := s.predictor.ComputeOutput(req.Inputs, req.Sequences, output)
		if err != nil {
			log.Info("request failed", "err", err)
			return nil, err
		}
		response.Values = values
	}
	return response, nil
}

// Outputs lists the outputs of the served graph, in declaration order.
func (s *Server) Outputs() []OutputInfo {
	graph := s.predictor.Graph()
	var infos []OutputInfo
	for _, out := range graph.Outputs() {
		infos = append(infos, OutputInfo{
			Name:     out.Name,
			Labels:   out.Labels,
			Sequence: out.Shape.Kind == engine.SequenceShape,
			Default:  out.Name == s.predictor.DefaultOutput(),
		})
	}
	return infos
}

var errMalformedRequest = errors.New("malformed request")

func malformed(err error) error {
	return fmt.Errorf("%w: %w", errMalformedRequest, err)
}

// statusError converts an error from Handle into a gRPC status.
func statusError(err error) error {
	switch {
	case errors.Is(err, errMalformedRequest), errors.Is(err, engine.ErrInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrUnknownOutput):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// httpStatus picks the HTTP status code for an error from Handle.
func httpStatus(err error) int {
	switch status.Code(statusError(err)) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
