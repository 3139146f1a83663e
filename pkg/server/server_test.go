package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/predictor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	stepScale := 2.0
	cfg := &config.GraphConfig{
		Inputs: []config.InputNodeConfig{
			{Name: "node_in", Variables: []config.InputVariable{{Name: "a"}, {Name: "b"}}},
		},
		InputSequences: []config.InputNodeConfig{
			{Name: "steps", Variables: []config.InputVariable{{Name: "x", Offset: 1, Scale: &stepScale}}},
		},
		Nodes: []config.NodeConfig{
			{Name: "dense", Type: config.FeedForward, Sources: []string{"node_in"}, Layers: []config.LayerConfig{
				{Architecture: config.ArchitectureDense, Weights: []float64{2, 3}, Bias: []float64{0}},
			}},
			{Name: "per_step", Type: config.TimeDistributed, Sources: []string{"steps"}},
		},
		Outputs: []config.OutputNodeConfig{
			{Name: "score", Node: "dense", Labels: []string{"score"}},
			{Name: "steps", Node: "per_step", Labels: []string{"x"}},
		},
	}
	p, err := predictor.New(cfg, "score")
	if err != nil {
		t.Fatalf("failed to build predictor: %v", err)
	}
	return New(p)
}

func dialBufconn(t *testing.T, s *Server) GraphServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	RegisterGraphServiceServer(grpcServer, &GRPCServer{Server: s})
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewGraphServiceClient(conn)
}

func mustStruct(t *testing.T, v map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(v)
	if err != nil {
		t.Fatalf("failed to build struct: %v", err)
	}
	return s
}

func TestGRPCCompute(t *testing.T) {
	ctx := context.Background()
	client := dialBufconn(t, testServer(t))

	out, err := client.Compute(ctx, mustStruct(t, map[string]any{
		"inputs": map[string]any{"node_in": map[string]any{"a": 1, "b": 2}},
	}))
	if err != nil {
		t.Fatalf("failed to compute: %v", err)
	}
	response, err := ResponseFromStruct(out)
	if err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Output != "score" || !reflect.DeepEqual(response.Values, predictor.ValueMap{"score": 8}) {
		t.Errorf("unexpected response %+v", response)
	}

	req, err := RequestToStruct(&Request{
		Output:    "steps",
		Sequences: predictor.SeqNodeMap{"steps": {{"x": 0}, {"x": 1}}},
		Scan:      true,
	})
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}
	out, err = client.Compute(ctx, req)
	if err != nil {
		t.Fatalf("failed to scan: %v", err)
	}
	response, err = ResponseFromStruct(out)
	if err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !reflect.DeepEqual(response.Steps, predictor.SequenceValueMap{"x": {2, 4}}) {
		t.Errorf("unexpected scan response %+v", response)
	}
}

func TestGRPCErrors(t *testing.T) {
	ctx := context.Background()
	client := dialBufconn(t, testServer(t))

	grid := []struct {
		name    string
		request map[string]any
		code    codes.Code
	}{
		{
			name:    "missing variable",
			request: map[string]any{"inputs": map[string]any{"node_in": map[string]any{"a": 1}}},
			code:    codes.InvalidArgument,
		},
		{
			name:    "unknown output",
			request: map[string]any{"output": "nope"},
			code:    codes.NotFound,
		},
		{
			name:    "sequence output without scan",
			request: map[string]any{"output": "steps", "sequences": map[string]any{"steps": []any{}}},
			code:    codes.FailedPrecondition,
		},
		{
			name:    "unknown field",
			request: map[string]any{"bogus": true},
			code:    codes.InvalidArgument,
		},
		{
			name:    "wrong type",
			request: map[string]any{"inputs": "node_in"},
			code:    codes.InvalidArgument,
		},
	}
	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			_, err := client.Compute(ctx, mustStruct(t, g.request))
			if got := status.Code(err); got != g.code {
				t.Errorf("expected code %v, got %v (%v)", g.code, got, err)
			}
		})
	}
}

func TestHTTP(t *testing.T) {
	server := httptest.NewServer(testServer(t).Router())
	defer server.Close()

	post := func(path, body string) (int, string) {
		resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("failed to post %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("failed to get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/v1/outputs")
	if err != nil {
		t.Fatalf("failed to list outputs: %v", err)
	}
	var outputs []OutputInfo
	err = json.NewDecoder(resp.Body).Decode(&outputs)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to decode outputs: %v", err)
	}
	expectedOutputs := []OutputInfo{
		{Name: "score", Labels: []string{"score"}, Default: true},
		{Name: "steps", Labels: []string{"x"}, Sequence: true},
	}
	if !reflect.DeepEqual(outputs, expectedOutputs) {
		t.Errorf("expected %+v, got %+v", expectedOutputs, outputs)
	}

	code, body := post("/v1/outputs/score/compute", `{"inputs": {"node_in": {"a": 1, "b": 2}}}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, body)
	}
	var response Response
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Values["score"] != 8 {
		t.Errorf("expected score 8, got %s", body)
	}

	code, body = post("/v1/outputs/steps/scan", `{"sequences": {"steps": [{"x": 2}]}}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, body)
	}
	response = Response{}
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !reflect.DeepEqual(response.Steps, predictor.SequenceValueMap{"x": {6}}) {
		t.Errorf("unexpected scan response %s", body)
	}

	if code, body := post("/v1/outputs/score/compute", `{"inputs": {}}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing input, got %d: %s", code, body)
	}
	if code, body := post("/v1/outputs/nope/compute", `{}`); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown output, got %d: %s", code, body)
	}
	if code, body := post("/v1/outputs/score/compute", `{not json`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d: %s", code, body)
	}
	if code, _ := post("/v1/outputs", ``); code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 posting to the output list, got %d", code)
	}
}
