package server

import (
	"bytes"
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	GraphServiceName   = "lightgraph.v1.GraphService"
	GraphComputeMethod = "/" + GraphServiceName + "/Compute"
)

// GraphServiceServer is the server API for the graph service.
// Requests and responses are google.protobuf.Struct values with the same
// fields as Request and Response.
type GraphServiceServer interface {
	Compute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// GraphServiceClient is the client API for the graph service.
type GraphServiceClient interface {
	Compute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

func RegisterGraphServiceServer(s grpc.ServiceRegistrar, srv GraphServiceServer) {
	s.RegisterService(&graphServiceDesc, srv)
}

var graphServiceDesc = grpc.ServiceDesc{
	ServiceName: GraphServiceName,
	HandlerType: (*GraphServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Compute",
			Handler:    graphServiceComputeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lightgraph/v1/graph.proto",
}

func graphServiceComputeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GraphServiceServer).Compute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GraphComputeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GraphServiceServer).Compute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type graphServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGraphServiceClient(cc grpc.ClientConnInterface) GraphServiceClient {
	return &graphServiceClient{cc: cc}
}

func (c *graphServiceClient) Compute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GraphComputeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCServer adapts a Server to the graph service.
type GRPCServer struct {
	Server *Server
}

var _ GraphServiceServer = &GRPCServer{}

func (s *GRPCServer) Compute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := RequestFromStruct(in)
	if err != nil {
		return nil, statusError(err)
	}
	response, err := s.Server.Handle(ctx, req)
	if err != nil {
		return nil, statusError(err)
	}
	out, err := toStruct(response)
	if err != nil {
		return nil, statusError(err)
	}
	return out, nil
}

// RequestFromStruct decodes a request; unknown fields are rejected.
func RequestFromStruct(in *structpb.Struct) (*Request, error) {
	b, err := protojson.Marshal(in)
	if err != nil {
		return nil, malformed(err)
	}
	return decodeRequest(b)
}

// RequestToStruct encodes a request for the gRPC client.
func RequestToStruct(req *Request) (*structpb.Struct, error) {
	return toStruct(req)
}

// ResponseFromStruct decodes a response returned by the gRPC service.
func ResponseFromStruct(in *structpb.Struct) (*Response, error) {
	b, err := protojson.Marshal(in)
	if err != nil {
		return nil, err
	}
	response := &Response{}
	if err := json.Unmarshal(b, response); err != nil {
		return nil, err
	}
	return response, nil
}

func decodeRequest(b []byte) (*Request, error) {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.DisallowUnknownFields()
	req := &Request{}
	if err := decoder.Decode(req); err != nil {
		return nil, malformed(err)
	}
	return req, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
