package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/justinsb/lightgraph/pkg/server"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"k8s.io/klog/v2"
)

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	serverAddr := "127.0.0.1:9876"
	flag.StringVar(&serverAddr, "server", serverAddr, "address of the graph server")

	requestPath := ""
	flag.StringVar(&requestPath, "request", requestPath, "JSON file holding the request; read from stdin if empty")

	timeout := 30 * time.Second
	flag.DurationVar(&timeout, "timeout", timeout, "timeout for the call")

	klog.InitFlags(nil)
	flag.Parse()

	log := klog.FromContext(ctx)

	var data []byte
	var err error
	if requestPath == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(requestPath)
	}
	if err != nil {
		return fmt.Errorf("reading request: %w", err)
	}
	request := &server.Request{}
	if err := json.Unmarshal(data, request); err != nil {
		return fmt.Errorf("parsing request: %w", err)
	}
	in, err := server.RequestToStruct(request)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	var opts []grpc.DialOption
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))

	conn, err := grpc.NewClient(serverAddr, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to server %q: %w", serverAddr, err)
	}
	defer conn.Close()
	client := server.NewGraphServiceClient(conn)

	log.V(2).Info("calling graph server", "server", serverAddr, "output", request.Output)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := client.Compute(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to compute: %w", err)
	}

	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(response)
	if err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	fmt.Println(string(b))
	return nil
}
