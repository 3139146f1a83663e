package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justinsb/lightgraph/pkg/blobs"
	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/predictor"
	"github.com/justinsb/lightgraph/pkg/server"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
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
	graphConfig := os.Getenv("GRAPH_CONFIG")
	flag.StringVar(&graphConfig, "config", graphConfig, "path or URL (gs:// or http://) to the graph configuration")

	grpcListen := os.Getenv("GRPC_LISTEN")
	if grpcListen == "" {
		grpcListen = ":9876"
	}
	flag.StringVar(&grpcListen, "grpc-listen", grpcListen, "listen address for the gRPC service")

	httpListen := os.Getenv("LISTEN")
	if httpListen == "" {
		httpListen = ":8080"
	}
	flag.StringVar(&httpListen, "listen", httpListen, "listen address for the HTTP API")

	defaultOutput := ""
	flag.StringVar(&defaultOutput, "output", defaultOutput, "default output; the first declared output if empty")

	klog.InitFlags(nil)
	flag.Parse()

	if graphConfig == "" {
		return fmt.Errorf("must specify -config or GRAPH_CONFIG")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := klog.FromContext(ctx)

	data, err := blobs.Fetch(ctx, graphConfig, 5)
	if err != nil {
		return err
	}
	cfg, err := config.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parsing graph config %q: %w", graphConfig, err)
	}
	if defaultOutput == "" {
		names := cfg.OutputNames()
		if len(names) == 0 {
			return fmt.Errorf("graph config %q declares no outputs", graphConfig)
		}
		defaultOutput = names[0]
	}
	p, err := predictor.New(cfg, defaultOutput)
	if err != nil {
		return fmt.Errorf("building predictor: %w", err)
	}
	s := server.New(p)

	grpcListener, err := net.Listen("tcp", grpcListen)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", grpcListen, err)
	}
	grpcServer := grpc.NewServer()
	server.RegisterGraphServiceServer(grpcServer, &server.GRPCServer{Server: s})

	httpServer := &http.Server{
		Addr:              httpListen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving gRPC", "listen", grpcListen, "output", defaultOutput)
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("serving GRPC: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("serving HTTP", "listen", httpListen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving on %q: %w", httpListen, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
