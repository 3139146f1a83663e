package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/justinsb/lightgraph/pkg/blobs"
	"github.com/justinsb/lightgraph/pkg/config"
	"github.com/justinsb/lightgraph/pkg/engine"
	"k8s.io/klog/v2"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := os.Getenv("LISTEN")
	if listen == "" {
		listen = ":8080"
	}
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		// We expect CACHE_DIR to be set when running on kubernetes, but default sensibly for local dev
		cacheDir = "~/.cache/graph-store/blobs"
	}
	upload := ""
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	flag.StringVar(&upload, "upload", upload, "validate this graph config and upload it to CACHE_BUCKET, then exit")
	klog.InitFlags(nil)
	flag.Parse()

	var blobstore blobs.Blobstore
	if cacheBucket := os.Getenv("CACHE_BUCKET"); cacheBucket != "" {
		if !strings.HasPrefix(cacheBucket, "gs://") {
			return fmt.Errorf("CACHE_BUCKET must be a GCS bucket URL (gs://<bucketName>)")
		}
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(cacheBucket, "gs://"), "/")
		log.Info("using GCS cache", "bucket", bucket, "prefix", prefix)
		blobstore = &blobs.GCSBlobstore{
			Bucket: bucket,
			Prefix: prefix,
		}
	}

	if upload != "" {
		if blobstore == nil {
			return fmt.Errorf("must specify CACHE_BUCKET env var to upload")
		}
		return uploadGraph(ctx, blobstore, upload)
	}

	if strings.HasPrefix(cacheDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, strings.TrimPrefix(cacheDir, "~/"))
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	cache := &blobs.Cache{
		Local: &blobs.LocalDir{Dir: cacheDir},
	}
	if blobstore != nil {
		cache.Upstream = blobstore
	}

	s := &httpServer{cache: cache}

	log.Info("serving", "listen", listen, "cacheDir", cacheDir)
	if err := http.ListenAndServe(listen, s.router()); err != nil {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}
	return nil
}

// uploadGraph checks that the file is a graph we can serve before uploading it under its hash.
func uploadGraph(ctx context.Context, blobstore blobs.Blobstore, path string) error {
	log := klog.FromContext(ctx)

	cfg, err := config.ParseFile(path)
	if err != nil {
		return err
	}
	if _, err := engine.Compile(cfg); err != nil {
		return fmt.Errorf("validating %q: %w", path, err)
	}

	hash, err := blobs.HashFile(path)
	if err != nil {
		return err
	}
	info := blobs.BlobInfo{Hash: hash}
	if err := blobstore.Upload(ctx, path, info); err != nil {
		return fmt.Errorf("uploading %q: %w", path, err)
	}
	log.Info("uploaded graph", "path", path, "hash", hash, "outputs", cfg.OutputNames())
	fmt.Println(hash)
	return nil
}

type httpServer struct {
	cache *blobs.Cache
}

func (s *httpServer) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/{hash}", s.serveGETBlob).Methods("GET")
	return r
}

func (s *httpServer) serveGETBlob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := klog.FromContext(ctx)

	hash := mux.Vars(r)["hash"]
	if !blobs.ValidHash(hash) {
		http.Error(w, "invalid hash", http.StatusBadRequest)
		return
	}

	p, err := s.cache.Get(ctx, blobs.BlobInfo{Hash: hash})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Error(err, "error getting blob", "hash", hash)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Info("serving blob", "path", p)
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, p)
}
