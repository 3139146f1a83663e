package blobs

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// Location resolves a config location into a reader and the blob to ask it for.
//
// Supported forms are gs://<bucket>/<object>, http(s)://<server>/<hash> and
// plain local paths. For local paths the returned reader is nil.
func Location(location string) (BlobReader, BlobInfo, error) {
	switch {
	case strings.HasPrefix(location, "gs://"):
		bucket, object, ok := strings.Cut(strings.TrimPrefix(location, "gs://"), "/")
		if !ok || bucket == "" || object == "" {
			return nil, BlobInfo{}, fmt.Errorf("GCS location %q must look like gs://<bucket>/<object>", location)
		}
		return &GCSBlobstore{Bucket: bucket}, BlobInfo{Hash: object}, nil

	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, BlobInfo{}, fmt.Errorf("parsing url %q: %w", location, err)
		}
		hash := path.Base(u.Path)
		if hash == "/" || hash == "." {
			return nil, BlobInfo{}, fmt.Errorf("url %q does not name a blob", location)
		}
		base := *u
		base.Path = path.Dir(u.Path)
		return &BlobServer{BaseURL: &base}, BlobInfo{Hash: hash}, nil

	default:
		return nil, BlobInfo{Hash: location}, nil
	}
}

// Fetch reads the config at location, retrying remote reads up to maxAttempts times.
func Fetch(ctx context.Context, location string, maxAttempts int) ([]byte, error) {
	reader, info, err := Location(location)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", location, err)
		}
		return data, nil
	}

	loader := &Loader{
		Reader:        reader,
		MaxAttempts:   maxAttempts,
		RetryInterval: 5 * time.Second,
	}
	data, err := loader.Read(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", location, err)
	}
	return data, nil
}
