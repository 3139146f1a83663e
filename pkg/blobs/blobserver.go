package blobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"k8s.io/klog/v2"
)

// BlobServer reads blobs over HTTP from a server that answers GET <base>/<hash>,
// such as graph-store.
type BlobServer struct {
	// BaseURL is the base URL to the blobserver, typically http://graph-store
	BaseURL *url.URL

	// Client is used for requests; http.DefaultClient when nil.
	Client *http.Client
}

var _ BlobReader = &BlobServer{}

func (l *BlobServer) Open(ctx context.Context, info BlobInfo) (io.ReadCloser, error) {
	log := klog.FromContext(ctx)

	u := l.BaseURL.JoinPath(info.Hash).String()
	log.Info("downloading from url", "url", u)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpClient := l.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("blob %q not found: %w", info.Hash, os.ErrNotExist)
		}
		return nil, fmt.Errorf("unexpected status downloading from %q: %v", u, resp.Status)
	}

	return resp.Body, nil
}
