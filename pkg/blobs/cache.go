package blobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"k8s.io/klog/v2"
)

// Cache serves blobs from a local directory, filling misses from Upstream.
type Cache struct {
	Local *LocalDir

	// Upstream is consulted on a local miss; nil means local only.
	Upstream BlobReader
}

var _ BlobReader = &Cache{}

// Get returns the local path of the blob, downloading it first if needed.
func (c *Cache) Get(ctx context.Context, info BlobInfo) (string, error) {
	log := klog.FromContext(ctx)

	if !ValidHash(info.Hash) {
		return "", fmt.Errorf("invalid blob hash %q", info.Hash)
	}

	localPath := c.Local.Path(info)
	_, err := os.Stat(localPath)
	if err == nil {
		return localPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking blob %q: %w", info.Hash, err)
	}
	if c.Upstream == nil {
		return "", fmt.Errorf("blob %q not found: %w", info.Hash, os.ErrNotExist)
	}

	log.Info("filling cache from upstream", "hash", info.Hash)
	n, err := Download(ctx, c.Upstream, info, localPath)
	if err != nil {
		return "", err
	}

	// Blobs are content addressed; a download that does not match is dropped.
	hash, err := HashFile(localPath)
	if err != nil {
		return "", err
	}
	if hash != info.Hash {
		if err := os.Remove(localPath); err != nil {
			log.Error(err, "removing corrupt blob", "path", localPath)
		}
		return "", fmt.Errorf("blob %q downloaded with hash %q", info.Hash, hash)
	}
	log.Info("cached blob", "hash", info.Hash, "bytes", n)
	return localPath, nil
}

func (c *Cache) Open(ctx context.Context, info BlobInfo) (io.ReadCloser, error) {
	localPath, err := c.Get(ctx, info)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening blob %q: %w", info.Hash, err)
	}
	return f, nil
}
