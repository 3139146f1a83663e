package blobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// Loader reads blobs, retrying transient failures.
type Loader struct {
	// Reader is the interface to fetch blobs
	Reader BlobReader

	// MaxAttempts is the number of times to attempt a read before failing
	MaxAttempts int

	// RetryInterval is the pause between attempts
	RetryInterval time.Duration
}

// Read returns the whole content of the blob.
// Missing blobs are not retried.
func (l *Loader) Read(ctx context.Context, info BlobInfo) ([]byte, error) {
	var data []byte
	err := l.retry(ctx, info, func() error {
		r, err := l.Reader.Open(ctx, info)
		if err != nil {
			return err
		}
		defer r.Close()

		data, err = io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading blob %q: %w", info.Hash, err)
		}
		return nil
	})
	return data, err
}

// DownloadToFile copies the blob to destPath.
func (l *Loader) DownloadToFile(ctx context.Context, info BlobInfo, destPath string) error {
	return l.retry(ctx, info, func() error {
		_, err := Download(ctx, l.Reader, info, destPath)
		return err
	})
}

func (l *Loader) retry(ctx context.Context, info BlobInfo, fn func() error) error {
	log := klog.FromContext(ctx)

	attempt := 0
	for {
		attempt++

		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, os.ErrNotExist) || attempt >= l.MaxAttempts {
			return err
		}

		log.Error(err, "reading blob, will retry", "info", info, "attempt", attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("reading blob %q: %w", info.Hash, ctx.Err())
		case <-time.After(l.RetryInterval):
		}
	}
}
