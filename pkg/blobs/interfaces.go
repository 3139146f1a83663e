// Package blobs moves graph configurations between storage and the processes that serve them.
//
// Blobs are addressed by BlobInfo.Hash, normally the sha256 of their content (see HashFile).
package blobs

import (
	"context"
	"io"
)

type BlobReader interface {
	// Open returns the content of the blob.
	// If no such object exists, the error satisfies errors.Is(err, os.ErrNotExist).
	Open(ctx context.Context, info BlobInfo) (io.ReadCloser, error)
}

type Blobstore interface {
	BlobReader
	// Upload uploads the file at sourcePath to the blobstore, using the given hash as the object key.
	// If an object with the same hash already exists, Upload should do nothing and return no error.
	Upload(ctx context.Context, sourcePath string, info BlobInfo) error
}

type BlobInfo struct {
	Hash string
}
