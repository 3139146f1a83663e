package blobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// LocalDir reads blobs stored as files named by their hash.
type LocalDir struct {
	Dir string
}

var _ BlobReader = &LocalDir{}

func (d *LocalDir) Path(info BlobInfo) string {
	return filepath.Join(d.Dir, info.Hash)
}

func (d *LocalDir) Open(ctx context.Context, info BlobInfo) (io.ReadCloser, error) {
	if !ValidHash(info.Hash) {
		return nil, fmt.Errorf("invalid blob hash %q", info.Hash)
	}
	f, err := os.Open(d.Path(info))
	if err != nil {
		return nil, fmt.Errorf("opening blob %q: %w", info.Hash, err)
	}
	return f, nil
}

// ValidHash reports whether hash is a lowercase hex sha256 digest.
func ValidHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	return strings.Trim(hash, "0123456789abcdef") == ""
}

// HashFile returns the sha256 hex digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Download copies the blob to destinationPath, atomically: the file appears
// only once it is complete.
func Download(ctx context.Context, reader BlobReader, info BlobInfo, destinationPath string) (int64, error) {
	src, err := reader.Open(ctx, info)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return writeToFile(ctx, src, destinationPath)
}

// writeToFile streams src into a temp file next to destinationPath and renames
// it into place, removing the temp file on any failure.
func writeToFile(ctx context.Context, src io.Reader, destinationPath string) (n int64, err error) {
	log := klog.FromContext(ctx)

	tempFile, err := os.CreateTemp(filepath.Dir(destinationPath), "."+filepath.Base(destinationPath)+".*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if err == nil {
			return
		}
		tempFile.Close()
		if removeErr := os.Remove(tempPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			log.Error(removeErr, "removing temp file", "path", tempPath)
		}
	}()

	n, err = io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("writing %q: %w", destinationPath, err)
	}
	if err = tempFile.Sync(); err != nil {
		return n, fmt.Errorf("syncing %q: %w", tempPath, err)
	}
	if err = tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing %q: %w", tempPath, err)
	}
	if err = os.Rename(tempPath, destinationPath); err != nil {
		return n, fmt.Errorf("moving %q into place: %w", destinationPath, err)
	}
	return n, nil
}
