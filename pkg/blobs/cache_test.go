package blobs

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

type staticReader map[string]string

func (r staticReader) Open(ctx context.Context, info BlobInfo) (io.ReadCloser, error) {
	data, ok := r[info.Hash]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	// sha256("abc")
	const abcHash = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	const badHash = "0000000000000000000000000000000000000000000000000000000000000001"

	upstream := staticReader{abcHash: "abc", badHash: "not what was asked for"}
	cache := &Cache{Local: &LocalDir{Dir: t.TempDir()}, Upstream: upstream}

	r, err := cache.Open(ctx, BlobInfo{Hash: abcHash})
	if err != nil {
		t.Fatalf("failed to open through cache: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "abc" {
		t.Errorf("unexpected content %q", data)
	}

	// the second read is served locally
	delete(upstream, abcHash)
	if _, err := cache.Get(ctx, BlobInfo{Hash: abcHash}); err != nil {
		t.Errorf("expected cached blob, got %v", err)
	}

	if _, err := cache.Get(ctx, BlobInfo{Hash: badHash}); err == nil {
		t.Errorf("expected hash mismatch to be rejected")
	}
	if _, err := os.Stat(cache.Local.Path(BlobInfo{Hash: badHash})); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupt blob should have been removed, got %v", err)
	}

	missing := strings.Repeat("a", 64)
	if _, err := cache.Get(ctx, BlobInfo{Hash: missing}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := cache.Get(ctx, BlobInfo{Hash: "nothex"}); err == nil || errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected invalid hash error, got %v", err)
	}
}
