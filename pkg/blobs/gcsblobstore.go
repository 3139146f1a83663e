package blobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"k8s.io/klog/v2"
)

// GCSBlobstore keeps blobs in a Google Cloud Storage bucket, one object per hash.
type GCSBlobstore struct {
	Bucket string
	// Prefix is prepended to every object key, e.g. "graphs/".
	Prefix string
}

var _ Blobstore = (*GCSBlobstore)(nil)

func (j *GCSBlobstore) objectKey(info BlobInfo) string {
	return path.Join(j.Prefix, info.Hash)
}

func (j *GCSBlobstore) url(info BlobInfo) string {
	return "gs://" + j.Bucket + "/" + j.objectKey(info)
}

func (j *GCSBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	log := klog.FromContext(ctx)

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	gcsURL := j.url(info)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	obj := client.Bucket(j.Bucket).Object(j.objectKey(info))
	if _, err := obj.Attrs(ctx); err == nil {
		log.Info("graph config already exists in GCS", "url", gcsURL)
		return nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("getting object attributes for %q: %w", gcsURL, err)
	}

	log.Info("uploading graph config to GCS", "source", sourcePath, "destination", gcsURL)

	startedAt := time.Now()
	// only create the object if nobody raced us to it
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/json"
	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		return fmt.Errorf("uploading to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing GCS writer: %w", err)
	}

	log.Info("uploaded graph config to GCS", "url", gcsURL, "bytes", n, "duration", time.Since(startedAt))

	return nil
}

func (j *GCSBlobstore) Open(ctx context.Context, info BlobInfo) (io.ReadCloser, error) {
	log := klog.FromContext(ctx)

	gcsURL := j.url(info)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}

	log.Info("reading graph config from GCS", "url", gcsURL)

	r, err := client.Bucket(j.Bucket).Object(j.objectKey(info)).NewReader(ctx)
	if err != nil {
		client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %q not found: %w", gcsURL, os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	return &clientReader{Reader: r, client: client}, nil
}

// clientReader closes the storage client along with the object reader.
type clientReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *clientReader) Close() error {
	err := r.Reader.Close()
	if closeErr := r.client.Close(); err == nil {
		err = closeErr
	}
	return err
}
