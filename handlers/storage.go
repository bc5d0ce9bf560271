package handlers

import (
	"context"
	"os"
)

// BlobStore is the artifact storage the generation pipeline uploads to.
// Put returns the public URL of the stored object.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

// NewBlobStoreFromEnv picks the storage backend the same way uploads are
// routed in production: Google Cloud Storage on Cloud Run / when GCS is
// explicitly enabled, local disk otherwise.
func NewBlobStoreFromEnv(ctx context.Context) (BlobStore, error) {
	useGCS := os.Getenv("USE_GCS") == "true" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
		os.Getenv("K_SERVICE") != "" // Cloud Run indicator

	if useGCS {
		return NewGCSBlobStore(ctx, os.Getenv("GCS_BUCKET"))
	}
	return NewLocalBlobStore("./uploads"), nil
}
