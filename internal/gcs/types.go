// Package gcs fetches statement documents from Cloud Storage and archives uploads.
package gcs

import (
	"context"
	"io"
)

// ObjectStore provides the storage operations used by ingestion. It lets
// tests replace Cloud Storage with an in-memory fake.
type ObjectStore interface {
	// Fetch downloads the object at a gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Upload writes r to bucket/object and returns the gs:// URI of the result.
	Upload(ctx context.Context, bucket, object string, r io.Reader, contentType string) (string, error)
}
