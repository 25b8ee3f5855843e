package gcs

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/statement-insights/internal/logger"
)

const uploadTimeout = 2 * time.Minute

// Client is the Cloud Storage implementation of ObjectStore. It assumes
// Application Default Credentials are configured.
type Client struct {
	client *storage.Client
}

var _ ObjectStore = (*Client)(nil)

// NewClient creates a storage client.
func NewClient(ctx context.Context) (*Client, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating storage client: %w", err)
	}
	return &Client{client: c}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Fetch downloads the file bytes from the given URI.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("uri", uri).
		Int("bytes", len(data)).
		Msg("Fetched object from GCS")
	return data, nil
}

// Upload copies r into bucket/object.
func (c *Client) Upload(ctx context.Context, bucket, object string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copying to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalizing upload: %w", err)
	}

	uri := FormatURI(bucket, object)
	log := logger.FromContext(ctx)
	log.Info().Str("uri", uri).Msg("Uploaded object to GCS")
	return uri, nil
}
