package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/gcs"
)

// LoadDocuments reads local paths and gs:// URIs into documents. objects
// may be nil when no URI is given.
func LoadDocuments(ctx context.Context, objects gcs.ObjectStore, paths []string) ([]extraction.Document, error) {
	docs := make([]extraction.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := loadDocument(ctx, objects, p)
		if err != nil {
			return nil, fmt.Errorf("LoadDocuments: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadDocument(ctx context.Context, objects gcs.ObjectStore, p string) (extraction.Document, error) {
	if gcs.IsURI(p) {
		if objects == nil {
			return extraction.Document{}, fmt.Errorf("%s: no storage client configured", p)
		}
		data, err := objects.Fetch(ctx, p)
		if err != nil {
			return extraction.Document{}, err
		}
		name := gcs.FilenameFromURI(p)
		return NewDocument(name, data, p), nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return extraction.Document{}, fmt.Errorf("reading %s: %w", p, err)
	}
	return NewDocument(filepath.Base(p), data, ""), nil
}

// NewDocument builds a document, detecting its MIME type.
func NewDocument(name string, data []byte, sourceURI string) extraction.Document {
	return extraction.Document{
		Name:      name,
		MIMEType:  extraction.DetectMIMEType(name, data),
		Data:      data,
		SourceURI: sourceURI,
	}
}
