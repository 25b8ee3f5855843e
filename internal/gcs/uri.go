package gcs

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const scheme = "gs://"

// ErrInvalidURI is returned for URIs that are not gs://bucket/object.
var ErrInvalidURI = errors.New("invalid GCS URI")

// IsURI reports whether s looks like a Cloud Storage URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// ParseURI splits gs://bucket/path/to/object into bucket and object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, scheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w (no object path): %s", ErrInvalidURI, uri)
	}
	return parts[0], parts[1], nil
}

// FormatURI builds a gs:// URI.
func FormatURI(bucket, object string) string {
	return scheme + bucket + "/" + object
}

// FilenameFromURI extracts the filename from a storage URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, scheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// ArchiveObjectName returns where an uploaded document is archived. Keying
// on the checksum makes re-uploads of the same file overwrite one object.
func ArchiveObjectName(userID, checksum, filename string) string {
	return path.Join("statements", userID, checksum, path.Base(filename))
}
