package extraction

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const (
	MIMETypePDF  = "application/pdf"
	MIMETypeText = "text/plain"
)

// Document is one uploaded statement.
type Document struct {
	ID       string
	Name     string
	MIMEType string
	Data     []byte
	// SourceURI is the gs:// location the document was read from or archived to, if any.
	SourceURI string
}

// Checksum returns the hex SHA-256 of the document bytes.
func (d Document) Checksum() string {
	sum := sha256.Sum256(d.Data)
	return hex.EncodeToString(sum[:])
}

// DetectMIMEType classifies data as PDF or plain text.
func DetectMIMEType(name string, data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) || strings.EqualFold(filepath.Ext(name), ".pdf") {
		return MIMETypePDF
	}
	return MIMETypeText
}
