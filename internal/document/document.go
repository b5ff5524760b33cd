// Package document loads input form scans and prepares them for extraction.
// It handles PDF and raster image inputs, content hashing for cache keys,
// and rasterization of PDFs through external poppler tooling.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is an input form scan held in memory.
type Document struct {
	Name string // original base filename
	Data []byte
	MIME string
}

var pdfMagic = []byte("%PDF-")

// Load reads a document from disk, enforcing maxSize. A maxSize of zero
// disables the size check.
func Load(path string, maxSize int64) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("document %s exceeds maximum size: %d > %d bytes", filepath.Base(path), info.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	return FromBytes(filepath.Base(path), data), nil
}

// FromBytes wraps already-loaded content, sniffing the MIME type from the
// content itself with a filename-extension fallback.
func FromBytes(name string, data []byte) *Document {
	return &Document{
		Name: name,
		Data: data,
		MIME: sniffMIME(name, data),
	}
}

// Hash returns the hex-encoded SHA-256 of the document content. Two scans of
// the same form bytes always share a hash regardless of filename.
func (d *Document) Hash() string {
	sum := sha256.Sum256(d.Data)
	return hex.EncodeToString(sum[:])
}

// IsPDF reports whether the content carries a PDF header.
func (d *Document) IsPDF() bool {
	return bytes.HasPrefix(d.Data, pdfMagic)
}

// IsImage reports whether the content is a raster image type the vision
// extractor can consume directly.
func (d *Document) IsImage() bool {
	switch d.MIME {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}

// BaseName returns the filename with its extension stripped, used to derive
// output filenames.
func (d *Document) BaseName() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

func sniffMIME(name string, data []byte) string {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return "application/pdf"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	}

	// Content sniffing failed, fall back to the extension.
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
