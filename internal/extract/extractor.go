// Package extract pulls plain text out of uploaded course material.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/narau/narau/internal/models"
)

// Extractor extracts text from document bytes by file extension.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBytes extracts text from content based on the extension of fileName.
// PDF, DOCX, and XLSX are parsed from their binary formats; everything else
// is treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

// wrapFormat tags format errors as invalid input so callers can map them to
// a client error instead of a server fault.
func wrapFormat(format string, err error) error {
	return fmt.Errorf("%w: malformed %s: %v", models.ErrInvalidInput, format, err)
}
