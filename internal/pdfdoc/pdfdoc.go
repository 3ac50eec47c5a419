// Package pdfdoc performs the local checks done on PDF files before upload and
// after generation.
package pdfdoc

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nzsystems/rezume/internal/apierr"
)

// MaxUploadSize mirrors the backend limit for imported CVs.
const MaxUploadSize = 5 * 1024 * 1024

var magic = []byte("%PDF-")

// CheckUpload rejects files the backend would refuse: wrong extension, too
// large, not a PDF, or a PDF without pages.
func CheckUpload(filename string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return &apierr.ValidationError{Field: "file", Reason: "must be a .pdf file"}
	}
	if len(data) == 0 {
		return &apierr.ValidationError{Field: "file", Reason: "is empty"}
	}
	if len(data) > MaxUploadSize {
		return &apierr.ValidationError{Field: "file", Reason: fmt.Sprintf("exceeds %d MB", MaxUploadSize/1024/1024)}
	}
	if !bytes.HasPrefix(data, magic) {
		return &apierr.ValidationError{Field: "file", Reason: "is not a PDF document"}
	}

	pages, err := Pages(data)
	if err != nil {
		return &apierr.ValidationError{Field: "file", Reason: err.Error()}
	}
	if pages == 0 {
		return &apierr.ValidationError{Field: "file", Reason: "has no pages"}
	}
	return nil
}

// Pages returns the page count of a PDF document.
func Pages(data []byte) (n int, err error) {
	// The parser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unreadable PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("unreadable PDF: %w", err)
	}
	return reader.NumPage(), nil
}
