package pdfvalidation

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when the content does not start with a PDF header.
var ErrNotPDF = errors.New("invalid PDF file: missing PDF header")

// PageCount returns the number of pages of the PDF held in r.
func PageCount(r io.ReaderAt, size int64) (int, error) {
	header := make([]byte, 5)
	if _, err := r.ReadAt(header, 0); err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	if !bytes.Equal(header, []byte("%PDF-")) {
		return 0, ErrNotPDF
	}

	pdfReader, err := pdf.NewReader(r, size)
	if err == nil {
		return pdfReader.NumPage(), nil
	}

	// retry without trailing bytes after the last %%EOF
	content, readErr := io.ReadAll(io.NewSectionReader(r, 0, size))
	if readErr != nil {
		return 0, fmt.Errorf("failed to read file: %w", readErr)
	}
	return PageCountBytes(content)
}

// PageCountBytes returns the number of pages of an in-memory PDF.
func PageCountBytes(content []byte) (int, error) {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return 0, ErrNotPDF
	}

	content = sanitizePDF(content)
	pdfReader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return pdfReader.NumPage(), nil
}

// sanitizePDF removes trailing garbage data from PDFs
func sanitizePDF(content []byte) []byte {
	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}
	return content[:pdfEnd]
}
