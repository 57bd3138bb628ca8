package library

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"bookshare/internal/apiclient"
)

// IsRemote reports whether ref points at a file already stored on the server.
func IsRemote(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

// loadImage reads a local image into an upload named upload.<ext>.
func loadImage(path string) (*apiclient.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	contentType := "image/jpeg"
	name := "upload.jpg"
	if ext != "" {
		contentType = "image/" + ext
		name = "upload." + ext
	}
	return &apiclient.Upload{Name: name, ContentType: contentType, Body: bytes.NewReader(data)}, nil
}

// loadBookFile reads a local PDF and checks that it parses and has pages.
func loadBookFile(path string) (*apiclient.Upload, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read book file: %w", err)
	}
	pages, err := countPages(data)
	if err != nil {
		return nil, 0, err
	}
	return &apiclient.Upload{Name: filepath.Base(path), ContentType: "application/pdf", Body: bytes.NewReader(data)}, pages, nil
}

func countPages(data []byte) (pages int, err error) {
	invalid := &apiclient.ValidationError{Field: "FileBook", Message: "Please choose a valid PDF file"}
	// The parser panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, invalid
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, invalid
	}
	n := reader.NumPage()
	if n < 1 {
		return 0, invalid
	}
	return n, nil
}
