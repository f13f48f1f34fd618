package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/docpipe/docpipe/internal/core/domain"
)

// Registry dispatches parsing by content type, falling back to the filename
// extension. Unsupported binary formats are ErrInvalidInput (permanent);
// extraction failures inside a supported format surface as plain errors
// (transient to the caller).
type Registry struct{}

func New() *Registry {
	return &Registry{}
}

func (r *Registry) Parse(ctx context.Context, data []byte, filename, contentType string) (domain.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParsedDocument{}, err
	}
	if len(data) == 0 {
		return domain.ParsedDocument{}, nil
	}

	if isPDF(data, filename, contentType) {
		return parsePDF(data)
	}
	return parsePlaintext(data, filename)
}

func isPDF(data []byte, filename, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

func parsePlaintext(data []byte, filename string) (domain.ParsedDocument, error) {
	if !utf8.Valid(data) {
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrInvalidInput, "parse",
			fmt.Errorf("unsupported binary format: %s", filename))
	}
	return domain.ParsedDocument{Text: normalize(string(data))}, nil
}

// normalize collapses line endings and trims outer whitespace so the same
// bytes always yield the same chunk windows.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}
