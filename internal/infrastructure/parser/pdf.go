package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/docpipe/docpipe/internal/core/domain"
)

// parsePDF extracts per-page text and records the rune span each page covers
// in the normalized output, so chunks can carry page_start/page_end.
func parsePDF(data []byte) (out domain.ParsedDocument, err error) {
	defer func() {
		// The pdf library panics on some malformed files.
		if r := recover(); r != nil {
			out = domain.ParsedDocument{}
			err = domain.WrapError(domain.ErrInvalidInput, "parse pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}

	var builder strings.Builder
	var spans []domain.PageSpan
	offset := 0

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return domain.ParsedDocument{}, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		pageText = normalize(pageText)
		if pageText == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString("\n")
			offset++
		}
		length := utf8.RuneCountInString(pageText)
		spans = append(spans, domain.PageSpan{
			Page:  pageNum,
			Start: offset,
			End:   offset + length,
		})
		builder.WriteString(pageText)
		offset += length
	}

	return domain.ParsedDocument{Text: builder.String(), Pages: spans}, nil
}
