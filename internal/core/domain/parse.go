package domain

// TextWindow is one deterministic slice of the normalized text. Start and End
// are rune offsets into the source text, half-open.
type TextWindow struct {
	Index int
	Start int
	End   int
	Text  string
}

// PageSpan maps a half-open rune range [Start, End) of the normalized text to
// a 1-based page number. Parsers that have no page notion return none.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

type ParsedDocument struct {
	Text  string
	Pages []PageSpan
}

// PageRange resolves the pages covered by the rune range [start, end) of the
// normalized text. Returns nils when no page spans are known.
func (p ParsedDocument) PageRange(start, end int) (*int, *int) {
	var first, last *int
	for i := range p.Pages {
		span := p.Pages[i]
		if span.End <= start || span.Start >= end {
			continue
		}
		page := span.Page
		if first == nil {
			f := page
			first = &f
		}
		l := page
		last = &l
	}
	return first, last
}
