package chunking

import "github.com/docpipe/docpipe/internal/core/domain"

type Splitter struct {
	WindowSize int
	Overlap    int
}

func NewSplitter(windowSize, overlap int) *Splitter {
	if windowSize <= 0 {
		windowSize = 1400
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= windowSize {
		overlap = windowSize / 4
	}
	return &Splitter{
		WindowSize: windowSize,
		Overlap:    overlap,
	}
}

// Split windows text deterministically: window i starts at i*(size-overlap)
// and has length min(size, remaining). Indices are 0-based and contiguous.
// The same text always yields the same windows.
func (s *Splitter) Split(text string) []domain.TextWindow {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.WindowSize - s.Overlap
	if step <= 0 {
		step = s.WindowSize
	}

	out := make([]domain.TextWindow, 0, len(runes)/step+1)
	for start, i := 0, 0; start < len(runes); start, i = start+step, i+1 {
		end := start + s.WindowSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, domain.TextWindow{
			Index: i,
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return out
}
