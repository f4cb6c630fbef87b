package ingestion

import (
	"unicode"

	"github.com/fabfab/quizrag/apperr"
)

// Chunk is a contiguous span of extracted text. Start and End are rune
// offsets into the source text, End exclusive.
type Chunk struct {
	Source string
	Index  int
	Start  int
	End    int
	Text   string
}

// Splitter cuts text into chunks of at most Size runes, each sharing Overlap
// runes with its predecessor. It prefers to cut after a paragraph break, then
// a line break, then a sentence end, then any whitespace, and cuts mid-word
// only when no such boundary exists.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the chunking parameters.
func NewSplitter(size, overlap int) (*Splitter, error) {
	const op = "new splitter"
	if size <= 0 {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "chunk overlap must be >= 0 and < %d, got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks text in order. Dropping the first Overlap runes of every chunk
// after the first and concatenating reproduces text exactly.
func (s *Splitter) Split(text ExtractedText) []Chunk {
	runes := []rune(text.Text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := n
		if n-start > s.size {
			end = s.cutPoint(runes, start)
		}
		chunks = append(chunks, Chunk{
			Source: text.Source,
			Index:  len(chunks),
			Start:  start,
			End:    end,
			Text:   string(runes[start:end]),
		})
		if end == n {
			return chunks
		}
		start = end - s.overlap
	}
}

// cutPoint picks the end of the chunk starting at start. The result lies in
// (start+overlap, start+size] so every step makes progress.
func (s *Splitter) cutPoint(runes []rune, start int) int {
	limit := start + s.size
	lowest := start + s.overlap + 1

	boundaries := []func(end int) bool{
		func(end int) bool {
			return end-2 >= start && runes[end-1] == '\n' && runes[end-2] == '\n'
		},
		func(end int) bool {
			return runes[end-1] == '\n'
		},
		func(end int) bool {
			return end-2 >= start && unicode.IsSpace(runes[end-1]) && isSentenceEnd(runes[end-2])
		},
		func(end int) bool {
			return unicode.IsSpace(runes[end-1])
		},
	}

	for _, atBoundary := range boundaries {
		for end := limit; end >= lowest; end-- {
			if atBoundary(end) {
				return end
			}
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
