// Package chunk splits document content into bounded, overlapping text
// segments suitable for embedding.
//
// Splitting is deterministic: identical input always yields identical chunk
// boundaries, which is what makes re-ingestion idempotent. Content is first
// segmented on sentence boundaries, then sentences are packed greedily into
// chunks up to the length limit. A sentence that cannot fit any chunk is cut
// hard at the limit.
package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidDocument indicates the document content cannot be chunked:
// empty, whitespace-only, or not valid UTF-8. A caller input defect, never
// retried.
var ErrInvalidDocument = errors.New("invalid document content")

// DefaultMaxLength is the default chunk size in runes.
const DefaultMaxLength = 1000

// DefaultOverlap is the default overlap between adjacent chunks in runes.
const DefaultOverlap = 200

// sentencePattern matches one sentence (text up to a terminator and any
// following whitespace) or a trailing fragment without a terminator.
var sentencePattern = regexp.MustCompile(`[^.!?。！？]*[.!?。！？]+\s*|[^.!?。！？]+$`)

// Piece is one chunk of a document: its zero-based position and text span.
type Piece struct {
	Position int
	Content  string
}

// Option configures the splitter.
type Option func(*splitter)

// WithMaxLength sets the maximum chunk size in runes.
func WithMaxLength(n int) Option {
	return func(s *splitter) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(n int) Option {
	return func(s *splitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

type splitter struct {
	maxLength int
	overlap   int
}

// Split splits content into ordered, overlapping pieces.
//
// Each piece packs whole sentences up to maxLength runes. A single sentence
// may run over the limit by at most the overlap before it is cut hard, so
// sentences stay intact where reasonably possible. Each piece after the
// first starts with the trailing overlap runes of its predecessor. Content
// that fits within maxLength yields exactly one piece.
func Split(content string, opts ...Option) ([]Piece, error) {
	s := &splitter{
		maxLength: DefaultMaxLength,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Overlap must leave room for the chunk to advance
	if s.overlap >= s.maxLength {
		s.overlap = s.maxLength / 4
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidDocument)
	}
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidDocument)
	}

	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) <= s.maxLength {
		return []Piece{{Position: 0, Content: trimmed}}, nil
	}

	segments := s.segment(trimmed)

	var pieces []Piece
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, " ")
		if s.overlap > 0 && len(pieces) > 0 {
			body = tail(pieces[len(pieces)-1].Content, s.overlap) + " " + body
		}
		pieces = append(pieces, Piece{Position: len(pieces), Content: body})
		current = nil
		currentLen = 0
	}

	for _, seg := range segments {
		segLen := utf8.RuneCountInString(seg)
		if currentLen > 0 && currentLen+1+segLen > s.maxLength {
			flush()
		}
		current = append(current, seg)
		currentLen += segLen
		if len(current) > 1 {
			currentLen++ // joining space
		}
	}
	flush()

	return pieces, nil
}

// segment splits text into sentences, hard-cutting any sentence longer than
// maxLength+overlap into maxLength-sized fragments.
func (s *splitter) segment(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		matches = []string{text}
	}

	var segments []string
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		runes := []rune(m)
		if len(runes) <= s.maxLength+s.overlap {
			segments = append(segments, m)
			continue
		}
		// Oversized sentence: no boundary to respect, cut hard
		for start := 0; start < len(runes); start += s.maxLength {
			end := start + s.maxLength
			if end > len(runes) {
				end = len(runes)
			}
			segments = append(segments, string(runes[start:end]))
		}
	}
	return segments
}

// tail returns the last n runes of text.
func tail(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
