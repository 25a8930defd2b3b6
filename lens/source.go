package lens

import (
	"sort"
	"strings"
)

// Position is a resolved location in a SourceUnit. Line and Column are 1-based, Column counts bytes.
type Position struct {
	Offset int
	Line   int
	Column int
}

// SourceUnit is the immutable original text of one compilation unit plus its line index.
type SourceUnit struct {
	text       string
	lineStarts []int
}

// NewSourceUnit indexes the line starts of text.
func NewSourceUnit(text string) *SourceUnit {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &SourceUnit{text: text, lineStarts: starts}
}

// Text returns the original text.
func (s *SourceUnit) Text() string {
	return s.text
}

// Slice returns the original text between the two offsets.
func (s *SourceUnit) Slice(start, end int) string {
	return s.text[start:end]
}

// Position resolves offset into a line and column. Offsets outside the text are clamped.
func (s *SourceUnit) Position(offset int) Position {
	offset = min(max(offset, 0), len(s.text))
	// index of the last line start <= offset
	idx := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	}) - 1
	return Position{
		Offset: offset,
		Line:   idx + 1,
		Column: offset - s.lineStarts[idx] + 1,
	}
}

// LineOf returns the 1-based line and column of offset.
func (s *SourceUnit) LineOf(offset int) (line, column int) {
	p := s.Position(offset)
	return p.Line, p.Column
}

// detectNewline reports the line break style of the first line break in text, defaulting to "\n".
func detectNewline(text string) string {
	if i := strings.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
