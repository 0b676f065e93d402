package istanbul

import (
	"sort"
	"strings"

	"github.com/felixgeelhaar/v8cov/internal/domain"
)

// sourceText indexes a script's source by line so byte offsets can be
// translated into line/column locations.
type sourceText struct {
	lines []srcLine
	size  int
}

// srcLine is a half-open byte-offset interval for one line, excluding the
// trailing newline.
type srcLine struct {
	start, end int
}

func newSourceText(src string) *sourceText {
	parts := strings.Split(src, "\n")
	if n := len(parts); n > 1 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	st := &sourceText{lines: make([]srcLine, len(parts)), size: len(src)}
	offset := 0
	for i, part := range parts {
		st.lines[i] = srcLine{start: offset, end: offset + len(part)}
		offset += len(part) + 1
	}
	return st
}

// placeholderSource fabricates source text from cached line lengths: one
// dot-filled line per recorded length. Line-accurate mapping survives without
// the original text.
func placeholderSource(lineLengths []int) string {
	var sb strings.Builder
	for _, length := range lineLengths {
		sb.WriteString(strings.Repeat(".", length))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (s *sourceText) lineCount() int {
	return len(s.lines)
}

func (s *sourceText) lineLengths() []int {
	lengths := make([]int, len(s.lines))
	for i, line := range s.lines {
		lengths[i] = line.end - line.start
	}
	return lengths
}

// lineAt returns the 0-based index of the line containing offset.
func (s *sourceText) lineAt(offset int) int {
	if len(s.lines) == 0 || offset <= 0 {
		return 0
	}
	idx := sort.Search(len(s.lines), func(i int) bool {
		return s.lines[i].start > offset
	})
	return idx - 1
}

// locate translates a byte offset into a 1-based line / 0-based column
// location, clamping the column to the line's length.
func (s *sourceText) locate(offset int) domain.Location {
	idx := s.lineAt(offset)
	if len(s.lines) == 0 {
		return domain.Location{Line: 1, Column: 0}
	}
	line := s.lines[idx]
	col := offset - line.start
	if col < 0 {
		col = 0
	}
	if max := line.end - line.start; col > max {
		col = max
	}
	return domain.Location{Line: idx + 1, Column: col}
}

// locateRange translates a half-open byte-offset interval into a location
// range. The end offset is exclusive, so it resolves to the last covered
// byte.
func (s *sourceText) locateRange(start, end int) domain.Range {
	if end > start {
		end--
	}
	from := s.locate(start)
	to := s.locate(end)
	to.Column++
	return domain.Range{Start: from, End: to}
}
