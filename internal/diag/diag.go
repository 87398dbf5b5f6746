// Package diag implements the deduplicated, source-located diagnostics
// store shared by the language runtime and the build backend.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Level is the severity of a recorded diagnostic.
type Level int

const (
	LevelWarning Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "warning"
}

// Location identifies a span within a named source buffer.
type Location struct {
	Source string
	Offset uint32
	Length uint32
}

// Diagnostic is one recorded error or warning.
type Diagnostic struct {
	Loc     Location
	Level   Level
	Message string
}

// key used for deduplication: same source, offset, length, level and message.
func (d Diagnostic) key() string {
	return fmt.Sprintf("%s:%d:%d:%d:%s", d.Loc.Source, d.Loc.Offset, d.Loc.Length, d.Level, d.Message)
}

// Store batches diagnostics in memory, deduplicates them, and replays
// them sorted by source then by offset. A workspace owns exactly one
// Store for its lifetime.
type Store struct {
	seen  map[string]bool
	items []Diagnostic
	werror bool
}

// NewStore creates an empty diagnostics store. werror promotes warnings
// to errors at replay time (exit status purposes), mirroring the
// `werror` mode described in the error handling design.
func NewStore(werror bool) *Store {
	return &Store{seen: make(map[string]bool), werror: werror}
}

// Add records a diagnostic, silently dropping exact duplicates.
func (s *Store) Add(d Diagnostic) {
	k := d.key()
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.items = append(s.items, d)
}

// Errorf is a convenience that formats and records an error-level diagnostic.
func (s *Store) Errorf(loc Location, format string, args ...interface{}) {
	s.Add(Diagnostic{Loc: loc, Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

// Warnf is a convenience that formats and records a warning-level diagnostic.
func (s *Store) Warnf(loc Location, format string, args ...interface{}) {
	s.Add(Diagnostic{Loc: loc, Level: LevelWarning, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any error-level diagnostic was recorded, or
// any warning when werror is set.
func (s *Store) HasErrors() bool {
	for _, d := range s.items {
		if d.Level == LevelError || s.werror {
			return true
		}
	}
	return false
}

// Sorted returns diagnostics ordered by source, then by offset, matching
// the replay order the error handling design requires.
func (s *Store) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Loc.Source != out[j].Loc.Source {
			return out[i].Loc.Source < out[j].Loc.Source
		}
		return out[i].Loc.Offset < out[j].Loc.Offset
	})
	return out
}

// LineCol resolves a byte offset in src into a 1-based (line, column)
// pair via a binary scan over cached line-start offsets.
type LineCol struct {
	Line, Col int
}

// LineIndex supports repeated offset->(line,col) lookups on a fixed
// source buffer without rescanning it each time.
type LineIndex struct {
	lineStarts []int // byte offset of the start of each line
}

// NewLineIndex scans src once for newlines.
func NewLineIndex(src string) *LineIndex {
	li := &LineIndex{lineStarts: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			li.lineStarts = append(li.lineStarts, i+1)
		}
	}
	return li
}

// Resolve maps a byte offset to a 1-based line and column via binary
// search over the recorded line starts.
func (li *LineIndex) Resolve(offset int) LineCol {
	lo, hi := 0, len(li.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return LineCol{Line: lo + 1, Col: offset - li.lineStarts[lo] + 1}
}

// Render formats a diagnostic as "path:line:col: level msg" followed by
// a caret-underlined snippet, matching the user presentation contract.
// src is the full source buffer the diagnostic's location indexes into.
func Render(d Diagnostic, src string) string {
	li := NewLineIndex(src)
	start := li.Resolve(int(d.Loc.Offset))
	end := li.Resolve(int(d.Loc.Offset + d.Loc.Length))

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s %s\n", d.Loc.Source, start.Line, start.Col, d.Level, d.Message)

	lines := strings.Split(src, "\n")
	if start.Line-1 >= len(lines) {
		return b.String()
	}
	line := lines[start.Line-1]
	b.WriteString(line)
	b.WriteByte('\n')
	if start.Line == end.Line {
		b.WriteString(strings.Repeat(" ", start.Col-1))
		n := end.Col - start.Col
		if n < 1 {
			n = 1
		}
		b.WriteString(strings.Repeat("^", n))
	} else {
		// multi-line span: bracket with '/' at the start and '|_' at the end.
		b.WriteString(strings.Repeat(" ", start.Col-1))
		b.WriteString("/")
		if end.Line-1 < len(lines) {
			b.WriteByte('\n')
			b.WriteString(lines[end.Line-1])
			b.WriteByte('\n')
			b.WriteString(strings.Repeat(" ", end.Col-1))
			b.WriteString("|_")
		}
	}
	return b.String()
}
