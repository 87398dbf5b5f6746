package ninjabuild

import (
	"fmt"
	"strings"
)

// tok is a manifest token kind, mirroring the grammar in the build
// manifest spec: rule/build/default/include/subninja/pool statements,
// bare identifiers, and the punctuation that separates them.
type tok int

const (
	tokErr tok = iota
	tokBuild
	tokColon
	tokDefault
	tokEquals
	tokIdent
	tokInclude
	tokIndent
	tokNewline
	tokPipe
	tokPipe2
	tokPool
	tokRule
	tokSubninja
	tokEOF
)

func (t tok) String() string {
	switch t {
	case tokBuild:
		return "'build'"
	case tokColon:
		return "':'"
	case tokDefault:
		return "'default'"
	case tokEquals:
		return "'='"
	case tokIdent:
		return "identifier"
	case tokInclude:
		return "'include'"
	case tokIndent:
		return "indent"
	case tokNewline:
		return "newline"
	case tokPipe:
		return "'|'"
	case tokPipe2:
		return "'||'"
	case tokPool:
		return "'pool'"
	case tokRule:
		return "'rule'"
	case tokSubninja:
		return "'subninja'"
	case tokEOF:
		return "eof"
	}
	return "error"
}

var keywords = map[string]tok{
	"build":    tokBuild,
	"default":  tokDefault,
	"include":  tokInclude,
	"pool":     tokPool,
	"rule":     tokRule,
	"subninja": tokSubninja,
}

// lexer scans a ninja-format manifest. Unlike the teacher's re2c-generated
// scanner, this one is a small hand-written character loop; the manifest
// grammar it covers is considerably smaller than full upstream ninja's.
type lexer struct {
	filename  string
	input     string
	pos       int
	lineStart int
	line      int
	lastPos   int
	atLineStart bool
}

func newLexer(filename, input string) *lexer {
	return &lexer{filename: filename, input: input, line: 1, atLineStart: true}
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	col := l.lastPos - l.lineStart
	if col < 0 {
		col = 0
	}
	lineEnd := strings.IndexByte(l.input[l.lineStart:], '\n')
	var snippet string
	if lineEnd == -1 {
		snippet = l.input[l.lineStart:]
	} else {
		snippet = l.input[l.lineStart : l.lineStart+lineEnd]
	}
	return fmt.Errorf("%s:%d: %s\n%s\n%s^ near here", l.filename, l.line, msg, snippet, strings.Repeat(" ", col))
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '.'
}

// next returns the next token, along with an identifier payload for
// tokIdent and keyword tokens.
func (l *lexer) next() (tok, string, error) {
	for {
		// Indentation is only meaningful at the start of a line.
		if l.atLineStart {
			n := 0
			for l.pos+n < len(l.input) && l.input[l.pos+n] == ' ' {
				n++
			}
			if n > 0 && l.pos+n < len(l.input) && l.input[l.pos+n] != '\n' && l.input[l.pos+n] != '#' {
				l.pos += n
				l.atLineStart = false
				l.lastPos = l.pos
				return tokIndent, "", nil
			}
			l.pos += n
			l.atLineStart = false
		}
		if l.pos >= len(l.input) {
			l.lastPos = l.pos
			return tokEOF, "", nil
		}
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
			continue
		case c == '#':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			continue
		case c == '\n':
			l.lastPos = l.pos
			l.pos++
			l.lineStart = l.pos
			l.line++
			l.atLineStart = true
			return tokNewline, "", nil
		case c == ':':
			l.lastPos = l.pos
			l.pos++
			return tokColon, "", nil
		case c == '=':
			l.lastPos = l.pos
			l.pos++
			return tokEquals, "", nil
		case c == '|':
			l.lastPos = l.pos
			l.pos++
			if l.peekByte() == '|' {
				l.pos++
				return tokPipe2, "", nil
			}
			return tokPipe, "", nil
		case isIdentStart(c):
			start := l.pos
			l.lastPos = start
			for l.pos < len(l.input) && isIdentCont(l.input[l.pos]) {
				l.pos++
			}
			word := l.input[start:l.pos]
			if kw, ok := keywords[word]; ok {
				return kw, word, nil
			}
			return tokIdent, word, nil
		default:
			l.lastPos = l.pos
			return tokErr, "", l.errorf("unexpected character %q", c)
		}
	}
}

// readEvalString reads a $-escaped value, stopping at an unescaped space,
// ':' or '|' (if pathMode) or newline. It never consumes the terminating character.
func (l *lexer) readEvalString(pathMode bool) (EvalString, error) {
	var e EvalString
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			e.AddText(lit.String())
			lit.Reset()
		}
	}
	for {
		if l.pos >= len(l.input) {
			break
		}
		c := l.input[l.pos]
		switch {
		case c == '\n':
			flush()
			return e, nil
		case pathMode && (c == ' ' || c == ':' || c == '|'):
			flush()
			return e, nil
		case c == '$':
			l.pos++
			if l.pos >= len(l.input) {
				return e, l.errorf("unexpected EOF after '$'")
			}
			d := l.input[l.pos]
			switch {
			case d == '\n':
				// Line continuation: swallow the newline and any
				// following indentation.
				l.pos++
				l.lineStart = l.pos
				l.line++
				for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
					l.pos++
				}
			case d == ' ':
				lit.WriteByte(' ')
				l.pos++
			case d == ':':
				lit.WriteByte(':')
				l.pos++
			case d == '$':
				lit.WriteByte('$')
				l.pos++
			case d == '{':
				flush()
				l.pos++
				start := l.pos
				for l.pos < len(l.input) && l.input[l.pos] != '}' {
					l.pos++
				}
				if l.pos >= len(l.input) {
					return e, l.errorf("expected '}'")
				}
				e.AddVar(l.input[start:l.pos])
				l.pos++
			case isIdentStart(d):
				flush()
				start := l.pos
				for l.pos < len(l.input) && isIdentCont(l.input[l.pos]) {
					l.pos++
				}
				e.AddVar(l.input[start:l.pos])
			default:
				return e, l.errorf("bad $-escape (literal $ must be written as $$)")
			}
		default:
			lit.WriteByte(c)
			l.pos++
		}
	}
	flush()
	return e, nil
}
