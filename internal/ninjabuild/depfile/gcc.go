// Package depfile parses the two dependency-listing formats compilers
// emit: GCC/Clang's Makefile-style -M output and MSVC's /showIncludes
// stdout chatter.
package depfile

import "errors"

// Parsed is the target/prerequisite split a depfile yields: Outs are the
// rule's targets (normally just the one output the compile rule already
// names), Ins are everything it depends on.
type Parsed struct {
	Outs []string
	Ins  []string
}

// ParseGCC parses a GCC/Clang Makefile-style dependency file.
//
// A note on backslashes, from reading the docs: backslash-newline is the
// line continuation character; backslash-space escapes a space that
// would otherwise split a filename; backslash-hash escapes a comment
// marker. Quoting the GNU manual, "Backslashes that are not in danger of
// quoting a following special character go unmolested." We follow what
// GCC/Clang actually produces rather than the full Make grammar:
//
//   - a space preceded by 2N+1 backslashes is N backslashes then a
//     literal space;
//   - a space preceded by 2N backslashes is 2N backslashes, and the
//     space ends the filename as usual;
//   - a hash is escaped by exactly one backslash, which is dropped;
//   - a single trailing backslash before a newline continues the rule
//     onto the next line without ending it.
//
// Backslash-escaped Windows drive-letter colons are not handled; this
// parser targets the output of Unix-style compiler invocations.
func ParseGCC(content []byte) (Parsed, error) {
	var out Parsed
	seenIns := map[string]bool{}
	seenOuts := map[string]bool{}
	haveTarget := false
	parsingTargets := true
	poisoned := false

	pos := 0
	for pos < len(content) {
		tok, next, newline, truncated := readGCCToken(content, pos)
		if truncated {
			return Parsed{}, errors.New("depfile: malformed trailing backslash")
		}
		pos = next

		isDependency := !parsingTargets
		if l := len(tok); l > 0 && tok[l-1] == ':' {
			tok = tok[:l-1]
			parsingTargets = false
			haveTarget = true
		}

		if len(tok) > 0 {
			piece := string(tok)
			if seenIns[piece] {
				if !isDependency {
					// Previously recorded as an input; now reappearing as a
					// target contradicts that, so poison any further inputs.
					poisoned = true
				}
			} else if isDependency {
				if poisoned {
					return Parsed{}, errors.New("depfile: inputs may not also have inputs")
				}
				seenIns[piece] = true
				out.Ins = append(out.Ins, piece)
			} else if !seenOuts[piece] {
				seenOuts[piece] = true
				out.Outs = append(out.Outs, piece)
			}
		}

		if newline {
			parsingTargets = true
			poisoned = false
		}
	}
	if !haveTarget {
		return Parsed{}, errors.New("depfile: expected ':'")
	}
	return out, nil
}

// readGCCToken reads one whitespace/newline-delimited, de-escaped
// filename span starting at pos, returning the span, the position just
// past its delimiter, and whether that delimiter was a rule-ending
// newline (false for a continuation or plain whitespace separator).
func readGCCToken(content []byte, pos int) (tok []byte, next int, newline, truncated bool) {
	n := len(content)
	for pos < n {
		c := content[pos]
		switch c {
		case '\n':
			return tok, pos + 1, true, false
		case '\r':
			pos++
			if pos < n && content[pos] == '\n' {
				pos++
			}
			return tok, pos, true, false
		case ' ', '\t':
			pos++
			if len(tok) == 0 {
				continue
			}
			return tok, pos, false, false
		case '$':
			pos++
			if pos < n && content[pos] == '$' {
				tok = append(tok, '$')
				pos++
			}
			// A lone '$' is swallowed.
		case '\\':
			start := pos
			for pos < n && content[pos] == '\\' {
				pos++
			}
			nbs := pos - start
			switch {
			case pos < n && content[pos] == ' ':
				if nbs%2 == 1 {
					for i := 0; i < nbs/2; i++ {
						tok = append(tok, '\\')
					}
					tok = append(tok, ' ')
					pos++
				} else {
					for i := 0; i < nbs; i++ {
						tok = append(tok, '\\')
					}
				}
			case pos < n && content[pos] == '#':
				for i := 0; i < nbs-1; i++ {
					tok = append(tok, '\\')
				}
				tok = append(tok, '#')
				pos++
			case pos < n && (content[pos] == '\n' || content[pos] == '\r'):
				if nbs%2 == 1 {
					for i := 0; i < nbs/2; i++ {
						tok = append(tok, '\\')
					}
					if content[pos] == '\r' {
						pos++
					}
					if pos < n && content[pos] == '\n' {
						pos++
					}
					if len(tok) == 0 {
						continue
					}
					return tok, pos, false, false
				}
				for i := 0; i < nbs; i++ {
					tok = append(tok, '\\')
				}
			case pos == n:
				// A run of backslashes with nothing after it: an incomplete
				// escape or continuation truncated mid-file.
				return nil, pos, false, true
			default:
				for i := 0; i < nbs; i++ {
					tok = append(tok, '\\')
				}
			}
		default:
			tok = append(tok, c)
			pos++
		}
	}
	return tok, pos, false, false
}
