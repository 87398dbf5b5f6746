package depfile

import "strings"

// defaultMSVCDepsPrefix is cl.exe's English-locale /showIncludes marker,
// used when a rule does not set msvc_deps_prefix explicitly.
const defaultMSVCDepsPrefix = "Note: including file:"

// MSVCResult is the outcome of filtering one compiler invocation's
// stdout for /showIncludes noise.
type MSVCResult struct {
	Includes       []string
	FilteredOutput string
}

// ParseMSVCShowIncludes splits cl.exe's combined stdout into the
// dependency paths it reported via /showIncludes and the remaining
// output with those lines removed. System headers (matched by substring
// against "program files" / "microsoft visual studio", case-folded) are
// dropped rather than recorded, since including them would make nearly
// every target depend on the entire SDK; this is a known
// locale-sensitivity limitation inherited from the one concrete behavior
// specified for this filter.
//
// prefix is the rule's msvc_deps_prefix binding, or "" to use cl.exe's
// default English-locale marker.
func ParseMSVCShowIncludes(output, prefix string) MSVCResult {
	if prefix == "" {
		prefix = defaultMSVCDepsPrefix
	}
	var res MSVCResult
	seenInclude := false
	var filtered strings.Builder

	for _, line := range splitLines(output) {
		if inc, ok := stripIncludePrefix(line, prefix); ok {
			seenInclude = true
			inc = strings.TrimLeft(inc, " ")
			if !isSystemInclude(inc) {
				res.Includes = append(res.Includes, inc)
			}
			continue
		}
		if !seenInclude && looksLikeInputFilename(line) {
			continue
		}
		filtered.WriteString(line)
		filtered.WriteByte('\n')
	}
	res.FilteredOutput = filtered.String()
	return res
}

func stripIncludePrefix(line, prefix string) (string, bool) {
	if len(line) <= len(prefix) || line[:len(prefix)] != prefix {
		return "", false
	}
	return line[len(prefix):], true
}

func isSystemInclude(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "program files") || strings.Contains(lower, "microsoft visual studio")
}

func looksLikeInputFilename(line string) bool {
	lower := strings.ToLower(line)
	for _, ext := range []string{".c", ".cc", ".cxx", ".cpp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// splitLines splits on \r\n, \r, or \n without producing a trailing
// empty element for a final newline, matching the line-at-a-time scan
// the filter operates on.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
