package ninjabuild

import "strings"

// CanonicalizePath collapses "." components, resolves ".." against a
// preceding real component, and squashes repeated slashes, matching the
// path normalization ninja applies to every node name before it is used
// as a map key.
func CanonicalizePath(path string) string {
	if path == "" {
		return path
	}
	leadingSlash := path[0] == '/'
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
				continue
			}
			out = append(out, p)
		default:
			out = append(out, p)
		}
	}
	joined := strings.Join(out, "/")
	if leadingSlash {
		joined = "/" + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}
