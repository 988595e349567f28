package stowfront

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidRequestPath validates an inbound URL path before it is turned into an
// object key or listing prefix. It checks that the path:
//   - starts with "/"
//   - is valid UTF-8
//   - does not contain "." or ".." segments
//   - does not contain "//" (empty segments)
//   - does not contain a backslash
//   - does not contain null bytes, control characters (< 0x20) or DEL (0x7f)
//
// A trailing "/" is allowed; it selects a directory listing.
func IsValidRequestPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.Contains(p, "//") || strings.Contains(p, `\`) {
		return false
	}

	for _, seg := range strings.Split(p[1:], "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || (unicode.IsSpace(r) && r != ' ') {
			return false
		}
	}

	return true
}

// KeyFromPath strips the leading separator from a request path, producing the
// object key (or listing prefix) within the bucket.
func KeyFromPath(p string) string {
	return strings.TrimPrefix(p, "/")
}
