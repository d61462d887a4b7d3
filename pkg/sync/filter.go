package sync

import (
	"regexp"
	"strings"
)

// compileFilter turns a glob over local ids into an anchored regexp:
// '*' matches any run of characters, '?' exactly one, everything else is literal.
func compileFilter(pattern string) *regexp.Regexp {
	if pattern == "" || pattern == "*" {
		return nil
	}
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// MatchesFilter reports whether localID matches the glob pattern.
// An empty pattern matches everything.
func MatchesFilter(localID, pattern string) bool {
	re := compileFilter(pattern)
	return re == nil || re.MatchString(localID)
}
