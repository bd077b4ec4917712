package util

import "path"

// MatchWildcard reports whether name matches the wildcard pattern.
// The pattern syntax is the same as path.Match: '*' matches any sequence
// of non-separator characters, '?' matches any single character, and
// '[...]' matches character ranges. Dotted method names such as
// "indices.refresh" contain no separator, so "indices.*" matches them.
func MatchWildcard(pattern, name string) bool {
	matched, _ := path.Match(pattern, name)
	return matched
}

// MatchAny reports whether name matches at least one of patterns.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchWildcard(p, name) {
			return true
		}
	}
	return false
}
