package metadata

import "strings"

// splitPattern breaks a path pattern or a request path into its '/'
// segments, dropping empty leading/trailing segments so "/a/b" and "a/b/"
// compare the same way.
func splitPattern(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isParamSegment(seg string) bool {
	return len(seg) >= 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

// patternsOverlap reports whether two path patterns could match the same
// concrete request path: same segment count, and every literal segment
// position matches byte-for-byte between the two patterns (a {param}
// segment overlaps anything). This is what admin-time endpoint creation
// calls to reject ambiguous routes up front instead of leaving matching
// order unspecified at request time.
func patternsOverlap(a, b string) bool {
	segsA := splitPattern(a)
	segsB := splitPattern(b)
	if len(segsA) != len(segsB) {
		return false
	}
	for i := range segsA {
		aParam := isParamSegment(segsA[i])
		bParam := isParamSegment(segsB[i])
		if aParam || bParam {
			continue
		}
		if segsA[i] != segsB[i] {
			return false
		}
	}
	return true
}

// MatchPattern reports whether path satisfies pattern, returning the bound
// path parameters on success. A {name} segment binds any single non-empty
// segment; literal segments must match exactly; segment counts must be
// equal (§4.4 — no wildcard/greedy segments).
func MatchPattern(pattern, path string) (map[string]string, bool) {
	segsPattern := splitPattern(pattern)
	segsPath := splitPattern(path)
	if len(segsPattern) != len(segsPath) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range segsPattern {
		if isParamSegment(seg) {
			name := seg[1 : len(seg)-1]
			if segsPath[i] == "" {
				return nil, false
			}
			params[name] = segsPath[i]
			continue
		}
		if seg != segsPath[i] {
			return nil, false
		}
	}
	return params, true
}

// Specificity scores a pattern by its literal segment count, used to order
// candidates returned by FindRoutable so the most specific match is tried
// first when patterns admitted before overlap-rejection existed could still
// both match (only relevant for patterns persisted before this endpoint's
// conflict check, e.g. across a migration).
func Specificity(pattern string) int {
	score := 0
	for _, seg := range splitPattern(pattern) {
		if !isParamSegment(seg) {
			score++
		}
	}
	return score
}
