package match

import "strings"

// normalizeText lower-cases and collapses whitespace for matching.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// containsPhrase matches a multi-word phrase as a substring and a
// single word on word boundaries.
func containsPhrase(text, phrase string) bool {
	if strings.ContainsRune(phrase, ' ') {
		return strings.Contains(text, phrase)
	}

	return containsWord(text, phrase)
}

// containsWord reports whether needle occurs in haystack on word
// boundaries on both sides.
func containsWord(haystack, needle string) bool {
	idx := 0

	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}

		start := idx + i
		end := start + len(needle)

		if boundary(haystack, start-1) && boundary(haystack, end) {
			return true
		}

		idx = start + 1
	}
}

// containsWordPrefix reports whether some word in haystack starts with
// needle.
func containsWordPrefix(haystack, needle string) bool {
	idx := 0

	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}

		start := idx + i

		if boundary(haystack, start-1) {
			return true
		}

		idx = start + 1
	}
}

// boundary reports whether the byte at position i (or the string edge)
// is a word separator. Multi-byte runes (Cyrillic) count as word
// characters, so a needle ending mid-word does not match.
func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}

	b := s[i]

	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return false
	case b >= 0x80:
		return false
	default:
		return true
	}
}
