package regions

import (
	"regexp"
	"sort"
	"strings"
)

var (
	punctRe = regexp.MustCompile(`[",;:()«»'№]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Address noise dropped token-wise before lookup. Tokens are compared
// with trailing dots trimmed, so "ул." and "ул" both match.
var noiseTokens = map[string]struct{}{
	"ул": {}, "улица": {}, "г": {}, "город": {}, "гор": {},
	"проспект": {}, "просп": {}, "пр-т": {}, "пер": {}, "переулок": {},
	"район": {}, "р-н": {}, "дом": {}, "д": {}, "стр": {}, "корп": {},
	"кв": {}, "офис": {}, "площадь": {}, "пл": {}, "шоссе": {}, "ш": {},
	"набережная": {}, "наб": {},
}

// Abbreviated subject kinds expanded before lookup.
var kindExpansions = map[string]string{
	"обл":  "область",
	"респ": "республика",
}

// aliasIndex maps a normalised alias to its canonical subject. Built
// once from the canonical names, the per-kind short forms and the
// explicit alias table.
var aliasIndex map[string]string

// aliasesByLength holds the alias keys longest-first for substring
// scanning, so "московская область" wins over "москва".
var aliasesByLength []string

// buildAliasIndex populates aliasIndex and aliasesByLength from the
// canonical subject list. Called from regions.go's init after `all` is
// populated, since Go runs per-file init funcs in filename order and
// this file sorts before regions.go.
func buildAliasIndex() {
	aliasIndex = make(map[string]string)

	add := func(alias, canonical string) {
		alias = normalizeKey(alias)
		if alias == "" {
			return
		}

		if _, exists := aliasIndex[alias]; !exists {
			aliasIndex[alias] = canonical
		}
	}

	for _, name := range all {
		add(name, name)

		lower := strings.ToLower(name)

		// "Республика Бурятия" is also recognisable as "Бурятия" and
		// as the inverted "Бурятия Республика".
		if rest, ok := strings.CutPrefix(lower, "республика "); ok {
			add(rest, name)
			add(rest+" республика", name)
		}

		// The bare adjective of an oblast or krai is unambiguous.
		for _, suffix := range []string{" область", " край"} {
			if rest, found := strings.CutSuffix(lower, suffix); found {
				add(rest, name)
			}
		}

		// Inverted word order: "Свердловская область" ↔ "область Свердловская".
		if parts := strings.Fields(lower); len(parts) == 2 {
			add(parts[1]+" "+parts[0], name)
		}

		// Em-dash composites match without their tail ("Ханты-Мансийский
		// автономный округ" with or without "— Югра").
		if head, _, found := strings.Cut(lower, " — "); found {
			add(head, name)
		}
	}

	for alias, canonical := range explicitAliases {
		add(alias, canonical)
	}

	aliasesByLength = make([]string, 0, len(aliasIndex))
	for alias := range aliasIndex {
		aliasesByLength = append(aliasesByLength, alias)
	}

	sort.Slice(aliasesByLength, func(i, j int) bool {
		if len(aliasesByLength[i]) != len(aliasesByLength[j]) {
			return len(aliasesByLength[i]) > len(aliasesByLength[j])
		}

		return aliasesByLength[i] < aliasesByLength[j]
	})
}

// Normalize maps arbitrary region text to its canonical federal
// subject. It case-folds, strips punctuation, postal codes and address
// noise, expands abbreviated subject kinds, tolerates inverted word
// order and finally resolves through the alias table. Unmappable input
// returns ok=false; the caller stores null, never raw text.
func Normalize(raw string) (string, bool) {
	cleaned := normalizeKey(raw)
	if cleaned == "" {
		return "", false
	}

	if canonical, ok := aliasIndex[cleaned]; ok {
		return canonical, true
	}

	// Substring scan for customer-name tails like
	// "ГБУ Жилищник г. Москва". Longest aliases first so a district or
	// street fragment never shadows the full subject name.
	return findInText(cleaned)
}

// FindIn scans free text (customer name, address line) for a subject
// mention.
func FindIn(text string) (string, bool) {
	return Normalize(text)
}

func findInText(cleaned string) (string, bool) {
	for _, alias := range aliasesByLength {
		// Aliases shorter than 4 runes ("спб", "мск") only resolve via
		// exact lookup; as substrings they produce false hits.
		if len([]rune(alias)) < 4 {
			continue
		}

		if containsWord(cleaned, alias) {
			return aliasIndex[alias], true
		}
	}

	return "", false
}

// containsWord reports whether needle occurs in haystack on word
// boundaries. A match inside a longer word ("Коркинский" containing a
// region root) does not count.
func containsWord(haystack, needle string) bool {
	idx := 0

	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}

		start := idx + i
		end := start + len(needle)

		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}

		idx = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}

	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}

	return !isWordByte(s[i])
}

// isWordByte treats ASCII letters/digits and any multi-byte rune
// (Cyrillic) as word characters.
func isWordByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b >= 0x80:
		return true
	default:
		return false
	}
}

// normalizeKey lower-cases and cleans raw region text into the alias
// lookup form.
func normalizeKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	s = punctRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, ".", ". ")
	s = spaceRe.ReplaceAllString(s, " ")

	kept := make([]string, 0, 8)

	for _, token := range strings.Fields(s) {
		trimmed := strings.TrimSuffix(token, ".")

		if _, noise := noiseTokens[trimmed]; noise {
			continue
		}

		if isPostalCode(trimmed) {
			continue
		}

		if full, ok := kindExpansions[trimmed]; ok {
			token = full
		} else {
			token = trimmed
		}

		kept = append(kept, token)
	}

	return strings.Join(kept, " ")
}

func isPostalCode(token string) bool {
	if len(token) < 5 || len(token) > 6 {
		return false
	}

	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func districtKey(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, " федеральный округ")
	name = strings.TrimSuffix(name, " ФО")

	return name
}
