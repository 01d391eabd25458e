// Package match implements the deterministic scoring of a tender
// against a subscriber filter.
//
// The same algorithm runs twice per tender: a pre-score pass over the
// feed-level fields that gates detail-page enrichment, and a full pass
// over the enriched record that adds price, region and deadline
// signals. Scores are integers in [0, 100]; hard rejects short-circuit
// to 0 with a cause.
package match

import (
	"strings"
	"time"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// Score contributions and thresholds.
const (
	scoreCompoundPhrase = 35
	scoreExactKeyword   = 25
	scoreRootMatch      = 18
	scoreSynonym        = 20
	scorePriceInBand    = 20
	scorePriceNearBand  = 10
	scorePriceFarBand   = -20
	scoreRegionBonus    = 10

	negativePatternPenalty = -5
	negativePatternCap     = -30

	rootMinRunes      = 5
	shortKeywordRunes = 3

	strictModeKeywordCount = 8
	strictModeMatchedRatio = 0.10
	strictModeFactor       = 0.6

	priceBandTolerance = 0.20

	maxScore = 100
)

// NullRegionPolicy decides how a tender without a resolvable region is
// scored against a filter with a region list.
type NullRegionPolicy string

const (
	NullRegionPass     NullRegionPolicy = "pass"
	NullRegionPenalise NullRegionPolicy = "penalise"
	NullRegionReject   NullRegionPolicy = "reject"
)

const nullRegionPenalty = -20

// Matcher scores tenders against filters. It is pure and safe for
// concurrent use.
type Matcher struct {
	nullRegionPolicy NullRegionPolicy
}

func New(policy NullRegionPolicy) *Matcher {
	if policy == "" {
		policy = NullRegionPenalise
	}

	return &Matcher{nullRegionPolicy: policy}
}

// PreScore runs the keyword- and title-derived signals only, using the
// fields available from the feed. Region and precise price are unknown
// at this point and contribute nothing.
func (m *Matcher) PreScore(t *domain.Tender, f *domain.Filter) *domain.ScoreReport {
	text := normalizeText(t.Title + " " + t.Description)

	report := &domain.ScoreReport{}

	if cause, rejected := m.checkHardRejects(text, t.Title, t.Type, f); rejected {
		return reject(report, cause)
	}

	m.scoreKeywords(report, text, f)
	m.scoreNegativePatterns(report, text)
	m.applyStrictMode(report, f)

	report.Score = clip(report.KeywordScore + report.NegativePenalty)
	report.Class = classify(report.Score)

	return report
}

// Score runs the full pass over an enriched tender: keywords plus
// price, region and deadline decisions.
func (m *Matcher) Score(t *domain.EnrichedTender, f *domain.Filter, now time.Time) *domain.ScoreReport {
	text := normalizeText(t.SearchableText())

	report := &domain.ScoreReport{}

	if cause, rejected := m.checkHardRejects(text, t.Title, t.Type, f); rejected {
		return reject(report, cause)
	}

	if regionCause, rejected := m.scoreRegion(report, t.CustomerRegion, f); rejected {
		return reject(report, regionCause)
	}

	if t.Deadline != nil {
		days := int(t.Deadline.Sub(now).Hours() / 24)
		if days < f.MinDeadlineDays {
			return reject(report, domain.RejectDeadline)
		}
	}

	m.scoreKeywords(report, text, f)
	m.scorePrice(report, t.EffectivePrice(), f)
	m.scoreNegativePatterns(report, text)
	m.applyStrictMode(report, f)

	report.Score = clip(report.KeywordScore + report.PriceScore + report.RegionScore + report.NegativePenalty)
	report.Class = classify(report.Score)

	return report
}

func (m *Matcher) checkHardRejects(text, title, tenderType string, f *domain.Filter) (string, bool) {
	for _, kw := range f.ExcludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}

		// Short exclusions need word boundaries; longer ones match as
		// substrings anywhere in the text so inflected forms are caught.
		if len([]rune(kw)) < 4 {
			if containsWord(text, kw) {
				return domain.RejectExclude, true
			}
		} else if strings.Contains(text, kw) {
			return domain.RejectExclude, true
		}
	}

	if len(f.TenderTypes) > 0 {
		if cause, rejected := checkType(text, title, tenderType, f.TenderTypes); rejected {
			return cause, true
		}
	}

	return "", false
}

// checkType rejects tenders whose declared type is outside the filter.
// When the type is unknown the heuristics take over: the feed's type
// metadata is unreliable, notably for goods.
func checkType(text, title, tenderType string, wanted []string) (string, bool) {
	if tenderType != "" {
		for _, w := range wanted {
			if w == tenderType {
				return "", false
			}
		}

		return domain.RejectType, true
	}

	if len(wanted) != 1 {
		return "", false
	}

	switch wanted[0] {
	case domain.TypeGoods:
		if looksLikeServiceOrWork(title) {
			return domain.RejectType, true
		}
	case domain.TypeServices:
		if containsAny(text, goodsIndicators) || containsAny(text, goodsMaterialIndicators) || containsAny(text, workIndicators) {
			return domain.RejectType, true
		}
	case domain.TypeWorks:
		if containsAny(text, goodsIndicators) || containsAny(text, serviceIndicators) {
			return domain.RejectType, true
		}
	}

	return "", false
}

// looksLikeServiceOrWork applies the goods heuristic to a title: an
// opening goods indicator accepts outright, even when a service marker
// appears later; otherwise any service or work mention rejects.
func looksLikeServiceOrWork(title string) bool {
	lower := strings.ToLower(title)

	for _, ind := range goodsStartIndicators {
		if strings.HasPrefix(lower, ind) {
			return false
		}
	}

	return containsAny(lower, serviceWorkIndicators)
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}

func (m *Matcher) scoreRegion(report *domain.ScoreReport, region string, f *domain.Filter) (string, bool) {
	if len(f.Regions) == 0 {
		return "", false
	}

	if region == "" {
		switch m.nullRegionPolicy {
		case NullRegionReject:
			return domain.RejectRegion, true
		case NullRegionPenalise:
			report.RegionScore = nullRegionPenalty
		}

		return "", false
	}

	for _, r := range f.Regions {
		if r == region {
			report.RegionScore = scoreRegionBonus
			return "", false
		}
	}

	return domain.RejectRegion, true
}

func (m *Matcher) scoreKeywords(report *domain.ScoreReport, text string, f *domain.Filter) {
	primary := make(map[string]struct{}, len(f.PrimaryKeywords))
	for _, kw := range f.PrimaryKeywords {
		primary[strings.ToLower(strings.TrimSpace(kw))] = struct{}{}
	}

	direct := make(map[string]struct{}, len(f.Keywords))

	for _, raw := range f.Keywords {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if kw == "" {
			continue
		}

		if _, stop := stopWords[kw]; stop {
			continue
		}

		contribution, matched := scoreKeyword(text, kw)
		if !matched {
			continue
		}

		direct[kw] = struct{}{}

		if _, isPrimary := primary[kw]; isPrimary {
			contribution *= 2
		}

		report.KeywordScore += contribution
		report.MatchedKeywords = append(report.MatchedKeywords, raw)
	}

	for _, raw := range f.SecondaryKeywords {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if kw == "" {
			continue
		}

		if _, stop := stopWords[kw]; stop {
			continue
		}

		contribution, matched := scoreKeyword(text, kw)
		if !matched {
			continue
		}

		report.KeywordScore += contribution
		report.MatchedKeywords = append(report.MatchedKeywords, raw)
	}

	for _, raw := range f.ExpandedKeywords {
		syn := strings.ToLower(strings.TrimSpace(raw))
		if syn == "" || len([]rune(syn)) < shortKeywordRunes {
			continue
		}

		if containsPhrase(text, syn) {
			report.KeywordScore += scoreSynonym
			report.MatchedKeywords = append(report.MatchedKeywords, raw)
		}
	}

	// Built-in synonym groups widen single keywords that did not match
	// directly.
	for _, raw := range f.Keywords {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := direct[kw]; ok {
			continue
		}

		for _, syn := range synonyms[kw] {
			if containsPhrase(text, syn) {
				report.KeywordScore += scoreSynonym
				report.MatchedKeywords = append(report.MatchedKeywords, raw+" ("+syn+")")

				break
			}
		}
	}
}

// scoreKeyword scores one keyword against the normalised text.
func scoreKeyword(text, kw string) (int, bool) {
	runes := []rune(kw)

	if len(runes) < shortKeywordRunes {
		if _, whitelisted := shortKeywordWhitelist[kw]; !whitelisted {
			return 0, false
		}

		// Whitelisted short keywords match in exact mode only, never as
		// a root of a longer word.
		if containsWord(text, kw) {
			return scoreExactKeyword, true
		}

		return 0, false
	}

	if strings.ContainsRune(kw, ' ') {
		if strings.Contains(text, kw) {
			return scoreCompoundPhrase, true
		}

		return 0, false
	}

	if containsWord(text, kw) {
		return scoreExactKeyword, true
	}

	if len(runes) >= rootMinRunes {
		root := string(runes[:max(rootMinRunes, len(runes)-2)])
		if containsWordPrefix(text, root) {
			return scoreRootMatch, true
		}
	}

	return 0, false
}

func (m *Matcher) scorePrice(report *domain.ScoreReport, price float64, f *domain.Filter) {
	if price <= 0 || (f.PriceMin == nil && f.PriceMax == nil) {
		return
	}

	if inBand(price, f.PriceMin, f.PriceMax, 0) {
		report.PriceScore = scorePriceInBand
		return
	}

	if inBand(price, f.PriceMin, f.PriceMax, priceBandTolerance) {
		report.PriceScore = scorePriceNearBand
		return
	}

	report.PriceScore = scorePriceFarBand
}

// inBand reports whether price falls inside the band widened by the
// given tolerance fraction on each bounded edge.
func inBand(price float64, minP, maxP *float64, tolerance float64) bool {
	if minP != nil && price < *minP*(1-tolerance) {
		return false
	}

	if maxP != nil && price > *maxP*(1+tolerance) {
		return false
	}

	return true
}

func (m *Matcher) scoreNegativePatterns(report *domain.ScoreReport, text string) {
	penalty := 0

	for _, pattern := range negativePatterns {
		if strings.Contains(text, pattern) {
			penalty += negativePatternPenalty
			if penalty <= negativePatternCap {
				penalty = negativePatternCap
				break
			}
		}
	}

	report.NegativePenalty = penalty
}

// applyStrictMode damps the positive contributions of broad filters
// where almost nothing matched: ≥8 keywords with under 10% of them
// hitting.
func (m *Matcher) applyStrictMode(report *domain.ScoreReport, f *domain.Filter) {
	if len(f.Keywords) < strictModeKeywordCount {
		return
	}

	matched := 0

	matchedSet := make(map[string]struct{}, len(report.MatchedKeywords))
	for _, kw := range report.MatchedKeywords {
		matchedSet[kw] = struct{}{}
	}

	for _, kw := range f.Keywords {
		if _, ok := matchedSet[kw]; ok {
			matched++
		}
	}

	if float64(matched) < strictModeMatchedRatio*float64(len(f.Keywords)) {
		if report.KeywordScore > 0 {
			report.KeywordScore = int(float64(report.KeywordScore) * strictModeFactor)
		}

		report.StrictApplied = true
	}
}

func reject(report *domain.ScoreReport, cause string) *domain.ScoreReport {
	report.Score = 0
	report.Class = domain.ClassReject
	report.RejectCause = cause

	return report
}

func classify(score int) string {
	switch {
	case score >= 70:
		return domain.ClassAccept
	case score > 0:
		return domain.ClassConsider
	default:
		return domain.ClassReject
	}
}

func clip(score int) int {
	if score > maxScore {
		return maxScore
	}

	if score < 0 {
		return 0
	}

	return score
}
