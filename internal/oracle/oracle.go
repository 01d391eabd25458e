// Package oracle verifies the semantic relevance of a (tender, filter
// intent) pair with a language model.
//
// Confidence is an integer in [0, 100]. Quota exhaustion and transport
// failures yield UNKNOWN: no confidence, no boost, never cached.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// Decision buckets for an assessment.
type Decision string

const (
	DecisionAccept  Decision = "ACCEPT"
	DecisionRecheck Decision = "RECHECK"
	DecisionReject  Decision = "REJECT"
	DecisionUnknown Decision = "UNKNOWN"
)

// Confidence thresholds and the boost ladder applied to the matcher
// score.
const (
	acceptThreshold = 40
	rejectThreshold = 25
	highBoostCutoff = 60
	highBoost       = 15
	lowBoost        = 10
)

// Intent is the semantic statement of what a filter is looking for. The
// version participates in the cache key, so editing a filter
// invalidates stale confidences.
type Intent struct {
	Text    string
	Version string
}

// Assessment is the oracle verdict. Confidence is nil for UNKNOWN.
type Assessment struct {
	Confidence *int
	Decision   Decision
}

// Oracle assesses semantic relevance. Implementations cache by
// CacheKey and must return UNKNOWN instead of failing.
type Oracle interface {
	Assess(ctx context.Context, tender *domain.EnrichedTender, intent Intent) Assessment
}

// Unknown is the assessment used when the oracle cannot answer: quota
// exhausted, transport failure, circuit open.
func Unknown() Assessment {
	return Assessment{Decision: DecisionUnknown}
}

// FromConfidence buckets a confidence value into a decision.
func FromConfidence(confidence int) Assessment {
	confidence = clampConfidence(confidence)

	decision := DecisionRecheck

	switch {
	case confidence >= acceptThreshold:
		decision = DecisionAccept
	case confidence < rejectThreshold:
		decision = DecisionReject
	}

	return Assessment{Confidence: &confidence, Decision: decision}
}

// Boost returns the score boost the pipeline adds for this assessment.
// UNKNOWN and sub-threshold confidences add nothing.
func (a Assessment) Boost() int {
	if a.Confidence == nil {
		return 0
	}

	switch {
	case *a.Confidence >= highBoostCutoff:
		return highBoost
	case *a.Confidence >= acceptThreshold:
		return lowBoost
	default:
		return 0
	}
}

// CacheKey derives the cache key for a (tender, intent version) pair.
func CacheKey(tenderID, intentVersion string) string {
	sum := sha256.Sum256([]byte(tenderID + "|" + intentVersion))
	return hex.EncodeToString(sum[:16])
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}

	if c > 100 {
		return 100
	}

	return c
}
