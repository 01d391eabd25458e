// Package domain holds the core entities shared by the matching and
// delivery pipeline: tenders, filters, subscribers and score reports.
package domain

import "time"

// Law regime of a procurement.
const (
	Law44FZ  = "44-FZ"
	Law223FZ = "223-FZ"
	LawAny   = "any"
)

// Procurement types a filter may select.
const (
	TypeGoods    = "goods"
	TypeServices = "services"
	TypeWorks    = "works"
)

// Subscription tiers.
const (
	TierTrial   = "trial"
	TierBasic   = "basic"
	TierPremium = "premium"
)

// Tender is a raw procurement record as surfaced by the feed.
type Tender struct {
	ID           string
	Title        string
	Description  string
	CustomerName string
	CustomerINN  string
	Price        float64
	Type         string
	LawType      string
	PublishedAt  time.Time
	Deadline     *time.Time
	RegionText   string
	URL          string
}

// EnrichedTender is a Tender extended with fields extracted from the
// detail page. Enrichment is best-effort: missing fields stay nil/zero.
type EnrichedTender struct {
	Tender
	EnrichedTitle   string
	PrecisePrice    float64
	CustomerRegion  string // canonical federal subject or empty
	Enriched        bool
	PageFingerprint string
}

// SearchableText returns the combined text the matcher scores against.
func (t *EnrichedTender) SearchableText() string {
	text := t.Title
	if t.Description != "" {
		text += " " + t.Description
	}
	if t.EnrichedTitle != "" && t.EnrichedTitle != t.Title {
		text += " " + t.EnrichedTitle
	}
	return text
}

// EffectivePrice prefers the precise detail-page price over the coarse
// feed one.
func (t *EnrichedTender) EffectivePrice() float64 {
	if t.PrecisePrice > 0 {
		return t.PrecisePrice
	}
	return t.Price
}

// Subscriber is the owner of one or more filters.
type Subscriber struct {
	ID              int64
	ChatID          int64
	Tier            string
	QuietStart      string // "22:00", empty disables quiet hours
	QuietEnd        string // "09:00"
	Timezone        string // IANA zone, e.g. "Europe/Moscow"
	DeliveryBlocked bool
	Data            []byte // migration compatibility pouch, not read by the pipeline
}

// Filter describes the tenders one subscriber cares about.
type Filter struct {
	ID                int64
	SubscriberID      int64
	Name              string
	IsActive          bool
	DeletedAt         *time.Time
	Keywords          []string
	ExcludeKeywords   []string
	PrimaryKeywords   []string
	SecondaryKeywords []string
	ExpandedKeywords  []string
	Regions           []string // canonical names; empty means any
	PriceMin          *float64
	PriceMax          *float64
	TenderTypes       []string
	LawType           string
	AIIntent          string
	AIIntentVersion   string
	MinDeadlineDays   int
	NotifyChatIDs     []int64
}

// Classification of a scored tender.
const (
	ClassReject   = "reject"
	ClassConsider = "consider"
	ClassAccept   = "accept"
)

// Reject causes recorded on a ScoreReport.
const (
	RejectExclude  = "exclude_keyword"
	RejectRegion   = "region"
	RejectType     = "type"
	RejectDeadline = "deadline"
	RejectScore    = "score"
)

// ScoreReport is the deterministic scoring outcome for one
// (tender, filter) pair, plus the oracle confidence when consulted.
type ScoreReport struct {
	Score            int
	Class            string
	RejectCause      string
	MatchedKeywords  []string
	KeywordScore     int
	PriceScore       int
	RegionScore      int
	NegativePenalty  int
	StrictApplied    bool
	OracleConfidence *int
	Boost            int
}

// Composite is the matcher score plus the oracle boost, clipped to 100.
func (r *ScoreReport) Composite() int {
	c := r.Score + r.Boost
	if c > 100 {
		return 100
	}
	return c
}
