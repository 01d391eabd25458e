package oracle

import (
	"context"
	"strings"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// Mock is a deterministic oracle for tests and local runs: confidence
// is driven by naive token overlap between the tender text and the
// intent.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Assess(_ context.Context, tender *domain.EnrichedTender, intent Intent) Assessment {
	text := strings.ToLower(tender.SearchableText())

	var hits, total int

	for _, token := range strings.Fields(strings.ToLower(intent.Text)) {
		if len([]rune(token)) < 4 {
			continue
		}

		total++

		if strings.Contains(text, token) {
			hits++
		}
	}

	if total == 0 {
		return FromConfidence(50)
	}

	return FromConfidence(hits * 100 / total)
}
