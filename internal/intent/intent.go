// Package intent derives the oracle intent of a filter from its
// matching inputs.
//
// The version is a stable hash of everything that affects matching, so
// any edit to keywords, regions, price band or types produces a new
// version and invalidates cached oracle confidences.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
	"github.com/tendersniper/tender-sniper/internal/oracle"
)

// Derive builds the intent for a filter. When the stored version still
// matches the current inputs, the stored text is kept; otherwise a
// fresh deterministic intent is composed.
func Derive(f *domain.Filter) oracle.Intent {
	version := Version(f)

	if f.AIIntent != "" && f.AIIntentVersion == version {
		return oracle.Intent{Text: f.AIIntent, Version: version}
	}

	return oracle.Intent{Text: Compose(f), Version: version}
}

// Stale reports whether the stored intent no longer matches the
// filter's matching inputs and needs regeneration.
func Stale(f *domain.Filter) bool {
	return f.AIIntentVersion != Version(f)
}

// Version hashes the matching inputs of a filter.
func Version(f *domain.Filter) string {
	var sb strings.Builder

	writeList := func(values []string) {
		sb.WriteString(strings.Join(values, ","))
		sb.WriteString(";")
	}

	writeList(f.Keywords)
	writeList(f.PrimaryKeywords)
	writeList(f.SecondaryKeywords)
	writeList(f.ExcludeKeywords)
	writeList(f.Regions)
	writeList(f.TenderTypes)
	sb.WriteString(f.LawType)
	sb.WriteString(";")

	if f.PriceMin != nil {
		fmt.Fprintf(&sb, "%.0f", *f.PriceMin)
	}

	sb.WriteString("-")

	if f.PriceMax != nil {
		fmt.Fprintf(&sb, "%.0f", *f.PriceMax)
	}

	sum := sha256.Sum256([]byte(sb.String()))

	return hex.EncodeToString(sum[:8])
}

// Compose builds a human-readable intent statement from the filter
// inputs. Used as the fallback when no AI-generated intent is stored.
func Compose(f *domain.Filter) string {
	var parts []string

	if len(f.Keywords) > 0 {
		parts = append(parts, "Ищу закупки: "+strings.Join(f.Keywords, ", "))
	}

	if len(f.TenderTypes) > 0 {
		parts = append(parts, "тип: "+strings.Join(f.TenderTypes, "/"))
	}

	if len(f.Regions) > 0 {
		parts = append(parts, "регионы: "+strings.Join(f.Regions, ", "))
	}

	if f.PriceMin != nil || f.PriceMax != nil {
		band := "цена: "
		if f.PriceMin != nil {
			band += fmt.Sprintf("от %.0f ", *f.PriceMin)
		}

		if f.PriceMax != nil {
			band += fmt.Sprintf("до %.0f", *f.PriceMax)
		}

		parts = append(parts, strings.TrimSpace(band))
	}

	if len(f.ExcludeKeywords) > 0 {
		parts = append(parts, "исключая: "+strings.Join(f.ExcludeKeywords, ", "))
	}

	return strings.Join(parts, "; ")
}
