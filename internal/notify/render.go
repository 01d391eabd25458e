package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// RenderMessage builds the HTML notification body for one matched
// tender.
func RenderMessage(filter *domain.Filter, tender *domain.EnrichedTender, report *domain.ScoreReport) string {
	var sb strings.Builder

	sb.WriteString("🎯 <b>Новый тендер по фильтру «")
	sb.WriteString(html.EscapeString(filter.Name))
	sb.WriteString("»</b>\n\n")

	title := tender.EnrichedTitle
	if title == "" {
		title = tender.Title
	}

	sb.WriteString("<b>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</b>\n")
	sb.WriteString("№ ")
	sb.WriteString(html.EscapeString(tender.ID))
	sb.WriteString("\n\n")

	if price := tender.EffectivePrice(); price > 0 {
		sb.WriteString(fmt.Sprintf("💰 НМЦК: %s ₽\n", formatPrice(price)))
	}

	if tender.CustomerName != "" {
		sb.WriteString("🏢 ")
		sb.WriteString(html.EscapeString(tender.CustomerName))
		sb.WriteString("\n")
	}

	if tender.CustomerRegion != "" {
		sb.WriteString("📍 ")
		sb.WriteString(html.EscapeString(tender.CustomerRegion))
		sb.WriteString("\n")
	}

	if tender.Deadline != nil {
		sb.WriteString("⏰ Подача заявок до ")
		sb.WriteString(tender.Deadline.Format("02.01.2006 15:04"))
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\nРелевантность: %d/100", report.Composite()))

	if len(report.MatchedKeywords) > 0 {
		sb.WriteString("\nСовпало: ")
		sb.WriteString(html.EscapeString(strings.Join(report.MatchedKeywords, ", ")))
	}

	return sb.String()
}

// formatPrice renders 1234567.89 as "1 234 567,89".
func formatPrice(price float64) string {
	whole := int64(price)
	frac := int64((price-float64(whole))*100 + 0.5)

	digits := fmt.Sprintf("%d", whole)

	var sb strings.Builder

	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteRune(' ')
		}

		sb.WriteRune(r)
	}

	if frac > 0 {
		sb.WriteString(fmt.Sprintf(",%02d", frac))
	}

	return sb.String()
}
