package feed

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
	"github.com/tendersniper/tender-sniper/internal/regions"
)

var (
	numberRe = regexp.MustCompile(`regNumber=([A-Z0-9]+)`)

	purchaseObjectRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<strong>Наименование объекта закупки:\s*</strong>([^<]+)`),
		regexp.MustCompile(`(?i)<strong>Объект закупки:\s*</strong>([^<]+)`),
		regexp.MustCompile(`(?i)<strong>Предмет (?:контракта|закупки):\s*</strong>([^<]+)`),
		regexp.MustCompile(`(?i)<strong>Краткое описание:\s*</strong>([^<]+)`),
	}

	priceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Начальная.{0,40}?цена.{0,40}?контракта[:\s]*(?:</strong>)?\s*([0-9\s  ]+(?:[.,]\d{1,2})?)`),
		regexp.MustCompile(`(?is)НМЦК[:\s]+([0-9\s  ]+(?:[.,]\d{1,2})?)`),
		regexp.MustCompile(`(?is)Начальная.{0,40}?цена[:\s]+([0-9\s  ]+(?:[.,]\d{1,2})?)`),
		regexp.MustCompile(`(?is)цена контракта[:\s]+([0-9\s  ]+(?:[.,]\d{1,2})?)`),
	}

	customerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<strong>Наименование Заказчика:\s*</strong>([^<]+)`),
		regexp.MustCompile(`(?i)<strong>Заказчик:\s*</strong>([^<]+)`),
		regexp.MustCompile(`(?i)Заказчик:\s*([^<\n]+)`),
	}

	innRe = regexp.MustCompile(`(?i)ИНН[:\s]*(\d{10,12})`)

	deadlineRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)(?:Окончание подачи заявок|Дата окончания подачи заявок|Срок подачи заявок)[:\s]*(?:</strong>)?\s*(\d{2}\.\d{2}\.\d{4}(?:\s+\d{2}:\d{2})?)`),
		regexp.MustCompile(`(?is)Дата и время окончания.{0,80}?(\d{2}\.\d{2}\.\d{4}(?:\s+\d{2}:\d{2})?)`),
	}

	lawRe = regexp.MustCompile(`(?i)(44[\s-]?ФЗ|223[\s-]?ФЗ)`)

	spaceCollapseRe = regexp.MustCompile(`\s+`)
)

// parseEntry converts one RSS item into a raw tender. Entries without a
// procurement number or title are skipped.
func parseEntry(item *gofeed.Item, baseURL string) (domain.Tender, bool) {
	t := domain.Tender{
		Title:       cleanText(item.Title),
		Description: cleanText(stripTags(item.Description)),
		URL:         item.Link,
	}

	if t.URL != "" && !strings.HasPrefix(t.URL, "http") {
		t.URL = baseURL + t.URL
	}

	t.ID = extractNumber(item.Link)
	if t.ID == "" || t.Title == "" {
		return t, false
	}

	summary := item.Description

	// The purchase object from the summary beats bureaucratic RSS
	// titles ("Закупка №... в соответствии со статьёй 93").
	if object := extractPurchaseObject(summary); object != "" {
		t.Title = object
	}

	t.Type = extractTenderType(summary)
	t.Price = extractPrice(summary)
	t.CustomerName = extractCustomer(summary)
	t.CustomerINN = extractINN(summary)
	t.LawType = extractLawType(summary)
	t.Deadline = extractDeadline(summary)
	t.PublishedAt = publishedAt(item)

	return t, true
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}

	if item.Published != "" {
		if ts, err := dateparse.ParseAny(item.Published); err == nil {
			return ts
		}
	}

	return time.Time{}
}

func extractNumber(link string) string {
	if m := numberRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}

	return ""
}

// Bureaucratic boilerplate that disqualifies an extracted purchase
// object.
var bureaucraticPhrases = []string{
	"в соответствии с",
	"статьи 93",
	"закона № 44",
	"закона №44",
	"осуществляемая в соответствии",
	"частью 12",
}

func extractPurchaseObject(summary string) string {
	for _, re := range purchaseObjectRes {
		m := re.FindStringSubmatch(summary)
		if m == nil {
			continue
		}

		object := cleanText(m[1])
		if len([]rune(object)) < 10 {
			continue
		}

		lower := strings.ToLower(object)

		valid := true

		for _, phrase := range bureaucraticPhrases {
			if strings.Contains(lower, phrase) {
				valid = false
				break
			}
		}

		if valid {
			return object
		}
	}

	return ""
}

// extractTenderType reads the declared procurement type from the
// summary. Absence is normal: the feed omits it for many entries.
func extractTenderType(summary string) string {
	lower := strings.ToLower(summary)

	switch {
	case strings.Contains(lower, "поставка товар"), strings.Contains(lower, "поставки товар"):
		return domain.TypeGoods
	case strings.Contains(lower, "выполнение работ"):
		return domain.TypeWorks
	case strings.Contains(lower, "оказание услуг"):
		return domain.TypeServices
	default:
		return ""
	}
}

func extractPrice(text string) float64 {
	for _, re := range priceRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		if price, ok := parsePrice(m[1]); ok {
			return price
		}
	}

	return 0
}

// parsePrice normalises "1 234 567,89" style numbers. Values at or
// below 100 are rejected as extraction noise.
func parsePrice(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == ',' || r == '.':
			return '.'
		default:
			return -1
		}
	}, raw)

	// Keep only the last separator as the decimal point.
	if i := strings.LastIndexByte(cleaned, '.'); i >= 0 {
		cleaned = strings.ReplaceAll(cleaned[:i], ".", "") + cleaned[i:]
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price <= 100 {
		return 0, false
	}

	return price, true
}

func extractCustomer(summary string) string {
	for _, re := range customerRes {
		if m := re.FindStringSubmatch(summary); m != nil {
			return cleanText(m[1])
		}
	}

	return ""
}

func extractINN(text string) string {
	if m := innRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	return ""
}

func extractLawType(summary string) string {
	m := lawRe.FindStringSubmatch(summary)
	if m == nil {
		return ""
	}

	if strings.HasPrefix(m[1], "223") {
		return domain.Law223FZ
	}

	return domain.Law44FZ
}

// extractDeadline parses "02.01.2006" and "02.01.2006 15:04" deadline
// stamps. The feed publishes them in Moscow time.
func extractDeadline(text string) *time.Time {
	for _, re := range deadlineRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		if ts, ok := parseRuDate(m[1]); ok {
			return &ts
		}
	}

	return nil
}

var moscowTime = mustLoadMoscow()

func mustLoadMoscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}

	return loc
}

func parseRuDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)

	for _, layout := range []string{"02.01.2006 15:04", "02.01.2006"} {
		if ts, err := time.ParseInLocation(layout, raw, moscowTime); err == nil {
			return ts, true
		}
	}

	return time.Time{}, false
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = spaceCollapseRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

var addressRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Место нахождения[:\s]*([^<\n]+)`),
	regexp.MustCompile(`(?i)Почтовый адрес[:\s]*([^<\n]+)`),
	regexp.MustCompile(`(?i)Адрес[:\s]*([^<\n]+)`),
}

// extractAddressRegion resolves a canonical region from explicit
// address fields; the last fallback of the enrichment region chain.
func extractAddressRegion(text string) (string, bool) {
	for _, re := range addressRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		if region, ok := regions.FindIn(cleanText(m[1])); ok {
			return region, true
		}
	}

	return "", false
}
