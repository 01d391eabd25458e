package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

func rssDocument(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Поиск</title>` + items + `</channel></rss>`
}

func rssItem(number, title, summary string) string {
	return fmt.Sprintf(`<item>
<title>%s</title>
<link>https://zakupki.gov.ru/epz/order/notice/view.html?regNumber=%s</link>
<description><![CDATA[%s]]></description>
<pubDate>Tue, 04 Aug 2026 12:00:00 +0300</pubDate>
</item>`, title, number, summary)
}

func newTestSource(t *testing.T, handler http.Handler) (*ZakupkiSource, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	source := NewZakupkiSource(Options{
		BaseURL:            srv.URL,
		HTTPTimeout:        2 * time.Second,
		MinRequestInterval: time.Millisecond,
	}, &logger)

	return source, srv
}

func TestPollParsesAndDeduplicates(t *testing.T) {
	doc := rssDocument(
		rssItem("A1", "Поставка ноутбуков", `<strong>Размещение заказа: </strong>Поставка товаров`) +
			rssItem("A1", "Поставка ноутбуков", ``) +
			rssItem("B2", "Оказание услуг уборки", `<strong>Размещение заказа: </strong>Оказание услуг`),
	)

	var gotQuery string

	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(doc))
	}))

	minPrice := 100000.0
	tenders, err := source.Poll(context.Background(), Query{
		Keywords: []string{"ноутбук"},
		PriceMin: &minPrice,
		LawType:  domain.Law44FZ,
	})
	require.NoError(t, err)

	require.Len(t, tenders, 2)
	assert.Equal(t, "A1", tenders[0].ID)
	assert.Equal(t, "B2", tenders[1].ID)

	assert.Contains(t, gotQuery, "searchString=%D0%BD%D0%BE%D1%83%D1%82%D0%B1%D1%83%D0%BA")
	assert.Contains(t, gotQuery, "fz44=on")
	assert.NotContains(t, gotQuery, "fz223=on")
	assert.Contains(t, gotQuery, "priceFromGeneral=100000")
}

func TestPollFiltersDeclaredTypeClientSide(t *testing.T) {
	doc := rssDocument(
		rssItem("A1", "Поставка ноутбуков", `<strong>Размещение заказа: </strong>Поставка товаров`) +
			rssItem("B2", "Оказание услуг уборки помещений", `<strong>Размещение заказа: </strong>Оказание услуг`),
	)

	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(doc))
	}))

	tenders, err := source.Poll(context.Background(), Query{
		Keywords:    []string{"ноутбук"},
		TenderTypes: []string{domain.TypeGoods},
	})
	require.NoError(t, err)

	require.Len(t, tenders, 1)
	assert.Equal(t, "A1", tenders[0].ID)
}

func TestPollGoodsHaveNoServerSideTypeFilter(t *testing.T) {
	var gotQuery string

	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(rssDocument("")))
	}))

	_, err := source.Poll(context.Background(), Query{
		Keywords:    []string{"ноутбук"},
		TenderTypes: []string{domain.TypeGoods},
	})
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "purchaseObjectTypeCode")

	_, err = source.Poll(context.Background(), Query{
		Keywords:    []string{"уборка"},
		TenderTypes: []string{domain.TypeServices},
	})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "purchaseObjectTypeCode=3")
}

func TestPollSurvivesServerErrors(t *testing.T) {
	calls := 0

	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		_, _ = w.Write([]byte(rssDocument(rssItem("C3", "Поставка бумаги для офиса", ""))))
	}))

	tenders, err := source.Poll(context.Background(), Query{Keywords: []string{"первый", "второй"}})
	require.NoError(t, err)
	require.Len(t, tenders, 1)
	assert.Equal(t, "C3", tenders[0].ID)
}

func TestPollRespectsMaxResults(t *testing.T) {
	var items string
	for i := 0; i < 10; i++ {
		items += rssItem(fmt.Sprintf("N%d", i), fmt.Sprintf("Поставка позиции %d", i), "")
	}

	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssDocument(items)))
	}))

	tenders, err := source.Poll(context.Background(), Query{Keywords: []string{"позиция"}, MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, tenders, 3)
}
