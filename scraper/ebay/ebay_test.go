package ebay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"synth-market/config"
	"synth-market/scraper"
	"synth-market/utils"
)

const fixture = `{
  "total": 3,
  "itemSummaries": [
    {
      "itemId": "v1|1234|0",
      "title": "Korg MS-20 mini monophonic synthesizer",
      "price": {"value": "449.99", "currency": "EUR"},
      "itemWebUrl": "https://www.ebay.es/itm/1234",
      "image": {"imageUrl": "https://i.ebayimg.com/1234.jpg"},
      "condition": "Used",
      "itemLocation": {"city": "Madrid", "country": "ES"},
      "itemCreationDate": "2024-03-01T12:00:00.000Z"
    },
    {
      "itemId": "v1|5678|0",
      "title": "Korg MS-20 original",
      "price": {"value": "1.250,00", "currency": "EUR"},
      "itemWebUrl": "https://www.ebay.es/itm/5678"
    },
    {"itemId": "v1|9|0", "title": "", "itemWebUrl": "https://www.ebay.es/itm/9"}
  ]
}`

func newScraper(t *testing.T, baseURL, token string) *Scraper {
	t.Helper()
	cfg := &config.Config{
		EbayBaseURL:     baseURL,
		EbayToken:       token,
		EbayMarketplace: "EBAY_ES",
		DefaultCurrency: "EUR",
		HTTPTimeout:     5 * time.Second,
	}
	client, err := scraper.NewClient(cfg, nil, utils.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, client, utils.NewNopLogger())
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != searchPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "korg ms-20" {
			t.Errorf("q = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-EBAY-C-MARKETPLACE-ID"); got != "EBAY_ES" {
			t.Errorf("marketplace = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixture))
	}))
	defer srv.Close()

	got, err := newScraper(t, srv.URL, "tok").Search(context.Background(), "korg ms-20")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d listings, want 2", len(got))
	}

	first := got[0]
	if first.Price != 449.99 || first.Currency != "EUR" || first.Source != "ebay" {
		t.Errorf("first = %+v", first)
	}
	if first.Location != "Madrid, ES" {
		t.Errorf("Location = %q", first.Location)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp not parsed")
	}
	if got[1].Price != 1250 {
		t.Errorf("text price fallback = %v, want 1250", got[1].Price)
	}
}

func TestSearchNotConfigured(t *testing.T) {
	_, err := newScraper(t, "http://127.0.0.1:1", "").Search(context.Background(), "x")
	if !errors.Is(err, scraper.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestSearchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newScraper(t, srv.URL, "tok").Search(context.Background(), "x")
	if !errors.Is(err, scraper.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}
