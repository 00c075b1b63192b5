package wallapop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"synth-market/config"
	"synth-market/scraper"
	"synth-market/utils"
)

func TestCardsToListings(t *testing.T) {
	cards := []card{
		{ID: "abc", Title: "Moog Grandmother", Price: "1.100 €", URL: "https://es.wallapop.com/item/moog-grandmother-1", Timestamp: "1714550400000"},
		{Title: "Moog Mother-32", Price: "550€", URL: "https://es.wallapop.com/item/moog-mother-32-2", Location: "Barcelona"},
		{Title: "   ", Price: "10€", URL: "https://es.wallapop.com/item/x"},
		{Title: "No link", Price: "10€"},
	}

	got := CardsToListings(cards, "EUR")
	if len(got) != 2 {
		t.Fatalf("got %d listings, want 2", len(got))
	}
	if got[0].Price != 1100 || got[0].Currency != "EUR" || got[0].Source != "wallapop" {
		t.Errorf("first = %+v", got[0])
	}
	if got[0].Timestamp.IsZero() || got[0].Timestamp.Year() != 2024 {
		t.Errorf("epoch timestamp = %v", got[0].Timestamp)
	}
	if got[1].Price != 550 || got[1].Location != "Barcelona" || !got[1].Timestamp.IsZero() {
		t.Errorf("second = %+v", got[1])
	}
}

func TestParseTimestamp(t *testing.T) {
	if ts := parseTimestamp("2024-05-01T10:00:00Z"); ts.IsZero() {
		t.Error("RFC 3339 not parsed")
	}
	for _, in := range []string{"", "ayer", "-5"} {
		if ts := parseTimestamp(in); !ts.IsZero() {
			t.Errorf("parseTimestamp(%q) = %v, want zero", in, ts)
		}
	}
}

func TestSearchDisabled(t *testing.T) {
	cfg := &config.Config{WallapopBaseURL: "https://es.wallapop.com"}
	client, err := scraper.NewClient(cfg, nil, utils.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	s := New(cfg, client, utils.NewNopLogger())

	_, err = s.Search(context.Background(), "moog")
	if !errors.Is(err, scraper.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if u := s.searchURL("moog grandmother"); !strings.HasSuffix(u, "/app/search?keywords=moog+grandmother") {
		t.Errorf("searchURL = %q", u)
	}
}
