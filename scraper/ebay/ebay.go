package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"synth-market/config"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/services"
	"synth-market/utils"
)

const (
	source     = "ebay"
	searchPath = "/buy/browse/v1/item_summary/search"
	pageSize   = 50
)

// Scraper searches eBay through the Browse API.
type Scraper struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
}

// New creates an eBay source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, client: client, logger: logger}
}

func (s *Scraper) Name() string { return source }

type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
	Price  struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	ItemWebURL string `json:"itemWebUrl"`
	Image      struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	Condition    string `json:"condition"`
	ItemLocation struct {
		City    string `json:"city"`
		Country string `json:"country"`
	} `json:"itemLocation"`
	ItemCreationDate string `json:"itemCreationDate"`
}

// Search queries the Browse API for query.
func (s *Scraper) Search(ctx context.Context, query string) ([]*models.Listing, error) {
	if s.cfg.EbayToken == "" {
		return nil, fmt.Errorf("%s: %w", source, scraper.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(pageSize))
	endpoint := strings.TrimRight(s.cfg.EbayBaseURL, "/") + searchPath + "?" + params.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+s.cfg.EbayToken)
	headers.Set("X-EBAY-C-MARKETPLACE-ID", s.cfg.EbayMarketplace)

	var resp searchResponse
	if err := s.client.GetJSON(ctx, source, endpoint, headers, &resp); err != nil {
		return nil, err
	}

	listings := make([]*models.Listing, 0, len(resp.ItemSummaries))
	for _, item := range resp.ItemSummaries {
		if item.ItemWebURL == "" || item.Title == "" {
			continue
		}
		listings = append(listings, services.NormalizeListing(toRaw(item), s.cfg.DefaultCurrency))
	}

	s.logger.Info("[ebay] %q: %d of %d items", query, len(listings), resp.Total)
	return listings, nil
}

func toRaw(item itemSummary) *models.RawListing {
	raw := &models.RawListing{
		ID:           item.ItemID,
		Title:        item.Title,
		CurrencyHint: item.Price.Currency,
		URL:          item.ItemWebURL,
		ImageURL:     item.Image.ImageURL,
		Condition:    item.Condition,
		Location:     joinNonEmpty(", ", item.ItemLocation.City, item.ItemLocation.Country),
		Source:       source,
	}
	if v, err := strconv.ParseFloat(item.Price.Value, 64); err == nil {
		raw.StructuredPrice = &v
	} else {
		raw.PriceText = item.Price.Value
	}
	if ts, err := time.Parse(time.RFC3339, item.ItemCreationDate); err == nil {
		raw.Timestamp = ts
	}
	return raw
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
