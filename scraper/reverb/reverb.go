package reverb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
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
	source   = "reverb"
	pageSize = 50
)

var itemIDPattern = regexp.MustCompile(`/item/(\d+)`)

// Scraper talks to the Reverb API. Besides listing search it fetches
// single listings by URL, their catalog product pages and price guides.
type Scraper struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
}

// New creates a Reverb source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, client: client, logger: logger}
}

func (s *Scraper) Name() string { return source }

type money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type link struct {
	Href string `json:"href"`
}

type photo struct {
	Links struct {
		Full      link `json:"full"`
		LargeCrop link `json:"large_crop"`
	} `json:"_links"`
}

type listing struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        string `json:"year"`
	Description string `json:"description"`
	Price       money  `json:"price"`
	Condition   struct {
		DisplayName string `json:"display_name"`
	} `json:"condition"`
	Shop struct {
		Address struct {
			Locality    string `json:"locality"`
			CountryCode string `json:"country_code"`
		} `json:"address"`
	} `json:"shop"`
	Photos         []photo        `json:"photos"`
	Specifications []specField    `json:"specifications"`
	Attributes     []attributeRaw `json:"attributes"`
	PublishedAt    string         `json:"published_at"`
	CreatedAt      string         `json:"created_at"`
	Links          struct {
		Web                link `json:"web"`
		ComparisonShopping link `json:"comparison_shopping"`
	} `json:"_links"`
}

type specField struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}

type attributeRaw struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type searchResponse struct {
	Total    int       `json:"total"`
	Listings []listing `json:"listings"`
}

func (s *Scraper) headers() http.Header {
	h := http.Header{}
	h.Set("Accept-Version", "3.0")
	if s.cfg.ReverbToken != "" {
		h.Set("Authorization", "Bearer "+s.cfg.ReverbToken)
	}
	return h
}

func (s *Scraper) api(path string, params url.Values) string {
	u := strings.TrimRight(s.cfg.ReverbBaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Search returns the live listings matching query.
func (s *Scraper) Search(ctx context.Context, query string) ([]*models.Listing, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(pageSize))

	var resp searchResponse
	if err := s.client.GetJSON(ctx, source, s.api("/api/listings", params), s.headers(), &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Listing, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		if l.Links.Web.Href == "" || l.Title == "" {
			continue
		}
		out = append(out, services.NormalizeListing(toRaw(l), s.cfg.DefaultCurrency))
	}

	s.logger.Info("[reverb] %q: %d of %d listings", query, len(out), resp.Total)
	return out, nil
}

func toRaw(l listing) *models.RawListing {
	raw := &models.RawListing{
		ID:           strconv.FormatInt(l.ID, 10),
		Title:        l.Title,
		CurrencyHint: l.Price.Currency,
		URL:          l.Links.Web.Href,
		Condition:    l.Condition.DisplayName,
		Location:     strings.Trim(l.Shop.Address.Locality+", "+l.Shop.Address.CountryCode, ", "),
		Source:       source,
	}
	if v, err := strconv.ParseFloat(l.Price.Amount, 64); err == nil {
		raw.StructuredPrice = &v
	} else {
		raw.PriceText = l.Price.Display
	}
	if imgs := photoURLs(l.Photos); len(imgs) > 0 {
		raw.ImageURL = imgs[0]
	}
	for _, ts := range []string{l.PublishedAt, l.CreatedAt} {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			raw.Timestamp = t
			break
		}
	}
	return raw
}

func photoURLs(photos []photo) []string {
	var out []string
	for _, p := range photos {
		href := p.Links.Full.Href
		if href == "" {
			href = p.Links.LargeCrop.Href
		}
		if href != "" {
			out = append(out, href)
		}
	}
	return out
}

func toSpecs(fields []specField) []models.SpecRecord {
	out := make([]models.SpecRecord, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		category := f.Category
		if category == "" {
			category = "General"
		}
		out = append(out, models.SpecRecord{Category: category, Label: f.Name, Value: f.Value})
	}
	return out
}

// ListingID extracts the numeric listing id from a reverb.com item URL.
func ListingID(rawURL string) (string, bool) {
	m := itemIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FetchListing loads a single listing by its public URL.
func (s *Scraper) FetchListing(ctx context.Context, listingURL string) (*models.ListingDetail, error) {
	id, ok := ListingID(listingURL)
	if !ok {
		return nil, fmt.Errorf("%s: %w: not a listing url: %s", source, scraper.ErrSourceUnavailable, listingURL)
	}

	var l listing
	if err := s.client.GetJSON(ctx, source, s.api("/api/listings/"+id, nil), s.headers(), &l); err != nil {
		return nil, err
	}

	detail := &models.ListingDetail{
		Source:           source,
		Title:            l.Title,
		Brand:            l.Make,
		Model:            l.Model,
		Year:             l.Year,
		Description:      scraper.StripTags(l.Description),
		Images:           photoURLs(l.Photos),
		Currency:         services.NormalizeCurrency(l.Price.Currency),
		Specs:            toSpecs(l.Specifications),
		ParentProductURL: l.Links.ComparisonShopping.Href,
	}
	if v, err := strconv.ParseFloat(l.Price.Amount, 64); err == nil {
		detail.Price = v
	} else {
		p := services.ParsePrice(l.Price.Display, detail.Currency)
		detail.Price, detail.Currency = p.Amount, p.Currency
	}
	for _, a := range l.Attributes {
		detail.Attributes = append(detail.Attributes, models.Attribute{Name: a.Name, Value: a.Value})
	}
	return detail, nil
}

type productResponse struct {
	Title          string      `json:"title"`
	Make           string      `json:"make"`
	Model          string      `json:"model"`
	Description    string      `json:"description"`
	Photos         []photo     `json:"photos"`
	Specifications []specField `json:"specifications"`
}

// FetchProductSpecs loads the catalog product a listing links to.
func (s *Scraper) FetchProductSpecs(ctx context.Context, productURL string) (*models.SpecResult, error) {
	var p productResponse
	if err := s.client.GetJSON(ctx, source, productURL, s.headers(), &p); err != nil {
		return nil, err
	}
	return &models.SpecResult{
		Source:      source,
		Brand:       p.Make,
		Model:       p.Model,
		Description: scraper.StripTags(p.Description),
		Images:      photoURLs(p.Photos),
		Specs:       toSpecs(p.Specifications),
	}, nil
}

type priceGuideResponse struct {
	PriceGuides []struct {
		Title          string `json:"title"`
		EstimatedValue struct {
			PriceLow  money `json:"price_low"`
			PriceHigh money `json:"price_high"`
		} `json:"estimated_value"`
	} `json:"price_guides"`
}

// GetPriceGuide returns the transaction-based range for query, or nil
// when the guide has no entry.
func (s *Scraper) GetPriceGuide(ctx context.Context, query string) (*models.PriceGuideEntry, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp priceGuideResponse
	if err := s.client.GetJSON(ctx, source, s.api("/api/priceguide", params), s.headers(), &resp); err != nil {
		return nil, err
	}
	if len(resp.PriceGuides) == 0 {
		return nil, nil
	}

	ev := resp.PriceGuides[0].EstimatedValue
	low, _ := strconv.ParseFloat(ev.PriceLow.Amount, 64)
	high, _ := strconv.ParseFloat(ev.PriceHigh.Amount, 64)
	return &models.PriceGuideEntry{
		Min:      low,
		Max:      high,
		Currency: services.NormalizeCurrency(ev.PriceLow.Currency),
	}, nil
}
