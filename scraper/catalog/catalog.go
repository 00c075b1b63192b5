package catalog

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"synth-market/config"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/utils"
)

const source = "catalog"

// Client queries the product catalog database.
type Client struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
}

// New creates a product catalog source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Client {
	return &Client{cfg: cfg, client: client, logger: logger}
}

func (c *Client) Name() string { return source }

type product struct {
	Brand           string                       `json:"brand"`
	Model           string                       `json:"model"`
	Category        string                       `json:"category"`
	Description     string                       `json:"description"`
	ProductionYears string                       `json:"production_years"`
	Image           string                       `json:"image"`
	Specs           map[string]map[string]string `json:"specs"`
}

type productsResponse struct {
	Products []product `json:"products"`
}

// FindSpecs returns the best matching product, or nil when there is none.
func (c *Client) FindSpecs(ctx context.Context, brand, model string) (*models.SpecResult, error) {
	if c.cfg.CatalogBaseURL == "" {
		return nil, fmt.Errorf("%s: %w", source, scraper.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("brand", brand)
	params.Set("model", model)
	endpoint := strings.TrimRight(c.cfg.CatalogBaseURL, "/") + "/products?" + params.Encode()

	var resp productsResponse
	if err := c.client.GetJSON(ctx, source, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	p := bestMatch(resp.Products, model)
	if p == nil {
		c.logger.Debug("[catalog] no product for %s %s", brand, model)
		return nil, nil
	}

	result := &models.SpecResult{
		Source:      source,
		Brand:       p.Brand,
		Model:       p.Model,
		Type:        p.Category,
		Year:        p.ProductionYears,
		Description: scraper.StripTags(p.Description),
	}
	if p.Image != "" {
		result.Images = []string{p.Image}
	}
	result.Specs = flattenSpecs(p.Specs)
	return result, nil
}

// bestMatch prefers the product whose model equals the query once
// punctuation is ignored, then the first result.
func bestMatch(products []product, model string) *product {
	if len(products) == 0 {
		return nil
	}
	want := alnum(model)
	for i := range products {
		if alnum(products[i].Model) == want {
			return &products[i]
		}
	}
	return &products[0]
}

// flattenSpecs turns {"Oscillators": {"Waveforms": "saw"}} into records,
// sorted so output does not depend on map order.
func flattenSpecs(groups map[string]map[string]string) []models.SpecRecord {
	var out []models.SpecRecord
	for _, category := range sortedKeys(groups) {
		fields := groups[category]
		for _, label := range sortedKeys(fields) {
			if v := strings.TrimSpace(fields[label]); v != "" {
				out = append(out, models.SpecRecord{Category: category, Label: label, Value: v})
			}
		}
	}
	return out
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
