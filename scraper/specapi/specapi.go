package specapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"synth-market/config"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/utils"
)

const source = "specapi"

// Client looks instruments up in a structured spec API keyed by brand
// and model.
type Client struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
}

// New creates a spec API source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Client {
	return &Client{cfg: cfg, client: client, logger: logger}
}

func (c *Client) Name() string { return source }

type specResponse struct {
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Type        string   `json:"type"`
	Year        string   `json:"year"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Specs       []struct {
		Category string `json:"category"`
		Label    string `json:"label"`
		Value    string `json:"value"`
	} `json:"specs"`
}

// FindSpecs returns nil, nil when the API does not know the instrument.
func (c *Client) FindSpecs(ctx context.Context, brand, model string) (*models.SpecResult, error) {
	if c.cfg.SpecAPIBaseURL == "" || c.cfg.SpecAPIKey == "" {
		return nil, fmt.Errorf("%s: %w", source, scraper.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("brand", brand)
	params.Set("model", model)
	endpoint := strings.TrimRight(c.cfg.SpecAPIBaseURL, "/") + "/v1/specs?" + params.Encode()

	headers := http.Header{}
	headers.Set("X-API-Key", c.cfg.SpecAPIKey)

	var resp specResponse
	if err := c.client.GetJSON(ctx, source, endpoint, headers, &resp); err != nil {
		var httpErr *scraper.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			c.logger.Debug("[specapi] %s %s not found", brand, model)
			return nil, nil
		}
		return nil, err
	}

	result := &models.SpecResult{
		Source:      source,
		Brand:       resp.Brand,
		Model:       resp.Model,
		Type:        resp.Type,
		Year:        resp.Year,
		Description: resp.Description,
		Images:      resp.Images,
	}
	for _, s := range resp.Specs {
		if s.Label == "" || s.Value == "" {
			continue
		}
		result.Specs = append(result.Specs, models.SpecRecord{Category: s.Category, Label: s.Label, Value: s.Value})
	}
	return result, nil
}
