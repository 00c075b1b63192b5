package vintagesynth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"synth-market/config"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/utils"
)

const source = "vintagesynth"

var (
	descriptionSelectors = []string{"div.field-name-body", "div.synth-description", "article.node", "main"}
	specBlockSelectors   = []string{"div.field-name-field-specifications", "div.specs", "table.specs", "ul.specs"}
	imageSelectors       = []string{"img.synth-image", `div.field-name-field-image img`, `img[typeof="foaf:Image"]`, `img[src*="/files/"]`}

	nonSlug         = regexp.MustCompile(`[^a-z0-9]+`)
	letterDigitEdge = regexp.MustCompile(`([a-z])([0-9])`)
)

// Client reads instrument pages from a community synth database. Page
// paths follow the site's own naming, which often differs from the
// marketplace name ("ms20" vs "ms-20"), so several spellings are tried.
type Client struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
	retry  *utils.VariantRetry
}

// New creates a community spec database source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: client,
		logger: logger,
		retry:  &utils.VariantRetry{Logger: logger},
	}
}

func (c *Client) Name() string { return source }

// Slug lower-cases s and joins its alphanumeric runs with hyphens.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ModelVariants lists the page slugs to try for a model, most likely
// first. The brand-prefixed form is always last.
func ModelVariants(brand, model string) []string {
	base := Slug(model)
	candidates := []string{
		base,
		strings.ReplaceAll(base, "-", ""),
		letterDigitEdge.ReplaceAllString(strings.ReplaceAll(base, "-", ""), "$1-$2"),
		Slug(brand + " " + model),
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, v := range candidates {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// FindSpecs returns nil, nil when no spelling of the model has a page.
func (c *Client) FindSpecs(ctx context.Context, brand, model string) (*models.SpecResult, error) {
	base := strings.TrimRight(c.cfg.VintageSynthBaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%s: %w", source, scraper.ErrNotConfigured)
	}
	brandSlug := Slug(brand)

	var result *models.SpecResult
	_, err := c.retry.TryVariants("vintagesynth lookup", ModelVariants(brand, model), func(variant string) error {
		pageURL := base + "/" + brandSlug + "/" + variant
		body, err := c.client.Get(ctx, source, pageURL, nil)
		if err != nil {
			var httpErr *scraper.HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
				return utils.ErrNoMatch
			}
			return err
		}

		r, err := ParsePage(body, base)
		if err != nil {
			return err
		}
		if r.Empty() {
			return utils.ErrNoMatch
		}
		result = r
		return nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrNoMatch) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

// ParsePage extracts description, spec list and images from an
// instrument page.
func ParsePage(body []byte, base string) (*models.SpecResult, error) {
	doc, err := scraper.ParseHTML(body)
	if err != nil {
		return nil, scraper.Unavailable(source, "parse html", err)
	}

	result := &models.SpecResult{Source: source}

	if block := scraper.Find(doc.Selection, specBlockSelectors...); block.Length() > 0 {
		result.Specs = parseSpecBlock(block)
		result.RawText = scraper.TextOf(block)
	}

	if desc := scraper.Find(doc.Selection, descriptionSelectors...); desc.Length() > 0 {
		var paras []string
		desc.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := scraper.TextOf(p); len(t) > 20 {
				paras = append(paras, t)
			}
		})
		result.Description = strings.Join(paras, " ")
	}

	scraper.FindFirst(doc.Selection, imageSelectors...).Each(func(_ int, img *goquery.Selection) {
		if src := scraper.ResolveURL(base, img.AttrOr("src", "")); src != "" {
			result.Images = append(result.Images, src)
		}
	})
	return result, nil
}

// parseSpecBlock reads "<li><strong>Polyphony -</strong> 8 voices</li>"
// items or label/value table rows.
func parseSpecBlock(block *goquery.Selection) []models.SpecRecord {
	var out []models.SpecRecord
	add := func(label, value string) {
		label = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(label), ":-"))
		value = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(value), ":-"))
		if label != "" && value != "" {
			out = append(out, models.SpecRecord{Category: "Specifications", Label: label, Value: value})
		}
	}

	block.Find("li").Each(func(_ int, li *goquery.Selection) {
		full := scraper.TextOf(li)
		if strong := li.Find("strong, b").First(); strong.Length() > 0 {
			label := scraper.TextOf(strong)
			add(label, strings.TrimPrefix(full, label))
			return
		}
		if name, value, ok := strings.Cut(full, ":"); ok {
			add(name, value)
		} else if name, value, ok := strings.Cut(full, " - "); ok {
			add(name, value)
		}
	})

	block.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() >= 2 {
			add(scraper.TextOf(cells.Eq(0)), scraper.TextOf(cells.Eq(1)))
		}
	})
	return out
}
