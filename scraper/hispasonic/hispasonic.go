package hispasonic

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"synth-market/config"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/services"
	"synth-market/utils"
)

const source = "hispasonic"

// Selector lists are tried in order; the first that matches wins.
var (
	cardSelectors     = []string{"article.classified", "div.anuncio", "li[data-classified-id]", `div[class*="classified-item"]`}
	titleSelectors    = []string{"h2.classified-title", "a.title", ".titulo", "h2", "h3"}
	priceSelectors    = []string{"span.price", ".precio", `[itemprop="price"]`, `[class*="price"]`}
	linkSelectors     = []string{"a.classified-link", `a[href*="/anuncios/"]`, "a[href]"}
	imageSelectors    = []string{"img[data-src]", "img[src]"}
	locationSelectors = []string{".location", ".provincia", `[itemprop="addressLocality"]`}
	dateSelectors     = []string{"time[datetime]"}
	emptySelectors    = []string{".no-results", ".sin-resultados", "div.empty-search"}
)

// Scraper reads the Hispasonic classifieds search page.
type Scraper struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
}

// New creates a Hispasonic source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, client: client, logger: logger}
}

func (s *Scraper) Name() string { return source }

// Search fetches the first result page for query.
func (s *Scraper) Search(ctx context.Context, query string) ([]*models.Listing, error) {
	base := strings.TrimRight(s.cfg.HispasonicURL, "/")
	params := url.Values{}
	params.Set("texto", query)

	body, err := s.client.Get(ctx, source, base+"/anuncios?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	raws, err := ParseListings(body, base)
	if err != nil {
		return nil, err
	}

	listings := make([]*models.Listing, 0, len(raws))
	for _, r := range raws {
		listings = append(listings, services.NormalizeListing(r, s.cfg.DefaultCurrency))
	}
	s.logger.Info("[hispasonic] %q: %d listings", query, len(listings))
	return listings, nil
}

// ParseListings extracts the classified cards of a search page. A page
// with neither cards nor an explicit empty-results marker is reported as
// markup drift.
func ParseListings(body []byte, base string) ([]*models.RawListing, error) {
	doc, err := scraper.ParseHTML(body)
	if err != nil {
		return nil, scraper.Unavailable(source, "parse html", err)
	}

	cards := scraper.FindFirst(doc.Selection, cardSelectors...)
	if cards.Length() == 0 {
		if scraper.Find(doc.Selection, emptySelectors...).Length() > 0 {
			return nil, nil
		}
		return nil, scraper.NoResults(source, "classified card")
	}

	out := make([]*models.RawListing, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		if r := parseCard(card, base); r != nil {
			out = append(out, r)
		}
	})
	return out, nil
}

func parseCard(card *goquery.Selection, base string) *models.RawListing {
	link := scraper.Find(card, linkSelectors...)
	href := scraper.ResolveURL(base, link.AttrOr("href", ""))
	title := scraper.TextOf(scraper.Find(card, titleSelectors...))
	if title == "" {
		title = scraper.TextOf(link)
	}
	if href == "" || title == "" {
		return nil
	}

	id := card.AttrOr("data-classified-id", "")
	if id == "" {
		id = card.AttrOr("data-id", "")
	}
	if id == "" {
		id = uuid.NewString()
	}

	img := scraper.Find(card, imageSelectors...)
	imgURL := img.AttrOr("data-src", "")
	if imgURL == "" {
		imgURL = img.AttrOr("src", "")
	}

	raw := &models.RawListing{
		ID:        id,
		Title:     title,
		PriceText: scraper.TextOf(scraper.Find(card, priceSelectors...)),
		URL:       href,
		ImageURL:  scraper.ResolveURL(base, imgURL),
		Location:  scraper.TextOf(scraper.Find(card, locationSelectors...)),
		Source:    source,
	}
	if ts, err := time.Parse(time.RFC3339, scraper.Find(card, dateSelectors...).AttrOr("datetime", "")); err == nil {
		raw.Timestamp = ts
	}
	return raw
}
