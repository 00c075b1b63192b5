package wallapop

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"synth-market/config"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/services"
	"synth-market/utils"
)

const (
	source      = "wallapop"
	pageTimeout = 60 * time.Second
	maxCards    = 60
)

// Scraper renders the Wallapop search page in headless Chrome. The site
// has no public API and builds its result grid client-side.
type Scraper struct {
	cfg    *config.Config
	client *scraper.Client
	logger *utils.Logger
}

// New creates a Wallapop source.
func New(cfg *config.Config, client *scraper.Client, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, client: client, logger: logger}
}

func (s *Scraper) Name() string { return source }

// card is what the in-page extractor returns for one result tile.
type card struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	URL       string `json:"url"`
	Image     string `json:"image"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
}

// extractScript walks several card layouts and returns the first one
// that yields anything.
const extractScript = `
(function(limit) {
	var results = [];
	var seen = {};

	var cardSelectors = [
		'a[class*="ItemCardList__item"]',
		'tsl-public-item-card',
		'a[href*="/item/"]'
	];

	var cards = [];
	for (var si = 0; si < cardSelectors.length; si++) {
		cards = document.querySelectorAll(cardSelectors[si]);
		if (cards.length > 0) break;
	}

	for (var i = 0; i < cards.length && results.length < limit; i++) {
		var c = cards[i];
		var link = c.tagName === 'A' ? c : c.querySelector('a[href*="/item/"]');
		var href = link ? link.href : '';
		if (!href || seen[href]) continue;
		seen[href] = true;

		var titleEl = c.querySelector('[class*="ItemCard__title"]') ||
		              c.querySelector('p[class*="title"]') ||
		              c.querySelector('h3');
		var priceEl = c.querySelector('[class*="ItemCard__price"]') ||
		              c.querySelector('span[class*="price"]');
		var imgEl = c.querySelector('img');
		var locEl = c.querySelector('[class*="ItemCard__location"]');
		var lines = (c.innerText || '').split('\n').map(function(l){return l.trim();}).filter(Boolean);

		results.push({
			id:        c.getAttribute('data-item-id') || '',
			title:     titleEl ? titleEl.innerText.trim() : (lines.find(function(l){return !l.match(/€/);}) || ''),
			price:     priceEl ? priceEl.innerText.trim() : (lines.find(function(l){return l.match(/€/);}) || ''),
			url:       href,
			image:     imgEl ? (imgEl.getAttribute('src') || '') : '',
			location:  locEl ? locEl.innerText.trim() : '',
			timestamp: c.getAttribute('data-modified') || ''
		});
	}
	return results;
})(%d)
`

// Search loads the search page for query and extracts the result tiles.
func (s *Scraper) Search(ctx context.Context, query string) ([]*models.Listing, error) {
	if !s.cfg.WallapopEnabled {
		return nil, fmt.Errorf("%s: %w", source, scraper.ErrNotConfigured)
	}

	chromeBin := s.findChromeBinary()
	if chromeBin == "" {
		return nil, fmt.Errorf("%s: %w: no chrome binary found", source, scraper.ErrSourceUnavailable)
	}
	s.logger.Debug("[wallapop] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.client.UserAgent()),
		chromedp.ExecPath(chromeBin),
	)
	if proxy := s.client.ProxyURL(); proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, pageTimeout)
	defer cancelTimeout()

	var cards []card
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.searchURL(query)),
		chromedp.Sleep(5*time.Second),

		// Scroll to trigger lazy loading
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(1500*time.Millisecond),

		chromedp.Evaluate(fmt.Sprintf(extractScript, maxCards), &cards),
	)
	if err != nil {
		return nil, scraper.Unavailable(source, "render search page", err)
	}

	listings := CardsToListings(cards, s.cfg.DefaultCurrency)
	s.logger.Info("[wallapop] %q: %d cards, %d listings", query, len(cards), len(listings))
	return listings, nil
}

func (s *Scraper) searchURL(query string) string {
	params := url.Values{}
	params.Set("keywords", query)
	return strings.TrimRight(s.cfg.WallapopBaseURL, "/") + "/app/search?" + params.Encode()
}

// CardsToListings normalises extracted tiles, dropping the ones without a
// link or title.
func CardsToListings(cards []card, fallbackCurrency string) []*models.Listing {
	out := make([]*models.Listing, 0, len(cards))
	for _, c := range cards {
		if c.URL == "" || strings.TrimSpace(c.Title) == "" {
			continue
		}
		raw := &models.RawListing{
			ID:        c.ID,
			Title:     c.Title,
			PriceText: c.Price,
			URL:       c.URL,
			ImageURL:  c.Image,
			Location:  c.Location,
			Timestamp: parseTimestamp(c.Timestamp),
			Source:    source,
		}
		out = append(out, services.NormalizeListing(raw, fallbackCurrency))
	}
	return out
}

// parseTimestamp accepts RFC 3339 or epoch milliseconds.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// findChromeBinary locates Chrome/Chromium binary.
func (s *Scraper) findChromeBinary() string {
	if s.cfg.ChromeBin != "" {
		return s.cfg.ChromeBin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
