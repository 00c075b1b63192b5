package services

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"synth-market/models"
	"synth-market/utils"
)

// outlierMinListings is the smallest set the IQR filter is applied to.
const outlierMinListings = 4

// Cleaner turns the concatenated output of all sources into the final
// listing set: duplicates, accessories, unrelated items, near-zero prices
// and price outliers are dropped and the rest is ordered newest first.
type Cleaner struct {
	logger   *utils.Logger
	filters  *Filters
	minPrice float64
}

// NewCleaner creates a Cleaner. A nil filters value uses DefaultFilters.
func NewCleaner(logger *utils.Logger, filters *Filters, minPrice float64) *Cleaner {
	if filters == nil {
		filters = DefaultFilters()
	}
	return &Cleaner{logger: logger, filters: filters, minPrice: minPrice}
}

// NormalizeListing converts a RawListing into a Listing. A structured
// price wins over price text; CurrencyHint is used when the text names no
// currency, then fallbackCurrency.
func NormalizeListing(r *models.RawListing, fallbackCurrency string) *models.Listing {
	fallback := fallbackCurrency
	if r.CurrencyHint != "" {
		fallback = r.CurrencyHint
	}

	var price Price
	if r.StructuredPrice != nil {
		price = Price{Amount: math.Max(*r.StructuredPrice, 0), Currency: NormalizeCurrency(fallback)}
	} else {
		price = ParsePrice(r.PriceText, fallback)
	}

	return &models.Listing{
		ID:        strings.TrimSpace(r.ID),
		Title:     normaliseText(r.Title),
		Price:     price.Amount,
		Currency:  price.Currency,
		URL:       strings.TrimSpace(r.URL),
		ImageURL:  strings.TrimSpace(r.ImageURL),
		Condition: normaliseText(r.Condition),
		Location:  normaliseText(r.Location),
		Timestamp: r.Timestamp,
		Source:    r.Source,
	}
}

// Clean applies every filter in order and records the funnel on report.
func (c *Cleaner) Clean(query string, listings []*models.Listing, report *models.AggregateReport) []*models.Listing {
	if report == nil {
		report = &models.AggregateReport{}
	}
	report.Fetched = len(listings)

	seen := utils.NewURLSet()
	kept := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			continue
		}
		if !seen.Add(l.URL) {
			report.Duplicates++
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", l.URL)
			continue
		}
		if c.IsAccessory(l.Title) {
			report.Accessories++
			c.logger.Debug("[cleaner] Accessory skipped: %s", l.Title)
			continue
		}
		if !MatchesQuery(query, l.Title) {
			report.Irrelevant++
			continue
		}
		if l.Price < c.minPrice {
			report.BelowFloor++
			continue
		}
		kept = append(kept, l)
	}

	before := len(kept)
	kept = RemoveOutliers(kept)
	report.Outliers = before - len(kept)

	SortByRecency(kept)

	c.logger.Info("[cleaner] %q: %d → %d listings (dup %d, accessory %d, unrelated %d, cheap %d, outlier %d)",
		query, report.Fetched, len(kept), report.Duplicates, report.Accessories,
		report.Irrelevant, report.BelowFloor, report.Outliers)
	return kept
}

// IsAccessory reports whether a title looks like an accessory or spare
// part rather than the instrument. Only the opening words are inspected,
// so "Korg MS-20 with case" is kept while "Case for Korg MS-20" is not.
func (c *Cleaner) IsAccessory(title string) bool {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	if len(words) == 0 {
		return false
	}

	// Phrases of up to three words starting at the first or second word.
	for start := 0; start < 2 && start < len(words); start++ {
		for n := 1; n <= 3 && start+n <= len(words); n++ {
			if _, ok := c.filters.accessorySet[strings.Join(words[start:start+n], " ")]; ok {
				return true
			}
		}
	}

	return c.filters.accessoryPattern != nil && c.filters.accessoryPattern.MatchString(title)
}

// MatchesQuery reports whether every query word longer than one character
// appears in the title, either verbatim (lower-cased) or once both sides
// are reduced to letters and digits, so "MS-20" matches "MS20".
func MatchesQuery(query, title string) bool {
	lowerTitle := strings.ToLower(title)
	compactTitle := compact(title)

	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(word)) <= 1 {
			continue
		}
		if strings.Contains(lowerTitle, word) {
			continue
		}
		if cw := compact(word); cw != "" && strings.Contains(compactTitle, cw) {
			continue
		}
		return false
	}
	return true
}

// QuartileBounds returns the IQR acceptance interval for prices, which
// must already be sorted ascending. Q1 and Q3 are read at indices
// floor(n*0.25) and floor(n*0.75).
func QuartileBounds(sorted []float64) (lo, hi float64) {
	n := len(sorted)
	q1 := sorted[int(math.Floor(float64(n)*0.25))]
	q3 := sorted[int(math.Floor(float64(n)*0.75))]
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// RemoveOutliers drops listings priced outside the IQR bounds. Sets with
// fewer than four listings are returned unchanged.
func RemoveOutliers(listings []*models.Listing) []*models.Listing {
	if len(listings) < outlierMinListings {
		return listings
	}

	prices := make([]float64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price
	}
	sort.Float64s(prices)
	lo, hi := QuartileBounds(prices)

	kept := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price >= lo && l.Price <= hi {
			kept = append(kept, l)
		}
	}
	return kept
}

// SortByRecency orders listings newest first; listings without a
// timestamp go last, keeping their relative order.
func SortByRecency(listings []*models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		ti, tj := listings[i].Timestamp, listings[j].Timestamp
		if ti.IsZero() || tj.IsZero() {
			return !ti.IsZero() && tj.IsZero()
		}
		return ti.After(tj)
	})
}

// compact lower-cases s and keeps only letters and digits.
func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
