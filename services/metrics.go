package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"synth-market/models"
)

// CalculateMetrics summarises positive-priced listings. It returns nil when
// none are left. The currency of the first listing is reported as is;
// listings in other currencies are not converted.
func CalculateMetrics(listings []*models.Listing) *models.MarketMetrics {
	var priced []*models.Listing
	for _, l := range listings {
		if l != nil && l.Price > 0 {
			priced = append(priced, l)
		}
	}
	if len(priced) == 0 {
		return nil
	}

	m := &models.MarketMetrics{
		Min:        priced[0].Price,
		Max:        priced[0].Price,
		Currency:   priced[0].Currency,
		Count:      len(priced),
		ComputedAt: time.Now().UTC(),
	}

	var total float64
	for _, l := range priced {
		total += l.Price
		m.Min = math.Min(m.Min, l.Price)
		m.Max = math.Max(m.Max, l.Price)
	}

	// Rounding can push the mean a hair past an unrounded bound.
	m.Avg = clamp(round2(total/float64(len(priced))), m.Min, m.Max)
	return m
}

// PrintReport writes a terminal summary of an aggregation run.
func PrintReport(w io.Writer, r *models.AggregateReport) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  MARKET LISTINGS: %s\033[0m\n", r.Query)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Sources\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, s := range r.Sources {
		status := string(s.Status)
		if s.Err != nil {
			status += ": " + truncate(s.Err.Error(), 36)
		}
		fmt.Fprintf(w, "  %-14s %4d  %-40s %6s\n", s.Source, s.Count, status, s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Filtering\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Fetched %d | duplicates %d | accessories %d | unrelated %d | too cheap %d | outliers %d\n\n",
		r.Fetched, r.Duplicates, r.Accessories, r.Irrelevant, r.BelowFloor, r.Outliers)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Metrics != nil {
		fmt.Fprintf(w, "  Listings      : \033[1m%d\033[0m\n", r.Metrics.Count)
		fmt.Fprintf(w, "  Average price : \033[1;32m%.2f %s\033[0m\n", r.Metrics.Avg, r.Metrics.Currency)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%.2f %s\033[0m\n", r.Metrics.Min, r.Metrics.Currency)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%.2f %s\033[0m\n", r.Metrics.Max, r.Metrics.Currency)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Latest Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Listings) == 0 {
		fmt.Fprintf(w, "  No listings found\n")
	}
	for i, l := range r.Listings {
		if i == 15 {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.Listings)-i)
			break
		}
		fmt.Fprintf(w, "  %-40s \033[1;32m%9.2f %s\033[0m  %s\n", truncate(l.Title, 38), l.Price, l.Currency, l.Source)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// SourcesByStatus groups source names by status, sorted, for log lines.
func SourcesByStatus(results []models.SourceResult) map[models.SourceStatus][]string {
	out := make(map[models.SourceStatus][]string)
	for _, r := range results {
		out[r.Status] = append(out[r.Status], r.Source)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
