package services

import (
	"context"
	"errors"
	"time"

	"synth-market/models"
	"synth-market/scraper"
	"synth-market/utils"
)

// ListingSource is one marketplace. Search returns the listings found for
// query, already normalised and tagged with the source name.
type ListingSource interface {
	Name() string
	Search(ctx context.Context, query string) ([]*models.Listing, error)
}

// ListingAggregator fans a query out to every registered source and
// reduces the answers to one clean listing set.
type ListingAggregator struct {
	sources       []ListingSource
	cleaner       *Cleaner
	logger        *utils.Logger
	maxWorkers    int
	minInterval   time.Duration
	sourceTimeout time.Duration
}

// AggregatorOptions tunes the fan-out. Zero values pick sane defaults.
type AggregatorOptions struct {
	MaxWorkers    int
	MinInterval   time.Duration
	SourceTimeout time.Duration
}

// NewListingAggregator wires the sources and the cleaner together.
func NewListingAggregator(sources []ListingSource, cleaner *Cleaner, logger *utils.Logger, opts AggregatorOptions) *ListingAggregator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = len(sources)
	}
	return &ListingAggregator{
		sources:       sources,
		cleaner:       cleaner,
		logger:        logger,
		maxWorkers:    opts.MaxWorkers,
		minInterval:   opts.MinInterval,
		sourceTimeout: opts.SourceTimeout,
	}
}

// FetchAllListings returns the cleaned listings for query. It never fails;
// a query no source could answer yields an empty slice.
func (a *ListingAggregator) FetchAllListings(ctx context.Context, query string) []*models.Listing {
	return a.FetchAllListingsReport(ctx, query).Listings
}

// FetchAllListingsReport is FetchAllListings plus per-source outcomes,
// filter counters and metrics.
func (a *ListingAggregator) FetchAllListingsReport(ctx context.Context, query string) *models.AggregateReport {
	report := &models.AggregateReport{Query: query}

	results := make([]models.SourceResult, len(a.sources))
	found := make([][]*models.Listing, len(a.sources))

	pool := utils.NewWorkerPool(a.maxWorkers, a.minInterval)
	for i, src := range a.sources {
		pool.Submit(func() {
			found[i], results[i] = a.searchOne(ctx, src, query)
		})
	}
	pool.Wait()

	var all []*models.Listing
	for _, batch := range found {
		all = append(all, batch...)
	}
	for _, l := range all {
		if l != nil {
			report.Raw = append(report.Raw, l)
		}
	}

	report.Sources = results
	report.Listings = a.cleaner.Clean(query, all, report)
	report.Metrics = CalculateMetrics(report.Listings)

	byStatus := SourcesByStatus(results)
	a.logger.Info("[aggregator] %q: %d listings from %d sources (ok %v, empty %v, rate limited %v, failed %v)",
		query, len(report.Listings), len(a.sources),
		byStatus[models.StatusOK], byStatus[models.StatusEmpty],
		byStatus[models.StatusRateLimited], byStatus[models.StatusError])
	return report
}

// searchOne runs one source with its own timeout and turns any error or
// panic into a SourceResult with zero listings.
func (a *ListingAggregator) searchOne(ctx context.Context, src ListingSource, query string) (listings []*models.Listing, res models.SourceResult) {
	start := time.Now()
	res.Source = src.Name()

	defer func() {
		if r := recover(); r != nil {
			listings = nil
			res.Err = utils.PanicError(r)
			res.Status = models.StatusError
			res.Count = 0
			a.logger.Error("[aggregator] %s panicked: %v", res.Source, r)
		}
		res.Duration = time.Since(start)
	}()

	if a.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
	}

	listings, err := src.Search(ctx, query)
	if err != nil {
		res.Err = err
		res.Status = classify(err)
		a.logger.Warn("[aggregator] %s failed: %v", res.Source, err)
		return nil, res
	}

	kept := listings[:0:0]
	for _, l := range listings {
		if l == nil {
			continue
		}
		if l.Source == "" {
			l.Source = res.Source
		}
		kept = append(kept, l)
	}

	res.Count = len(kept)
	res.Status = models.StatusOK
	if len(kept) == 0 {
		res.Status = models.StatusEmpty
	}
	return kept, res
}

func classify(err error) models.SourceStatus {
	if errors.Is(err, scraper.ErrRateLimited) {
		return models.StatusRateLimited
	}
	return models.StatusError
}

// RateLimitedSources lists the sources that answered with a rate limit,
// so callers can surface a specific message instead of a generic failure.
func RateLimitedSources(report *models.AggregateReport) []string {
	var out []string
	for _, s := range report.Sources {
		if s.Status == models.StatusRateLimited {
			out = append(out, s.Source)
		}
	}
	return out
}
