package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"synth-market/config"
	"synth-market/llm"
	"synth-market/models"
	"synth-market/scraper"
	"synth-market/scraper/catalog"
	"synth-market/scraper/ebay"
	"synth-market/scraper/hispasonic"
	"synth-market/scraper/reverb"
	"synth-market/scraper/specapi"
	"synth-market/scraper/vintagesynth"
	"synth-market/scraper/wallapop"
	"synth-market/services"
	"synth-market/storage"
	"synth-market/utils"
)

// app holds what every command needs: configuration, the shared HTTP
// client and the listing cleaner.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	client  *scraper.Client
	filters *services.Filters
	cleaner *services.Cleaner
	reverb  *reverb.Scraper
	guide   *storage.PostgresPriceGuide
	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	logger := utils.NewLogger()
	cfg := config.Load()

	a := &app{cfg: cfg, logger: logger}

	client, err := scraper.NewClient(cfg, a.responseCache(ctx), logger)
	if err != nil {
		return nil, err
	}
	a.client = client

	filters, err := services.LoadFilters(cfg.FiltersFile)
	if err != nil {
		return nil, err
	}
	a.filters = filters
	a.cleaner = services.NewCleaner(logger, filters, cfg.MinListingPrice)
	a.reverb = reverb.New(cfg, client, logger.With("reverb"))

	if cfg.PriceGuideDSN != "" {
		guide, err := storage.NewPostgresPriceGuide(ctx, cfg.PriceGuideDSN)
		if err != nil {
			logger.Warn("PostgreSQL price guide unavailable, using Reverb: %v", err)
		} else {
			a.guide = guide
			a.closers = append(a.closers, guide.Close)
		}
	}
	return a, nil
}

// responseCache picks Redis when configured and reachable, otherwise an
// in-process LRU.
func (a *app) responseCache(ctx context.Context) scraper.ResponseCache {
	if a.cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr, DB: a.cfg.RedisDB})
		cache := storage.NewRedisCache(rdb, a.cfg.CacheTTL, a.logger)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := cache.Ping(pingCtx)
		if err == nil {
			a.closers = append(a.closers, rdb.Close)
			a.logger.Debug("Using Redis response cache at %s", a.cfg.RedisAddr)
			return cache
		}
		a.logger.Warn("Redis at %s unreachable, using in-memory cache: %v", a.cfg.RedisAddr, err)
		_ = rdb.Close()
	}
	return storage.NewMemoryCache(a.cfg.CacheSize, a.cfg.CacheTTL)
}

func (a *app) rateLimit() time.Duration {
	return time.Duration(a.cfg.RateLimitMs) * time.Millisecond
}

// listingSources registers every marketplace that is configured.
func (a *app) listingSources() []services.ListingSource {
	sources := []services.ListingSource{a.reverb}
	if a.cfg.EbayToken != "" {
		sources = append(sources, ebay.New(a.cfg, a.client, a.logger.With("ebay")))
	}
	if a.cfg.HispasonicURL != "" {
		sources = append(sources, hispasonic.New(a.cfg, a.client, a.logger.With("hispasonic")))
	}
	if a.cfg.WallapopEnabled {
		sources = append(sources, wallapop.New(a.cfg, a.client, a.logger.With("wallapop")))
	}
	return sources
}

func (a *app) enricher(ctx context.Context) *services.Enricher {
	src := services.EnrichmentSources{
		Fetcher:    a.reverb,
		PriceGuide: a.reverb,
	}
	if a.guide != nil {
		src.PriceGuide = a.guide
	}
	if a.cfg.SpecAPIBaseURL != "" && a.cfg.SpecAPIKey != "" {
		src.SpecAPI = specapi.New(a.cfg, a.client, a.logger.With("specapi"))
	}
	if a.cfg.CatalogBaseURL != "" {
		src.Catalog = catalog.New(a.cfg, a.client, a.logger.With("catalog"))
	}
	if a.cfg.VintageSynthBaseURL != "" {
		src.Community = vintagesynth.New(a.cfg, a.client, a.logger.With("vintagesynth"))
	}
	if a.cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
		if err != nil {
			a.logger.Warn("AI fallback disabled: %v", err)
		} else {
			src.AI = gemini
		}
	}

	return services.NewEnricher(src, a.filters, a.logger, services.EnricherOptions{
		SourceTimeout:       a.cfg.SourceTimeout,
		MinSpecsBeforeAI:    a.cfg.MinSpecsBeforeAI,
		ParentSpecThreshold: a.cfg.ParentSpecThreshold,
		PromptTemplate:      a.cfg.PromptTemplate,
		DefaultCurrency:     a.cfg.DefaultCurrency,
	})
}

// saveGuide seeds the PostgreSQL price guide from aggregated metrics.
func (a *app) saveGuide(ctx context.Context, query string, m *models.MarketMetrics) {
	if a.guide == nil {
		a.logger.Warn("--save-guide needs PRICEGUIDE_DSN")
		return
	}
	if m == nil {
		a.logger.Warn("No prices to store for %q", query)
		return
	}
	entry := models.PriceGuideEntry{Min: m.Min, Max: m.Max, Currency: m.Currency}
	if err := a.guide.Save(ctx, query, entry); err != nil {
		a.logger.Error("Price guide save failed: %v", err)
		return
	}
	a.logger.Info("Price guide updated for %q: %.2f-%.2f %s", query, m.Min, m.Max, m.Currency)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
}
