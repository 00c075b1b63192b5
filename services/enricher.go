package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"synth-market/models"
	"synth-market/scraper"
	"synth-market/utils"
)

var (
	// ErrInvalidQuery is returned when neither brand nor model is given.
	ErrInvalidQuery = errors.New("enrich: brand and model are both empty")

	// ErrNoSources is returned when the enricher has nothing to ask.
	ErrNoSources = errors.New("enrich: no sources configured")
)

// SpecSource looks up technical data for an instrument. A nil result
// with a nil error means the source does not know it.
type SpecSource interface {
	Name() string
	FindSpecs(ctx context.Context, brand, model string) (*models.SpecResult, error)
}

// PriceGuide returns a known used-price range for a query, or nil.
type PriceGuide interface {
	GetPriceGuide(ctx context.Context, query string) (*models.PriceGuideEntry, error)
}

// ListingFetcher loads one marketplace listing by URL and the catalog
// product it belongs to.
type ListingFetcher interface {
	FetchListing(ctx context.Context, listingURL string) (*models.ListingDetail, error)
	FetchProductSpecs(ctx context.Context, productURL string) (*models.SpecResult, error)
}

// Completer is a generative text model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EnrichmentSources are the collaborators of an Enricher. Any of them
// may be nil. The three spec sources are merged in field order.
type EnrichmentSources struct {
	SpecAPI    SpecSource
	Catalog    SpecSource
	Community  SpecSource
	PriceGuide PriceGuide
	Fetcher    ListingFetcher
	AI         Completer
}

func (s EnrichmentSources) empty() bool {
	return s.SpecAPI == nil && s.Catalog == nil && s.Community == nil &&
		s.PriceGuide == nil && s.Fetcher == nil && s.AI == nil
}

// EnricherOptions tunes thresholds. Zero values pick the defaults.
type EnricherOptions struct {
	SourceTimeout       time.Duration
	MinSpecsBeforeAI    int
	ParentSpecThreshold int
	PromptTemplate      string
	DefaultCurrency     string
}

// Enricher assembles one EnrichedInstrument out of several partial sources.
type Enricher struct {
	sources EnrichmentSources
	filters *Filters
	logger  *utils.Logger
	opts    EnricherOptions
}

// NewEnricher creates an Enricher. A nil filters value uses DefaultFilters.
func NewEnricher(sources EnrichmentSources, filters *Filters, logger *utils.Logger, opts EnricherOptions) *Enricher {
	if filters == nil {
		filters = DefaultFilters()
	}
	if opts.MinSpecsBeforeAI <= 0 {
		opts.MinSpecsBeforeAI = 3
	}
	if opts.ParentSpecThreshold <= 0 {
		opts.ParentSpecThreshold = 5
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "EUR"
	}
	return &Enricher{sources: sources, filters: filters, logger: logger, opts: opts}
}

// merger accumulates contributions. Fields are add-only: once set, a
// later source cannot overwrite them, except for the description while
// it is not locked.
type merger struct {
	inst       *models.EnrichedInstrument
	descLocked bool
	rawText    []string
}

func newMerger(brand, model string) *merger {
	return &merger{inst: &models.EnrichedInstrument{
		Brand:       brand,
		Model:       model,
		Specs:       []models.SpecRecord{},
		Images:      []string{},
		SourcesUsed: []string{},
	}}
}

func (m *merger) used(source string) {
	if source != "" && !slices.Contains(m.inst.SourcesUsed, source) {
		m.inst.SourcesUsed = append(m.inst.SourcesUsed, source)
	}
}

func (m *merger) addImages(images ...string) bool {
	added := false
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" && !slices.Contains(m.inst.Images, img) {
			m.inst.Images = append(m.inst.Images, img)
			added = true
		}
	}
	return added
}

// apply merges r. With longerWins an unlocked description is replaced by
// a longer one; with lock the description becomes final once set.
func (m *merger) apply(r *models.SpecResult, longerWins, lock bool) {
	if r.Empty() {
		return
	}
	inst := m.inst
	contributed := false

	if inst.Brand == "" && r.Brand != "" {
		inst.Brand = r.Brand
	}
	if inst.Model == "" && r.Model != "" {
		inst.Model = r.Model
	}
	if inst.Year == "" && r.Year != "" {
		inst.Year, contributed = r.Year, true
	}
	if inst.Type == "" && r.Type != "" {
		inst.Type, contributed = r.Type, true
	}

	if d := strings.TrimSpace(r.Description); d != "" {
		switch {
		case inst.Description == "":
			inst.Description, contributed = d, true
		case longerWins && !m.descLocked && len(d) > len(inst.Description):
			inst.Description, contributed = d, true
		}
		if lock {
			m.descLocked = true
		}
	}

	if m.addImages(r.Images...) {
		contributed = true
	}
	if len(r.Specs) > 0 {
		inst.Specs = append(inst.Specs, r.Specs...)
		contributed = true
	}
	if r.RawText != "" {
		m.rawText = append(m.rawText, r.RawText)
	}

	if contributed {
		m.used(r.Source)
	}
}

// Enrich builds the best record it can for brand/model. Individual source
// failures are logged and skipped; only an empty query or an enricher
// without sources is an error. sourceURL, when set, is a listing to seed from.
func (e *Enricher) Enrich(ctx context.Context, brand, model, sourceURL string) (*models.EnrichedInstrument, error) {
	brand, model = strings.TrimSpace(brand), strings.TrimSpace(model)
	if brand == "" && model == "" {
		return nil, ErrInvalidQuery
	}
	if e.sources.empty() {
		return nil, ErrNoSources
	}

	query := strings.TrimSpace(brand + " " + model)
	start := time.Now()
	m := newMerger(brand, model)

	if sourceURL = strings.TrimSpace(sourceURL); sourceURL != "" && e.sources.Fetcher != nil {
		e.seed(ctx, m, sourceURL)
	}

	var specAPI, catalog, community *models.SpecResult
	var guide *models.PriceGuideEntry

	var g errgroup.Group
	e.goSpec(ctx, &g, e.sources.SpecAPI, brand, model, &specAPI)
	e.goSpec(ctx, &g, e.sources.Catalog, brand, model, &catalog)
	e.goSpec(ctx, &g, e.sources.Community, brand, model, &community)
	if e.sources.PriceGuide != nil {
		g.Go(func() error {
			e.guarded("priceguide", func() {
				bctx, cancel := e.branchContext(ctx)
				defer cancel()
				entry, err := e.sources.PriceGuide.GetPriceGuide(bctx, query)
				if err != nil {
					e.logSourceError("priceguide", err)
					return
				}
				guide = entry
			})
			return nil
		})
	}
	_ = g.Wait()

	m.apply(specAPI, false, true)
	m.apply(catalog, true, false)
	m.apply(community, true, false)

	if m.inst.MarketValue == nil && guide != nil && guide.Min > 0 {
		m.inst.MarketValue = marketValueFromGuide(guide, e.opts.DefaultCurrency)
		m.used("priceguide")
	}

	m.inst.Specs = DedupSpecs(m.inst.Specs)
	if m.inst.Type == "" {
		m.inst.Type = e.filters.InferType(typeText(m.inst))
	}

	if len(m.inst.Specs) < e.opts.MinSpecsBeforeAI && e.sources.AI != nil {
		e.aiFallback(ctx, m, query)
	}

	e.logger.Info("[enricher] %q: %d specs, %d images, type %s, sources %v in %v",
		query, len(m.inst.Specs), len(m.inst.Images), m.inst.Type, m.inst.SourcesUsed,
		time.Since(start).Round(time.Millisecond))
	return m.inst, nil
}

// seed fills m from a directly fetched listing, following its parent
// product when the listing itself carries few specs.
func (e *Enricher) seed(ctx context.Context, m *merger, sourceURL string) {
	e.guarded("listing", func() {
		bctx, cancel := e.branchContext(ctx)
		defer cancel()

		d, err := e.sources.Fetcher.FetchListing(bctx, sourceURL)
		if err != nil {
			e.logSourceError("listing", err)
			return
		}

		specs := slices.Clone(d.Specs)
		for _, a := range attributeSpecs(d.Attributes) {
			// Structured fields take precedence over free-text ones.
			if !slices.ContainsFunc(specs, func(s models.SpecRecord) bool { return strings.EqualFold(s.Label, a.Label) }) {
				specs = append(specs, a)
			}
		}
		var images []string
		if len(d.Images) > 0 {
			images = d.Images[:1]
		}
		m.apply(&models.SpecResult{
			Source:      d.Source,
			Brand:       d.Brand,
			Model:       d.Model,
			Year:        d.Year,
			Description: d.Description,
			Images:      images,
			Specs:       specs,
		}, false, true)

		if d.Price > 0 {
			m.inst.MarketValue = &models.MarketValue{
				Estimate: round2(d.Price),
				Currency: NormalizeCurrency(d.Currency),
				Range:    models.PriceRange{Min: round2(d.Price), Max: round2(d.Price)},
			}
			m.used(d.Source)
		}

		if len(DedupSpecs(specs)) >= e.opts.ParentSpecThreshold || d.ParentProductURL == "" {
			return
		}
		product, err := e.sources.Fetcher.FetchProductSpecs(bctx, d.ParentProductURL)
		if err != nil {
			e.logSourceError("listing product", err)
			return
		}
		m.apply(product, false, true)
	})
}

// goSpec starts one spec lookup. The branch never returns an error so
// that one failure cannot cancel the others.
func (e *Enricher) goSpec(ctx context.Context, g *errgroup.Group, src SpecSource, brand, model string, out **models.SpecResult) {
	if src == nil {
		return
	}
	g.Go(func() error {
		e.guarded(src.Name(), func() {
			bctx, cancel := e.branchContext(ctx)
			defer cancel()

			r, err := src.FindSpecs(bctx, brand, model)
			if err != nil {
				e.logSourceError(src.Name(), err)
				return
			}
			if r != nil && r.Source == "" {
				r.Source = src.Name()
			}
			*out = r
		})
		return nil
	})
}

func (e *Enricher) aiFallback(ctx context.Context, m *merger, query string) {
	prompt, err := BuildPrompt(e.opts.PromptTemplate, query, m.inst.Description, technicalText(m))
	if err != nil {
		e.logger.Error("[enricher] %v", err)
		return
	}

	var answer string
	e.guarded("ai", func() {
		bctx, cancel := e.branchContext(ctx)
		defer cancel()
		answer, err = e.sources.AI.Complete(bctx, prompt)
	})
	if err != nil {
		e.logSourceError("ai", err)
		return
	}
	if answer == "" {
		return
	}

	r, err := ParseAIResponse(answer)
	if err != nil {
		e.logger.Warn("[enricher] AI fallback ignored: %v", err)
		return
	}

	inst := m.inst
	before := len(inst.Specs)
	contributed := false

	if inst.Year == "" && r.Year != "" {
		inst.Year, contributed = string(r.Year), true
	}
	if inst.Description == "" && strings.TrimSpace(r.Description) != "" {
		inst.Description, contributed = strings.TrimSpace(r.Description), true
	}
	if r.Type != "" && (inst.Type == "" || inst.Type == e.filters.DefaultType) {
		inst.Type, contributed = r.Type, true
	}
	inst.Specs = DedupSpecs(append(inst.Specs, r.specRecords()...))
	if len(inst.Specs) > before {
		contributed = true
	}
	if inst.MarketValue == nil {
		if mv := r.marketValue(e.opts.DefaultCurrency); mv != nil {
			inst.MarketValue, contributed = mv, true
		}
	}
	if contributed {
		m.used("ai")
	}
}

// technicalText is the structured text handed to the model: raw spec
// blocks plus every spec gathered so far.
func technicalText(m *merger) string {
	lines := slices.Clone(m.rawText)
	for _, s := range m.inst.Specs {
		lines = append(lines, fmt.Sprintf("%s / %s: %s", s.Category, s.Label, s.Value))
	}
	return strings.Join(lines, "\n")
}

func marketValueFromGuide(g *models.PriceGuideEntry, fallbackCurrency string) *models.MarketValue {
	currency := g.Currency
	if currency == "" {
		currency = fallbackCurrency
	}
	high := g.Max
	if high < g.Min {
		high = g.Min
	}
	return &models.MarketValue{
		Estimate: round2((g.Min + high) / 2),
		Currency: NormalizeCurrency(currency),
		Range:    models.PriceRange{Min: g.Min, Max: high},
	}
}

func (e *Enricher) branchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.SourceTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.SourceTimeout)
	}
	return context.WithCancel(ctx)
}

// guarded runs fn and logs a panic instead of crashing the fan-out.
func (e *Enricher) guarded(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("[enricher] %s panicked: %v", name, r)
		}
	}()
	fn()
}

func (e *Enricher) logSourceError(name string, err error) {
	if errors.Is(err, scraper.ErrRateLimited) {
		e.logger.Warn("[enricher] %s rate limited: %v", name, err)
		return
	}
	e.logger.Warn("[enricher] %s failed: %v", name, err)
}
