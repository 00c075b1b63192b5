package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-market/models"
	"synth-market/scraper"
	"synth-market/utils"
)

type fakeSpecSource struct {
	name   string
	result *models.SpecResult
	err    error
	panics bool
	calls  atomic.Int32
}

func (f *fakeSpecSource) Name() string { return f.name }

func (f *fakeSpecSource) FindSpecs(ctx context.Context, brand, model string) (*models.SpecResult, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

type fakePriceGuide struct {
	entry *models.PriceGuideEntry
	err   error
	query string
}

func (f *fakePriceGuide) GetPriceGuide(ctx context.Context, query string) (*models.PriceGuideEntry, error) {
	f.query = query
	return f.entry, f.err
}

type fakeFetcher struct {
	detail       *models.ListingDetail
	product      *models.SpecResult
	productCalls int
}

func (f *fakeFetcher) FetchListing(ctx context.Context, listingURL string) (*models.ListingDetail, error) {
	if f.detail == nil {
		return nil, scraper.ErrSourceUnavailable
	}
	return f.detail, nil
}

func (f *fakeFetcher) FetchProductSpecs(ctx context.Context, productURL string) (*models.SpecResult, error) {
	f.productCalls++
	return f.product, nil
}

type fakeCompleter struct {
	answer string
	err    error
	prompt string
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.answer, f.err
}

func specs(category string, labels ...string) []models.SpecRecord {
	out := make([]models.SpecRecord, len(labels))
	for i, l := range labels {
		out[i] = models.SpecRecord{Category: category, Label: l, Value: "value of " + l}
	}
	return out
}

func newTestEnricher(sources EnrichmentSources) *Enricher {
	return NewEnricher(sources, DefaultFilters(), utils.NewNopLogger(), EnricherOptions{})
}

func TestEnrichLongerDescriptionWins(t *testing.T) {
	short := strings.Repeat("a", 40)
	long := strings.Repeat("b", 120)
	ai := &fakeCompleter{}

	e := newTestEnricher(EnrichmentSources{
		Catalog:   &fakeSpecSource{name: "catalog", result: &models.SpecResult{Source: "catalog", Description: short, Specs: specs("Voice", "Polyphony", "Oscillators")}},
		Community: &fakeSpecSource{name: "community", result: &models.SpecResult{Source: "community", Description: long, Specs: specs("Filter", "Type")}},
		AI:        ai,
	})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)

	assert.Equal(t, long, inst.Description)
	assert.Len(t, inst.Specs, 3)
	assert.Equal(t, []string{"catalog", "community"}, inst.SourcesUsed)
	assert.Zero(t, ai.calls, "AI should not run with three specs")
}

func TestEnrichHigherPriorityDescriptionIsKept(t *testing.T) {
	e := newTestEnricher(EnrichmentSources{
		SpecAPI:   &fakeSpecSource{name: "specapi", result: &models.SpecResult{Description: "Short API text."}},
		Community: &fakeSpecSource{name: "community", result: &models.SpecResult{Description: strings.Repeat("x", 300)}},
	})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)
	assert.Equal(t, "Short API text.", inst.Description)
	assert.Equal(t, []string{"specapi"}, inst.SourcesUsed)
}

func TestEnrichDedupFirstWinsInPriorityOrder(t *testing.T) {
	e := newTestEnricher(EnrichmentSources{
		SpecAPI: &fakeSpecSource{name: "specapi", result: &models.SpecResult{Specs: []models.SpecRecord{
			{Category: "Voice", Label: "Polyphony", Value: "from api"},
		}}},
		Catalog: &fakeSpecSource{name: "catalog", result: &models.SpecResult{Specs: []models.SpecRecord{
			{Category: "voice", Label: "polyphony", Value: "from catalog"},
			{Category: "Voice", Label: "Oscillators", Value: "2 VCO"},
			{Category: "Keyboard", Label: "Keys", Value: "37"},
		}}},
	})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)
	require.Len(t, inst.Specs, 3)
	assert.Equal(t, "from api", inst.Specs[0].Value)
}

func TestEnrichSourceFailuresAreIsolated(t *testing.T) {
	e := newTestEnricher(EnrichmentSources{
		SpecAPI:    &fakeSpecSource{name: "specapi", err: &scraper.HTTPError{Source: "specapi", StatusCode: 429}},
		Catalog:    &fakeSpecSource{name: "catalog", panics: true},
		Community:  &fakeSpecSource{name: "community", result: &models.SpecResult{Specs: specs("Voice", "Polyphony", "VCO", "VCF")}},
		PriceGuide: &fakePriceGuide{err: errors.New("timeout")},
	})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)
	assert.Len(t, inst.Specs, 3)
	assert.Equal(t, []string{"community"}, inst.SourcesUsed)
	assert.Nil(t, inst.MarketValue)
}

func TestEnrichPriceGuide(t *testing.T) {
	guide := &fakePriceGuide{entry: &models.PriceGuideEntry{Min: 1200, Max: 1600, Currency: "USD"}}
	e := newTestEnricher(EnrichmentSources{PriceGuide: guide})

	inst, err := e.Enrich(context.Background(), " Korg ", "MS-20", "")
	require.NoError(t, err)
	assert.Equal(t, "Korg MS-20", guide.query)
	require.NotNil(t, inst.MarketValue)
	assert.Equal(t, 1400.0, inst.MarketValue.Estimate)
	assert.Equal(t, "USD", inst.MarketValue.Currency)
	assert.Equal(t, models.PriceRange{Min: 1200, Max: 1600}, inst.MarketValue.Range)
	assert.Contains(t, inst.SourcesUsed, "priceguide")
}

func TestEnrichPriceGuideIgnoredWithZeroFloor(t *testing.T) {
	e := newTestEnricher(EnrichmentSources{PriceGuide: &fakePriceGuide{entry: &models.PriceGuideEntry{Min: 0, Max: 900}}})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)
	assert.Nil(t, inst.MarketValue)
}

func TestEnrichSeedsFromListing(t *testing.T) {
	fetcher := &fakeFetcher{
		detail: &models.ListingDetail{
			Source:      "reverb",
			Description: "Serviced MS-20, original case.",
			Images:      []string{"https://img/1.jpg", "https://img/2.jpg"},
			Price:       1450,
			Currency:    "EUR",
			Specs:       []models.SpecRecord{{Category: "Voice", Label: "Polyphony", Value: "1"}},
			Attributes: []models.Attribute{
				{Name: "number_of_keys", Value: "<b>37</b>"},
				{Name: "polyphony", Value: "mono"},
			},
			ParentProductURL: "https://api/csps/1",
		},
		product: &models.SpecResult{
			Source:      "reverb",
			Description: strings.Repeat("product text ", 20),
			Images:      []string{"https://img/product.jpg"},
			Specs:       specs("VCO", "Waveforms", "Range"),
		},
	}
	guide := &fakePriceGuide{entry: &models.PriceGuideEntry{Min: 900, Max: 1100, Currency: "EUR"}}
	catalog := &fakeSpecSource{name: "catalog", result: &models.SpecResult{Source: "catalog", Description: strings.Repeat("c", 500)}}

	e := newTestEnricher(EnrichmentSources{Fetcher: fetcher, PriceGuide: guide, Catalog: catalog})
	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "https://reverb.com/item/1-korg-ms-20")
	require.NoError(t, err)

	assert.Equal(t, "Serviced MS-20, original case.", inst.Description, "seeded description is final")
	assert.Equal(t, "https://img/1.jpg", inst.Images[0])
	assert.NotContains(t, inst.Images, "https://img/2.jpg")
	assert.Contains(t, inst.Images, "https://img/product.jpg")

	require.NotNil(t, inst.MarketValue)
	assert.Equal(t, 1450.0, inst.MarketValue.Estimate, "listing price beats the price guide")

	assert.Equal(t, 1, fetcher.productCalls)
	labels := make([]string, len(inst.Specs))
	for i, s := range inst.Specs {
		labels[i] = s.Label
	}
	assert.Equal(t, []string{"Polyphony", "Number Of Keys", "Waveforms", "Range"}, labels)
	assert.Equal(t, "37", inst.Specs[1].Value)
	assert.Equal(t, []string{"reverb"}, inst.SourcesUsed)
}

func TestEnrichSkipsParentProductWhenListingHasEnoughSpecs(t *testing.T) {
	fetcher := &fakeFetcher{detail: &models.ListingDetail{
		Source:           "reverb",
		Specs:            specs("Voice", "A", "B", "C", "D", "E"),
		ParentProductURL: "https://api/csps/1",
	}}
	e := newTestEnricher(EnrichmentSources{Fetcher: fetcher})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "https://reverb.com/item/1")
	require.NoError(t, err)
	assert.Zero(t, fetcher.productCalls)
	assert.Len(t, inst.Specs, 5)
}

func TestEnrichAIFallback(t *testing.T) {
	ai := &fakeCompleter{answer: "```json\n" + `{"type":"Synthesizer","year":1978,"description":"AI text",
		"specs":[{"category":"Voice","label":"Polyphony","value":"AI value"},{"category":"VCF","label":"Type","value":"Sallen-Key"}],
		"marketValue":{"estimate":1300,"currency":"EUR"}}` + "\n```"}
	e := newTestEnricher(EnrichmentSources{
		Catalog: &fakeSpecSource{name: "catalog", result: &models.SpecResult{
			Description: "Compact analog with a patch bay.",
			RawText:     "Patch panel with 35 jacks",
			Specs:       []models.SpecRecord{{Category: "Voice", Label: "Polyphony", Value: "1"}},
		}},
		AI: ai,
	})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)

	assert.Equal(t, 1, ai.calls)
	assert.Contains(t, ai.prompt, "Korg MS-20")
	assert.Contains(t, ai.prompt, "Compact analog with a patch bay.")
	assert.Contains(t, ai.prompt, "Patch panel with 35 jacks")

	require.Len(t, inst.Specs, 2)
	assert.Equal(t, "1", inst.Specs[0].Value, "AI never overwrites an existing spec")
	assert.Equal(t, "Compact analog with a patch bay.", inst.Description)
	assert.Equal(t, "1978", inst.Year)
	assert.Equal(t, "Synthesizer", inst.Type, "AI type replaces the default type")
	require.NotNil(t, inst.MarketValue)
	assert.Equal(t, 1300.0, inst.MarketValue.Estimate)
	assert.Equal(t, []string{"catalog", "ai"}, inst.SourcesUsed)
}

func TestEnrichAIKeepsInferredType(t *testing.T) {
	ai := &fakeCompleter{answer: `{"type":"Synthesizer","specs":[]}`}
	e := newTestEnricher(EnrichmentSources{
		Catalog: &fakeSpecSource{name: "catalog", result: &models.SpecResult{
			Description: "Monophonic semi-modular.",
			Specs:       []models.SpecRecord{{Category: "Voice", Label: "Polyphony", Value: "1"}},
		}},
		AI: ai,
	})

	inst, err := e.Enrich(context.Background(), "Korg", "MS-20", "")
	require.NoError(t, err)

	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, "Modular", inst.Type, "modular is matched before monophonic")
}

func TestEnrichAIMalformedIsIgnored(t *testing.T) {
	for _, ai := range []*fakeCompleter{
		{answer: "Sorry, I don't know that synth."},
		{err: errors.New("quota exceeded")},
	} {
		e := newTestEnricher(EnrichmentSources{
			Catalog: &fakeSpecSource{name: "catalog", result: &models.SpecResult{Description: "Analog drum machine.", Specs: specs("Voices", "Kick")}},
			AI:      ai,
		})

		inst, err := e.Enrich(context.Background(), "Roland", "TR-606", "")
		require.NoError(t, err)
		assert.Len(t, inst.Specs, 1)
		assert.Equal(t, "Drum Machine", inst.Type)
		assert.Equal(t, []string{"catalog"}, inst.SourcesUsed)
	}
}

func TestEnrichHardFailures(t *testing.T) {
	e := newTestEnricher(EnrichmentSources{Catalog: &fakeSpecSource{name: "catalog"}})
	_, err := e.Enrich(context.Background(), "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = newTestEnricher(EnrichmentSources{}).Enrich(context.Background(), "Korg", "MS-20", "")
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestEnrichNothingFound(t *testing.T) {
	e := newTestEnricher(EnrichmentSources{
		Catalog:   &fakeSpecSource{name: "catalog"},
		Community: &fakeSpecSource{name: "community", result: &models.SpecResult{}},
	})

	inst, err := e.Enrich(context.Background(), "Acme", "Nothing", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme", inst.Brand)
	assert.Equal(t, "Instrument", inst.Type)
	assert.Empty(t, inst.Specs)
	assert.Empty(t, inst.SourcesUsed)
}
