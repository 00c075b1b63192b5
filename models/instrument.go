package models

// SpecRecord is one technical attribute of an instrument.
// (Category, Label) compared case-insensitively identifies it.
type SpecRecord struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Value    string `json:"value"`
}

// PriceRange is a low/high pair in one currency.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarketValue is an estimated second-hand value.
type MarketValue struct {
	Estimate float64    `json:"estimate"`
	Currency string     `json:"currency"`
	Range    PriceRange `json:"range"`
}

// PriceGuideEntry is what a price guide knows about a query.
type PriceGuideEntry struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// EnrichedInstrument is the merged record returned by the enricher.
type EnrichedInstrument struct {
	Brand       string       `json:"brand"`
	Model       string       `json:"model"`
	Type        string       `json:"type"`
	Year        string       `json:"year,omitempty"`
	Description string       `json:"description,omitempty"`
	Specs       []SpecRecord `json:"specs"`
	Images      []string     `json:"images"`
	MarketValue *MarketValue `json:"marketValue,omitempty"`
	SourcesUsed []string     `json:"sourcesUsed"`
}

// SpecResult is one spec source's contribution. Any field may be empty.
type SpecResult struct {
	Source      string
	Brand       string
	Model       string
	Type        string
	Year        string
	Description string
	Images      []string
	Specs       []SpecRecord
	// RawText is unstructured technical text kept for the AI prompt.
	RawText string
}

// Empty reports whether the result carries nothing worth merging.
func (r *SpecResult) Empty() bool {
	return r == nil || (r.Description == "" && r.Year == "" && r.Type == "" &&
		len(r.Images) == 0 && len(r.Specs) == 0 && r.RawText == "")
}

// Attribute is a free-text name/value pair scraped from a listing page.
type Attribute struct {
	Name  string
	Value string
}

// ListingDetail is a single marketplace listing fetched directly by URL.
type ListingDetail struct {
	Source      string
	Title       string
	Brand       string
	Model       string
	Year        string
	Description string
	Images      []string
	Price       float64
	Currency    string
	// Specs are structured attributes exposed by the provider's API.
	Specs []SpecRecord
	// Attributes are free-text "Name: value" pairs, possibly with markup.
	Attributes []Attribute
	// ParentProductURL points at the catalog product this listing belongs to.
	ParentProductURL string
}
