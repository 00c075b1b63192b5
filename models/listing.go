package models

import "time"

// RawListing holds one provider's listing as extracted, before price
// normalisation. Either PriceText or StructuredPrice is set.
type RawListing struct {
	ID              string
	Title           string
	PriceText       string
	StructuredPrice *float64
	CurrencyHint    string
	URL             string
	ImageURL        string
	Condition       string
	Location        string
	Timestamp       time.Time
	Source          string
}

// Listing is a RawListing after price normalisation and source tagging.
// Price is never negative and Currency is always a 3-letter code.
type Listing struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Condition string    `json:"condition,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Source    string    `json:"source"`
}

// MarketMetrics summarises the prices of a non-empty listing set.
type MarketMetrics struct {
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Avg        float64   `json:"avg"`
	Currency   string    `json:"currency"`
	Count      int       `json:"count"`
	ComputedAt time.Time `json:"computedAt"`
}

// SourceStatus classifies how one provider answered a fan-out call.
type SourceStatus string

const (
	StatusOK          SourceStatus = "ok"
	StatusEmpty       SourceStatus = "empty"
	StatusRateLimited SourceStatus = "rate_limited"
	StatusError       SourceStatus = "error"
)

// SourceResult is the typed outcome of one provider call. Failures are
// recorded here instead of being raised to the caller.
type SourceResult struct {
	Source   string        `json:"source"`
	Status   SourceStatus  `json:"status"`
	Count    int           `json:"count"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// AggregateReport is the full result of one aggregation call.
type AggregateReport struct {
	Query    string         `json:"query"`
	Listings []*Listing     `json:"listings"`
	Sources  []SourceResult `json:"sources"`
	Metrics  *MarketMetrics `json:"metrics,omitempty"`

	// Raw is every listing the sources returned, before any filtering.
	Raw []*Listing `json:"-"`

	// Funnel counters, useful when a query comes back empty.
	Fetched     int `json:"fetched"`
	Duplicates  int `json:"duplicates"`
	Accessories int `json:"accessories"`
	Irrelevant  int `json:"irrelevant"`
	BelowFloor  int `json:"belowFloor"`
	Outliers    int `json:"outliers"`
}
