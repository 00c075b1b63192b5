package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"synth-market/models"
)

// ErrMalformedResponse means the model answered with something that is
// not the expected JSON object.
var ErrMalformedResponse = errors.New("malformed AI response")

// DefaultPromptTemplate is used when no PROMPT_TEMPLATE is configured.
const DefaultPromptTemplate = `You are an expert on synthesizers, drum machines and electronic music gear.
Complete the technical profile of the instrument below using only well-known facts.

Instrument: {{.Query}}
{{- if .Description}}

Known description:
{{.Description}}
{{- end}}
{{- if .TechnicalText}}

Technical notes collected so far:
{{.TechnicalText}}
{{- end}}

Answer with a single JSON object and nothing else, using this shape:
{"brand": "", "model": "", "type": "", "year": "", "description": "",
 "specs": [{"category": "", "label": "", "value": ""}],
 "marketValue": {"estimate": 0, "currency": "EUR", "range": {"min": 0, "max": 0}}}
Leave a field empty when unsure.`

type promptData struct {
	Query         string
	Description   string
	TechnicalText string
}

// BuildPrompt renders tmpl (DefaultPromptTemplate when empty).
func BuildPrompt(tmpl, query, description, technicalText string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultPromptTemplate
	}
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("prompt template: %w", err)
	}
	var buf bytes.Buffer
	err = t.Execute(&buf, promptData{
		Query:         query,
		Description:   strings.TrimSpace(description),
		TechnicalText: strings.TrimSpace(technicalText),
	})
	if err != nil {
		return "", fmt.Errorf("prompt template: %w", err)
	}
	return buf.String(), nil
}

// looseString accepts a JSON string or number ("1978" or 1978).
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("not a string or number: %s", data)
		}
		*s = looseString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

// AIResult is the JSON object the model is asked to produce.
type AIResult struct {
	Brand       string      `json:"brand"`
	Model       string      `json:"model"`
	Type        string      `json:"type"`
	Year        looseString `json:"year"`
	Description string      `json:"description"`
	Specs       []struct {
		Category string      `json:"category"`
		Label    string      `json:"label"`
		Value    looseString `json:"value"`
	} `json:"specs"`
	MarketValue *struct {
		Estimate float64 `json:"estimate"`
		Currency string  `json:"currency"`
		Range    struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"range"`
	} `json:"marketValue"`
}

// stripCodeFence removes a ```json ... ``` wrapper if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAIResponse decodes the model's answer.
func ParseAIResponse(text string) (*AIResult, error) {
	body := stripCodeFence(text)
	if body == "" || body[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}
	var r AIResult
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &r, nil
}

// specRecords returns the model's specs as records.
func (r *AIResult) specRecords() []models.SpecRecord {
	out := make([]models.SpecRecord, 0, len(r.Specs))
	for _, s := range r.Specs {
		category := s.Category
		if category == "" {
			category = "General"
		}
		out = append(out, models.SpecRecord{Category: category, Label: s.Label, Value: string(s.Value)})
	}
	return out
}

// marketValue returns the model's estimate, or nil when it gave none.
func (r *AIResult) marketValue(fallbackCurrency string) *models.MarketValue {
	if r.MarketValue == nil || r.MarketValue.Estimate <= 0 {
		return nil
	}
	mv := &models.MarketValue{
		Estimate: round2(r.MarketValue.Estimate),
		Currency: NormalizeCurrency(r.MarketValue.Currency),
		Range:    models.PriceRange{Min: r.MarketValue.Range.Min, Max: r.MarketValue.Range.Max},
	}
	if r.MarketValue.Currency == "" {
		mv.Currency = NormalizeCurrency(fallbackCurrency)
	}
	if mv.Range.Min <= 0 || mv.Range.Max < mv.Range.Min {
		mv.Range = models.PriceRange{Min: mv.Estimate, Max: mv.Estimate}
	}
	return mv
}
