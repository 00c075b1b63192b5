package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"synth-market/models"
	"synth-market/scraper"
)

// DedupSpecs keeps the first record for each (category, label) pair,
// compared case-insensitively. Records without a label or value are dropped.
func DedupSpecs(specs []models.SpecRecord) []models.SpecRecord {
	seen := make(map[string]struct{}, len(specs))
	out := make([]models.SpecRecord, 0, len(specs))
	for _, s := range specs {
		s.Category = strings.TrimSpace(s.Category)
		s.Label = strings.TrimSpace(s.Label)
		s.Value = strings.TrimSpace(s.Value)
		if s.Label == "" || s.Value == "" {
			continue
		}
		key := strings.ToLower(s.Category) + "\x00" + strings.ToLower(s.Label)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// InferType returns the type of the first rule with a keyword in text,
// or the default type.
func (f *Filters) InferType(text string) string {
	for i, re := range f.typePatterns {
		if re != nil && re.MatchString(text) {
			return f.TypeRules[i].Type
		}
	}
	return f.DefaultType
}

// CleanLabel turns a free-text attribute name such as "number_of_keys"
// or "<b>polyphony</b>" into "Number Of Keys" / "Polyphony".
func CleanLabel(name string) string {
	name = scraper.StripTags(name)
	name = strings.NewReplacer("_", " ", ":", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.Und).String(strings.ToLower(name))
}

// attributeSpecs converts free-text listing attributes into spec records.
func attributeSpecs(attrs []models.Attribute) []models.SpecRecord {
	out := make([]models.SpecRecord, 0, len(attrs))
	for _, a := range attrs {
		label, value := CleanLabel(a.Name), scraper.StripTags(a.Value)
		if label == "" || value == "" {
			continue
		}
		out = append(out, models.SpecRecord{Category: "Listing", Label: label, Value: value})
	}
	return out
}

// typeText is the text type inference runs over: the description plus
// every spec value.
func typeText(inst *models.EnrichedInstrument) string {
	var b strings.Builder
	b.WriteString(inst.Description)
	for _, s := range inst.Specs {
		b.WriteByte('\n')
		b.WriteString(s.Value)
	}
	return b.String()
}
