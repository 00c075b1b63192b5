package services

import (
	"os"
	"path/filepath"
	"testing"

	"synth-market/models"
)

func TestDedupSpecsFirstWins(t *testing.T) {
	in := []models.SpecRecord{
		{Category: "Voice", Label: "Polyphony", Value: "6"},
		{Category: "voice", Label: "POLYPHONY", Value: "8"},
		{Category: "Voice", Label: "Oscillators", Value: "1 DCO"},
		{Category: "Filter", Label: "Polyphony", Value: "n/a"},
		{Category: "Voice", Label: "", Value: "x"},
		{Category: "Voice", Label: "LFO", Value: "  "},
	}

	got := DedupSpecs(in)
	if len(got) != 3 {
		t.Fatalf("got %d specs, want 3: %+v", len(got), got)
	}
	if got[0].Value != "6" {
		t.Errorf("first occurrence should win, got %q", got[0].Value)
	}
	seen := map[string]bool{}
	for _, s := range got {
		key := s.Category + "/" + s.Label
		if seen[key] {
			t.Errorf("duplicate %s", key)
		}
		seen[key] = true
	}
}

func TestInferType(t *testing.T) {
	f := DefaultFilters()
	tests := []struct {
		text string
		want string
	}{
		{"Classic analog drum machine with 11 voices", "Drum Machine"},
		{"Caja de ritmos analógica", "Drum Machine"},
		{"Akai MPC sampling workstation", "Drum Machine"},
		{"Eurorack case with power", "Modular"},
		{"Analog polyphonic synthesizer", "Synthesizer"},
		{"Usa algoritmos FM de 6 operadores", "Instrument"},
		{"", "Instrument"},
	}
	for _, tt := range tests {
		if got := f.InferType(tt.text); got != tt.want {
			t.Errorf("InferType(%q) = %q; want %q", tt.text, got, tt.want)
		}
	}
}

func TestCleanLabel(t *testing.T) {
	tests := map[string]string{
		"number_of_keys":        "Number Of Keys",
		"<b>polyphony</b>":      "Polyphony",
		"  MIDI   connectivity": "Midi Connectivity",
		"":                      "",
	}
	for in, want := range tests {
		if got := CleanLabel(in); got != want {
			t.Errorf("CleanLabel(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestLoadFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	yaml := `accessory_keywords: [dustcover]
type_rules:
  - type: Theremin
    keywords: [theremin]
default_type: Gear
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFilters(path)
	if err != nil {
		t.Fatalf("LoadFilters: %v", err)
	}
	if got := f.InferType("Moog Etherwave theremin"); got != "Theremin" {
		t.Errorf("InferType = %q", got)
	}
	if got := f.InferType("drum machine"); got != "Gear" {
		t.Errorf("replaced rules should not match, got %q", got)
	}
	if len(f.Connectors) == 0 {
		t.Error("connectors should keep their defaults")
	}

	c := NewCleaner(nil, f, 0)
	if !c.IsAccessory("Dustcover for Korg MS-20") {
		t.Error("custom accessory keyword not applied")
	}

	if _, err := LoadFilters(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if f, err := LoadFilters(""); err != nil || f.DefaultType != "Instrument" {
		t.Errorf("empty path: %v, %v", f, err)
	}
}
