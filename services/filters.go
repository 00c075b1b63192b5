package services

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// TypeRule maps keywords found in descriptions/spec values to a coarse
// instrument type. Rules are checked in order; the first hit wins.
type TypeRule struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// Filters holds the vocabularies used by the listing cleaner and the
// type inference step. They can be overridden from a YAML file.
type Filters struct {
	AccessoryKeywords []string   `yaml:"accessory_keywords"`
	Connectors        []string   `yaml:"connectors"`
	TypeRules         []TypeRule `yaml:"type_rules"`
	DefaultType       string     `yaml:"default_type"`

	accessorySet     map[string]struct{}
	accessoryPattern *regexp.Regexp
	typePatterns     []*regexp.Regexp
}

// DefaultFilters returns the built-in vocabularies (English and Spanish,
// since most listings come from Spanish marketplaces).
func DefaultFilters() *Filters {
	f := &Filters{
		AccessoryKeywords: []string{
			"cable", "cables", "cabel", "case", "estuche", "maleta", "flightcase", "funda", "bag", "gigbag",
			"cover", "tapa", "manual", "manuales", "manuals", "libro", "book", "stand", "soporte", "skin",
			"decal", "sticker", "pegatina", "overlay", "adapter", "adaptador", "psu", "power supply",
			"fuente", "fuente de alimentacion", "transformador", "alimentador", "charger", "cargador",
			"knob", "knobs", "potenciometro", "pomo", "pomos", "key", "keys", "tecla", "teclas",
			"replacement", "repuesto", "recambio", "spare", "parts", "pcb", "placa", "kit mod", "mod kit",
			"panel", "side panels", "laterales", "dust cover", "pedal", "sustain", "battery", "bateria",
		},
		Connectors: []string{"for", "para", "per", "pour", "fur", "für", "compatible with", "compatible con"},
		TypeRules: []TypeRule{
			{Type: "Drum Machine", Keywords: []string{"drum machine", "caja de ritmos", "ritmos", "rhythm composer", "mpc", "beatbox"}},
			{Type: "Modular", Keywords: []string{"modular", "eurorack", "euro rack"}},
			{Type: "Sampler", Keywords: []string{"sampler", "sampling", "muestreador"}},
			{Type: "Groovebox", Keywords: []string{"groovebox", "groove box"}},
			{Type: "Sequencer", Keywords: []string{"sequencer", "secuenciador"}},
			{Type: "Effects", Keywords: []string{"effects unit", "multi-effects", "efectos", "delay unit", "reverb unit"}},
			{Type: "Workstation", Keywords: []string{"workstation"}},
			{Type: "Synthesizer", Keywords: []string{"synthesizer", "synthesiser", "synth", "sintetizador", "polyphonic", "monophonic", "oscillator", "vco", "oscilador"}},
		},
		DefaultType: "Instrument",
	}
	f.compile()
	return f
}

// LoadFilters reads a YAML file and overlays every non-empty section on
// the defaults. An empty path returns the defaults.
func LoadFilters(path string) (*Filters, error) {
	f := DefaultFilters()
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filters: read %q: %w", path, err)
	}

	var override Filters
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("filters: parse %q: %w", path, err)
	}

	if len(override.AccessoryKeywords) > 0 {
		f.AccessoryKeywords = override.AccessoryKeywords
	}
	if len(override.Connectors) > 0 {
		f.Connectors = override.Connectors
	}
	if len(override.TypeRules) > 0 {
		f.TypeRules = override.TypeRules
	}
	if override.DefaultType != "" {
		f.DefaultType = override.DefaultType
	}
	f.compile()
	return f, nil
}

func (f *Filters) compile() {
	f.compileTypeRules()

	f.accessorySet = make(map[string]struct{}, len(f.AccessoryKeywords))
	quoted := make([]string, 0, len(f.AccessoryKeywords))
	for _, kw := range f.AccessoryKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		f.accessorySet[kw] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(kw))
	}

	conns := make([]string, 0, len(f.Connectors))
	for _, c := range f.Connectors {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			conns = append(conns, regexp.QuoteMeta(c))
		}
	}

	if len(quoted) == 0 || len(conns) == 0 {
		f.accessoryPattern = nil
		return
	}

	// Longest alternatives first so "power supply" wins over "power".
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	sort.Slice(conns, func(i, j int) bool { return len(conns[i]) > len(conns[j]) })

	// "<accessory>s for <something>", "<accessory> para <something>",
	// allowing up to two leading words ("Original power supply for ...").
	f.accessoryPattern = regexp.MustCompile(
		`(?i)^[^\pL\pN]*(?:[\pL\pN'-]+\s+){0,2}(?:` + strings.Join(quoted, "|") + `)s?\s+(?:` + strings.Join(conns, "|") + `)\s+\S`)
}

// compileTypeRules builds one pattern per rule. Keywords only match whole
// words, so "ritmos" does not fire inside "algoritmos".
func (f *Filters) compileTypeRules() {
	f.typePatterns = make([]*regexp.Regexp, len(f.TypeRules))
	for i, rule := range f.TypeRules {
		alts := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				alts = append(alts, regexp.QuoteMeta(kw))
			}
		}
		if len(alts) == 0 {
			continue
		}
		f.typePatterns[i] = regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(alts, "|") + `)(?:$|[^\pL\pN])`)
	}
}
