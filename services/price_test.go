package services

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw          string
		fallback     string
		wantAmount   float64
		wantCurrency string
	}{
		{"1.250,50 €", "EUR", 1250.50, "EUR"},
		{"$1,250.50", "EUR", 1250.50, "USD"},
		{"450 €", "EUR", 450, "EUR"},
		{"EUR 1.200,00 a EUR 1.500,00", "EUR", 1200, "EUR"},
		{"Contact seller", "EUR", 0, "EUR"},
		{"", "USD", 0, "USD"},
		{"£899", "EUR", 899, "GBP"},
		{"USD 99", "EUR", 99, "USD"},
		{"1,250", "EUR", 1250, "EUR"},
		{"1.250", "EUR", 1250, "EUR"},
		{"1.234.567", "EUR", 1234567, "EUR"},
		{"12,5", "EUR", 125, "EUR"},
		{"2.500 € negociables", "EUR", 2500, "EUR"},
		{"Precio: 700.", "EUR", 700, "EUR"},
		{"1200", "", 1200, "EUR"},
		{"1200", "usd", 1200, "USD"},
		{"1200EUR", "USD", 1200, "EUR"},
		{"99gbp", "EUR", 99, "GBP"},
		{"EUROPA envio 300", "USD", 300, "USD"},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.raw, tt.fallback)
		if got.Amount != tt.wantAmount || got.Currency != tt.wantCurrency {
			t.Errorf("ParsePrice(%q, %q) = {%.2f %s}; want {%.2f %s}",
				tt.raw, tt.fallback, got.Amount, got.Currency, tt.wantAmount, tt.wantCurrency)
		}
	}
}

// Two digits after a lone separator always read as decimals. A value
// written "12.50" meaning 1250 is parsed as 12.5; this is kept as is.
func TestParsePriceTwoDigitAmbiguity(t *testing.T) {
	if got := ParsePrice("12.50", "EUR").Amount; got != 12.5 {
		t.Errorf("12.50: got %v, want 12.5", got)
	}
	if got := ParsePrice("12,50", "EUR").Amount; got != 12.5 {
		t.Errorf("12,50: got %v, want 12.5", got)
	}
	if got := ParsePrice("12.500", "EUR").Amount; got != 12500 {
		t.Errorf("12.500: got %v, want 12500", got)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := map[string]string{
		"eur":   "EUR",
		" gbp ": "GBP",
		"":      "EUR",
		"EURO":  "EUR",
		"U$D":   "EUR",
	}
	for in, want := range tests {
		if got := NormalizeCurrency(in); got != want {
			t.Errorf("NormalizeCurrency(%q) = %q; want %q", in, got, want)
		}
	}
}
