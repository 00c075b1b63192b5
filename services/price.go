package services

import (
	"regexp"
	"strconv"
	"strings"
)

// Price is a parsed monetary amount.
type Price struct {
	Amount   float64
	Currency string
}

var (
	// numberRegexp captures the first numeric token including separators,
	// so "EUR 1.200,00 a EUR 1.500,00" yields "1.200,00".
	numberRegexp = regexp.MustCompile(`\d[\d.,]*`)

	currencyCodeRegexp = regexp.MustCompile(`(?i)(?:^|[^A-Z])(EUR|USD|GBP)(?:$|[^A-Z])`)
)

// ParsePrice turns free-form price text into an amount and currency.
// It never fails: unparsable text yields amount 0. When no currency
// symbol or code is found, fallbackCurrency is used (EUR if empty).
//
// Separator rules:
//   - both '.' and ',' present: the one appearing last is the decimal mark.
//   - only one kind present: it is the decimal mark when exactly two
//     digits follow its last occurrence, otherwise a thousands separator.
//
// The two-digit rule means "12.50" is always 12.5, even in the rare
// notation where it would mean 1250.
func ParsePrice(text, fallbackCurrency string) Price {
	return Price{
		Amount:   parseAmount(text),
		Currency: detectCurrency(text, fallbackCurrency),
	}
}

func detectCurrency(text, fallback string) string {
	switch {
	case strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "$"):
		return "USD"
	}
	if m := currencyCodeRegexp.FindStringSubmatch(text); len(m) == 2 {
		return strings.ToUpper(m[1])
	}
	return NormalizeCurrency(fallback)
}

// NormalizeCurrency upper-cases a currency code and defaults to EUR when
// the value is not a 3-letter code.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "EUR"
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "EUR"
		}
	}
	return code
}

func parseAmount(text string) float64 {
	token := numberRegexp.FindString(text)
	token = strings.TrimRight(token, ".,")
	if token == "" {
		return 0
	}

	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	var cleaned string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = withDecimalMark(token, ',', lastComma)
		} else {
			cleaned = withDecimalMark(token, '.', lastDot)
		}
	case lastComma >= 0:
		cleaned = resolveSingleSeparator(token, ',', lastComma)
	case lastDot >= 0:
		cleaned = resolveSingleSeparator(token, '.', lastDot)
	default:
		cleaned = token
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount < 0 {
		return 0
	}
	return amount
}

func resolveSingleSeparator(token string, sep byte, last int) string {
	if len(token)-last-1 == 2 {
		return withDecimalMark(token, sep, last)
	}
	return stripSeparators(token)
}

// withDecimalMark keeps only the separator at index pos, as '.', and
// drops every other separator.
func withDecimalMark(token string, sep byte, pos int) string {
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case i == pos && c == sep:
			b.WriteByte('.')
		case c == '.' || c == ',':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func stripSeparators(token string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(token)
}
