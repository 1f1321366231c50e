package transform

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used when no locale is given.
const DefaultLocale = "en"

// x/text carries CLDR separators, grouping and symbols but not currency
// patterns, so symbol placement is kept per base language. Languages not
// listed put the symbol first without a space.
var (
	symbolAfter = map[string]bool{
		"cs": true, "da": true, "de": true, "es": true, "fi": true, "fr": true,
		"it": true, "nb": true, "pl": true, "ru": true, "sv": true, "uk": true,
		"vi": true,
	}
	spacedPrefix = map[string]bool{
		"nl": true, "pt": true,
	}
)

// FormatPrice renders amount in the given ISO 4217 currency using the
// conventions of locale (a BCP 47 tag such as "en-US" or "de").
// Amounts are rounded half away from zero to the currency's standard scale.
func FormatPrice(amount float64, currencyCode, locale string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		return "", fmt.Errorf("currency %q: %w", currencyCode, err)
	}

	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("locale %q: %w", locale, err)
	}

	scale, _ := currency.Standard.Rounding(unit)
	value := decimal.NewFromFloat(amount).Round(int32(scale))

	p := message.NewPrinter(tag)
	digits := p.Sprint(number.Decimal(value.Abs().InexactFloat64(), number.Scale(scale)))
	symbol := p.Sprint(currency.NarrowSymbol(unit))

	base, _ := tag.Base()
	var out string
	switch {
	case symbolAfter[base.String()]:
		out = digits + " " + symbol
	case spacedPrefix[base.String()] || endsWithLetter(symbol):
		out = symbol + " " + digits
	default:
		out = symbol + digits
	}
	if value.IsNegative() {
		out = "-" + out
	}
	return out, nil
}

// endsWithLetter reports whether symbol is a bare code such as "CHF",
// which needs a space before the digits.
func endsWithLetter(symbol string) bool {
	r, _ := utf8.DecodeLastRuneInString(symbol)
	return unicode.IsLetter(r)
}

// DiscountPercent returns how much cheaper price is than compareAt, as a
// whole percentage. It is 0 when there is no real discount.
func DiscountPercent(price, compareAt float64) int {
	if compareAt <= 0 || price >= compareAt {
		return 0
	}

	p := decimal.NewFromFloat(price)
	c := decimal.NewFromFloat(compareAt)
	pct := c.Sub(p).Div(c).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}
