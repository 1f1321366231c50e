package transform

import "testing"

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		locale   string
		want     string
	}{
		{"usd en-US", 19.9, "USD", "en-US", "$19.90"},
		{"usd grouping", 1000000, "USD", "en-US", "$1,000,000.00"},
		{"empty locale uses default", 5, "USD", "", "$5.00"},
		{"negative", -5, "USD", "en", "-$5.00"},
		{"rounds half away from zero", 0.005, "USD", "en", "$0.01"},
		{"lowercase currency", 3.5, "usd", "en", "$3.50"},
		{"eur de-DE", 1234.5, "EUR", "de-DE", "1.234,50 €"},
		{"eur fr-FR", 19.9, "EUR", "fr-FR", "19,90 €"},
		{"eur nl-NL", 19.9, "EUR", "nl-NL", "€ 19,90"},
		{"jpy has no minor unit", 1234.5, "JPY", "en", "¥1,235"},
		{"gbp en-GB", 12, "GBP", "en-GB", "£12.00"},
		{"code without symbol", 19.9, "CHF", "en", "CHF 19.90"},
		{"locale without placement rule", 19.9, "USD", "sw", "$19.90"},
		{"eur fr grouping", 1234.5, "EUR", "fr", "1\u00a0234,50 €"},
		{"brl pt-BR", 1234.5, "BRL", "pt-BR", "R$ 1.234,50"},
		{"eur pt-BR separators", 1234.5, "EUR", "pt-BR", "€ 1.234,50"},
		{"rub ru", 1234.5, "RUB", "ru", "1\u00a0234,50 ₽"},
		{"inr hi lakh grouping", 1234567, "INR", "hi", "₹12,34,567.00"},
		{"vnd vi", 25000, "VND", "vi-VN", "25.000 ₫"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatPrice(tt.amount, tt.currency, tt.locale)
			if err != nil {
				t.Fatalf("FormatPrice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatPrice(%v, %q, %q) = %q, want %q", tt.amount, tt.currency, tt.locale, got, tt.want)
			}
		})
	}
}

func TestFormatPrice_Errors(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		locale   string
	}{
		{"unknown currency", "XYZ", "en"},
		{"empty currency", "", "en"},
		{"malformed locale", "USD", "!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FormatPrice(10, tt.currency, tt.locale); err == nil {
				t.Errorf("FormatPrice(10, %q, %q) expected error", tt.currency, tt.locale)
			}
		})
	}
}

func TestFormatPrice_Deterministic(t *testing.T) {
	first, err := FormatPrice(42.42, "EUR", "de")
	if err != nil {
		t.Fatalf("FormatPrice() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		got, _ := FormatPrice(42.42, "EUR", "de")
		if got != first {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
}

func TestDiscountPercent(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		compareAt float64
		want      int
	}{
		{"twenty percent", 80, 100, 20},
		{"rounded", 19.99, 24.99, 20},
		{"equal prices", 100, 100, 0},
		{"price above compare", 120, 100, 0},
		{"no compare price", 10, 0, 0},
		{"free", 0, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscountPercent(tt.price, tt.compareAt); got != tt.want {
				t.Errorf("DiscountPercent(%v, %v) = %d, want %d", tt.price, tt.compareAt, got, tt.want)
			}
		})
	}
}
