package catalog

import (
	"fmt"
	"net/url"

	"github.com/Sternrassler/storefront-cdn/pkg/transform"
)

// ProductView is a product with its display values resolved.
type ProductView struct {
	Product
	DisplayPrice     string               `json:"displayPrice"`
	DisplayCompareAt string               `json:"displayCompareAtPrice,omitempty"`
	DiscountPercent  int                  `json:"discountPercent,omitempty"`
	StockStatus      transform.StockLevel `json:"stockStatus"`
	URL              string               `json:"url"`
}

// ToProductView formats p for display. currency is used when the product
// carries none.
func ToProductView(p Product, currency, locale string) (ProductView, error) {
	if p.Currency != "" {
		currency = p.Currency
	}

	price, err := transform.FormatPrice(p.Price, currency, locale)
	if err != nil {
		return ProductView{}, fmt.Errorf("product %q: %w", p.Slug, err)
	}

	view := ProductView{
		Product:         p,
		DisplayPrice:    price,
		DiscountPercent: transform.DiscountPercent(p.Price, p.CompareAtPrice),
		StockStatus:     transform.StockStatus(p.InStock, p.Quantity),
		URL:             "/products/" + url.PathEscape(p.Slug),
	}

	if view.DiscountPercent > 0 {
		view.DisplayCompareAt, err = transform.FormatPrice(p.CompareAtPrice, currency, locale)
		if err != nil {
			return ProductView{}, fmt.Errorf("product %q: %w", p.Slug, err)
		}
	}
	return view, nil
}

// ToProductViews formats a list of products.
func ToProductViews(products []Product, currency, locale string) ([]ProductView, error) {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		v, err := ToProductView(p, currency, locale)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}
