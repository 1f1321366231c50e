// Package catalog exposes the storefront's CDN resources as typed queries.
//
// Upstream payloads pass through a normalization boundary before any
// caller sees them: every resource has a wire struct listing the field
// aliases it accepts, a normalize step that produces the canonical type,
// and struct-tag validation. A payload that does not fit fails with a
// *ValidationError rather than being guessed at.
//
// Each accessor binds an endpoint, cache tags and a TTL:
//
//	a := catalog.NewAccessors(fetcher)
//	q := a.Products(catalog.ProductFilter{Category: "face-serum"})
//	state := q.Refresh(ctx)
//	if state.Err != nil && !state.HasData {
//	    // render the error
//	}
//
// Cache tags used by this package:
//
//	products, featured, product:<slug>, category:<slug>
//	categories, collections, banners, blog, company, home
package catalog
