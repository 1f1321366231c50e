package catalog

import (
	"context"
	"encoding/json"

	"github.com/Sternrassler/storefront-cdn/pkg/cache"
	"github.com/Sternrassler/storefront-cdn/pkg/client"
)

// Home bundles the resources rendered on the landing page. Each section
// is optional: a section that failed is listed in Missing.
type Home struct {
	Banners     []Banner     `json:"banners"`
	Featured    []Product    `json:"featured"`
	Categories  []Category   `json:"categories"`
	Collections []Collection `json:"collections"`
	Missing     []string     `json:"missing,omitempty"`
	Stale       bool         `json:"stale"`
}

const (
	homeBanners     = "banners"
	homeFeatured    = "featured"
	homeCategories  = "categories"
	homeCollections = "collections"
)

// Home loads the landing page sections in one concurrent batch. Each
// section is cached under the same key and policy as its own accessor, plus
// the home tag, so loading Home never shortens a sibling entry's lifetime.
func (a *Accessors) Home(ctx context.Context) Home {
	responses := a.fetcher.FetchEach(ctx, map[string]client.Request{
		homeBanners: homeRequest(EndpointBanners,
			policy(BannersTTL, TagHome, TagBanners), decodeList("banner", bannerWire.normalize)),
		homeFeatured: homeRequest(EndpointFeatured,
			policy(ProductsTTL, TagHome, TagProducts, TagFeatured), decodeList("product", productWire.normalize)),
		homeCategories: homeRequest(EndpointCategories,
			policy(CategoriesTTL, TagHome, TagCategories), decodeList("category", categoryWire.normalize)),
		homeCollections: homeRequest(EndpointCollections,
			policy(CollectionsTTL, TagHome, TagCollections), decodeList("collection", collectionWire.normalize)),
	})

	var home Home
	section(a, &home, responses, homeBanners, decodeList("banner", bannerWire.normalize), &home.Banners)
	section(a, &home, responses, homeFeatured, decodeList("product", productWire.normalize), &home.Featured)
	section(a, &home, responses, homeCategories, decodeList("category", categoryWire.normalize), &home.Categories)
	section(a, &home, responses, homeCollections, decodeList("collection", collectionWire.normalize), &home.Collections)
	return home
}

func homeRequest[T any](endpoint string, cfg cache.Config, decode func(json.RawMessage) (T, error)) client.Request {
	return client.Request{
		Endpoint: endpoint,
		Options: client.Options{
			CacheConfig: &cfg,
			Validate: func(raw json.RawMessage) error {
				_, err := decode(raw)
				return err
			},
		},
	}
}

func section[T any](a *Accessors, home *Home, responses map[string]*client.Response, name string, decode func(json.RawMessage) (T, error), dst *T) {
	resp := responses[name]
	if resp == nil {
		home.Missing = append(home.Missing, name)
		return
	}

	v, err := decode(resp.Data)
	if err != nil {
		a.logger.Warn().Err(err).Str("slot", name).Msg("Rejected home section")
		home.Missing = append(home.Missing, name)
		return
	}

	*dst = v
	home.Stale = home.Stale || resp.Stale
}
