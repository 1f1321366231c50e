package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/storefront-cdn/pkg/cache"
	"github.com/Sternrassler/storefront-cdn/pkg/client"
	"github.com/Sternrassler/storefront-cdn/pkg/logging"
	"github.com/Sternrassler/storefront-cdn/pkg/query"
)

// Cache lifetimes per resource, tuned to how often each changes.
const (
	ProductsTTL    = 5 * time.Minute
	CategoriesTTL  = 30 * time.Minute
	CollectionsTTL = 30 * time.Minute
	BannersTTL     = 5 * time.Minute
	BlogTTL        = 10 * time.Minute
	CompanyTTL     = time.Hour
)

// Cache tags.
const (
	TagProducts    = "products"
	TagFeatured    = "featured"
	TagCategories  = "categories"
	TagCollections = "collections"
	TagBanners     = "banners"
	TagBlog        = "blog"
	TagCompany     = "company"
	TagHome        = "home"
)

// RouteProduct labels metrics of single-product fetches.
const RouteProduct = EndpointProducts + "/{slug}"

// Endpoints.
const (
	EndpointProducts    = "/products"
	EndpointFeatured    = "/products/featured"
	EndpointCategories  = "/categories"
	EndpointCollections = "/collections"
	EndpointBanners     = "/banners"
	EndpointBlogPosts   = "/blog/posts"
	EndpointCompany     = "/company"
)

// ProductTag is the tag of a single product's entry.
func ProductTag(slug string) string { return "product:" + slug }

// CategoryTag is the tag of product listings filtered by a category.
func CategoryTag(slug string) string { return "category:" + slug }

func policy(ttl time.Duration, tags ...string) cache.Config {
	return cache.Config{TTL: ttl, Tags: tags}
}

// Accessors builds typed queries over a CDN fetcher.
type Accessors struct {
	fetcher *client.Fetcher
	logger  zerolog.Logger
}

// NewAccessors creates accessors backed by f.
func NewAccessors(f *client.Fetcher) *Accessors {
	return &Accessors{
		fetcher: f,
		logger:  logging.NewLogger(logging.ComponentCatalog),
	}
}

// Fetcher returns the underlying fetcher.
func (a *Accessors) Fetcher() *client.Fetcher {
	return a.fetcher
}

// ProductFilter narrows the product listing. Zero fields are omitted.
type ProductFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Search   string
}

func (f ProductFilter) validate() error {
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return fmt.Errorf("%w: minPrice %v < 0", ErrInvalidParam, *f.MinPrice)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return fmt.Errorf("%w: minPrice %v > maxPrice %v", ErrInvalidParam, *f.MinPrice, *f.MaxPrice)
	}
	return nil
}

// Endpoint returns the listing endpoint including the filter query.
func (f ProductFilter) Endpoint() string {
	q := url.Values{}
	if c := strings.TrimSpace(f.Category); c != "" {
		q.Set("category", c)
	}
	if f.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if len(q) == 0 {
		return EndpointProducts
	}
	return EndpointProducts + "?" + q.Encode()
}

// Tags returns the cache tags for the filtered listing.
func (f ProductFilter) Tags() []string {
	tags := []string{TagProducts}
	if c := strings.TrimSpace(f.Category); c != "" {
		tags = append(tags, CategoryTag(c))
	}
	return tags
}

// Products lists products matching filter.
func (a *Accessors) Products(filter ProductFilter) *query.Query[[]Product] {
	if err := filter.validate(); err != nil {
		return failing[[]Product](err)
	}
	return query.New(fetchFunc(a, filter.Endpoint(),
		policy(ProductsTTL, filter.Tags()...),
		decodeList("product", productWire.normalize)))
}

// ProductBySlug loads one product. A 404 yields ErrNotFound.
func (a *Accessors) ProductBySlug(slug string) *query.Query[Product] {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return failing[Product](fmt.Errorf("%w: empty product slug", ErrInvalidParam))
	}

	fetch := fetchRoute(a, EndpointProducts+"/"+url.PathEscape(slug), RouteProduct,
		policy(ProductsTTL, TagProducts, ProductTag(slug)),
		decodeOne("product", productWire.normalize))

	return query.New(func(ctx context.Context, revalidate bool) (Product, bool, error) {
		p, stale, err := fetch(ctx, revalidate)
		if isNotFound(err) {
			return p, stale, fmt.Errorf("%w: product %q: %w", ErrNotFound, slug, err)
		}
		return p, stale, err
	})
}

// FeaturedProducts lists products flagged for the home page.
func (a *Accessors) FeaturedProducts() *query.Query[[]Product] {
	return query.New(fetchFunc(a, EndpointFeatured,
		policy(ProductsTTL, TagProducts, TagFeatured),
		decodeList("product", productWire.normalize)))
}

// Categories lists all categories flat.
func (a *Accessors) Categories() *query.Query[[]Category] {
	return query.New(fetchFunc(a, EndpointCategories,
		policy(CategoriesTTL, TagCategories),
		decodeList("category", categoryWire.normalize)))
}

// CategoryTree lists categories arranged by parent.
func (a *Accessors) CategoryTree() *query.Query[[]*CategoryNode] {
	flat := fetchFunc(a, EndpointCategories,
		policy(CategoriesTTL, TagCategories),
		decodeList("category", categoryWire.normalize))

	return query.New(func(ctx context.Context, revalidate bool) ([]*CategoryNode, bool, error) {
		categories, stale, err := flat(ctx, revalidate)
		if err != nil {
			return nil, false, err
		}
		return BuildCategoryTree(categories), stale, nil
	})
}

// Collections lists curated collections.
func (a *Accessors) Collections() *query.Query[[]Collection] {
	return query.New(fetchFunc(a, EndpointCollections,
		policy(CollectionsTTL, TagCollections),
		decodeList("collection", collectionWire.normalize)))
}

// Banners lists hero slides.
func (a *Accessors) Banners() *query.Query[[]Banner] {
	return query.New(fetchFunc(a, EndpointBanners,
		policy(BannersTTL, TagBanners),
		decodeList("banner", bannerWire.normalize)))
}

// BlogPosts lists published posts.
func (a *Accessors) BlogPosts() *query.Query[[]BlogPost] {
	return query.New(fetchFunc(a, EndpointBlogPosts,
		policy(BlogTTL, TagBlog),
		decodeList("blog post", blogPostWire.normalize)))
}

// CompanyInfo loads contact and about data.
func (a *Accessors) CompanyInfo() *query.Query[CompanyInfo] {
	return query.New(fetchFunc(a, EndpointCompany,
		policy(CompanyTTL, TagCompany),
		decodeOne("company", companyWire.normalize)))
}

// fetchFunc binds endpoint, cache policy and decoder into a query fetch.
func fetchFunc[T any](a *Accessors, endpoint string, cfg cache.Config, decode func(json.RawMessage) (T, error)) query.FetchFunc[T] {
	return fetchRoute(a, endpoint, "", cfg, decode)
}

// fetchRoute is fetchFunc with an explicit metrics route. The decoder
// doubles as the fetch's validator, so a payload it rejects is never
// cached and an older entry can still be served stale.
func fetchRoute[T any](a *Accessors, endpoint, route string, cfg cache.Config, decode func(json.RawMessage) (T, error)) query.FetchFunc[T] {
	return func(ctx context.Context, revalidate bool) (T, bool, error) {
		var (
			zero    T
			data    T
			decoded bool
		)

		resp, err := a.fetcher.Fetch(ctx, endpoint, client.Options{
			Revalidate:  revalidate,
			CacheConfig: &cfg,
			Route:       route,
			Validate: func(raw json.RawMessage) error {
				v, err := decode(raw)
				if err != nil {
					logger := logging.FromContext(ctx, logging.ComponentCatalog)
					logger.Warn().
						Err(err).
						Str("endpoint", endpoint).
						Msg("Rejected CDN payload")
					return err
				}
				data, decoded = v, true
				return nil
			},
		})
		if err != nil {
			return zero, false, err
		}

		// Cached and stale payloads were validated when stored
		if !decoded {
			if data, err = decode(resp.Data); err != nil {
				return zero, false, err
			}
		}
		return data, resp.Stale, nil
	}
}

// failing returns a query whose every load fails with err.
func failing[T any](err error) *query.Query[T] {
	return query.New(func(context.Context, bool) (T, bool, error) {
		var zero T
		return zero, false, err
	})
}

func isNotFound(err error) bool {
	var fetchErr *client.CDNFetchError
	return errors.As(err, &fetchErr) && fetchErr.HTTPStatus == http.StatusNotFound
}
