package catalog

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/storefront-cdn/internal/testutil"
	"github.com/Sternrassler/storefront-cdn/pkg/cache"
	"github.com/Sternrassler/storefront-cdn/pkg/client"
	"github.com/Sternrassler/storefront-cdn/pkg/logging"
)

func newTestAccessors(t *testing.T) (*Accessors, *testutil.MockCDN) {
	t.Helper()

	mock := testutil.NewMockCDN()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig(cache.NewManager())
	cfg.BaseURL = mock.URL()
	cfg.Timeout = time.Second
	cfg.Retry = client.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond}

	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { fetcher.Close() })

	return NewAccessors(fetcher), mock
}

var sampleProducts = []map[string]any{
	{"id": "p1", "name": "Vitamin C Serum", "price": 19.9, "quantity": 12, "category": "face-serum"},
	{"id": "p2", "title": "Retinol Night Cream", "price": 32, "stock": 2},
}

func TestProducts_CachesBetweenRefreshes(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/products", testutil.NewEnvelopeResponse(sampleProducts))
	ctx := context.Background()

	q := a.Products(ProductFilter{})

	first := q.Refresh(ctx)
	if first.Err != nil {
		t.Fatalf("Refresh() error = %v", first.Err)
	}
	if len(first.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(first.Data))
	}
	if first.Data[1].Slug != "retinol-night-cream" || first.Data[1].Quantity != 2 {
		t.Errorf("second product = %+v, want normalized aliases", first.Data[1])
	}

	second := q.Refresh(ctx)
	if second.Err != nil {
		t.Fatalf("second Refresh() error = %v", second.Err)
	}
	if got := mock.PathCount("/products"); got != 1 {
		t.Errorf("CDN calls after two refreshes = %d, want 1", got)
	}

	if s := q.Revalidate(ctx); s.Err != nil {
		t.Fatalf("Revalidate() error = %v", s.Err)
	}
	if got := mock.PathCount("/products"); got != 2 {
		t.Errorf("CDN calls after revalidate = %d, want 2", got)
	}

	// the revalidated payload was written back
	q.Refresh(ctx)
	if got := mock.PathCount("/products"); got != 2 {
		t.Errorf("CDN calls after refresh following revalidate = %d, want 2", got)
	}
}

func TestProductFilter(t *testing.T) {
	ten, fifty := 10.0, 50.5

	tests := []struct {
		name         string
		filter       ProductFilter
		wantEndpoint string
		wantTags     []string
	}{
		{
			name:         "empty",
			filter:       ProductFilter{},
			wantEndpoint: "/products",
			wantTags:     []string{"products"},
		},
		{
			name:         "category",
			filter:       ProductFilter{Category: "face-serum"},
			wantEndpoint: "/products?category=face-serum",
			wantTags:     []string{"products", "category:face-serum"},
		},
		{
			name:         "all fields",
			filter:       ProductFilter{Category: "masks", MinPrice: &ten, MaxPrice: &fifty, Search: " clay mask "},
			wantEndpoint: "/products?category=masks&maxPrice=50.5&minPrice=10&search=clay+mask",
			wantTags:     []string{"products", "category:masks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Endpoint(); got != tt.wantEndpoint {
				t.Errorf("Endpoint() = %q, want %q", got, tt.wantEndpoint)
			}
			if diff := cmp.Diff(tt.wantTags, tt.filter.Tags()); diff != "" {
				t.Errorf("Tags() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProducts_InvalidFilter(t *testing.T) {
	a, mock := newTestAccessors(t)
	lo, hi := 50.0, 10.0

	s := a.Products(ProductFilter{MinPrice: &lo, MaxPrice: &hi}).Refresh(context.Background())
	if !errors.Is(s.Err, ErrInvalidParam) {
		t.Errorf("Err = %v, want ErrInvalidParam", s.Err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("invalid filter reached the CDN")
	}
}

func TestProducts_FilterTagInvalidation(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/products", testutil.NewEnvelopeResponse(sampleProducts[:1]))
	ctx := context.Background()

	serums := a.Products(ProductFilter{Category: "face-serum"})
	all := a.Products(ProductFilter{})
	serums.Refresh(ctx)
	all.Refresh(ctx)
	if got := mock.PathCount("/products"); got != 2 {
		t.Fatalf("CDN calls = %d, want 2 (distinct keys)", got)
	}

	if n := a.Fetcher().InvalidateCache(ctx, CategoryTag("face-serum")); n != 1 {
		t.Errorf("InvalidateCache() = %d, want 1", n)
	}

	serums.Refresh(ctx)
	all.Refresh(ctx)
	if got := mock.PathCount("/products"); got != 3 {
		t.Errorf("CDN calls after invalidation = %d, want 3", got)
	}
}

func TestProductBySlug(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/products/vitamin-c-serum", testutil.NewEnvelopeResponse(sampleProducts[0]))
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		s := a.ProductBySlug("vitamin-c-serum").Refresh(ctx)
		if s.Err != nil {
			t.Fatalf("Refresh() error = %v", s.Err)
		}
		if s.Data.Name != "Vitamin C Serum" || !s.Data.InStock {
			t.Errorf("Data = %+v", s.Data)
		}
	})

	t.Run("not found", func(t *testing.T) {
		s := a.ProductBySlug("missing").Refresh(ctx)
		if !errors.Is(s.Err, ErrNotFound) {
			t.Fatalf("Err = %v, want ErrNotFound", s.Err)
		}
		if code := client.CodeOf(s.Err); code != client.CodeHTTP {
			t.Errorf("CodeOf() = %s, want %s", code, client.CodeHTTP)
		}
		if got := mock.PathCount("/products/missing"); got != 1 {
			t.Errorf("404 requested %d times, want 1 (not retried)", got)
		}
	})

	t.Run("empty slug", func(t *testing.T) {
		s := a.ProductBySlug("  ").Refresh(ctx)
		if !errors.Is(s.Err, ErrInvalidParam) {
			t.Errorf("Err = %v, want ErrInvalidParam", s.Err)
		}
	})

	t.Run("product tag invalidation", func(t *testing.T) {
		before := mock.PathCount("/products/vitamin-c-serum")
		a.Fetcher().InvalidateCache(ctx, ProductTag("vitamin-c-serum"))
		a.ProductBySlug("vitamin-c-serum").Refresh(ctx)
		if got := mock.PathCount("/products/vitamin-c-serum"); got != before+1 {
			t.Errorf("CDN calls = %d, want %d", got, before+1)
		}
	})
}

func TestProductBySlug_ReservedCharacters(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/products/serum", testutil.NewEnvelopeResponse(sampleProducts[1]))
	ctx := context.Background()

	tests := []struct {
		slug        string
		cdnPath     string
		cdnEscaped  string
		wantProduct string
	}{
		{"serum#travel", "/products/serum#travel", "/products/serum%23travel", "p1"},
		{"a/b", "/products/a/b", "/products/a%2Fb", "p1"},
		{"why?", "/products/why?", "/products/why%3F", "p1"},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			mock.SetHandler(tt.cdnPath, func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.EscapedPath(); got != tt.cdnEscaped {
					t.Errorf("CDN path = %q, want %q", got, tt.cdnEscaped)
				}
				if r.URL.RawQuery != "" {
					t.Errorf("slug leaked into query %q", r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"p1","name":"Vitamin C Serum","price":19.9,"quantity":12}`))
			})

			s := a.ProductBySlug(tt.slug).Refresh(ctx)
			if s.Err != nil {
				t.Fatalf("Refresh() error = %v", s.Err)
			}
			if s.Data.ID != tt.wantProduct {
				t.Errorf("ID = %q, want %q", s.Data.ID, tt.wantProduct)
			}
			if _, ok := a.Fetcher().Cache().Entry(cache.KeyPrefix + tt.cdnEscaped); !ok {
				t.Errorf("entry %q not cached", cache.KeyPrefix+tt.cdnEscaped)
			}
		})
	}

	if got := mock.PathCount("/products/serum"); got != 0 {
		t.Errorf("truncated slug fetched /products/serum %d times", got)
	}
}

func TestCategoryTree(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/categories", testutil.NewRawResponse(`[
		{"id":"skin","name":"Skin Care"},
		{"id":"serum","name":"Serums","parentId":"skin"},
		{"id":"hair","name":"Hair"},
		{"id":"lost","name":"Lost","parentId":"nowhere"}
	]`))
	ctx := context.Background()

	s := a.CategoryTree().Refresh(ctx)
	if s.Err != nil {
		t.Fatalf("Refresh() error = %v", s.Err)
	}

	var roots []string
	for _, n := range s.Data {
		roots = append(roots, n.Item.ID)
	}
	if diff := cmp.Diff([]string{"skin", "hair", "lost"}, roots); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
	if len(s.Data[0].Children) != 1 || s.Data[0].Children[0].Item.ID != "serum" {
		t.Errorf("skin children = %+v, want [serum]", s.Data[0].Children)
	}

	// the flat list shares the cache entry
	if flat := a.Categories().Refresh(ctx); len(flat.Data) != 4 {
		t.Errorf("Categories() len = %d, want 4", len(flat.Data))
	}
	if got := mock.PathCount("/categories"); got != 1 {
		t.Errorf("CDN calls = %d, want 1", got)
	}
}

func TestBanners_RejectsBadRecord(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/banners", testutil.NewEnvelopeResponse([]map[string]any{
		{"id": 1, "title": "Summer", "imageSrc": "s.jpg"},
		{"id": 2, "name": "No image"},
	}))

	s := a.Banners().Refresh(context.Background())

	var ve *ValidationError
	if !errors.As(s.Err, &ve) {
		t.Fatalf("Err = %v, want *ValidationError", s.Err)
	}
	if ve.Index != 1 || ve.Field != "imageSrc" {
		t.Errorf("ValidationError = %+v, want index 1 field imageSrc", ve)
	}
	if s.HasData {
		t.Error("rejected payload should not produce data")
	}
}

func TestBanners_RejectionLogged(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/banners", testutil.NewEnvelopeResponse([]map[string]any{
		{"id": 1, "name": "No image"},
	}))

	var buf bytes.Buffer
	ctx := logging.WithContext(context.Background(), zerolog.New(&buf).With().Str("request_id", "req-7").Logger())

	s := a.Banners().Refresh(ctx)
	if s.Err == nil {
		t.Fatal("expected validation error")
	}

	output := buf.String()
	for _, want := range []string{`"level":"warn"`, `"endpoint":"/banners"`, `"request_id":"req-7"`, "Rejected CDN payload"} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %s: %q", want, output)
		}
	}
}

func TestBanners_RejectedPayloadKeepsGoodEntry(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	mock := testutil.NewMockCDN()
	defer mock.Close()

	cfg := client.DefaultConfig(cache.NewManager(cache.WithClock(now)))
	cfg.BaseURL = mock.URL()
	cfg.Timeout = time.Second
	cfg.Retry = client.RetryConfig{Attempts: 1}
	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	a := NewAccessors(fetcher)
	ctx := context.Background()

	mock.SetSequence("/banners",
		testutil.NewEnvelopeResponse([]map[string]any{{"id": "b1", "title": "Summer", "imageSrc": "s.jpg"}}),
		testutil.NewEnvelopeResponse([]map[string]any{{"id": "b1"}}),
		testutil.NewServerErrorResponse(),
	)

	if s := a.Banners().Refresh(ctx); s.Err != nil {
		t.Fatalf("first Refresh() error = %v", s.Err)
	}

	clock = clock.Add(BannersTTL + time.Minute)

	tests := []string{"rejected payload", "server error"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			s := a.Banners().Refresh(ctx)
			if !s.HasData || !s.Stale {
				t.Fatalf("state = %+v, want stale data", s)
			}
			if len(s.Data) != 1 || s.Data[0].Title != "Summer" {
				t.Errorf("Data = %+v, want the last good banner", s.Data)
			}
		})
	}

	if got := mock.PathCount("/banners"); got != 3 {
		t.Errorf("CDN calls = %d, want 3", got)
	}
}

func TestBlogPostsAndCompany(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/blog/posts", testutil.NewEnvelopeResponse(map[string]any{
		"items": []map[string]any{
			{"id": 1, "title": "Layering Serums", "content": "Thin to thick.", "publishedAt": "2024-01-02T00:00:00Z"},
		},
	}))
	mock.SetResponse("/company", testutil.NewEnvelopeResponse(map[string]any{
		"name":  "Glow Co",
		"email": "hello@glow.example",
	}))
	ctx := context.Background()

	posts := a.BlogPosts().Refresh(ctx)
	if posts.Err != nil {
		t.Fatalf("BlogPosts error = %v", posts.Err)
	}
	if len(posts.Data) != 1 || posts.Data[0].Slug != "layering-serums" || posts.Data[0].ReadingTime != 1 {
		t.Errorf("posts = %+v", posts.Data)
	}

	company := a.CompanyInfo().Refresh(ctx)
	if company.Err != nil {
		t.Fatalf("CompanyInfo error = %v", company.Err)
	}
	if company.Data.Name != "Glow Co" {
		t.Errorf("Name = %q, want Glow Co", company.Data.Name)
	}

	entry, ok := a.Fetcher().Cache().Entry("cdn:/company")
	if !ok {
		t.Fatal("company entry not cached")
	}
	if entry.TTL != CompanyTTL || !entry.HasTag(TagCompany) {
		t.Errorf("company entry TTL=%s tags=%v, want %s [company]", entry.TTL, entry.Tags, CompanyTTL)
	}
}

func TestAccessor_StaleOnFailure(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	mock := testutil.NewMockCDN()
	defer mock.Close()

	cfg := client.DefaultConfig(cache.NewManager(cache.WithClock(now)))
	cfg.BaseURL = mock.URL()
	cfg.Timeout = time.Second
	cfg.Retry = client.RetryConfig{Attempts: 2, BaseDelay: time.Millisecond}
	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	a := NewAccessors(fetcher)
	ctx := context.Background()

	mock.SetResponse("/banners", testutil.NewEnvelopeResponse([]map[string]any{
		{"id": 1, "title": "Summer", "imageSrc": "s.jpg"},
	}))
	q := a.Banners()
	if s := q.Refresh(ctx); s.Err != nil || s.Stale {
		t.Fatalf("first Refresh() = %+v", s)
	}

	clock = clock.Add(BannersTTL + time.Minute)
	mock.SetResponse("/banners", testutil.MockCDNResponse{StatusCode: http.StatusBadGateway, Body: `{}`})

	s := q.Refresh(ctx)
	if s.Err != nil {
		t.Fatalf("Refresh() error = %v, want stale data", s.Err)
	}
	if !s.Stale || len(s.Data) != 1 {
		t.Errorf("state = %+v, want stale banner", s)
	}
}

func TestHome(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/banners", testutil.NewEnvelopeResponse([]map[string]any{
		{"id": 1, "title": "Summer", "imageSrc": "s.jpg"},
	}))
	mock.SetResponse("/categories", testutil.NewRawResponse(`[{"id":"skin","name":"Skin"}]`))
	mock.SetResponse("/products/featured", testutil.NewServerErrorResponse())

	home := a.Home(context.Background())

	if len(home.Banners) != 1 || len(home.Categories) != 1 {
		t.Errorf("home = %+v, want banners and categories", home)
	}
	if diff := cmp.Diff([]string{"featured", "collections"}, home.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if home.Stale {
		t.Error("Stale = true, want false")
	}

	// sections share cache entries with the individual accessors
	a.Banners().Refresh(context.Background())
	if got := mock.PathCount("/banners"); got != 1 {
		t.Errorf("banner CDN calls = %d, want 1", got)
	}

	n := a.Fetcher().InvalidateCache(context.Background(), TagHome)
	if n != 2 {
		t.Errorf("InvalidateCache(home) = %d, want 2", n)
	}
}

func TestHome_KeepsSectionPolicies(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/banners", testutil.NewEnvelopeResponse([]map[string]any{
		{"id": 1, "title": "Summer", "imageSrc": "s.jpg"},
	}))
	mock.SetResponse("/categories", testutil.NewRawResponse(`[{"id":"skin","name":"Skin"}]`))
	mock.SetResponse("/collections", testutil.NewRawResponse(`[{"id":"c1","name":"Summer Edit"}]`))
	mock.SetResponse("/products/featured", testutil.NewEnvelopeResponse(sampleProducts[:1]))
	ctx := context.Background()

	if s := a.Categories().Refresh(ctx); s.Err != nil {
		t.Fatalf("Categories() error = %v", s.Err)
	}

	home := a.Home(ctx)
	if len(home.Missing) != 0 {
		t.Fatalf("Missing = %v, want none", home.Missing)
	}

	tests := []struct {
		key     string
		ttl     time.Duration
		wantTag string
	}{
		{"cdn:/banners", BannersTTL, TagBanners},
		{"cdn:/products/featured", ProductsTTL, TagFeatured},
		{"cdn:/categories", CategoriesTTL, TagCategories},
		{"cdn:/collections", CollectionsTTL, TagCollections},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			entry, ok := a.Fetcher().Cache().Entry(tt.key)
			if !ok {
				t.Fatal("entry missing")
			}
			if entry.TTL != tt.ttl {
				t.Errorf("TTL = %v, want %v", entry.TTL, tt.ttl)
			}
			if !entry.HasTag(tt.wantTag) || !entry.HasTag(TagHome) {
				t.Errorf("Tags = %v, want %s and %s", entry.Tags, tt.wantTag, TagHome)
			}
		})
	}
}

func TestHome_RejectedSectionNotCached(t *testing.T) {
	a, mock := newTestAccessors(t)
	mock.SetResponse("/banners", testutil.NewEnvelopeResponse([]map[string]any{{"id": 1}}))
	mock.SetResponse("/categories", testutil.NewRawResponse(`[{"id":"skin","name":"Skin"}]`))

	home := a.Home(context.Background())

	if !slices.Contains(home.Missing, "banners") {
		t.Errorf("Missing = %v, want banners", home.Missing)
	}
	if _, ok := a.Fetcher().Cache().Entry("cdn:/banners"); ok {
		t.Error("rejected banners payload was cached")
	}
}
