package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/storefront-cdn/pkg/catalog"
	"github.com/Sternrassler/storefront-cdn/pkg/logging"
	"github.com/Sternrassler/storefront-cdn/pkg/metrics"
	"github.com/Sternrassler/storefront-cdn/pkg/query"
)

// requestTimeout bounds a handler, retries included.
const requestTimeout = 30 * time.Second

type serverOptions struct {
	Currency string
	Locale   string
	Redis    *redis.Client
}

// server holds one long-lived query per fixed resource so a failed
// refresh can still answer with the last good data.
type server struct {
	catalog *catalog.Accessors
	opts    serverOptions

	featured    *query.Query[[]catalog.Product]
	categories  *query.Query[[]catalog.Category]
	tree        *query.Query[[]*catalog.CategoryNode]
	collections *query.Query[[]catalog.Collection]
	banners     *query.Query[[]catalog.Banner]
	blog        *query.Query[[]catalog.BlogPost]
	company     *query.Query[catalog.CompanyInfo]
}

func newServer(a *catalog.Accessors, opts serverOptions) *server {
	return &server{
		catalog:     a,
		opts:        opts,
		featured:    a.FeaturedProducts(),
		categories:  a.Categories(),
		tree:        a.CategoryTree(),
		collections: a.Collections(),
		banners:     a.Banners(),
		blog:        a.BlogPosts(),
		company:     a.CompanyInfo(),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.handleProducts)
		r.Get("/products/featured", s.handleFeatured)
		r.Get("/products/{slug}", s.handleProduct)
		r.Get("/categories", queryHandler(s.categories, identity[[]catalog.Category]))
		r.Get("/categories/tree", queryHandler(s.tree, identity[[]*catalog.CategoryNode]))
		r.Get("/collections", queryHandler(s.collections, identity[[]catalog.Collection]))
		r.Get("/banners", queryHandler(s.banners, identity[[]catalog.Banner]))
		r.Get("/blog", queryHandler(s.blog, identity[[]catalog.BlogPost]))
		r.Get("/company", queryHandler(s.company, identity[catalog.CompanyInfo]))
		r.Get("/home", s.handleHome)
		r.Post("/cache/invalidate", s.handleInvalidate)
	})

	return r
}

// requestLogger installs a request-scoped logger and logs each request.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLogger := log.With().Str("request_id", chimw.GetReqID(r.Context())).Logger()
		r = r.WithContext(logging.WithContext(r.Context(), reqLogger))

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := logging.FromContext(r.Context(), logging.ComponentServer)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status       string `json:"status"`
		CacheEntries int    `json:"cache_entries"`
		Redis        string `json:"redis"`
	}

	h := health{
		Status:       "ok",
		CacheEntries: s.catalog.Fetcher().Cache().Stats().Size,
		Redis:        "disabled",
	}
	if s.opts.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Redis.Ping(ctx).Err(); err != nil {
			h.Redis = "unavailable"
			h.Status = "degraded"
		} else {
			h.Redis = "ok"
		}
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	state := load(r, s.catalog.Products(filter))
	writeState(w, state, s.productViews)
}

func (s *server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	writeState(w, load(r, s.featured), s.productViews)
}

func (s *server) handleProduct(w http.ResponseWriter, r *http.Request) {
	slug, err := pathParam(r, "slug")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slug", err.Error())
		return
	}

	state := load(r, s.catalog.ProductBySlug(slug))
	writeState(w, state, func(p catalog.Product) (any, error) {
		return catalog.ToProductView(p, s.opts.Currency, s.opts.Locale)
	})
}

// pathParam returns the decoded URL parameter. chi matches against RawPath
// when the request carries one, and then the parameter is still escaped.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	home := s.catalog.Home(r.Context())

	featured, err := catalog.ToProductViews(home.Featured, s.opts.Currency, s.opts.Locale)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "format_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]any{
			"banners":     home.Banners,
			"featured":    featured,
			"categories":  home.Categories,
			"collections": home.Collections,
			"missing":     home.Missing,
		},
		Stale: home.Stale,
	})
}

func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query()["tag"]
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		writeError(w, http.StatusBadRequest, "missing_tag", "at least one tag query parameter is required")
		return
	}

	removed := s.catalog.Fetcher().InvalidateCache(r.Context(), cleaned...)
	logger := logging.FromContext(r.Context(), logging.ComponentServer)
	logger.Info().Strs("tags", cleaned).Int("removed", removed).Msg("Cache invalidated")

	writeJSON(w, http.StatusOK, response{
		Data: map[string]any{"tags": cleaned, "removed": removed},
	})
}

func (s *server) productViews(products []catalog.Product) (any, error) {
	return catalog.ToProductViews(products, s.opts.Currency, s.opts.Locale)
}

func parseProductFilter(r *http.Request) (catalog.ProductFilter, error) {
	q := r.URL.Query()
	filter := catalog.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}

	for name, dst := range map[string]**float64{"minPrice": &filter.MinPrice, "maxPrice": &filter.MaxPrice} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, &paramError{name: name, value: raw}
		}
		*dst = &v
	}
	return filter, nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return e.name + ": not a number: " + strconv.Quote(e.value)
}

// load refreshes q, or revalidates it when ?revalidate=true.
func load[T any](r *http.Request, q *query.Query[T]) query.State[T] {
	if revalidate, _ := strconv.ParseBool(r.URL.Query().Get("revalidate")); revalidate {
		return q.Revalidate(r.Context())
	}
	return q.Refresh(r.Context())
}

func queryHandler[T any](q *query.Query[T], view func(T) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeState(w, load(r, q), view)
	}
}

func identity[T any](v T) (any, error) {
	return v, nil
}
