// Package cache holds CDN responses in memory between fetches.
//
// Manager keys entries by the canonical request (see Key) and stores the
// unwrapped JSON payload with the policy the caller passed in Config:
// a TTL, a stale-while-revalidate window and invalidation tags. Expiry is
// evaluated on read. An entry that expired is no longer returned by Get,
// but GetStale keeps handing it out until its stale window closes so a
// failed refresh can fall back to it.
//
//	manager := cache.NewManager()
//	key, err := cache.KeyFromEndpoint("/products?search=serum&category=face")
//	if err != nil {
//		return err
//	}
//	manager.Set(key.String(), payload, cache.Config{
//		TTL:  5 * time.Minute,
//		Tags: []string{"products", "category:face"},
//	})
//	data, ok := manager.Get(key.String())
//	...
//	manager.InvalidateByTag("category:face")
//
// Mirror is an optional Redis copy of the same entries. Replicas that
// share one Redis see each other's responses, and stale data survives a
// restart. Tags are indexed as Redis sets so invalidation reaches the
// mirror too.
//
// Metrics (all prefixed storefront_cdn_cache_):
//
//   - hits_total{layer}: memory or redis hits
//   - misses_total: in-memory misses, expired entries included
//   - stale_serves_total: expired entries returned by GetStale
//   - entries: live in-memory entries
//   - invalidations_total: entries removed by tag
//   - errors_total{operation}: mirror load, save, invalidate and delete errors
package cache
