package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is a decoded fetch outcome.
type Result[T any] struct {
	Data      T
	FromCache bool
	Stale     bool
}

// FetchJSON fetches endpoint and decodes the payload into T.
// A payload that does not decode into T is an UNKNOWN_ERROR.
func FetchJSON[T any](ctx context.Context, f *Fetcher, endpoint string, opts Options) (Result[T], error) {
	var result Result[T]

	resp, err := f.Fetch(ctx, endpoint, opts)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(resp.Data, &result.Data); err != nil {
		return result, &CDNFetchError{
			Code:     CodeUnknown,
			Message:  fmt.Sprintf("decode payload as %T", result.Data),
			Endpoint: endpoint,
			Err:      err,
		}
	}
	result.FromCache = resp.FromCache
	result.Stale = resp.Stale
	return result, nil
}

// Request is one slot of a FetchEach batch.
type Request struct {
	Endpoint string
	Options  Options
}

// FetchBatch fetches every endpoint in requests concurrently with the same
// options and returns the responses under the same names. A failed request
// leaves a nil slot; it never aborts its siblings and FetchBatch itself
// never fails.
func (f *Fetcher) FetchBatch(ctx context.Context, requests map[string]string, opts Options) map[string]*Response {
	each := make(map[string]Request, len(requests))
	for name, endpoint := range requests {
		each[name] = Request{Endpoint: endpoint, Options: opts}
	}
	return f.FetchEach(ctx, each)
}

// FetchEach is FetchBatch where every slot carries its own options, so
// each keeps its own cache policy.
func (f *Fetcher) FetchEach(ctx context.Context, requests map[string]Request) map[string]*Response {
	start := time.Now()
	results := make(map[string]*Response, len(requests))
	var mu sync.Mutex

	var g errgroup.Group
	if f.config.MaxConcurrency > 0 {
		g.SetLimit(f.config.MaxConcurrency)
	}

	for name, req := range requests {
		g.Go(func() error {
			resp, err := f.Fetch(ctx, req.Endpoint, req.Options)
			if err != nil {
				f.logger.Warn().
					Err(err).
					Str("slot", name).
					Str("endpoint", req.Endpoint).
					Msg("Batch slot failed")
				resp = nil
			}

			mu.Lock()
			results[name] = resp
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, resp := range results {
		if resp == nil {
			failed++
		}
	}
	f.logger.Debug().
		Int("requests", len(requests)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

// FetchBatchJSON is FetchBatch with each payload decoded into T.
// Slots that fail to fetch or decode are nil.
func FetchBatchJSON[T any](ctx context.Context, f *Fetcher, requests map[string]string, opts Options) map[string]*T {
	responses := f.FetchBatch(ctx, requests, opts)

	out := make(map[string]*T, len(responses))
	for name, resp := range responses {
		if resp == nil {
			out[name] = nil
			continue
		}
		var v T
		if err := json.Unmarshal(resp.Data, &v); err != nil {
			f.logger.Warn().Err(err).Str("slot", name).Msg("Batch slot decode failed")
			out[name] = nil
			continue
		}
		out[name] = &v
	}
	return out
}
