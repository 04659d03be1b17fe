// Package providers adapts the search federator's remote catalogue
// services (SIMBAD, NED, VizieR, JPL Horizons, OpenNGC) to the shared
// Provider interface, each wiring cache, rate limiter, HTTP client, and
// response parser per the seven-step query sequence. Grounded on
// original_source/src/target/online/provider/provider_interface.hpp for
// the interface shape and the per-provider .cpp/.hpp files for request
// construction.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99souls/astrofed/internal/cache"
	"github.com/99souls/astrofed/internal/httpclient"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/ratelimit"
)

// Provider is the contract every catalogue adapter satisfies.
type Provider interface {
	Name() string
	BaseURL() string
	SupportedKinds() []model.QueryKind
	IsAvailable(ctx context.Context) bool
	Query(ctx context.Context, req model.QueryRequest) (model.QueryResult, error)
}

// base implements the shared steps of §4.5's sequence — cache lookup,
// rate-limit acquisition, HTTP call, status mapping, parse, cache
// write-back, and rate-limit completion — leaving request construction
// and response decoding to each concrete provider.
type base struct {
	name       string
	baseURL    string
	http       *httpclient.Client
	cache      *cache.Cache
	limiter    *ratelimit.Limiter
	timeout    time.Duration
	maxRetries int
	cacheTTL   time.Duration
}

func (b *base) Name() string    { return b.name }
func (b *base) BaseURL() string { return b.baseURL }

// SetBaseURL overrides the endpoint a provider queries, letting
// configuration point a provider at a mirror or test double.
func (b *base) SetBaseURL(url string) { b.baseURL = url }

// SetCacheTTL overrides the provider's default cache entry lifetime.
func (b *base) SetCacheTTL(ttl time.Duration) { b.cacheTTL = ttl }

// SetTimeout overrides the provider's per-request timeout.
func (b *base) SetTimeout(timeout time.Duration) { b.timeout = timeout }

type buildFunc func() (httpclient.Request, error)
type decodeFunc func(body []byte) (model.QueryResult, error)

func (b *base) execute(ctx context.Context, req model.QueryRequest, build buildFunc, decode decodeFunc) (model.QueryResult, error) {
	fp := model.Fingerprint(b.name, req)
	if b.cache != nil {
		if v, ok := b.cache.Get(fp); ok {
			result := v.(model.QueryResult)
			result.FromCache = true
			return result, nil
		}
	}

	if b.limiter != nil {
		if err := b.limiter.Acquire(ctx, b.name); err != nil {
			return model.QueryResult{}, model.NewQueryError(model.ErrTimeout, b.name, "rate limit wait cancelled", err)
		}
	}

	httpReq, err := build()
	if err != nil {
		b.completeLimiter(false)
		return model.QueryResult{}, model.NewQueryError(model.ErrInvalidQuery, b.name, err.Error(), err)
	}
	if httpReq.Timeout == 0 {
		httpReq.Timeout = b.timeout
	}
	if httpReq.MaxRetries == 0 {
		httpReq.MaxRetries = b.maxRetries
	}
	httpReq.VerifyTLS = true
	httpReq.Redirects = true

	resp, err := b.http.Perform(ctx, httpReq)
	if err != nil {
		b.completeLimiter(false)
		return model.QueryResult{}, model.NewQueryError(model.ErrNetwork, b.name, err.Error(), err)
	}

	if resp.Status == 429 {
		retryAfter, _ := resp.RetryAfter()
		if b.limiter != nil {
			b.limiter.RecordRateLimitResponse(b.name, retryAfter)
		}
		b.completeLimiter(false)
		return model.QueryResult{}, &model.QueryError{Kind: model.ErrRateLimited, Provider: b.name, Message: "rate limited by provider", RetryAfter: retryAfter}
	}
	if resp.Status < 200 || resp.Status >= 300 {
		b.completeLimiter(false)
		kind := model.StatusToErrorKind(resp.Status)
		return model.QueryResult{}, model.NewQueryError(kind, b.name, fmt.Sprintf("http status %d", resp.Status), nil)
	}

	start := time.Now()
	result, err := decode(resp.Body)
	if err != nil {
		b.completeLimiter(false)
		var perr *model.ParseError
		if errors.As(err, &perr) {
			return model.QueryResult{}, model.NewQueryError(model.ErrParse, b.name, perr.Message, perr)
		}
		return model.QueryResult{}, model.NewQueryError(model.ErrParse, b.name, err.Error(), err)
	}

	b.completeLimiter(true)
	result.Provider = b.name
	result.QueryTime = time.Since(start) + resp.ResponseTime
	if b.cache != nil {
		b.cache.Put(fp, b.name, result, b.cacheTTL)
	}
	return result, nil
}

func (b *base) completeLimiter(success bool) {
	if b.limiter != nil {
		b.limiter.Complete(b.name, success)
	}
}

func (b *base) healthCheck(ctx context.Context, url string) bool {
	resp, err := b.http.Perform(ctx, httpclient.Request{
		Method: "GET", URL: url, Timeout: 5 * time.Second, VerifyTLS: true, MaxRetries: 0,
	})
	return err == nil && resp.Status > 0 && resp.Status < 500
}

// applyFilters applies the request's magnitude bounds and object-type
// filter to records a provider returned, since not every remote query
// shape can express them server-side.
func applyFilters(records []model.CelestialRecord, req model.QueryRequest) []model.CelestialRecord {
	if !req.HasMagnitudeBounds && req.ObjectType == "" {
		return records
	}
	filtered := records[:0]
	for _, r := range records {
		if req.HasMagnitudeBounds {
			if r.VisualMagnitude < req.MagnitudeMin || r.VisualMagnitude > req.MagnitudeMax {
				continue
			}
		}
		if req.ObjectType != "" && r.ObjectType != req.ObjectType {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func truncate(records []model.CelestialRecord, limit int) []model.CelestialRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
