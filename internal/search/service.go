// Package search implements the facade of spec §4.7: it owns the shared
// HTTP client, cache, and rate limiter; constructs and enables the five
// catalogue providers; and exposes query_provider/query_all/query_auto/
// query_with_fallback plus convenience wrappers, aggregating statistics.
// Grounded on original_source/src/target/online/service/
// online_search_service.hpp/.cpp (the Impl/PIMPL shape, the enabled-
// providers map, and the statistics struct).
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/99souls/astrofed/internal/cache"
	"github.com/99souls/astrofed/internal/httpclient"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/providers"
	"github.com/99souls/astrofed/internal/ratelimit"
)

// Config enumerates provider enablement, rate limit rules, fallback
// priority, merge strategy, timeouts, and parallelism bounds.
type Config struct {
	EnableSimbad      bool
	EnableVizier      bool
	EnableNED         bool
	EnableJPLHorizons bool
	EnableOpenNGC     bool

	CacheConfig       cache.Config
	ProviderCacheTTLs map[string]time.Duration
	RateLimits        map[string]ratelimit.Rule
	ProviderTimeouts  map[string]time.Duration
	ProviderBaseURLs  map[string]string

	EnableFallback          bool
	MaxRetries              int
	EnableParallelQueries   bool
	MaxConcurrentProviders  int
	QueryTimeout            time.Duration
	TotalTimeout            time.Duration

	DefaultLimit     int
	ProviderPriority []string
}

// Defaults mirrors the original OnlineSearchConfig's field defaults.
func Defaults() Config {
	return Config{
		EnableSimbad: true, EnableVizier: true, EnableNED: true,
		EnableJPLHorizons: true, EnableOpenNGC: true,
		CacheConfig:            cache.Config{MaxEntries: 10000, DefaultTTL: 60 * time.Minute},
		RateLimits:             map[string]ratelimit.Rule{},
		EnableFallback:         true,
		MaxRetries:             3,
		EnableParallelQueries:  true,
		MaxConcurrentProviders: 3,
		QueryTimeout:           30 * time.Second,
		TotalTimeout:           60 * time.Second,
		DefaultLimit:           100,
		ProviderPriority:       []string{"SIMBAD", "VizieR", "NED", "OpenNGC", "JPL_Horizons"},
	}
}

// Stats aggregates execution counts and timing across every query the
// service has run since construction or the last ResetStats.
type Stats struct {
	TotalQueries       int64
	SuccessfulQueries  int64
	CachedQueries      int64
	FailedQueries      int64
	TotalQueryTime     time.Duration
	QueriesPerProvider map[string]int64
	LastQuery          time.Time
}

func (s *Stats) AvgQueryTime() time.Duration {
	if s.TotalQueries == 0 {
		return 0
	}
	return s.TotalQueryTime / time.Duration(s.TotalQueries)
}

// providerEntry pairs a constructed provider with its enabled flag.
type providerEntry struct {
	provider providers.Provider
	enabled  bool
}

// Service is the federator facade. It is safe for concurrent use.
type Service struct {
	cfg Config

	http    *httpclient.Client
	cache   *cache.Cache
	limiter *ratelimit.Limiter

	mu        sync.RWMutex
	providers map[string]*providerEntry
	order     []string

	statsMu sync.Mutex
	stats   Stats
}

// New constructs the service and its providers, injecting the shared
// HTTP client, cache, and rate limiter per spec §4.7's initialize step.
func New(cfg Config) (*Service, error) {
	httpc, err := httpclient.New("astrofed/1.0", "")
	if err != nil {
		return nil, fmt.Errorf("search: construct http client: %w", err)
	}
	c := cache.New(cfg.CacheConfig)
	lim := ratelimit.New(ratelimit.Rule{RPS: 5, Burst: 10, RPM: 120, RPH: 3600})
	for name, rule := range cfg.RateLimits {
		lim.SetRule(name, rule)
	}

	svc := &Service{
		cfg: cfg, http: httpc, cache: c, limiter: lim,
		providers: make(map[string]*providerEntry),
		stats:     Stats{QueriesPerProvider: make(map[string]int64), LastQuery: time.Now()},
	}

	register := func(name string, enabled bool, p providers.Provider) {
		svc.providers[name] = &providerEntry{provider: p, enabled: enabled}
		svc.order = append(svc.order, name)
	}
	register("SIMBAD", cfg.EnableSimbad, providers.NewSimbad(httpc, c, lim))
	register("VizieR", cfg.EnableVizier, providers.NewVizier(httpc, c, lim))
	register("NED", cfg.EnableNED, providers.NewNED(httpc, c, lim))
	register("JPL_Horizons", cfg.EnableJPLHorizons, providers.NewJPLHorizons(httpc, c, lim))
	register("OpenNGC", cfg.EnableOpenNGC, providers.NewOpenNGC(httpc))

	svc.applyProviderOverrides()

	return svc, nil
}

// configurableBaseURL, configurableCacheTTL, and configurableTimeout are
// satisfied by every providers.Provider through providers.base's promoted
// setters, letting config override per-provider endpoint/TTL/timeout
// without each provider needing bespoke wiring.
type configurableBaseURL interface{ SetBaseURL(string) }
type configurableCacheTTL interface{ SetCacheTTL(time.Duration) }
type configurableTimeout interface{ SetTimeout(time.Duration) }

func (s *Service) applyProviderOverrides() {
	for name, entry := range s.providers {
		if url, ok := s.cfg.ProviderBaseURLs[name]; ok {
			if p, ok := entry.provider.(configurableBaseURL); ok {
				p.SetBaseURL(url)
			}
		}
		if ttl, ok := s.cfg.ProviderCacheTTLs[name]; ok {
			if p, ok := entry.provider.(configurableCacheTTL); ok {
				p.SetCacheTTL(ttl)
			}
		}
		if timeout, ok := s.cfg.ProviderTimeouts[name]; ok {
			if p, ok := entry.provider.(configurableTimeout); ok {
				p.SetTimeout(timeout)
			}
		}
	}
}

// Provider returns the named provider's adapter, or nil if unknown.
func (s *Service) Provider(name string) providers.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.providers[name]; ok {
		return e.provider
	}
	return nil
}

// AvailableProviders lists registered provider names in registration order.
func (s *Service) AvailableProviders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// IsProviderAvailable reports whether name is registered, enabled, and
// currently healthy.
func (s *Service) IsProviderAvailable(ctx context.Context, name string) bool {
	s.mu.RLock()
	e, ok := s.providers[name]
	s.mu.RUnlock()
	if !ok || !e.enabled {
		return false
	}
	return e.provider.IsAvailable(ctx)
}

// SetProviderEnabled toggles whether a registered provider participates in
// query_all/query_auto/query_with_fallback.
func (s *Service) SetProviderEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.providers[name]; ok {
		e.enabled = enabled
	}
}

func (s *Service) recordExecution(name string, d time.Duration, success, fromCache bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.TotalQueries++
	s.stats.TotalQueryTime += d
	if fromCache {
		s.stats.CachedQueries++
	}
	if success {
		s.stats.SuccessfulQueries++
	} else {
		s.stats.FailedQueries++
	}
	s.stats.QueriesPerProvider[name]++
	s.stats.LastQuery = time.Now()
}

// Stats returns a snapshot of the service's cumulative statistics.
func (s *Service) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	out := s.stats
	out.QueriesPerProvider = make(map[string]int64, len(s.stats.QueriesPerProvider))
	for k, v := range s.stats.QueriesPerProvider {
		out.QueriesPerProvider[k] = v
	}
	return out
}

// ResetStats zeroes the cumulative statistics.
func (s *Service) ResetStats() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats = Stats{QueriesPerProvider: make(map[string]int64), LastQuery: time.Now()}
}

// ClearCache empties every cached entry across all providers.
func (s *Service) ClearCache() { s.cache.Clear() }

// ClearProviderCache empties only the named provider's cached entries.
func (s *Service) ClearProviderCache(name string) { s.cache.ClearProvider(name) }

// CacheStats returns the shared cache's hit/miss statistics.
func (s *Service) CacheStats() cache.Stats { return s.cache.Stats() }

// QueryProvider delegates a request to a single named provider, recording
// statistics regardless of outcome.
func (s *Service) QueryProvider(ctx context.Context, name string, req model.QueryRequest) (model.QueryResult, error) {
	s.mu.RLock()
	e, ok := s.providers[name]
	s.mu.RUnlock()
	if !ok {
		return model.QueryResult{}, fmt.Errorf("search: unknown provider %q", name)
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.DefaultLimit
	}

	start := time.Now()
	result, err := e.provider.Query(ctx, req)
	d := time.Since(start)
	s.recordExecution(name, d, err == nil, result.FromCache)
	return result, err
}

// ProviderQueryResult pairs a provider name with its query outcome, used
// by QueryAll to report per-provider errors alongside successes.
type ProviderQueryResult struct {
	Provider string
	Result   model.QueryResult
	Err      error
}

// QueryAll fans out req to every enabled provider supporting req.Kind, in
// parallel bounded by MaxConcurrentProviders, returning one result per
// provider including failures.
func (s *Service) QueryAll(ctx context.Context, req model.QueryRequest) []ProviderQueryResult {
	s.mu.RLock()
	candidates := make([]*providerEntry, 0, len(s.order))
	names := make([]string, 0, len(s.order))
	for _, name := range s.order {
		e := s.providers[name]
		if e.enabled && supportsKind(e.provider, req.Kind) {
			candidates = append(candidates, e)
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	limit := s.cfg.MaxConcurrentProviders
	if limit <= 0 {
		limit = len(candidates)
		if limit == 0 {
			limit = 1
		}
	}

	results := make([]ProviderQueryResult, len(candidates))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, e := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string, p *providerEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			r, err := s.QueryProvider(ctx, name, req)
			results[i] = ProviderQueryResult{Provider: name, Result: r, Err: err}
		}(i, names[i], e)
	}
	wg.Wait()
	return results
}

func supportsKind(p providers.Provider, kind model.QueryKind) bool {
	for _, k := range p.SupportedKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// autoPriority picks the provider order query_auto tries for a given
// query kind, per spec §4.7: Horizons first for ephemeris, OpenNGC first
// for catalogue-shaped terms (NGC/IC/M prefixes), SIMBAD/NED first
// otherwise, falling back through the rest of ProviderPriority.
func (s *Service) autoPriority(req model.QueryRequest) []string {
	var preferred []string
	switch req.Kind {
	case model.Ephemeris:
		preferred = []string{"JPL_Horizons"}
	case model.ByName, model.ByCatalog:
		term := req.Term
		if term == "" {
			term = req.Catalog
		}
		if looksLikeCatalogID(term) {
			preferred = []string{"OpenNGC", "SIMBAD", "NED", "VizieR"}
		} else {
			preferred = []string{"SIMBAD", "NED", "VizieR", "OpenNGC"}
		}
	case model.ByCoord:
		preferred = []string{"SIMBAD", "OpenNGC", "NED", "VizieR"}
	default:
		preferred = s.cfg.ProviderPriority
	}

	seen := make(map[string]bool, len(preferred))
	order := make([]string, 0, len(preferred)+len(s.cfg.ProviderPriority))
	for _, name := range preferred {
		if !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	for _, name := range s.cfg.ProviderPriority {
		if !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	return order
}

func looksLikeCatalogID(term string) bool {
	if term == "" {
		return false
	}
	switch term[0] {
	case 'M', 'm', 'N', 'n', 'I', 'i':
		return true
	}
	return false
}

// QueryAuto picks the best provider for req.Kind and falls back through
// the remaining priority order on failure.
func (s *Service) QueryAuto(ctx context.Context, req model.QueryRequest) (model.QueryResult, error) {
	return s.QueryWithFallback(ctx, req, s.autoPriority(req))
}

// QueryWithFallback tries providers in order, returning the first success.
// An empty priority list falls back to the configured ProviderPriority.
func (s *Service) QueryWithFallback(ctx context.Context, req model.QueryRequest, priority []string) (model.QueryResult, error) {
	if len(priority) == 0 {
		priority = s.cfg.ProviderPriority
	}

	var lastErr error
	for _, name := range priority {
		s.mu.RLock()
		e, ok := s.providers[name]
		s.mu.RUnlock()
		if !ok || !e.enabled || !supportsKind(e.provider, req.Kind) {
			continue
		}
		result, err := s.QueryProvider(ctx, name, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !s.cfg.EnableFallback {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("search: no provider available for kind %s", req.Kind)
	}
	return model.QueryResult{}, lastErr
}

// SearchByName is a convenience wrapper over QueryAuto for name lookups.
func (s *Service) SearchByName(ctx context.Context, name string, limit int) ([]model.CelestialRecord, error) {
	req := model.QueryRequest{Kind: model.ByName, Term: name, Limit: limit}
	result, err := s.QueryAuto(ctx, req)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// SearchByCoordinates is a convenience wrapper over QueryAuto for cone
// searches.
func (s *Service) SearchByCoordinates(ctx context.Context, ra, dec, radiusDeg float64, limit int) ([]model.CelestialRecord, error) {
	req := model.QueryRequest{
		Kind: model.ByCoord, Coord: model.Coordinates{RA: ra, Dec: dec}, Radius: radiusDeg, Limit: limit,
	}
	result, err := s.QueryAuto(ctx, req)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// GetEphemeris returns a single ephemeris point for target at the given
// epoch, via JPL Horizons.
func (s *Service) GetEphemeris(ctx context.Context, target string, epoch time.Time) (model.EphemerisPoint, error) {
	req := model.QueryRequest{Kind: model.Ephemeris, Term: target, Epoch: epoch, Limit: 1}
	result, err := s.QueryProvider(ctx, "JPL_Horizons", req)
	if err != nil {
		return model.EphemerisPoint{}, err
	}
	if len(result.Ephemeris) == 0 {
		return model.EphemerisPoint{}, fmt.Errorf("search: no ephemeris returned for %q", target)
	}
	return result.Ephemeris[0], nil
}
