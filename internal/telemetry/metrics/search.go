package metrics

// SearchMetrics bundles the instruments the search service records
// against: query outcomes, cache effectiveness, and per-provider latency.
type SearchMetrics struct {
	QueriesTotal    Counter // labels: provider, outcome (success|failed|cached)
	QueryDuration   Histogram // labels: provider
	ProviderEnabled Gauge     // labels: provider; 1 enabled, 0 disabled
	CacheHitRatio   Gauge     // labels: provider
}

// NewSearchMetrics registers the search subsystem's instruments against p.
func NewSearchMetrics(p Provider) *SearchMetrics {
	return &SearchMetrics{
		QueriesTotal: p.NewCounter(CounterOpts{CommonOpts{
			Namespace: "astrofed", Subsystem: "search", Name: "queries_total",
			Help: "Total number of provider queries by outcome", Labels: []string{"provider", "outcome"},
		}}),
		QueryDuration: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: "astrofed", Subsystem: "search", Name: "query_duration_seconds",
			Help: "Provider query latency in seconds", Labels: []string{"provider"},
		}}),
		ProviderEnabled: p.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "astrofed", Subsystem: "search", Name: "provider_enabled",
			Help: "Whether a provider is currently enabled", Labels: []string{"provider"},
		}}),
		CacheHitRatio: p.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "astrofed", Subsystem: "search", Name: "cache_hit_ratio",
			Help: "Rolling cache hit ratio per provider", Labels: []string{"provider"},
		}}),
	}
}
