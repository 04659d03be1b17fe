package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusProviderRegistersCounterOnce(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusProvider(PrometheusProviderOptions{Registry: reg})

	c1 := p.NewCounter(CounterOpts{CommonOpts{Namespace: "astrofed", Subsystem: "search", Name: "queries_total", Help: "h", Labels: []string{"provider"}}})
	c2 := p.NewCounter(CounterOpts{CommonOpts{Namespace: "astrofed", Subsystem: "search", Name: "queries_total", Help: "h", Labels: []string{"provider"}}})

	c1.Inc(1, "SIMBAD")
	c2.Inc(2, "SIMBAD")

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() == "astrofed_search_queries_total" {
			found = true
			require.Len(t, fam.Metric, 1)
			assert.Equal(t, 3.0, fam.Metric[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "expected astrofed_search_queries_total to be registered")
}

func TestPrometheusProviderInvalidNameFallsBackToNoop(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{Registry: prom.NewRegistry()})
	c := p.NewCounter(CounterOpts{CommonOpts{Name: "1-not-a-valid-name"}})
	assert.NotPanics(t, func() { c.Inc(1) })
}

func TestPrometheusProviderHealthReportsProblems(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{Registry: prom.NewRegistry()})
	require.NoError(t, p.Health(context.Background()))

	p.NewCounter(CounterOpts{CommonOpts{Name: "1-invalid"}})
	assert.Error(t, p.Health(context.Background()))
}

func TestNoopProviderDiscardsObservations(t *testing.T) {
	p := NewNoopProvider()
	c := p.NewCounter(CounterOpts{CommonOpts{Name: "x"}})
	g := p.NewGauge(GaugeOpts{CommonOpts{Name: "y"}})
	h := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Name: "z"}})
	timer := p.NewTimer(HistogramOpts{CommonOpts: CommonOpts{Name: "w"}})()
	c.Inc(1)
	g.Set(1)
	g.Add(1)
	h.Observe(1)
	timer.ObserveDuration()
	require.NoError(t, p.Health(context.Background()))
}

func TestSearchMetricsAndFocusMetricsRegisterDistinctInstruments(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusProvider(PrometheusProviderOptions{Registry: reg})

	sm := NewSearchMetrics(p)
	fm := NewFocusMetrics(p)

	sm.QueriesTotal.Inc(1, "SIMBAD", "success")
	sm.ProviderEnabled.Set(1, "SIMBAD")
	fm.RunsTotal.Inc(1, "vcurve", "valid")
	fm.CurveConfidence.Set(0.95, "vcurve")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["astrofed_search_queries_total"])
	assert.True(t, names["astrofed_search_provider_enabled"])
	assert.True(t, names["astrofed_focus_runs_total"])
	assert.True(t, names["astrofed_focus_curve_confidence"])
}
