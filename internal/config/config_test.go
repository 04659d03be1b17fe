package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/astrofed/internal/model"
)

func TestDefaultsPopulatesEverySection(t *testing.T) {
	c := Defaults()
	require.NoError(t, c.Validate())

	assert.Equal(t, 1000, c.Cache.MaxEntries)
	assert.Equal(t, 60, c.Cache.DefaultTTLMinutes)
	assert.Equal(t, 120, c.Cache.ProviderTTLMinutes["simbad"])
	assert.Equal(t, 1440, c.Cache.ProviderTTLMinutes["open_ngc"])
	assert.Equal(t, 3, c.Service.MaxConcurrentProviders)
	assert.Equal(t, "full", c.Autofocus.Mode)
	assert.Equal(t, "vcurve", c.Autofocus.Algorithm)
	assert.True(t, c.Providers["SIMBAD"].Enabled)
}

func TestLoadParsesYAMLAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "astrofed.yaml")
	doc := `
providers:
  SIMBAD:
    enabled: false
cache:
  max_entries: 5000
service:
  max_concurrent_providers: 6
  provider_priority: ["OpenNGC", "SIMBAD"]
autofocus:
  mode: quick
  algorithm: hyperbolic
  backlash_compensation: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.False(t, c.Providers["SIMBAD"].Enabled)
	assert.Equal(t, 5000, c.Cache.MaxEntries)
	assert.Equal(t, 60, c.Cache.DefaultTTLMinutes, "unset key keeps its default")
	assert.Equal(t, 6, c.Service.MaxConcurrentProviders)
	assert.Equal(t, []string{"OpenNGC", "SIMBAD"}, c.Service.ProviderPriority)
	assert.Equal(t, "quick", c.Autofocus.Mode)
	assert.True(t, c.Autofocus.BacklashCompensation)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	c := Defaults()
	c.Autofocus.Mode = "bogus"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownProviderInPriority(t *testing.T) {
	c := Defaults()
	c.Service.ProviderPriority = []string{"NotAProvider"}
	assert.Error(t, c.Validate())
}

func TestValidateAggregatesMultipleErrors(t *testing.T) {
	c := Defaults()
	c.Cache.MaxEntries = -1
	c.Service.MaxConcurrentProviders = -1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.max_entries")
	assert.Contains(t, err.Error(), "service.max_concurrent_providers")
}

func TestToSearchConfigAppliesOverrides(t *testing.T) {
	c := Defaults()
	c.Providers["SIMBAD"] = ProviderConfig{Enabled: false, TimeoutMS: 5000, BaseURL: "https://example.test/sim"}
	c.Cache.ProviderTTLMinutes["simbad"] = 30
	c.Rate["SIMBAD"] = RateConfig{RPS: 2, Burst: 4}

	sc := c.ToSearchConfig()
	assert.False(t, sc.EnableSimbad)
	assert.Equal(t, 5*time.Second, sc.ProviderTimeouts["SIMBAD"])
	assert.Equal(t, "https://example.test/sim", sc.ProviderBaseURLs["SIMBAD"])
	assert.Equal(t, 30*time.Minute, sc.ProviderCacheTTLs["SIMBAD"])
	assert.Equal(t, 2.0, sc.RateLimits["SIMBAD"].RPS)
}

func TestToAutofocusBundleParsesModeAndAlgorithm(t *testing.T) {
	c := Defaults()
	c.Autofocus.Mode = "fine"
	c.Autofocus.Algorithm = "polynomial"
	c.Autofocus.BacklashCompensation = true

	bundle, err := c.ToAutofocusBundle()
	require.NoError(t, err)
	assert.Equal(t, model.ModeFine, bundle.Mode)
	assert.Equal(t, model.AlgoPolynomial, bundle.Algorithm)
	assert.True(t, bundle.Engine.BacklashCompensation)
}

func TestWatcherEmitsReloadedConfigOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "astrofed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  max_concurrent_providers: 3\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	changes, errs := w.Watch(ctx)

	require.NoError(t, os.WriteFile(path, []byte("service:\n  max_concurrent_providers: 9\n"), 0o644))

	select {
	case cfg := <-changes:
		require.NotNil(t, cfg)
		assert.Equal(t, 9, cfg.Service.MaxConcurrentProviders)
	case err := <-errs:
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload event")
	}
}
