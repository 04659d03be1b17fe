// Package config loads and validates the YAML configuration recognised
// by the search service and the autofocus engine (spec §6). Grounded on
// the teacher's engine/config/unified_config.go: a typed struct per
// concern, an ApplyDefaults pass that only fills zero fields, and a
// Validate pass that checks every concern independently.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/99souls/astrofed/internal/focus"
	"github.com/99souls/astrofed/internal/merger"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/ratelimit"
	"github.com/99souls/astrofed/internal/search"
)

// Config is the top-level configuration document.
type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Cache     CacheConfig               `yaml:"cache"`
	Rate      map[string]RateConfig     `yaml:"rate"`
	Service   ServiceConfig             `yaml:"service"`
	Autofocus AutofocusConfig           `yaml:"autofocus"`
	Global    GlobalSettings            `yaml:"global"`
}

// ProviderConfig holds the per-provider `providers.<name>.*` keys.
type ProviderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TimeoutMS int    `yaml:"timeout_ms"`
	BaseURL   string `yaml:"base_url"`
}

// CacheConfig holds the `cache.*` keys, including the per-provider TTL
// overrides named in spec.md §6 (simbad=120, vizier=120, ned=60,
// jpl_horizons=5, open_ngc=1440 minutes).
type CacheConfig struct {
	MaxEntries         int            `yaml:"max_entries"`
	DefaultTTLMinutes  int            `yaml:"default_ttl_minutes"`
	ProviderTTLMinutes map[string]int `yaml:"provider_ttl_minutes"`
}

// RateConfig holds one provider's `rate.<name>.*` keys.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	RPM   int     `yaml:"rpm"`
	RPH   int     `yaml:"rph"`
	Burst float64 `yaml:"burst"`
}

// ServiceConfig holds the `service.*` keys.
type ServiceConfig struct {
	MaxConcurrentProviders int      `yaml:"max_concurrent_providers"`
	QueryTimeoutMS         int      `yaml:"query_timeout_ms"`
	TotalTimeoutMS         int      `yaml:"total_timeout_ms"`
	DefaultMergeStrategy   string   `yaml:"default_merge_strategy"`
	ProviderPriority       []string `yaml:"provider_priority"`
}

// AutofocusConfig holds the autofocus engine's configuration keys.
type AutofocusConfig struct {
	Mode                    string  `yaml:"mode"`
	Algorithm               string  `yaml:"algorithm"`
	ExposureTime            float64 `yaml:"exposure_time"`
	StepSize                int     `yaml:"step_size"`
	MaxSteps                int     `yaml:"max_steps"`
	Tolerance               float64 `yaml:"tolerance"`
	Binning                 int     `yaml:"binning"`
	BacklashCompensation    bool    `yaml:"backlash_compensation"`
	TemperatureCompensation bool    `yaml:"temperature_compensation"`
	MinStars                int     `yaml:"min_stars"`
	MaxIterations           int     `yaml:"max_iterations"`
}

// GlobalSettings holds cross-cutting ambient settings (logging and
// metrics), following the teacher's GlobalSettings grouping even though
// spec.md names no explicit config keys for them.
type GlobalSettings struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TraceEnabled   bool   `yaml:"trace_enabled"`
}

var knownProviders = []string{"SIMBAD", "VizieR", "NED", "JPL_Horizons", "OpenNGC"}

// providerTTLKey maps a provider's canonical name to the lower_snake key
// spec.md §6 uses for cache.provider_ttl_minutes overrides.
var providerTTLKey = map[string]string{
	"SIMBAD":       "simbad",
	"VizieR":       "vizier",
	"NED":          "ned",
	"JPL_Horizons": "jpl_horizons",
	"OpenNGC":      "open_ngc",
}

// Defaults returns a Config with every section populated per spec.md §6.
func Defaults() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML document from path, applies defaults to any field
// left zero, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// ApplyDefaults fills zero-valued fields across every section. Safe to
// call on a config that was partially populated from YAML.
func (c *Config) ApplyDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for _, name := range knownProviders {
		pc, ok := c.Providers[name]
		if !ok {
			pc.Enabled = true
		}
		if pc.TimeoutMS == 0 {
			pc.TimeoutMS = 30000
		}
		c.Providers[name] = pc
	}

	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Cache.DefaultTTLMinutes == 0 {
		c.Cache.DefaultTTLMinutes = 60
	}
	if c.Cache.ProviderTTLMinutes == nil {
		c.Cache.ProviderTTLMinutes = map[string]int{}
	}
	defaultProviderTTL := map[string]int{"simbad": 120, "vizier": 120, "ned": 60, "jpl_horizons": 5, "open_ngc": 1440}
	for k, v := range defaultProviderTTL {
		if _, ok := c.Cache.ProviderTTLMinutes[k]; !ok {
			c.Cache.ProviderTTLMinutes[k] = v
		}
	}

	if c.Rate == nil {
		c.Rate = map[string]RateConfig{}
	}

	if c.Service.MaxConcurrentProviders == 0 {
		c.Service.MaxConcurrentProviders = 3
	}
	if c.Service.QueryTimeoutMS == 0 {
		c.Service.QueryTimeoutMS = 30000
	}
	if c.Service.TotalTimeoutMS == 0 {
		c.Service.TotalTimeoutMS = 60000
	}
	if c.Service.DefaultMergeStrategy == "" {
		c.Service.DefaultMergeStrategy = "prefer_local"
	}
	if len(c.Service.ProviderPriority) == 0 {
		c.Service.ProviderPriority = []string{"SIMBAD", "VizieR", "NED", "OpenNGC", "JPL_Horizons"}
	}

	if c.Autofocus.Mode == "" {
		c.Autofocus.Mode = "full"
	}
	if c.Autofocus.Algorithm == "" {
		c.Autofocus.Algorithm = "vcurve"
	}
	if c.Autofocus.MinStars == 0 {
		c.Autofocus.MinStars = 5
	}
	if c.Autofocus.MaxIterations == 0 {
		c.Autofocus.MaxIterations = 3
	}
	if c.Autofocus.Tolerance == 0 {
		c.Autofocus.Tolerance = 0.5
	}
	if c.Autofocus.Binning == 0 {
		c.Autofocus.Binning = 1
	}

	if c.Global.LogLevel == "" {
		c.Global.LogLevel = "info"
	}
}

// Validate checks every section and joins any failures, rather than
// stopping at the first (a supplement over the teacher's single-error
// Validate, per spec.md's silence on aggregation policy).
func (c *Config) Validate() error {
	var errs []error
	if err := c.validateProviders(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateCache(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateRate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateService(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateAutofocus(); err != nil {
		errs = append(errs, err)
	}
	if err := c.validateGlobal(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) validateProviders() error {
	for name, pc := range c.Providers {
		if pc.TimeoutMS < 0 {
			return fmt.Errorf("providers.%s.timeout_ms cannot be negative: %d", name, pc.TimeoutMS)
		}
		if pc.BaseURL != "" && !strings.Contains(pc.BaseURL, "://") {
			return fmt.Errorf("providers.%s.base_url must be an absolute URL: %q", name, pc.BaseURL)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive: %d", c.Cache.MaxEntries)
	}
	if c.Cache.DefaultTTLMinutes <= 0 {
		return fmt.Errorf("cache.default_ttl_minutes must be positive: %d", c.Cache.DefaultTTLMinutes)
	}
	for name, ttl := range c.Cache.ProviderTTLMinutes {
		if ttl <= 0 {
			return fmt.Errorf("cache.provider_ttl_minutes[%s] must be positive: %d", name, ttl)
		}
	}
	return nil
}

func (c *Config) validateRate() error {
	for name, r := range c.Rate {
		if r.RPS < 0 || r.RPM < 0 || r.RPH < 0 || r.Burst < 0 {
			return fmt.Errorf("rate.%s: rps/rpm/rph/burst cannot be negative", name)
		}
	}
	return nil
}

func (c *Config) validateService() error {
	if c.Service.MaxConcurrentProviders <= 0 {
		return fmt.Errorf("service.max_concurrent_providers must be positive: %d", c.Service.MaxConcurrentProviders)
	}
	if c.Service.QueryTimeoutMS <= 0 {
		return fmt.Errorf("service.query_timeout_ms must be positive: %d", c.Service.QueryTimeoutMS)
	}
	if c.Service.TotalTimeoutMS <= 0 {
		return fmt.Errorf("service.total_timeout_ms must be positive: %d", c.Service.TotalTimeoutMS)
	}
	if _, err := ParseMergeStrategy(c.Service.DefaultMergeStrategy); err != nil {
		return fmt.Errorf("service.default_merge_strategy: %w", err)
	}
	for _, name := range c.Service.ProviderPriority {
		if !isKnownProvider(name) {
			return fmt.Errorf("service.provider_priority: unknown provider %q", name)
		}
	}
	return nil
}

func (c *Config) validateAutofocus() error {
	if _, err := ParseFocusMode(c.Autofocus.Mode); err != nil {
		return fmt.Errorf("autofocus.mode: %w", err)
	}
	if _, err := ParseCurveAlgorithm(c.Autofocus.Algorithm); err != nil {
		return fmt.Errorf("autofocus.algorithm: %w", err)
	}
	if c.Autofocus.ExposureTime < 0 {
		return fmt.Errorf("autofocus.exposure_time cannot be negative: %v", c.Autofocus.ExposureTime)
	}
	if c.Autofocus.StepSize < 0 {
		return fmt.Errorf("autofocus.step_size cannot be negative: %d", c.Autofocus.StepSize)
	}
	if c.Autofocus.MaxSteps < 0 {
		return fmt.Errorf("autofocus.max_steps cannot be negative: %d", c.Autofocus.MaxSteps)
	}
	if c.Autofocus.MinStars < 0 {
		return fmt.Errorf("autofocus.min_stars cannot be negative: %d", c.Autofocus.MinStars)
	}
	if c.Autofocus.MaxIterations <= 0 {
		return fmt.Errorf("autofocus.max_iterations must be positive: %d", c.Autofocus.MaxIterations)
	}
	return nil
}

func (c *Config) validateGlobal() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Global.LogLevel)] {
		return fmt.Errorf("global.log_level invalid: %q", c.Global.LogLevel)
	}
	return nil
}

func isKnownProvider(name string) bool {
	for _, p := range knownProviders {
		if p == name {
			return true
		}
	}
	return false
}

// ParseFocusMode maps a spec.md §6 mode string to model.FocusMode.
func ParseFocusMode(s string) (model.FocusMode, error) {
	switch strings.ToLower(s) {
	case "full":
		return model.ModeFull, nil
	case "quick":
		return model.ModeQuick, nil
	case "fine":
		return model.ModeFine, nil
	case "starless":
		return model.ModeStarless, nil
	case "high_precision":
		return model.ModeHighPrecision, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// ParseCurveAlgorithm maps a spec.md §6 algorithm string to
// model.CurveAlgorithm.
func ParseCurveAlgorithm(s string) (model.CurveAlgorithm, error) {
	switch strings.ToLower(s) {
	case "vcurve":
		return model.AlgoVCurve, nil
	case "hyperbolic":
		return model.AlgoHyperbolic, nil
	case "polynomial":
		return model.AlgoPolynomial, nil
	case "simple":
		return model.AlgoSimple, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", s)
	}
}

// ParseMergeStrategy maps a spec.md §6 strategy name to merger.Strategy.
func ParseMergeStrategy(s string) (merger.Strategy, error) {
	switch strings.ToLower(s) {
	case "prefer_local":
		return merger.PreferLocal, nil
	case "prefer_online":
		return merger.PreferOnline, nil
	case "most_complete":
		return merger.MostComplete, nil
	case "most_recent":
		return merger.MostRecent, nil
	case "union":
		return merger.Union, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// ToSearchConfig builds a search.Config from the loaded document,
// starting from search.Defaults() so any key this document leaves unset
// still carries the service's own sensible default.
func (c *Config) ToSearchConfig() search.Config {
	sc := search.Defaults()

	if pc, ok := c.Providers["SIMBAD"]; ok {
		sc.EnableSimbad = pc.Enabled
	}
	if pc, ok := c.Providers["VizieR"]; ok {
		sc.EnableVizier = pc.Enabled
	}
	if pc, ok := c.Providers["NED"]; ok {
		sc.EnableNED = pc.Enabled
	}
	if pc, ok := c.Providers["JPL_Horizons"]; ok {
		sc.EnableJPLHorizons = pc.Enabled
	}
	if pc, ok := c.Providers["OpenNGC"]; ok {
		sc.EnableOpenNGC = pc.Enabled
	}

	sc.ProviderBaseURLs = map[string]string{}
	sc.ProviderTimeouts = map[string]time.Duration{}
	for name, pc := range c.Providers {
		if pc.BaseURL != "" {
			sc.ProviderBaseURLs[name] = pc.BaseURL
		}
		if pc.TimeoutMS > 0 {
			sc.ProviderTimeouts[name] = time.Duration(pc.TimeoutMS) * time.Millisecond
		}
	}

	sc.CacheConfig.MaxEntries = c.Cache.MaxEntries
	sc.CacheConfig.DefaultTTL = time.Duration(c.Cache.DefaultTTLMinutes) * time.Minute
	sc.ProviderCacheTTLs = map[string]time.Duration{}
	for canonical, key := range providerTTLKey {
		if minutes, ok := c.Cache.ProviderTTLMinutes[key]; ok {
			sc.ProviderCacheTTLs[canonical] = time.Duration(minutes) * time.Minute
		}
	}

	sc.RateLimits = map[string]ratelimit.Rule{}
	for name, r := range c.Rate {
		sc.RateLimits[name] = ratelimit.Rule{RPS: r.RPS, Burst: r.Burst, RPM: r.RPM, RPH: r.RPH}
	}

	sc.MaxConcurrentProviders = c.Service.MaxConcurrentProviders
	sc.QueryTimeout = time.Duration(c.Service.QueryTimeoutMS) * time.Millisecond
	sc.TotalTimeout = time.Duration(c.Service.TotalTimeoutMS) * time.Millisecond
	sc.ProviderPriority = append([]string(nil), c.Service.ProviderPriority...)

	return sc
}

// AutofocusBundle groups every focus subsystem's configuration, derived
// from the autofocus.* document keys plus each component's own
// well-tested defaults for fields spec.md leaves as "use mode default".
type AutofocusBundle struct {
	Mode      model.FocusMode
	Algorithm model.CurveAlgorithm
	Engine    focus.EngineConfig
	Builder   focus.CurveBuilderConfig
	Analyser  focus.AnalyserConfig
	Sampler   focus.SamplerConfig
	Backlash  focus.BacklashConfig
	TempComp  focus.TempCompConfig
}

// ToAutofocusBundle builds an AutofocusBundle from the loaded document.
// ExposureTime/StepSize/MaxSteps of zero mean "use mode default" per
// spec.md §6; non-zero values override the mode's builder defaults.
func (c *Config) ToAutofocusBundle() (AutofocusBundle, error) {
	mode, err := ParseFocusMode(c.Autofocus.Mode)
	if err != nil {
		return AutofocusBundle{}, err
	}
	algo, err := ParseCurveAlgorithm(c.Autofocus.Algorithm)
	if err != nil {
		return AutofocusBundle{}, err
	}

	builder := focus.DefaultCurveBuilderConfig(mode)
	builder.Binning = c.Autofocus.Binning
	if c.Autofocus.StepSize > 0 {
		builder.FineStep = c.Autofocus.StepSize
	}
	if c.Autofocus.MaxSteps > 0 {
		builder.FineRange = c.Autofocus.MaxSteps
	}

	analyser := focus.DefaultAnalyserConfig()
	if c.Autofocus.MinStars > 0 {
		analyser.MinStars = c.Autofocus.MinStars
	}

	if c.Autofocus.ExposureTime > 0 {
		builder.ExposureOverride = time.Duration(c.Autofocus.ExposureTime * float64(time.Second))
	}

	sampler := focus.DefaultSamplerConfig()
	if c.Autofocus.MinStars > 0 {
		sampler.MinStars = c.Autofocus.MinStars
	}

	return AutofocusBundle{
		Mode:      mode,
		Algorithm: algo,
		Engine: focus.EngineConfig{
			Mode:                    mode,
			Algorithm:               algo,
			BacklashCompensation:    c.Autofocus.BacklashCompensation,
			TemperatureCompensation: c.Autofocus.TemperatureCompensation,
		},
		Builder:  builder,
		Analyser: analyser,
		Sampler:  sampler,
		Backlash: focus.DefaultBacklashConfig(),
		TempComp: focus.DefaultTempCompConfig(),
	}, nil
}
