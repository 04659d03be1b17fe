package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/99souls/astrofed/internal/model"
)

// CurveBuilderConfig bounds sweep shape beyond the per-mode exposure/step/
// point defaults (§4.9).
type CurveBuilderConfig struct {
	Mode          model.FocusMode
	Binning       int
	ExposureCount int
	FineRange     int
	FineStep      int
	UltraRange    int
	UltraStep     int
	StrideCoarse  bool // sample every second coarse point
	LimitLo       int
	LimitHi       int

	// ExposureOverride replaces the mode's default exposure length for
	// every pass when non-zero.
	ExposureOverride time.Duration
}

// DefaultCurveBuilderConfig mirrors calibration.cpp's default sweep shape.
func DefaultCurveBuilderConfig(mode model.FocusMode) CurveBuilderConfig {
	return CurveBuilderConfig{
		Mode: mode, Binning: 1, ExposureCount: 1,
		FineRange: 300, FineStep: 20,
		UltraRange: 60, UltraStep: 5,
		LimitLo: 0, LimitHi: 1 << 30,
	}
}

// CurveBuilder sweeps the focuser across coarse, fine, and (in
// high-precision mode) ultra-fine passes, sampling quality at each
// visited position.
type CurveBuilder struct {
	Sampler *Sampler
	Config  CurveBuilderConfig
}

// NewCurveBuilder constructs a CurveBuilder.
func NewCurveBuilder(sampler *Sampler, cfg CurveBuilderConfig) *CurveBuilder {
	return &CurveBuilder{Sampler: sampler, Config: cfg}
}

// Build sweeps from start to end, then refines around the coarse minimum,
// returning every sample gathered across all passes (§4.9).
func (b *CurveBuilder) Build(ctx context.Context, start, end int) ([]model.FocusSample, error) {
	defaults := b.Config.Mode.Defaults()
	step := defaults.CoarseStep
	if step <= 0 {
		step = 1
	}
	exposure := defaults.Exposure
	if b.Config.ExposureOverride > 0 {
		exposure = b.Config.ExposureOverride
	}

	coarse, err := b.sweep(ctx, start, end, step, exposure, b.Config.StrideCoarse)
	if err != nil {
		return nil, fmt.Errorf("focus: coarse sweep: %w", err)
	}
	if len(coarse) == 0 {
		return nil, fmt.Errorf("focus: coarse sweep produced no samples")
	}

	p0 := minHFRPosition(coarse)
	fineLo, fineHi := clampLimits(p0-b.Config.FineRange, p0+b.Config.FineRange, b.Config.LimitLo, b.Config.LimitHi)
	fineStep := b.Config.FineStep
	if fineStep <= 0 {
		fineStep = 1
	}
	fine, err := b.sweep(ctx, fineLo, fineHi, fineStep, exposure, false)
	if err != nil {
		return nil, fmt.Errorf("focus: fine sweep: %w", err)
	}

	samples := append(coarse, fine...)
	if b.Config.Mode != model.ModeHighPrecision || len(fine) == 0 {
		return samples, nil
	}

	p1 := minHFRPosition(fine)
	ultraLo, ultraHi := clampLimits(p1-b.Config.UltraRange, p1+b.Config.UltraRange, b.Config.LimitLo, b.Config.LimitHi)
	ultraStep := b.Config.UltraStep
	if ultraStep <= 0 {
		ultraStep = 1
	}
	exposureCount := b.Config.ExposureCount
	if exposureCount < 2 {
		exposureCount = 2 // ultra-fine pass averages multiple exposures per point
	}
	ultra, err := b.sweepN(ctx, ultraLo, ultraHi, ultraStep, exposure, exposureCount)
	if err != nil {
		return nil, fmt.Errorf("focus: ultra-fine sweep: %w", err)
	}
	return append(samples, ultra...), nil
}

func (b *CurveBuilder) sweep(ctx context.Context, lo, hi, step int, exposure time.Duration, stride bool) ([]model.FocusSample, error) {
	return b.sweepStrided(ctx, lo, hi, step, exposure, b.Config.ExposureCount, stride)
}

func (b *CurveBuilder) sweepN(ctx context.Context, lo, hi, step int, exposure time.Duration, exposureCount int) ([]model.FocusSample, error) {
	return b.sweepStrided(ctx, lo, hi, step, exposure, exposureCount, false)
}

func (b *CurveBuilder) sweepStrided(ctx context.Context, lo, hi, step int, exposure time.Duration, exposureCount int, stride bool) ([]model.FocusSample, error) {
	if step <= 0 {
		step = 1
	}
	if exposureCount < 1 {
		exposureCount = 1
	}
	var samples []model.FocusSample
	consecutiveFailures := 0
	visited := 0
	for pos := lo; pos <= hi; pos += step {
		visited++
		if stride && visited%2 == 0 {
			continue
		}
		sample, err := b.Sampler.Sample(ctx, pos, exposure, b.Config.Binning, exposureCount)
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures >= 2 {
				return nil, fmt.Errorf("focus: two consecutive sampler failures near position %d: %w", pos, err)
			}
			continue
		}
		consecutiveFailures = 0
		samples = append(samples, sample)
	}
	return samples, nil
}

func minHFRPosition(samples []model.FocusSample) int {
	best := samples[0]
	for _, s := range samples[1:] {
		if s.HFR > 0 && (best.HFR <= 0 || s.HFR < best.HFR) {
			best = s
		}
	}
	return best.Position
}

func clampLimits(lo, hi, limitLo, limitHi int) (int, int) {
	if lo < limitLo {
		lo = limitLo
	}
	if hi > limitHi {
		hi = limitHi
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}
