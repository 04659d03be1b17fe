// Package focus implements the autofocus engine of spec §4.8-4.11: a
// position sampler that averages star-detection quality over one or more
// exposures, a curve builder that sweeps coarse/fine/ultra-fine passes, an
// analyser offering four best-position algorithms, a backlash model, and a
// temperature compensator. Grounded on
// original_source/src/task/custom/focuser/{star_analysis,calibration,
// backlash,temperature}.{hpp,cpp}, generalized from those tasks' Task
// subclass shape into a single-threaded, dependency-injected engine.
package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/99souls/astrofed/internal/device"
	"github.com/99souls/astrofed/internal/model"
)

// SamplerConfig bounds what counts as a reliable sample (§4.8).
type SamplerConfig struct {
	MinStars        int
	HFRMax          float64
	EccentricityMax float64
	MoveTimeout     time.Duration
	PollInterval    time.Duration
}

// DefaultSamplerConfig mirrors the thresholds star_analysis.cpp's quality
// gate applies before accepting a measurement.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		MinStars: 5, HFRMax: 15.0, EccentricityMax: 0.6,
		MoveTimeout: 30 * time.Second, PollInterval: 100 * time.Millisecond,
	}
}

// Sampler drives the focuser to a position, waits for motion to settle,
// exposes, detects stars, and averages their quality into one FocusSample.
type Sampler struct {
	Focuser  device.Focuser
	Camera   device.Camera
	Detector device.StarDetector
	Clock    device.Clock
	Sleeper  device.Sleeper
	Config   SamplerConfig
}

// NewSampler constructs a Sampler with the real system clock and sleeper.
func NewSampler(focuser device.Focuser, camera device.Camera, detector device.StarDetector, cfg SamplerConfig) *Sampler {
	return &Sampler{Focuser: focuser, Camera: camera, Detector: detector, Clock: device.SystemClock, Sleeper: device.SystemSleeper, Config: cfg}
}

// Sample moves to position, waits for the move to settle, takes exposures
// exposure seconds long with the given binning, and averages their
// measurements into a FocusSample (§4.8).
func (s *Sampler) Sample(ctx context.Context, position int, exposure time.Duration, binning, exposureCount int) (model.FocusSample, error) {
	if exposureCount < 1 {
		exposureCount = 1
	}
	if err := s.Focuser.MoveTo(ctx, position); err != nil {
		return model.FocusSample{}, fmt.Errorf("focus: move to %d: %w", position, err)
	}
	if err := s.waitForSettle(ctx); err != nil {
		return model.FocusSample{}, err
	}

	var sumHFR, sumFWHM, sumPeak, sumBackground, sumEcc float64
	var sumStars, validFrames int
	for i := 0; i < exposureCount; i++ {
		frame, err := s.Camera.Expose(ctx, exposure.Seconds(), binning)
		if err != nil {
			return model.FocusSample{}, fmt.Errorf("focus: exposure at %d: %w", position, err)
		}
		stars, err := s.Detector.Detect(ctx, frame)
		if err != nil {
			return model.FocusSample{}, fmt.Errorf("focus: star detection at %d: %w", position, err)
		}
		if len(stars) == 0 {
			continue
		}
		var hfr, fwhm, peak, background, ecc float64
		for _, star := range stars {
			hfr += star.HFR
			fwhm += star.FWHM
			peak += star.Peak
			background += star.Background
			ecc += star.Eccentricity
		}
		n := float64(len(stars))
		sumHFR += hfr / n
		sumFWHM += fwhm / n
		sumPeak += peak / n
		sumBackground += background / n
		sumEcc += ecc / n
		sumStars += len(stars)
		validFrames++
	}

	if validFrames == 0 {
		return model.FocusSample{Position: position, Timestamp: s.Clock.Now()}, nil
	}
	n := float64(validFrames)
	return model.FocusSample{
		Position:     position,
		HFR:          sumHFR / n,
		FWHM:         sumFWHM / n,
		StarCount:    sumStars / validFrames,
		Peak:         sumPeak / n,
		Background:   sumBackground / n,
		Eccentricity: sumEcc / n,
		Timestamp:    s.Clock.Now(),
	}, nil
}

func (s *Sampler) waitForSettle(ctx context.Context) error {
	deadline := s.Clock.Now().Add(s.Config.MoveTimeout)
	for {
		moving, err := s.Focuser.IsMoving(ctx)
		if err != nil {
			return fmt.Errorf("focus: poll motion state: %w", err)
		}
		if !moving {
			return nil
		}
		if s.Clock.Now().After(deadline) {
			return fmt.Errorf("focus: motion did not settle within %s", s.Config.MoveTimeout)
		}
		if err := s.Sleeper.Sleep(ctx, s.Config.PollInterval); err != nil {
			return err
		}
	}
}

// EdgeMargin returns the margin (in pixels) a star centroid must keep from
// the frame border: twice the largest star radius observed, per §4.8.
func EdgeMargin(stars []device.Star) float64 {
	var maxRadius float64
	for _, s := range stars {
		if r := s.HFR; r > maxRadius {
			maxRadius = r
		}
	}
	return 2 * maxRadius
}

// NearEdge reports whether any star in stars lies within margin of the
// frame's border.
func NearEdge(stars []device.Star, width, height int, margin float64) bool {
	for _, s := range stars {
		if s.X < margin || s.Y < margin || float64(width)-s.X < margin || float64(height)-s.Y < margin {
			return true
		}
	}
	return false
}

// Saturated reports whether any star's peak meets or exceeds the sensor's
// saturation level.
func Saturated(stars []device.Star, saturationLevel float64) bool {
	for _, s := range stars {
		if s.Peak >= saturationLevel {
			return true
		}
	}
	return false
}
