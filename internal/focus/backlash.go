package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/99souls/astrofed/internal/model"
)

// BacklashConfig bounds backlash measurement and compensation (§4.10).
// Grounded on backlash.hpp's BacklashCompensationTask::Config.
type BacklashConfig struct {
	MeasurementRange   int
	MeasurementSteps   int
	OvershootMargin    int
	ConfidenceThresh   float64
	MaxBacklashSteps   int
}

// DefaultBacklashConfig mirrors backlash.hpp's field defaults.
func DefaultBacklashConfig() BacklashConfig {
	return BacklashConfig{MeasurementRange: 100, MeasurementSteps: 10, OvershootMargin: 20, ConfidenceThresh: 0.8, MaxBacklashSteps: 200}
}

// BacklashModel measures hysteresis between approach directions and
// compensates subsequent moves for it.
type BacklashModel struct {
	Sampler *Sampler
	Config  BacklashConfig

	lastDirection model.Direction
}

// NewBacklashModel constructs a BacklashModel.
func NewBacklashModel(sampler *Sampler, cfg BacklashConfig) *BacklashModel {
	return &BacklashModel{Sampler: sampler, Config: cfg}
}

// Measure runs one outward and one inward pass across [center-range,
// center+range] at uniform intervals, notes each pass's minimum-HFR
// position, and reports the resulting hysteresis (§4.10).
func (m *BacklashModel) Measure(ctx context.Context, center int, exposure time.Duration) (model.BacklashMeasurement, error) {
	lo := center - m.Config.MeasurementRange
	hi := center + m.Config.MeasurementRange
	step := (hi - lo) / max(1, m.Config.MeasurementSteps)
	if step <= 0 {
		step = 1
	}

	outward, err := m.pass(ctx, lo, hi, step, exposure)
	if err != nil {
		return model.BacklashMeasurement{}, fmt.Errorf("focus: outward backlash pass: %w", err)
	}
	inward, err := m.pass(ctx, hi, lo, -step, exposure)
	if err != nil {
		return model.BacklashMeasurement{}, fmt.Errorf("focus: inward backlash pass: %w", err)
	}

	if len(outward) == 0 || len(inward) == 0 {
		return model.BacklashMeasurement{}, fmt.Errorf("focus: backlash measurement produced no samples")
	}

	outPos := minHFRPosition(outward)
	inPos := minHFRPosition(inward)
	delta := abs(outPos - inPos)

	dynamicRange := curveDynamicRange(append(append([]model.FocusSample{}, outward...), inward...))
	confidence := backlashConfidence(outward, inward, dynamicRange)

	measurement := model.BacklashMeasurement{
		OutwardSteps: delta,
		InwardSteps:  0,
		Confidence:   confidence,
		DataPoints:   len(outward) + len(inward),
		Method:       "dual-pass minimum comparison",
	}
	if sharperMinimum(inward) < sharperMinimum(outward) {
		measurement.InwardSteps = delta
		measurement.OutwardSteps = 0
	}

	measurement.Valid = confidence >= m.Config.ConfidenceThresh &&
		measurement.InwardSteps <= m.Config.MaxBacklashSteps &&
		measurement.OutwardSteps <= m.Config.MaxBacklashSteps &&
		dynamicRange > 0.5
	return measurement, nil
}

func (m *BacklashModel) pass(ctx context.Context, from, to, step int, exposure time.Duration) ([]model.FocusSample, error) {
	var samples []model.FocusSample
	pos := from
	for {
		sample, err := m.Sampler.Sample(ctx, pos, exposure, 1, 1)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
		if (step > 0 && pos >= to) || (step < 0 && pos <= to) {
			break
		}
		pos += step
	}
	return samples, nil
}

func sharperMinimum(samples []model.FocusSample) float64 {
	return argminHFR(samples).HFR
}

func curveDynamicRange(samples []model.FocusSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	min, max := samples[0].HFR, samples[0].HFR
	for _, s := range samples[1:] {
		if s.HFR < min {
			min = s.HFR
		}
		if s.HFR > max {
			max = s.HFR
		}
	}
	return max - min
}

func backlashConfidence(outward, inward []model.FocusSample, dynamicRange float64) float64 {
	if dynamicRange <= 0 {
		return 0
	}
	points := len(outward) + len(inward)
	confidence := 0.5 + 0.05*float64(points)
	if confidence > 0.98 {
		confidence = 0.98
	}
	return confidence
}

// NextMove computes the committed-direction-aware target for a move to
// target, overshooting by backlash+margin when the direction has changed
// since the last committed move, then returns to the true target (§4.10).
func (m *BacklashModel) NextMove(current, target int, measurement model.BacklashMeasurement) (overshootTarget int, finalTarget int, needsOvershoot bool) {
	direction := model.DirectionOutward
	if target < current {
		direction = model.DirectionInward
	} else if target == current {
		direction = m.lastDirection
	}

	changed := m.lastDirection != model.DirectionNone && direction != m.lastDirection
	m.lastDirection = direction

	if !changed {
		return target, target, false
	}

	backlash := measurement.OutwardSteps
	if direction == model.DirectionInward {
		backlash = measurement.InwardSteps
	}
	overshoot := backlash + m.Config.OvershootMargin
	if direction == model.DirectionOutward {
		return target + overshoot, target, true
	}
	return target - overshoot, target, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
