package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/99souls/astrofed/internal/device"
	"github.com/99souls/astrofed/internal/model"
)

// EngineConfig wires the curve builder, analyser, and optional backlash/
// temperature compensation together for one Run (§4.8-§4.11). Grounded on
// autofocus.hpp's AutofocusTask parameter set (mode/algorithm/exposure_
// time/step_size/max_steps/backlash_compensation/temperature_compensation).
type EngineConfig struct {
	Mode                     model.FocusMode
	Algorithm                model.CurveAlgorithm
	BacklashCompensation     bool
	TemperatureCompensation  bool
}

// Engine runs one autofocus pass: build the curve, analyse it, and (on
// success) move the focuser to the chosen best position. It is
// single-threaded, per §5: sampling, movement, and analysis proceed
// sequentially.
type Engine struct {
	Focuser  device.Focuser
	Builder  *CurveBuilder
	Analyser *Analyser
	Backlash          *BacklashModel
	LastMeasurement   model.BacklashMeasurement
	TempComp          *TemperatureCompensator
	Sensor            device.TemperatureSensor
	Config            EngineConfig
}

// NewEngine constructs an Engine from its collaborators.
func NewEngine(focuser device.Focuser, builder *CurveBuilder, analyser *Analyser, cfg EngineConfig) *Engine {
	return &Engine{Focuser: focuser, Builder: builder, Analyser: analyser, Config: cfg}
}

// Run sweeps start..end, analyses the resulting curve, and moves to the
// best position when the curve validates. An error from a move Run makes
// itself is fatal; a move that fails inside a sweep is treated by the
// curve builder as a sampler failure. A low-confidence or otherwise invalid
// curve leaves the focuser at its pre-run position (§7).
func (e *Engine) Run(ctx context.Context, start, end int) (model.FocusCurve, error) {
	preRunPosition, err := e.Focuser.Position(ctx)
	if err != nil {
		return model.FocusCurve{}, fmt.Errorf("focus: read pre-run position: %w", err)
	}

	samples, err := e.Builder.Build(ctx, start, end)
	if err != nil {
		return model.FocusCurve{}, fmt.Errorf("focus: curve build: %w", err)
	}

	curve := e.Analyser.Analyse(samples, e.Config.Algorithm)
	if !curve.Valid {
		if moveErr := e.Focuser.MoveTo(ctx, preRunPosition); moveErr != nil {
			return curve, fmt.Errorf("focus: curve invalid (%s) and failed to restore pre-run position: %w", curve.Reason, moveErr)
		}
		return curve, nil
	}

	target := curve.BestPosition
	if e.Config.TemperatureCompensation && e.TempComp != nil && e.Sensor != nil {
		temp, tErr := e.Sensor.ReadCelsius(ctx)
		if tErr == nil {
			if delta, apply := e.TempComp.Compensation(temp, target, time.Now()); apply {
				target += delta
			}
		}
	}

	if e.Config.BacklashCompensation && e.Backlash != nil {
		overshoot, final, needsOvershoot := e.Backlash.NextMove(preRunPosition, target, e.LastMeasurement)
		if needsOvershoot {
			if err := e.Focuser.MoveTo(ctx, overshoot); err != nil {
				return curve, fmt.Errorf("focus: backlash overshoot move: %w", err)
			}
		}
		if err := e.Focuser.MoveTo(ctx, final); err != nil {
			return curve, fmt.Errorf("focus: move to best position: %w", err)
		}
		return curve, nil
	}

	if err := e.Focuser.MoveTo(ctx, target); err != nil {
		return curve, fmt.Errorf("focus: move to best position: %w", err)
	}
	return curve, nil
}
