package focus

import (
	"math"
	"sync"
	"time"

	"github.com/99souls/astrofed/internal/model"
)

// TempCompConfig bounds the compensator's behaviour (§4.11). Grounded on
// temperature.hpp's configuration fields.
type TempCompConfig struct {
	WindowSize              int
	MinChange               float64
	MaxCompensationPerCycle int
	Coefficient             float64 // steps per degree C; set by Calibrate or directly
}

// DefaultTempCompConfig mirrors temperature.hpp's field defaults.
func DefaultTempCompConfig() TempCompConfig {
	return TempCompConfig{WindowSize: 20, MinChange: 0.5, MaxCompensationPerCycle: 50}
}

// TemperatureCompensator holds a bounded ring of (instant, temperature,
// position) samples and computes trend-aware compensation moves.
type TemperatureCompensator struct {
	Config TempCompConfig

	mu               sync.Mutex
	history          []model.TemperatureSample
	lastCompensation model.TemperatureSample
	hasLast          bool
}

// NewTemperatureCompensator constructs a TemperatureCompensator.
func NewTemperatureCompensator(cfg TempCompConfig) *TemperatureCompensator {
	return &TemperatureCompensator{Config: cfg}
}

// Record appends a sample to the ring, evicting the oldest entry once the
// ring exceeds WindowSize (§5: appended under its own lock, safe for a
// background temperature monitor to call concurrently with compensation).
func (c *TemperatureCompensator) Record(sample model.TemperatureSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, sample)
	if len(c.history) > c.Config.WindowSize {
		c.history = c.history[len(c.history)-c.Config.WindowSize:]
	}
}

// Trend returns the slope (degrees per hour) of a simple linear regression
// of temperature against elapsed time over the current window.
func (c *TemperatureCompensator) Trend() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return trendSlope(c.history)
}

func trendSlope(history []model.TemperatureSample) float64 {
	if len(history) < 2 {
		return 0
	}
	t0 := history[0].Instant
	var sumX, sumY, sumXY, sumX2 float64
	n := float64(len(history))
	for _, s := range history {
		x := s.Instant.Sub(t0).Hours()
		y := s.Temperature
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// windowMinutes is the elapsed time the current history ring spans, used
// to scale the predictive compensation term.
func (c *TemperatureCompensator) windowMinutes() float64 {
	if len(c.history) < 2 {
		return 0
	}
	return c.history[len(c.history)-1].Instant.Sub(c.history[0].Instant).Minutes()
}

// Compensation computes the step delta for the given current temperature,
// applying it only when the change since the last compensation meets
// MinChange, and capping the result at MaxCompensationPerCycle (§4.11).
// It returns the delta and whether it should be applied.
func (c *TemperatureCompensator) Compensation(currentTemp float64, currentPosition int, at time.Time) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasLast {
		c.lastCompensation = model.TemperatureSample{Instant: at, Temperature: currentTemp, Position: currentPosition}
		c.hasLast = true
		return 0, false
	}

	deltaT := currentTemp - c.lastCompensation.Temperature
	if math.Abs(deltaT) < c.Config.MinChange {
		return 0, false
	}

	trend := trendSlope(c.history)
	windowMinutes := c.windowMinutes()
	predictive := 0.5 * trend * (windowMinutes / 60) * c.Config.Coefficient
	delta := deltaT*c.Config.Coefficient + predictive

	if max := float64(c.Config.MaxCompensationPerCycle); math.Abs(delta) > max {
		if delta > 0 {
			delta = max
		} else {
			delta = -max
		}
	}

	c.lastCompensation = model.TemperatureSample{Instant: at, Temperature: currentTemp, Position: currentPosition + int(math.Round(delta))}
	return int(math.Round(delta)), true
}

// CalibrationPoint pairs a temperature with the position that produced
// best focus there, input to Calibrate.
type CalibrationPoint struct {
	Temperature float64
	Position    int
}

// Calibrate fits a line through (temperature, position) pairs spanning at
// least 5°C; the slope becomes the compensation coefficient, and
// confidence derives from the fit's R² (§4.11).
func Calibrate(points []CalibrationPoint) (coefficient, confidence float64, ok bool) {
	if len(points) < 3 {
		return 0, 0, false
	}
	minT, maxT := points[0].Temperature, points[0].Temperature
	for _, p := range points[1:] {
		if p.Temperature < minT {
			minT = p.Temperature
		}
		if p.Temperature > maxT {
			maxT = p.Temperature
		}
	}
	if maxT-minT < 5 {
		return 0, 0, false
	}

	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.Temperature
		sumY += float64(p.Position)
		sumXY += p.Temperature * float64(p.Position)
		sumX2 += p.Temperature * p.Temperature
	}
	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0, 0, false
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	predicted := make([]float64, len(points))
	actual := make([]float64, len(points))
	for i, p := range points {
		predicted[i] = slope*p.Temperature + intercept
		actual[i] = float64(p.Position)
	}
	return slope, rSquared(actual, predicted), true
}
