package focus

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/astrofed/internal/device"
	"github.com/99souls/astrofed/internal/model"
)

// fakeFocuser is a deterministic in-memory device.Focuser for tests.
type fakeFocuser struct {
	pos        int
	lo, hi     int
	moveErr    error
}

func (f *fakeFocuser) Position(ctx context.Context) (int, error) { return f.pos, nil }
func (f *fakeFocuser) MoveTo(ctx context.Context, position int) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.pos = position
	return nil
}
func (f *fakeFocuser) IsMoving(ctx context.Context) (bool, error)   { return false, nil }
func (f *fakeFocuser) Abort(ctx context.Context) error              { return nil }
func (f *fakeFocuser) Limits(ctx context.Context) (int, int, error) { return f.lo, f.hi, nil }

// vCurveCamera and vCurveDetector synthesize the HFR(p) = 1 + 0.02*|p-25000|
// shape of spec scenario 6 without needing real frame data: the camera
// returns an empty frame, and the detector reads the fake focuser's current
// position to report a single synthetic star whose HFR matches it.
type vCurveCamera struct{ focuser *fakeFocuser }

func (c *vCurveCamera) Expose(ctx context.Context, seconds float64, binning int) (device.Frame, error) {
	return device.Frame{Width: 1000, Height: 1000, ExposedAt: time.Now()}, nil
}

type vCurveDetector struct{ focuser *fakeFocuser }

func (d *vCurveDetector) Detect(ctx context.Context, frame device.Frame) ([]device.Star, error) {
	hfr := 1.0 + 0.02*math.Abs(float64(d.focuser.pos-25000))
	return []device.Star{{X: 500, Y: 500, HFR: hfr, FWHM: hfr * 2, Peak: 20000, Background: 100, Eccentricity: 0.1}}, nil
}

func newVCurveSampler() (*Sampler, *fakeFocuser) {
	focuser := &fakeFocuser{pos: 25000, lo: 0, hi: 1 << 20}
	sampler := NewSampler(focuser, &vCurveCamera{focuser: focuser}, &vCurveDetector{focuser: focuser}, DefaultSamplerConfig())
	return sampler, focuser
}

func TestSamplerAveragesDetectedStars(t *testing.T) {
	sampler, _ := newVCurveSampler()
	sample, err := sampler.Sample(context.Background(), 25000, time.Second, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sample.HFR, 1e-9)
	assert.Equal(t, 1, sample.StarCount)
}

func TestCurveBuilderLocatesMinimumNearTrueFocus(t *testing.T) {
	sampler, _ := newVCurveSampler()
	cfg := DefaultCurveBuilderConfig(model.ModeFull)
	cfg.FineRange, cfg.FineStep = 120, 20
	builder := NewCurveBuilder(sampler, cfg)

	samples, err := builder.Build(context.Background(), 24500, 25500)
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	pos := minHFRPosition(samples)
	assert.InDelta(t, 25000, pos, 20)
}

func TestVCurveAnalyserMeetsScenarioConfidence(t *testing.T) {
	sampler, _ := newVCurveSampler()
	cfg := DefaultCurveBuilderConfig(model.ModeFull)
	cfg.Mode = model.ModeFull
	builder := NewCurveBuilder(sampler, cfg)
	samples, err := builder.Build(context.Background(), 24500, 25500)
	require.NoError(t, err)

	analyser := NewAnalyser(DefaultAnalyserConfig())
	curve := analyser.Analyse(samples, model.AlgoVCurve)

	require.True(t, curve.Valid, curve.Reason)
	assert.GreaterOrEqual(t, curve.Confidence, 0.9)
	assert.GreaterOrEqual(t, curve.BestPosition, 24980)
	assert.LessOrEqual(t, curve.BestPosition, 25020)
}

func TestAnalyserRejectsTooFewSamples(t *testing.T) {
	analyser := NewAnalyser(DefaultAnalyserConfig())
	curve := analyser.Analyse([]model.FocusSample{{Position: 100, HFR: 2, FWHM: 3, StarCount: 10}}, model.AlgoSimple)
	assert.False(t, curve.Valid)
	assert.NotEmpty(t, curve.Reason)
}

func syntheticVSamples() []model.FocusSample {
	var samples []model.FocusSample
	for p := 24800; p <= 25200; p += 20 {
		hfr := 1.0 + 0.02*math.Abs(float64(p-25000))
		samples = append(samples, model.FocusSample{Position: p, HFR: hfr, FWHM: hfr * 2, StarCount: 20})
	}
	return samples
}

func TestHyperbolicAnalyserFindsMinimum(t *testing.T) {
	analyser := NewAnalyser(DefaultAnalyserConfig())
	curve := analyser.Analyse(syntheticVSamples(), model.AlgoHyperbolic)
	require.True(t, curve.Valid, curve.Reason)
	assert.InDelta(t, 25000, curve.BestPosition, 50)
}

func TestPolynomialAnalyserFindsMinimum(t *testing.T) {
	analyser := NewAnalyser(DefaultAnalyserConfig())
	curve := analyser.Analyse(syntheticVSamples(), model.AlgoPolynomial)
	require.True(t, curve.Valid, curve.Reason)
	assert.InDelta(t, 25000, curve.BestPosition, 50)
}

func TestEngineRunMovesFocuserToBestPosition(t *testing.T) {
	sampler, focuser := newVCurveSampler()
	cfg := DefaultCurveBuilderConfig(model.ModeFull)
	builder := NewCurveBuilder(sampler, cfg)
	analyser := NewAnalyser(DefaultAnalyserConfig())
	engine := NewEngine(focuser, builder, analyser, EngineConfig{Mode: model.ModeFull, Algorithm: model.AlgoVCurve})

	curve, err := engine.Run(context.Background(), 24500, 25500)
	require.NoError(t, err)
	require.True(t, curve.Valid)
	assert.InDelta(t, curve.BestPosition, focuser.pos, 0)
}

func TestEngineRunRestoresPreRunPositionOnInvalidCurve(t *testing.T) {
	sampler, focuser := newVCurveSampler()
	focuser.pos = 25000
	cfg := DefaultCurveBuilderConfig(model.ModeFull)
	builder := NewCurveBuilder(sampler, cfg)
	analyserCfg := DefaultAnalyserConfig()
	analyserCfg.MinSamples = 1000 // force invalidation regardless of sample count gathered
	analyser := NewAnalyser(analyserCfg)
	engine := NewEngine(focuser, builder, analyser, EngineConfig{Mode: model.ModeFull, Algorithm: model.AlgoVCurve})

	curve, err := engine.Run(context.Background(), 24900, 25100)
	require.NoError(t, err)
	assert.False(t, curve.Valid)
	assert.Equal(t, 25000, focuser.pos)
}

func TestBacklashMeasureStaysWithinMaxSteps(t *testing.T) {
	focuser := &fakeFocuser{pos: 25000, lo: 0, hi: 1 << 20}
	sampler := NewSampler(focuser, &vCurveCamera{focuser: focuser}, &vCurveDetector{focuser: focuser}, DefaultSamplerConfig())
	bm := NewBacklashModel(sampler, DefaultBacklashConfig())
	measurement, err := bm.Measure(context.Background(), 25000, 100*time.Millisecond)
	require.NoError(t, err)
	assert.LessOrEqual(t, measurement.InwardSteps+measurement.OutwardSteps, 2*bm.Config.MaxBacklashSteps)
}

func TestBacklashNextMoveOvershootsOnDirectionChange(t *testing.T) {
	focuser := &fakeFocuser{pos: 25000}
	sampler := NewSampler(focuser, &vCurveCamera{focuser: focuser}, &vCurveDetector{focuser: focuser}, DefaultSamplerConfig())
	bm := NewBacklashModel(sampler, DefaultBacklashConfig())

	overshoot, final, needs := bm.NextMove(25000, 25100, model.BacklashMeasurement{OutwardSteps: 30})
	assert.False(t, needs, "first move has no prior committed direction")
	assert.Equal(t, 25100, final)
	_ = overshoot

	overshoot2, final2, needs2 := bm.NextMove(25100, 24900, model.BacklashMeasurement{InwardSteps: 30})
	assert.True(t, needs2, "direction reversed from outward to inward")
	assert.Equal(t, 24900, final2)
	assert.Less(t, overshoot2, final2, "inward overshoot passes beyond the target before returning")
}

func TestTemperatureCompensatorComputesTrendAndDelta(t *testing.T) {
	comp := NewTemperatureCompensator(TempCompConfig{WindowSize: 10, MinChange: 0.5, MaxCompensationPerCycle: 1000, Coefficient: 10})
	base := time.Now()
	comp.Record(model.TemperatureSample{Instant: base, Temperature: 10, Position: 25000})
	comp.Record(model.TemperatureSample{Instant: base.Add(30 * time.Minute), Temperature: 11, Position: 25010})

	delta, apply := comp.Compensation(10, 25000, base)
	assert.False(t, apply, "first call only seeds the baseline")
	_ = delta

	delta2, apply2 := comp.Compensation(12, 25000, base.Add(time.Hour))
	assert.True(t, apply2)
	assert.Greater(t, delta2, 0)
}

func TestTemperatureCompensatorSkipsBelowMinChange(t *testing.T) {
	comp := NewTemperatureCompensator(TempCompConfig{WindowSize: 10, MinChange: 2, MaxCompensationPerCycle: 1000, Coefficient: 10})
	base := time.Now()
	comp.Compensation(10, 25000, base)
	_, apply := comp.Compensation(10.5, 25000, base.Add(time.Minute))
	assert.False(t, apply)
}

func TestCalibrateRequiresFiveDegreeSpan(t *testing.T) {
	_, _, ok := Calibrate([]CalibrationPoint{{Temperature: 10, Position: 25000}, {Temperature: 11, Position: 25010}, {Temperature: 12, Position: 25020}})
	assert.False(t, ok, "span of 2 degrees is below the 5 degree minimum")

	coeff, confidence, ok2 := Calibrate([]CalibrationPoint{
		{Temperature: 10, Position: 25000}, {Temperature: 13, Position: 25030}, {Temperature: 16, Position: 25060},
	})
	require.True(t, ok2)
	assert.InDelta(t, 10, coeff, 1e-6)
	assert.GreaterOrEqual(t, confidence, 0.99)
}
