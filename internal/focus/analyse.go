package focus

import (
	"math"

	"github.com/99souls/astrofed/internal/model"
)

// AnalyserConfig bounds what the analyser accepts as a valid curve (§4.9).
type AnalyserConfig struct {
	MinSamples      int
	MinConfidence   float64
	MinStars        int
	HFRMax          float64
	EccentricityMax float64
	LimitLo, LimitHi int
}

// DefaultAnalyserConfig mirrors the validation thresholds validation.cpp
// applies before a calibration result is accepted.
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{MinSamples: 3, MinConfidence: 0.5, MinStars: 5, HFRMax: 15.0, EccentricityMax: 0.6, LimitLo: 0, LimitHi: 1 << 30}
}

// Analyser picks the best focus position from a set of samples using one
// of the four algorithms spec §4.9 describes.
type Analyser struct {
	Config AnalyserConfig
}

// NewAnalyser constructs an Analyser.
func NewAnalyser(cfg AnalyserConfig) *Analyser { return &Analyser{Config: cfg} }

func (a *Analyser) reliable(samples []model.FocusSample) []model.FocusSample {
	out := make([]model.FocusSample, 0, len(samples))
	for _, s := range samples {
		if s.Reliable(a.Config.MinStars, a.Config.HFRMax, a.Config.EccentricityMax) {
			out = append(out, s)
		}
	}
	return out
}

// Analyse runs algo over samples and validates the result per §4.9's
// rejection rules: too few samples, low confidence, or a best position
// outside the focuser's limits.
func (a *Analyser) Analyse(samples []model.FocusSample, algo model.CurveAlgorithm) model.FocusCurve {
	curve := model.FocusCurve{Samples: samples, Algorithm: algo}

	if len(samples) < a.Config.MinSamples {
		curve.Reason = "fewer than the minimum required samples"
		return curve
	}

	reliable := a.reliable(samples)
	if len(reliable) < a.Config.MinSamples {
		reliable = samples // fall back to the raw set rather than fail outright
	}

	switch algo {
	case model.AlgoVCurve:
		curve.BestPosition, curve.Confidence = analyseVCurve(reliable)
	case model.AlgoHyperbolic:
		curve.BestPosition, curve.Confidence = analyseHyperbolic(reliable)
	case model.AlgoPolynomial:
		curve.BestPosition, curve.Confidence = analysePolynomial(reliable)
	default:
		curve.BestPosition, curve.Confidence = analyseSimple(reliable)
	}

	if curve.Confidence < a.Config.MinConfidence {
		curve.Reason = "confidence below threshold"
		return curve
	}
	if curve.BestPosition < a.Config.LimitLo || curve.BestPosition > a.Config.LimitHi {
		curve.Reason = "best position outside focuser limits"
		return curve
	}
	curve.Valid = true
	return curve
}

// analyseSimple returns the argmin(HFR) sample with a fixed confidence.
func analyseSimple(samples []model.FocusSample) (int, float64) {
	best := argminHFR(samples)
	return best.Position, 0.8
}

// analyseVCurve returns the argmin(HFR) sample, raising confidence when
// both neighbours (by position) are strictly worse, confirming a clean V.
func analyseVCurve(samples []model.FocusSample) (int, float64) {
	sorted := sortedByPosition(samples)
	bestIdx := 0
	for i, s := range sorted {
		if s.HFR > 0 && (sorted[bestIdx].HFR <= 0 || s.HFR < sorted[bestIdx].HFR) {
			bestIdx = i
		}
	}
	best := sorted[bestIdx]
	confidence := 0.8
	// Neighbours are the nearest samples at a different position, so a
	// position sampled twice (coarse and fine pass) is not its own neighbour.
	lo, hi := bestIdx-1, bestIdx+1
	for lo >= 0 && sorted[lo].Position == best.Position {
		lo--
	}
	for hi < len(sorted) && sorted[hi].Position == best.Position {
		hi++
	}
	if lo >= 0 && hi < len(sorted) {
		if sorted[lo].HFR > best.HFR && sorted[hi].HFR > best.HFR {
			confidence = 0.95
		}
	}
	return best.Position, confidence
}

// analyseHyperbolic fits HFR^2 = a*(p-p0)^2 + b^2 by least squares over the
// reliable samples and returns the fitted p0, with confidence derived from
// the fit's R^2 clamped to [0.6, 0.95].
func analyseHyperbolic(samples []model.FocusSample) (int, float64) {
	n := float64(len(samples))
	if n < 3 {
		best := argminHFR(samples)
		return best.Position, 0.5
	}

	// Positions are centered on their mean before fitting: raw focuser
	// positions (tens of thousands) raised to the 4th power lose precision
	// in float64 normal equations, so the fit is done in centered
	// coordinates and p0 is shifted back afterward.
	pMean := meanPosition(samples)

	// Linearize: y = HFR^2 = a*p^2 - 2*a*p0*p + (a*p0^2 + b^2) = A*p^2 + B*p + C
	var sumP, sumP2, sumP3, sumP4, sumY, sumPY, sumP2Y float64
	for _, s := range samples {
		p := float64(s.Position) - pMean
		y := s.HFR * s.HFR
		p2 := p * p
		sumP += p
		sumP2 += p2
		sumP3 += p2 * p
		sumP4 += p2 * p2
		sumY += y
		sumPY += p * y
		sumP2Y += p2 * y
	}

	A, B, C, ok := solveQuadraticNormalEquations(n, sumP, sumP2, sumP3, sumP4, sumY, sumPY, sumP2Y)
	if !ok || A <= 0 {
		best := argminHFR(samples)
		return best.Position, 0.6
	}
	p0 := pMean + -B/(2*A)

	predicted := make([]float64, len(samples))
	actual := make([]float64, len(samples))
	for i, s := range samples {
		p := float64(s.Position) - pMean
		predicted[i] = A*p*p + B*p + C
		actual[i] = s.HFR * s.HFR
	}
	r2 := rSquared(actual, predicted)
	confidence := 0.6 + 0.35*math.Max(0, math.Min(1, r2))
	return int(math.Round(p0)), confidence
}

func meanPosition(samples []model.FocusSample) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s.Position)
	}
	return sum / float64(len(samples))
}

// analysePolynomial fits a degree-3 least-squares polynomial and returns
// the root of its derivative closest to the minimum sample, with
// confidence from the fit's goodness.
func analysePolynomial(samples []model.FocusSample) (int, float64) {
	pMean := meanPosition(samples)
	coeffs, r2, ok := fitCubic(samples, pMean)
	if !ok {
		best := argminHFR(samples)
		return best.Position, 0.5
	}
	// derivative of c0 + c1*p + c2*p^2 + c3*p^3 is c1 + 2*c2*p + 3*c3*p^2
	// (p here is position minus pMean, matching fitCubic's centered basis)
	c1, c2, c3 := coeffs[1], coeffs[2], coeffs[3]
	roots := quadraticRoots(3*c3, 2*c2, c1)

	best := argminHFR(samples)
	bestPos := float64(best.Position) - pMean
	if len(roots) > 0 {
		closest := roots[0]
		for _, r := range roots[1:] {
			if math.Abs(r-bestPos) < math.Abs(closest-bestPos) {
				closest = r
			}
		}
		bestPos = closest
	}
	confidence := 0.5 + 0.45*math.Max(0, math.Min(1, r2))
	return int(math.Round(bestPos + pMean)), confidence
}

func argminHFR(samples []model.FocusSample) model.FocusSample {
	best := samples[0]
	for _, s := range samples[1:] {
		if s.HFR > 0 && (best.HFR <= 0 || s.HFR < best.HFR) {
			best = s
		}
	}
	return best
}

func sortedByPosition(samples []model.FocusSample) []model.FocusSample {
	out := make([]model.FocusSample, len(samples))
	copy(out, samples)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Position > out[j].Position; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// solveQuadraticNormalEquations solves the 3x3 normal-equation system for
// fitting y = A*p^2 + B*p + C by least squares, via Cramer's rule.
func solveQuadraticNormalEquations(n, sumP, sumP2, sumP3, sumP4, sumY, sumPY, sumP2Y float64) (a, b, c float64, ok bool) {
	// [sumP4 sumP3 sumP2] [A]   [sumP2Y]
	// [sumP3 sumP2 sumP ] [B] = [sumPY ]
	// [sumP2 sumP  n    ] [C]   [sumY  ]
	det := sumP4*(sumP2*n-sumP*sumP) - sumP3*(sumP3*n-sumP*sumP2) + sumP2*(sumP3*sumP-sumP2*sumP2)
	if math.Abs(det) < 1e-12 {
		return 0, 0, 0, false
	}
	detA := sumP2Y*(sumP2*n-sumP*sumP) - sumP3*(sumPY*n-sumP*sumY) + sumP2*(sumPY*sumP-sumP2*sumY)
	detB := sumP4*(sumPY*n-sumP*sumY) - sumP2Y*(sumP3*n-sumP*sumP2) + sumP2*(sumP3*sumY-sumPY*sumP2)
	detC := sumP4*(sumP2*sumY-sumPY*sumP) - sumP3*(sumP3*sumY-sumPY*sumP2) + sumP2Y*(sumP3*sumP-sumP2*sumP2)
	return detA / det, detB / det, detC / det, true
}

// fitCubic fits a degree-3 polynomial HFR = c0 + c1*p + c2*p^2 + c3*p^3 by
// least squares over p = position - pMean, returning its coefficients and
// R^2. Centering on pMean keeps the power sums (up to p^6) within a range
// float64 can resolve accurately for typical focuser position magnitudes.
func fitCubic(samples []model.FocusSample, pMean float64) (coeffs [4]float64, r2 float64, ok bool) {
	n := len(samples)
	if n < 4 {
		return coeffs, 0, false
	}
	// Build normal equations for a degree-3 fit via power sums.
	var sumP [7]float64 // sumP[k] = sum p^k, k=0..6
	var sumPY [4]float64
	sumP[0] = float64(n)
	for _, s := range samples {
		p := float64(s.Position) - pMean
		y := s.HFR
		pk := 1.0
		for k := 1; k <= 6; k++ {
			pk *= p
			sumP[k] += pk
		}
		pk = 1.0
		for k := 0; k <= 3; k++ {
			sumPY[k] += pk * y
			pk *= p
		}
	}

	// 4x4 normal matrix M[i][j] = sum p^(i+j)
	var m [4][5]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = sumP[i+j]
		}
		m[i][4] = sumPY[i]
	}
	if !gaussianSolve(&m) {
		return coeffs, 0, false
	}
	for i := 0; i < 4; i++ {
		coeffs[i] = m[i][4]
	}

	predicted := make([]float64, n)
	actual := make([]float64, n)
	for i, s := range samples {
		p := float64(s.Position) - pMean
		predicted[i] = coeffs[0] + coeffs[1]*p + coeffs[2]*p*p + coeffs[3]*p*p*p
		actual[i] = s.HFR
	}
	return coeffs, rSquared(actual, predicted), true
}

// gaussianSolve solves m*x = b (the last column of m) in place via Gaussian
// elimination with partial pivoting.
func gaussianSolve(m *[4][5]float64) bool {
	n := 4
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}
	for row := 0; row < n; row++ {
		m[row][n] /= m[row][row]
	}
	return true
}

func quadraticRoots(a, b, c float64) []float64 {
	if math.Abs(a) < 1e-12 {
		if math.Abs(b) < 1e-12 {
			return nil
		}
		return []float64{-c / b}
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	sqrtDisc := math.Sqrt(disc)
	return []float64{(-b + sqrtDisc) / (2 * a), (-b - sqrtDisc) / (2 * a)}
}

func rSquared(actual, predicted []float64) float64 {
	var mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i, v := range actual {
		ssRes += (v - predicted[i]) * (v - predicted[i])
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}
