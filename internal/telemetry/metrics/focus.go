package metrics

// FocusMetrics bundles the instruments the autofocus engine records
// against: run outcomes, curve confidence, and backlash/temperature
// compensation activity.
type FocusMetrics struct {
	RunsTotal         Counter   // labels: algorithm, outcome (valid|invalid|error)
	RunDuration       Histogram // labels: algorithm
	CurveConfidence   Gauge     // labels: algorithm
	BacklashSteps     Histogram // labels: direction (inward|outward)
	TempCompensations Counter   // labels: direction (advance|retract)
}

// NewFocusMetrics registers the autofocus subsystem's instruments against p.
func NewFocusMetrics(p Provider) *FocusMetrics {
	return &FocusMetrics{
		RunsTotal: p.NewCounter(CounterOpts{CommonOpts{
			Namespace: "astrofed", Subsystem: "focus", Name: "runs_total",
			Help: "Total number of autofocus runs by outcome", Labels: []string{"algorithm", "outcome"},
		}}),
		RunDuration: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: "astrofed", Subsystem: "focus", Name: "run_duration_seconds",
			Help: "Autofocus run duration in seconds", Labels: []string{"algorithm"},
		}}),
		CurveConfidence: p.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "astrofed", Subsystem: "focus", Name: "curve_confidence",
			Help: "Confidence score of the most recently analysed curve", Labels: []string{"algorithm"},
		}}),
		BacklashSteps: p.NewHistogram(HistogramOpts{
			CommonOpts: CommonOpts{
				Namespace: "astrofed", Subsystem: "focus", Name: "backlash_steps",
				Help: "Measured backlash in focuser steps", Labels: []string{"direction"},
			},
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
		}),
		TempCompensations: p.NewCounter(CounterOpts{CommonOpts{
			Namespace: "astrofed", Subsystem: "focus", Name: "temperature_compensations_total",
			Help: "Total number of temperature compensation moves applied", Labels: []string{"direction"},
		}}),
	}
}
