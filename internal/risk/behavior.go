package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// behaviorWindow is the trailing sample window (w) used for sudden-speed
// and direction-reversal comparisons, per spec.md 4.3.
const behaviorWindow = 5

// BehaviorConfig parameterizes BehaviorAnalyzer.
type BehaviorConfig struct {
	LoiteringTimeThreshold    float64 // seconds, default 5.0
	RunningSpeedThreshold     float64
	SpeedChangeThreshold      float64
	DirectionReversalThreshold float64 // radians, default ~2.4 (3pi/4)
	ErraticVarianceThreshold  float64 // rad^2, default 1.0
}

// DefaultBehaviorConfig returns spec.md's documented defaults.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		LoiteringTimeThreshold:     5.0,
		RunningSpeedThreshold:      10.0,
		SpeedChangeThreshold:       5.0,
		DirectionReversalThreshold: 3 * math.Pi / 4,
		ErraticVarianceThreshold:   1.0,
	}
}

// BehaviorAnalyzer derives named behavior flags from a track's history and
// its current MotionState.
type BehaviorAnalyzer struct {
	cfg      BehaviorConfig
	analyzer *MotionAnalyzer

	// stationarySince tracks, per identity, the timestamp of the first
	// sample whose smoothed speed fell below the stationary threshold, so
	// stationary_duration can be computed without replaying the whole
	// history every frame. Cleared when a track stops being stationary or
	// its history is evicted.
	stationarySince map[int]float64
}

// NewBehaviorAnalyzer constructs an analyzer. motion supplies the
// minimum history length below which the windowed flags stay false.
func NewBehaviorAnalyzer(cfg BehaviorConfig, motion *MotionAnalyzer) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{cfg: cfg, analyzer: motion, stationarySince: make(map[int]float64)}
}

// AnalyzeAll computes BehaviorFlags for every identity present in both the
// history manager and the motion-state map.
func (b *BehaviorAnalyzer) AnalyzeAll(hm *HistoryManager, motionStates map[int]MotionState) map[int]BehaviorFlags {
	out := make(map[int]BehaviorFlags, len(motionStates))
	for id, ms := range motionStates {
		hist, _ := hm.History(id)
		out[id] = b.Analyze(id, hist, ms)
	}
	// drop stale stationarySince entries for identities whose history is gone
	for id := range b.stationarySince {
		if _, ok := hm.History(id); !ok {
			delete(b.stationarySince, id)
		}
	}
	return out
}

// Analyze computes BehaviorFlags for a single identity. Histories below the
// motion analyzer's configured minimum report the sudden-speed-change,
// direction-reversal and erratic flags false; IsStationary follows the
// MotionState, which is stationary for such a short history.
func (b *BehaviorAnalyzer) Analyze(id int, hist *TrackHistory, ms MotionState) BehaviorFlags {
	flags := BehaviorFlags{IsStationary: ms.IsStationary}

	if ms.IsStationary {
		since, ok := b.stationarySince[id]
		if !ok {
			if hist != nil && len(hist.Records) > 0 {
				since = hist.Records[len(hist.Records)-1].T
			}
			b.stationarySince[id] = since
		}
		if hist != nil && len(hist.Records) > 0 {
			flags.StationaryDuration = hist.Records[len(hist.Records)-1].T - since
		}
		flags.IsLoitering = flags.StationaryDuration >= b.cfg.LoiteringTimeThreshold
	} else {
		delete(b.stationarySince, id)
	}

	flags.IsRunning = ms.SmoothedSpeed > b.cfg.RunningSpeedThreshold

	minHistory := 2
	if b.analyzer != nil && b.analyzer.cfg.MinHistoryForAnalysis > minHistory {
		minHistory = b.analyzer.cfg.MinHistoryForAnalysis
	}
	if hist == nil || len(hist.Records) < minHistory {
		return flags
	}

	n := len(hist.Records)
	start := n - behaviorWindow
	if start < 0 {
		start = 0
	}
	window := hist.Records[start:]

	if len(window) >= 2 {
		first := window[0]
		dtFirst := window[1].T - first.T
		if dtFirst <= 0 {
			dtFirst = 1.0 / 30
		}
		speedAtWindowStart := math.Hypot(window[1].X-first.X, window[1].Y-first.Y) / dtFirst
		flags.SuddenSpeedChange = math.Abs(ms.Speed-speedAtWindowStart) > b.cfg.SpeedChangeThreshold

		dirFirst := math.Atan2(window[1].Y-first.Y, window[1].X-first.X)
		delta := angularDelta(dirFirst, ms.Direction)
		flags.DirectionReversal = math.Abs(delta) > b.cfg.DirectionReversalThreshold
	}

	flags.DirectionVariance = directionVariance(window)
	flags.IsErratic = flags.DirectionVariance > b.cfg.ErraticVarianceThreshold

	return flags
}

// angularDelta returns the signed shortest angular distance from a to b,
// in (-pi, pi].
func angularDelta(a, b float64) float64 {
	d := b - a
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// directionVariance computes the circular variance (1 - mean resultant
// length) of the per-step directions across a window of position samples.
// gonum's stat.Mean supplies the component averaging; circular variance
// itself has no direct gonum helper, so the 1-R formula is applied here.
func directionVariance(window []PositionRecord) float64 {
	if len(window) < 3 {
		return 0
	}
	cos := make([]float64, 0, len(window)-1)
	sin := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		dir := math.Atan2(window[i].Y-window[i-1].Y, window[i].X-window[i-1].X)
		cos = append(cos, math.Cos(dir))
		sin = append(sin, math.Sin(dir))
	}
	meanCos := stat.Mean(cos, nil)
	meanSin := stat.Mean(sin, nil)
	r := math.Hypot(meanCos, meanSin)
	return 1 - r
}
