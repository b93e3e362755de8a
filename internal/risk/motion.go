package risk

import "math"

// motionWindow is the number of trailing samples (K) MotionAnalyzer
// considers for smoothing, per spec.md 4.2.
const motionWindow = 5

// MotionConfig parameterizes MotionAnalyzer.
type MotionConfig struct {
	StationaryThreshold float64 // default 2.0
	MinHistoryForAnalysis int   // default 3
	RunningThreshold    float64
	AssumedFPS          float64 // default 30
}

// DefaultMotionConfig returns spec.md's documented defaults.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		StationaryThreshold:   2.0,
		MinHistoryForAnalysis: 3,
		RunningThreshold:      10.0,
		AssumedFPS:            30,
	}
}

// MotionAnalyzer is a pure, deterministic function of a bounded history.
type MotionAnalyzer struct {
	cfg MotionConfig
}

// NewMotionAnalyzer constructs an analyzer with the given config.
func NewMotionAnalyzer(cfg MotionConfig) *MotionAnalyzer {
	return &MotionAnalyzer{cfg: cfg}
}

// Analyze computes the MotionState for a track's history. If the history
// is shorter than MinHistoryForAnalysis, returns the zero state with
// IsStationary=true, per spec.md 4.2.
func (m *MotionAnalyzer) Analyze(hist *TrackHistory) MotionState {
	if hist == nil || len(hist.Records) < m.cfg.MinHistoryForAnalysis {
		return MotionState{IsStationary: true}
	}

	recs := hist.Records
	n := len(recs)
	last := recs[n-1]
	prev := recs[n-2]

	dt := last.T - prev.T
	if dt <= 0 {
		dt = 1 / m.cfg.AssumedFPS
	}
	dx, dy := last.X-prev.X, last.Y-prev.Y
	dist := math.Hypot(dx, dy)
	speed := dist / dt
	vx, vy := dx/dt, dy/dt
	direction := math.Atan2(dy, dx)

	start := n - motionWindow
	if start < 0 {
		start = 0
	}
	window := recs[start:]
	speedSum := 0.0
	speedPrev := speed
	for i := 1; i < len(window); i++ {
		d := window[i].T - window[i-1].T
		if d <= 0 {
			d = 1 / m.cfg.AssumedFPS
		}
		s := math.Hypot(window[i].X-window[i-1].X, window[i].Y-window[i-1].Y) / d
		speedSum += s
		if i == len(window)-2 {
			speedPrev = s
		}
	}
	var smoothed float64
	if len(window) > 1 {
		smoothed = speedSum / float64(len(window)-1)
	} else {
		smoothed = speed
	}

	accel := (speed - speedPrev) / dt

	return MotionState{
		Speed:         speed,
		SmoothedSpeed: smoothed,
		VX:            vx,
		VY:            vy,
		Direction:     direction,
		Acceleration:  accel,
		IsStationary:  smoothed < m.cfg.StationaryThreshold,
	}
}
