package risk

import (
	"fmt"
	"sort"
	"strings"
)

// RiskWeights are the per-factor weights of the linear scoring model.
// Defaults per spec.md 6 fixtures sum to 0.95; the remaining 0.05 is
// documented headroom for future factors (spec.md 9 Open Question),
// not renormalized.
type RiskWeights struct {
	Loitering      float64
	SpeedAnomaly   float64
	DirectionChange float64
	CrowdDensity   float64
	ZoneContext    float64
	ErraticMotion  float64
}

// DefaultRiskWeights returns the fixture defaults from spec.md 6.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		Loitering:       0.25,
		SpeedAnomaly:    0.18,
		DirectionChange: 0.15,
		CrowdDensity:    0.12,
		ZoneContext:     0.15,
		ErraticMotion:   0.10,
	}
}

// Sum returns the total configured weight mass.
func (w RiskWeights) Sum() float64 {
	return w.Loitering + w.SpeedAnomaly + w.DirectionChange + w.CrowdDensity + w.ZoneContext + w.ErraticMotion
}

// RiskThresholds are the score boundaries for RiskLevel classification.
// Named by the level they admit, resolving spec.md 9's Open Question about
// the source's medium=low_threshold name-shift: Medium is the score at
// which a track first reaches MEDIUM, not the boundary below it.
type RiskThresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultRiskThresholds returns spec.md 6's documented defaults.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Medium: 0.25, High: 0.50, Critical: 0.75}
}

// Level classifies a score; ties resolve to the higher level (>=), per
// spec.md 4.5.
func (t RiskThresholds) Level(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// TemporalConfig parameterizes the optional EMA smoothing of raw scores.
type TemporalConfig struct {
	EscalationRate float64 // default 0.3
	DecayRate      float64 // default 0.1
}

// DefaultTemporalConfig returns spec.md 6's documented defaults.
func DefaultTemporalConfig() TemporalConfig {
	return TemporalConfig{EscalationRate: 0.3, DecayRate: 0.1}
}

// EngineConfig is the full RiskEngine configuration.
type EngineConfig struct {
	Weights     RiskWeights
	Thresholds  RiskThresholds
	Temporal    TemporalConfig
	UseZones    bool
	UseTemporal bool
	AccelNorm   float64 // carried in the config; Score does not read it

	// LoiteringTimeThreshold and ErraticVarianceThreshold mirror the same-
	// named BehaviorConfig fields; the loitering ramp and erratic/direction
	// factor mappings in spec.md 4.5 are defined in terms of them, so the
	// engine carries its own copy rather than importing BehaviorAnalyzer.
	LoiteringTimeThreshold   float64
	ErraticVarianceThreshold float64
}

// DefaultEngineConfig returns spec.md 6's documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Weights:                  DefaultRiskWeights(),
		Thresholds:               DefaultRiskThresholds(),
		Temporal:                 DefaultTemporalConfig(),
		AccelNorm:                5.0,
		LoiteringTimeThreshold:   5.0,
		ErraticVarianceThreshold: 1.0,
	}
}

var factorDescriptions = map[string]struct {
	Display string
	Desc    string
}{
	"loitering":        {"Loitering", "Sustained low-motion presence"},
	"speed_anomaly":     {"Speed anomaly", "Sudden speed change or running"},
	"direction_change":  {"Direction change", "Abrupt or erratic heading change"},
	"crowd_density":     {"Crowd density", "High local track density"},
	"zone_context":      {"Zone context", "Presence within a weighted zone"},
	"erratic_motion":    {"Erratic motion", "High variance in recent heading"},
}

// RiskEngine is the weighted multi-signal scorer. It owns per-identity EMA
// state when temporal smoothing is enabled.
type RiskEngine struct {
	cfg   EngineConfig
	zones ZoneProvider
	ema   map[int]float64
}

// NewRiskEngine constructs a RiskEngine, failing fast if the configuration
// is structurally invalid (spec.md 7): any negative weight/threshold, or a
// weight sum exceeding 1.01.
func NewRiskEngine(cfg EngineConfig, zones ZoneProvider) (*RiskEngine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}
	if zones == nil {
		zones = NoZones{}
	}
	return &RiskEngine{cfg: cfg, zones: zones, ema: make(map[int]float64)}, nil
}

func validateEngineConfig(cfg EngineConfig) error {
	w := cfg.Weights
	for name, v := range map[string]float64{
		"loitering": w.Loitering, "speed_anomaly": w.SpeedAnomaly,
		"direction_change": w.DirectionChange, "crowd_density": w.CrowdDensity,
		"zone_context": w.ZoneContext, "erratic_motion": w.ErraticMotion,
	} {
		if v < 0 {
			return fmt.Errorf("risk: weight %q is negative (%.3f)", name, v)
		}
	}
	if sum := w.Sum(); sum > 1.01 {
		return fmt.Errorf("risk: weights sum to %.3f, exceeds 1.0", sum)
	}
	t := cfg.Thresholds
	if t.Medium < 0 || t.High < 0 || t.Critical < 0 {
		return fmt.Errorf("risk: thresholds must be non-negative")
	}
	if !(t.Medium <= t.High && t.High <= t.Critical) {
		return fmt.Errorf("risk: thresholds must be non-decreasing (medium<=high<=critical)")
	}
	return nil
}

// SumWeights is a diagnostic exposing the configured weight mass (spec.md 9).
func (e *RiskEngine) SumWeights() float64 { return e.cfg.Weights.Sum() }

// Score computes a RiskScore for a single identity given its analysis and
// the frame's crowd metrics. Deterministic: identical inputs (including any
// existing EMA state) yield byte-identical explanations.
func (e *RiskEngine) Score(analysis TrackAnalysis, crowd CrowdMetrics, localDensity int, crowdThreshold int) RiskScore {
	w := e.cfg.Weights
	factors := make([]Factor, 0, 6)

	add := func(name string, contribution float64) {
		if contribution <= 0 {
			return
		}
		info := factorDescriptions[name]
		factors = append(factors, Factor{
			Name:         name,
			DisplayName:  info.Display,
			Contribution: contribution,
			Description:  info.Desc,
		})
	}

	// loitering: linear ramp 0..1 from 0s to 2*loitering_threshold
	loiterF := 0.0
	if analysis.Behavior.IsLoitering {
		ramp := analysis.Behavior.StationaryDuration / (2 * e.cfg.LoiteringTimeThreshold)
		loiterF = clamp01(ramp)
	}
	add("loitering", w.Loitering*loiterF)

	// speed_anomaly: 1 when flagged, 0 otherwise. Acceleration does not
	// enter this factor; AccelNorm is not read.
	speedF := 0.0
	if analysis.Behavior.SuddenSpeedChange || analysis.Behavior.IsRunning {
		speedF = 1.0
	}
	add("speed_anomaly", w.SpeedAnomaly*speedF)

	// direction_change
	dirF := 0.0
	if analysis.Behavior.DirectionReversal {
		dirF = 1.0
	} else if e.erraticThreshold() > 0 {
		dirF = clamp01(analysis.Behavior.DirectionVariance / e.erraticThreshold())
	}
	add("direction_change", w.DirectionChange*dirF)

	// crowd_density
	crowdF := 0.0
	if crowdThreshold > 0 {
		crowdF = clamp01(float64(localDensity) / float64(crowdThreshold))
	}
	add("crowd_density", w.CrowdDensity*crowdF)

	// zone_context
	zoneF := 0.0
	if e.cfg.UseZones {
		zoneF = e.zones.ZoneWeight(analysis.CurrentPosition.X, analysis.CurrentPosition.Y)
	}
	add("zone_context", w.ZoneContext*zoneF)

	// erratic_motion
	erraticF := 0.0
	if analysis.Behavior.IsErratic {
		erraticF = 1.0
	} else if e.erraticThreshold() > 0 {
		erraticF = clamp01(analysis.Behavior.DirectionVariance / (2 * e.erraticThreshold()))
	}
	add("erratic_motion", w.ErraticMotion*erraticF)

	raw := 0.0
	for _, f := range factors {
		raw += f.Contribution
	}
	raw = clamp01(raw)

	score := raw
	if e.cfg.UseTemporal {
		// An identity without EMA state starts from 0 and escalates toward raw.
		prev := e.ema[analysis.TrackID]
		if raw > prev {
			score = prev + e.cfg.Temporal.EscalationRate*(raw-prev)
		} else {
			score = prev - e.cfg.Temporal.DecayRate*(prev-raw)
		}
		e.ema[analysis.TrackID] = score
	}

	sort.Slice(factors, func(i, j int) bool { return factors[i].Name < factors[j].Name })

	level := e.cfg.Thresholds.Level(score)
	return RiskScore{
		TrackID:      analysis.TrackID,
		Score:        score,
		Level:        level,
		Explanation:  buildExplanation(factors),
		IsConcerning: level >= RiskMedium,
	}
}

func (e *RiskEngine) erraticThreshold() float64 {
	// Kept as a method so BehaviorConfig's erratic_variance_threshold can be
	// threaded through without RiskEngine importing a circular default;
	// callers construct EngineConfig with a matching value when wiring the
	// pipeline (see pipeline.New).
	return e.cfg.ErraticVarianceThreshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func buildExplanation(sortedFactors []Factor) Explanation {
	if len(sortedFactors) == 0 {
		return Explanation{Summary: "Normal behavior.", Factors: nil}
	}
	byContribution := make([]Factor, len(sortedFactors))
	copy(byContribution, sortedFactors)
	sort.SliceStable(byContribution, func(i, j int) bool {
		return byContribution[i].Contribution > byContribution[j].Contribution
	})

	top := byContribution
	if len(top) > 2 {
		top = top[:2]
	}
	parts := make([]string, 0, len(top))
	for _, f := range top {
		parts = append(parts, factorSummaryPhrase(f))
	}
	summary := strings.Join(parts, "; ")
	if summary != "" {
		summary += "."
	} else {
		summary = "Normal behavior."
	}
	return Explanation{Summary: summary, Factors: sortedFactors}
}

func factorSummaryPhrase(f Factor) string {
	switch f.Name {
	case "loitering":
		return "Sustained loitering near restricted zone"
	case "speed_anomaly":
		return "sudden speed change detected"
	case "direction_change":
		return "abrupt direction change"
	case "crowd_density":
		return "elevated crowd density"
	case "zone_context":
		return "presence in a weighted zone"
	case "erratic_motion":
		return "erratic movement pattern"
	default:
		return f.DisplayName
	}
}

// DropEvicted removes EMA state for identities no longer present, per
// spec.md 4.5 ("State is dropped when a history is evicted").
func (e *RiskEngine) DropEvicted(liveIDs []int) {
	live := make(map[int]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}
	for id := range e.ema {
		if _, ok := live[id]; !ok {
			delete(e.ema, id)
		}
	}
}

// ComputeFrameRisks scores every analysis and aggregates the frame summary.
func (e *RiskEngine) ComputeFrameRisks(frameID uint64, t float64, analyses []TrackAnalysis, crowd *CrowdAnalyzer, metrics CrowdMetrics, crowdThreshold int) FrameRiskSummary {
	summary := FrameRiskSummary{FrameID: frameID, T: t, MaxRiskLevel: RiskLow}
	for _, a := range analyses {
		local := 0
		if crowd != nil {
			local = crowd.LocalDensity(metrics, a.CurrentPosition.X, a.CurrentPosition.Y)
		}
		rs := e.Score(a, metrics, local, crowdThreshold)
		summary.TrackRisks = append(summary.TrackRisks, rs)
		if rs.Score > summary.MaxRiskScore {
			summary.MaxRiskScore = rs.Score
		}
		if rs.Level > summary.MaxRiskLevel {
			summary.MaxRiskLevel = rs.Level
		}
		if rs.IsConcerning {
			summary.ConcerningTracks++
		}
	}
	summary.HasConcerns = summary.ConcerningTracks > 0
	return summary
}
