package risk

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRiskEngineRejectsNegativeWeight(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Weights.Loitering = -0.1
	_, err := NewRiskEngine(cfg, nil)
	require.Error(t, err)
}

func TestRiskEngineRejectsOversizedWeights(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Weights.Loitering = 2.0
	_, err := NewRiskEngine(cfg, nil)
	require.Error(t, err)
}

func TestRiskEngineAcceptsHeadroomWeights(t *testing.T) {
	cfg := DefaultEngineConfig()
	require.InDelta(t, 0.95, cfg.Weights.Sum(), 1e-9)
	e, err := NewRiskEngine(cfg, nil)
	require.NoError(t, err)
	require.InDelta(t, 0.95, e.SumWeights(), 1e-9)
}

func TestRiskScoreBounded(t *testing.T) {
	e, err := NewRiskEngine(DefaultEngineConfig(), nil)
	require.NoError(t, err)

	a := TrackAnalysis{
		TrackID: 1,
		Behavior: BehaviorFlags{
			IsLoitering: true, StationaryDuration: 1000,
			SuddenSpeedChange: true, DirectionReversal: true, IsErratic: true,
			DirectionVariance: 10,
		},
	}
	rs := e.Score(a, CrowdMetrics{}, 100, 5)
	require.GreaterOrEqual(t, rs.Score, 0.0)
	require.LessOrEqual(t, rs.Score, 1.0)
}

func TestRiskLevelMonotonic(t *testing.T) {
	th := DefaultRiskThresholds()
	require.Equal(t, RiskLow, th.Level(0))
	require.Equal(t, RiskMedium, th.Level(0.25))
	require.Equal(t, RiskHigh, th.Level(0.50))
	require.Equal(t, RiskCritical, th.Level(0.75))
	require.Equal(t, RiskCritical, th.Level(1.0))
}

func TestRiskScoreDeterministic(t *testing.T) {
	e, err := NewRiskEngine(DefaultEngineConfig(), nil)
	require.NoError(t, err)

	a := TrackAnalysis{TrackID: 7, Behavior: BehaviorFlags{IsLoitering: true, StationaryDuration: 6}}
	rs1 := e.Score(a, CrowdMetrics{}, 0, 5)
	rs2 := e.Score(a, CrowdMetrics{}, 0, 5)
	if diff := cmp.Diff(rs1, rs2); diff != "" {
		t.Fatalf("same inputs produced different RiskScores (-want +got):\n%s", diff)
	}
}

func TestRiskEngineNormalBehaviorSummary(t *testing.T) {
	e, err := NewRiskEngine(DefaultEngineConfig(), nil)
	require.NoError(t, err)
	rs := e.Score(TrackAnalysis{TrackID: 1}, CrowdMetrics{}, 0, 5)
	require.Equal(t, "Normal behavior.", rs.Explanation.Summary)
	require.Equal(t, RiskLow, rs.Level)
	require.False(t, rs.IsConcerning)
}

func TestRiskEngineTemporalSmoothing(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.UseTemporal = true
	e, err := NewRiskEngine(cfg, nil)
	require.NoError(t, err)

	a := TrackAnalysis{TrackID: 1, Behavior: BehaviorFlags{IsLoitering: true, StationaryDuration: 1000}}
	first := e.Score(a, CrowdMetrics{}, 0, 5)
	second := e.Score(a, CrowdMetrics{}, 0, 5)
	require.Less(t, first.Score, second.Score, "escalating EMA should rise toward raw score across calls")
}

func TestRiskEngineDropEvicted(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.UseTemporal = true
	e, err := NewRiskEngine(cfg, nil)
	require.NoError(t, err)

	e.Score(TrackAnalysis{TrackID: 1, Behavior: BehaviorFlags{IsLoitering: true, StationaryDuration: 1000}}, CrowdMetrics{}, 0, 5)
	require.Contains(t, e.ema, 1)
	e.DropEvicted(nil)
	require.NotContains(t, e.ema, 1)
}

func TestIsConcerningAtMedium(t *testing.T) {
	e, err := NewRiskEngine(DefaultEngineConfig(), nil)
	require.NoError(t, err)
	rs := e.Score(TrackAnalysis{TrackID: 1, Behavior: BehaviorFlags{IsLoitering: true, StationaryDuration: 100}}, CrowdMetrics{}, 0, 5)
	require.GreaterOrEqual(t, rs.Score, DefaultRiskThresholds().Medium)
	require.True(t, rs.IsConcerning)
}
