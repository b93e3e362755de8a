package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMotionAnalyzerBelowMinHistory(t *testing.T) {
	m := NewMotionAnalyzer(DefaultMotionConfig())
	hist := &TrackHistory{Records: []PositionRecord{{X: 0, Y: 0, T: 0}}}
	ms := m.Analyze(hist)
	require.True(t, ms.IsStationary)
	require.Zero(t, ms.Speed)
}

func TestMotionAnalyzerRunnerSpeed(t *testing.T) {
	m := NewMotionAnalyzer(DefaultMotionConfig())
	var recs []PositionRecord
	for i := 0; i < 60; i++ {
		recs = append(recs, PositionRecord{X: float64(i) * 10, Y: 0, FrameID: uint64(i), T: float64(i) / 30})
	}
	hist := &TrackHistory{Records: recs}
	ms := m.Analyze(hist)
	require.False(t, ms.IsStationary)
	require.Greater(t, ms.SmoothedSpeed, DefaultMotionConfig().RunningThreshold)
}

func TestMotionAnalyzerDirectionEast(t *testing.T) {
	m := NewMotionAnalyzer(DefaultMotionConfig())
	hist := &TrackHistory{Records: []PositionRecord{
		{X: 0, Y: 0, T: 0},
		{X: 1, Y: 0, T: 1},
		{X: 2, Y: 0, T: 2},
	}}
	ms := m.Analyze(hist)
	require.InDelta(t, 0, ms.Direction, 1e-9)
}

func TestMotionAnalyzerDeterministic(t *testing.T) {
	m := NewMotionAnalyzer(DefaultMotionConfig())
	hist := &TrackHistory{Records: []PositionRecord{
		{X: 0, Y: 0, T: 0},
		{X: 3, Y: 4, T: 1},
		{X: 6, Y: 8, T: 2},
	}}
	a := m.Analyze(hist)
	b := m.Analyze(hist)
	require.Equal(t, a, b)
}

func TestMotionAnalyzerZeroDtFallsBackToAssumedFPS(t *testing.T) {
	cfg := DefaultMotionConfig()
	cfg.AssumedFPS = 30
	m := NewMotionAnalyzer(cfg)
	hist := &TrackHistory{Records: []PositionRecord{
		{X: 0, Y: 0, T: 1},
		{X: 1, Y: 0, T: 1}, // non-monotonic/duplicate timestamp
		{X: 2, Y: 0, T: 1},
	}}
	ms := m.Analyze(hist)
	wantSpeed := 1.0 / (1.0 / 30)
	require.InDelta(t, wantSpeed, ms.Speed, 1e-6)
	require.False(t, math.IsInf(ms.Speed, 0))
}
