package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBehaviorLoiteringAfterThreshold(t *testing.T) {
	hm := NewHistoryManager(200, 90)
	motionCfg := DefaultMotionConfig()
	motion := NewMotionAnalyzer(motionCfg)
	behavior := NewBehaviorAnalyzer(DefaultBehaviorConfig(), motion)

	const fps = 30
	var lastFlags BehaviorFlags
	var lastT float64
	for i := 0; i < 180; i++ {
		ts := float64(i) / fps
		hm.Update([]Track{track(1, 100, 100)}, uint64(i), ts)
		hist, _ := hm.History(1)
		ms := motion.Analyze(hist)
		lastFlags = behavior.Analyze(1, hist, ms)
		lastT = ts
	}
	require.True(t, lastFlags.IsLoitering, "expected loitering by t=%.2f", lastT)
}

func TestBehaviorRunnerFlags(t *testing.T) {
	motion := NewMotionAnalyzer(DefaultMotionConfig())
	behavior := NewBehaviorAnalyzer(DefaultBehaviorConfig(), motion)
	hm := NewHistoryManager(200, 90)

	var ms MotionState
	var flags BehaviorFlags
	for i := 0; i < 60; i++ {
		hm.Update([]Track{track(1, float64(i)*10, 0)}, uint64(i), float64(i)/30)
		hist, _ := hm.History(1)
		ms = motion.Analyze(hist)
		flags = behavior.Analyze(1, hist, ms)
	}
	require.True(t, flags.IsRunning)
	require.False(t, flags.IsStationary)
}

func TestBehaviorHasAnomaly(t *testing.T) {
	f := BehaviorFlags{IsLoitering: true}
	require.True(t, f.HasAnomaly())
	require.False(t, BehaviorFlags{}.HasAnomaly())
}
