package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAlertManagerCooldownSuppressesRepeat(t *testing.T) {
	cfg := DefaultAlertManagerConfig()
	cfg.CooldownSeconds = 10
	m := NewAlertManager(cfg, nil)

	a1 := m.ProcessRisk(1, RiskHigh, 0.6, "loitering", []string{"loitering"})
	require.NotNil(t, a1)

	a2 := m.ProcessRisk(1, RiskHigh, 0.65, "loitering", []string{"loitering"})
	require.Nil(t, a2, "second alert within cooldown window should be suppressed")

	require.Equal(t, 1, m.Summary().Total)
}

func TestAlertManagerMinLevelGating(t *testing.T) {
	cfg := DefaultAlertManagerConfig()
	cfg.MinLevel = AlertHigh
	m := NewAlertManager(cfg, nil)

	a := m.ProcessRisk(1, RiskMedium, 0.3, "minor", nil)
	require.Nil(t, a, "WARNING-level alert should be gated out when MinLevel is HIGH")

	a2 := m.ProcessRisk(1, RiskHigh, 0.6, "major", nil)
	require.NotNil(t, a2)
}

func TestAlertManagerDisabledEmitsNothing(t *testing.T) {
	cfg := DefaultAlertManagerConfig()
	cfg.Enabled = false
	m := NewAlertManager(cfg, nil)

	a := m.ProcessRisk(1, RiskCritical, 0.9, "critical", nil)
	require.Nil(t, a)
	require.Zero(t, m.Summary().Total)
}

func TestAlertManagerIndependentCooldownPerTrack(t *testing.T) {
	m := NewAlertManager(DefaultAlertManagerConfig(), nil)
	a1 := m.ProcessRisk(1, RiskHigh, 0.6, "x", nil)
	a2 := m.ProcessRisk(2, RiskHigh, 0.6, "y", nil)
	require.NotNil(t, a1)
	require.NotNil(t, a2)
	require.NotEqual(t, a1.EventID, a2.EventID)
}

func TestAlertLevelFromRiskLevelMapping(t *testing.T) {
	require.Equal(t, AlertInfo, AlertLevelFromRiskLevel(RiskLow))
	require.Equal(t, AlertWarning, AlertLevelFromRiskLevel(RiskMedium))
	require.Equal(t, AlertHigh, AlertLevelFromRiskLevel(RiskHigh))
	require.Equal(t, AlertCritical, AlertLevelFromRiskLevel(RiskCritical))
}

func TestAlertToLogString(t *testing.T) {
	a := &Alert{Level: AlertHigh, TrackID: 7, Message: "loitering", RiskScore: 0.61}
	s := a.ToLogString()
	require.Contains(t, s, "Track 7")
	require.Contains(t, s, "loitering")
}

func TestAlertManagerCooldownElapsesAfterWindow(t *testing.T) {
	cfg := DefaultAlertManagerConfig()
	cfg.CooldownSeconds = 0.01
	m := NewAlertManager(cfg, nil)

	a1 := m.ProcessRisk(1, RiskHigh, 0.6, "x", nil)
	require.NotNil(t, a1)
	time.Sleep(20 * time.Millisecond)
	a2 := m.ProcessRisk(1, RiskHigh, 0.6, "x", nil)
	require.NotNil(t, a2, "alert should fire again once cooldown elapses")
}
