package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentryfeed.yaml")
	contents := `
risk:
  thresholds:
    medium: 0.3
    high: 0.6
    critical: 0.8
alerts:
  cooldown_seconds: 20
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0.3, cfg.Risk.Thresholds.Medium)
	require.Equal(t, 20.0, cfg.Alerts.CooldownSeconds)
	require.Equal(t, Default().Analysis, cfg.Analysis, "unrelated groups should retain defaults")
}

func TestLoadRejectsNegativeWeight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentryfeed.yaml")
	contents := "risk:\n  weights:\n    loitering: -0.1\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestLoadRejectsNonMonotonicThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentryfeed.yaml")
	contents := "risk:\n  thresholds:\n    medium: 0.8\n    high: 0.5\n    critical: 0.9\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsOversizedWeightSum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentryfeed.yaml")
	contents := "risk:\n  weights:\n    loitering: 0.9\n    speed: 0.9\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSemanticCacheTTLConversion(t *testing.T) {
	s := Semantic{CacheTTLSeconds: 300}
	require.Equal(t, 300.0, s.CacheTTL().Seconds())
}

func TestEnvOverrideAppliesOnTopOfDefaults(t *testing.T) {
	t.Setenv("SENTRYFEED_ALERTS_COOLDOWN_SECONDS", "42")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 42.0, cfg.Alerts.CooldownSeconds)
}
