// Package config loads the pipeline's four configuration groups
// (analysis, risk, alerts, semantic) from a YAML file with environment
// variable overrides, via github.com/spf13/viper, grounded on
// niceyeti-tabular's layered-config use of the same library.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Analysis mirrors spec.md 6's "analysis" group.
type Analysis struct {
	HistoryWindowSize        int     `mapstructure:"history_window_size"`
	StaleThreshold           int     `mapstructure:"stale_threshold"`
	MinHistoryForAnalysis    int     `mapstructure:"min_history_for_analysis"`
	StationarySpeedThreshold float64 `mapstructure:"stationary_speed_threshold"`
	RunningSpeedThreshold    float64 `mapstructure:"running_speed_threshold"`
	LoiteringTimeThreshold   float64 `mapstructure:"loitering_time_threshold"`
	SpeedChangeThreshold     float64 `mapstructure:"speed_change_threshold"`
	DirectionReversalThreshold float64 `mapstructure:"direction_reversal_threshold"`
	ErraticVarianceThreshold float64 `mapstructure:"erratic_variance_threshold"`
	GridCellSize             float64 `mapstructure:"grid_cell_size"`
	CrowdDensityThreshold    int     `mapstructure:"crowd_density_threshold"`
	AssumedFPS               float64 `mapstructure:"assumed_fps"`
}

// RiskWeights mirrors spec.md 6's "risk.weights".
type RiskWeights struct {
	Loitering       float64 `mapstructure:"loitering"`
	Speed           float64 `mapstructure:"speed"`
	Direction       float64 `mapstructure:"direction"`
	Crowd           float64 `mapstructure:"crowd"`
	Zone            float64 `mapstructure:"zone"`
	Erratic         float64 `mapstructure:"erratic"`
}

// RiskThresholds mirrors spec.md 6's "risk.thresholds".
type RiskThresholds struct {
	Medium   float64 `mapstructure:"medium"`
	High     float64 `mapstructure:"high"`
	Critical float64 `mapstructure:"critical"`
}

// Risk mirrors spec.md 6's "risk" group.
type Risk struct {
	Weights        RiskWeights    `mapstructure:"weights"`
	Thresholds     RiskThresholds `mapstructure:"thresholds"`
	EscalationRate float64        `mapstructure:"escalation_rate"`
	DecayRate      float64        `mapstructure:"decay_rate"`
	UseZones       bool           `mapstructure:"use_zones"`
	UseTemporal    bool           `mapstructure:"use_temporal"`
}

// Alerts mirrors spec.md 6's "alerts" group.
type Alerts struct {
	Enabled         bool    `mapstructure:"enabled"`
	MinLevel        string  `mapstructure:"min_level"`
	CooldownSeconds float64 `mapstructure:"cooldown_seconds"`
	LogToFile       bool    `mapstructure:"log_to_file"`
	LogPath         string  `mapstructure:"log_path"`
}

// Semantic mirrors spec.md 6's "semantic" group.
type Semantic struct {
	Enabled                bool    `mapstructure:"enabled"`
	RiskThresholdTrigger   float64 `mapstructure:"risk_threshold_trigger"`
	CacheTTLSeconds        float64 `mapstructure:"cache_ttl_seconds"`
	MaxConcurrentRequests  int     `mapstructure:"max_concurrent_requests"`
	TriggerCooldownSeconds float64 `mapstructure:"trigger_cooldown_seconds"`
	MaxCacheSize           int     `mapstructure:"max_cache_size"`
	BackendTarget          string  `mapstructure:"backend_target"`
	BackendKind            string  `mapstructure:"backend_kind"` // "grpc" or "http"
}

// Config is the complete configuration surface of spec.md 6.
type Config struct {
	Analysis Analysis `mapstructure:"analysis"`
	Risk     Risk     `mapstructure:"risk"`
	Alerts   Alerts   `mapstructure:"alerts"`
	Semantic Semantic `mapstructure:"semantic"`
}

// ValidationError reports a structurally invalid configuration, raised at
// construction per spec.md 7 ("fail fast... with a descriptive error").
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns spec.md 6's documented defaults for every group.
func Default() Config {
	return Config{
		Analysis: Analysis{
			HistoryWindowSize:          30,
			StaleThreshold:             90,
			MinHistoryForAnalysis:      3,
			StationarySpeedThreshold:   2.0,
			RunningSpeedThreshold:      10.0,
			LoiteringTimeThreshold:     5.0,
			SpeedChangeThreshold:       5.0,
			DirectionReversalThreshold: 2.4,
			ErraticVarianceThreshold:   1.0,
			GridCellSize:               100,
			CrowdDensityThreshold:      5,
			AssumedFPS:                 30,
		},
		Risk: Risk{
			Weights:        RiskWeights{Loitering: 0.25, Speed: 0.18, Direction: 0.15, Crowd: 0.12, Zone: 0.15, Erratic: 0.10},
			Thresholds:     RiskThresholds{Medium: 0.25, High: 0.50, Critical: 0.75},
			EscalationRate: 0.3,
			DecayRate:      0.1,
		},
		Alerts: Alerts{Enabled: true, MinLevel: "WARNING", CooldownSeconds: 10},
		Semantic: Semantic{
			Enabled:                false,
			RiskThresholdTrigger:   0.6,
			CacheTTLSeconds:        300,
			MaxConcurrentRequests:  2,
			TriggerCooldownSeconds: 2,
			MaxCacheSize:           1000,
			BackendKind:            "grpc",
		},
	}
}

// Load reads the config file at path (if non-empty and present), applies
// SENTRYFEED_-prefixed environment overrides via viper.AutomaticEnv, and
// validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	cfg := Default()
	if err := v.MergeConfigMap(structToMap(cfg)); err != nil {
		return Config{}, fmt.Errorf("config: seed defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("SENTRYFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate(out); err != nil {
		return Config{}, err
	}
	return out, nil
}

func validate(c Config) error {
	w := c.Risk.Weights
	sum := w.Loitering + w.Speed + w.Direction + w.Crowd + w.Zone + w.Erratic
	if sum > 1.01 {
		return &ValidationError{Field: "risk.weights", Reason: fmt.Sprintf("sum %.3f exceeds 1.0", sum)}
	}
	for name, v := range map[string]float64{
		"loitering": w.Loitering, "speed": w.Speed, "direction": w.Direction,
		"crowd": w.Crowd, "zone": w.Zone, "erratic": w.Erratic,
	} {
		if v < 0 {
			return &ValidationError{Field: "risk.weights." + name, Reason: "negative weight"}
		}
	}
	t := c.Risk.Thresholds
	if t.Medium < 0 || t.High < 0 || t.Critical < 0 {
		return &ValidationError{Field: "risk.thresholds", Reason: "negative threshold"}
	}
	if !(t.Medium <= t.High && t.High <= t.Critical) {
		return &ValidationError{Field: "risk.thresholds", Reason: "must be non-decreasing"}
	}
	return nil
}

// structToMap gives viper a map seed for the compiled-in defaults so file
// and env overrides apply on top rather than replacing the whole struct.
func structToMap(c Config) map[string]any {
	return map[string]any{
		"analysis": map[string]any{
			"history_window_size":          c.Analysis.HistoryWindowSize,
			"stale_threshold":              c.Analysis.StaleThreshold,
			"min_history_for_analysis":     c.Analysis.MinHistoryForAnalysis,
			"stationary_speed_threshold":   c.Analysis.StationarySpeedThreshold,
			"running_speed_threshold":      c.Analysis.RunningSpeedThreshold,
			"loitering_time_threshold":     c.Analysis.LoiteringTimeThreshold,
			"speed_change_threshold":       c.Analysis.SpeedChangeThreshold,
			"direction_reversal_threshold": c.Analysis.DirectionReversalThreshold,
			"erratic_variance_threshold":   c.Analysis.ErraticVarianceThreshold,
			"grid_cell_size":               c.Analysis.GridCellSize,
			"crowd_density_threshold":      c.Analysis.CrowdDensityThreshold,
			"assumed_fps":                  c.Analysis.AssumedFPS,
		},
		"risk": map[string]any{
			"weights": map[string]any{
				"loitering": c.Risk.Weights.Loitering, "speed": c.Risk.Weights.Speed,
				"direction": c.Risk.Weights.Direction, "crowd": c.Risk.Weights.Crowd,
				"zone": c.Risk.Weights.Zone, "erratic": c.Risk.Weights.Erratic,
			},
			"thresholds": map[string]any{
				"medium": c.Risk.Thresholds.Medium, "high": c.Risk.Thresholds.High, "critical": c.Risk.Thresholds.Critical,
			},
			"escalation_rate": c.Risk.EscalationRate,
			"decay_rate":      c.Risk.DecayRate,
			"use_zones":       c.Risk.UseZones,
			"use_temporal":    c.Risk.UseTemporal,
		},
		"alerts": map[string]any{
			"enabled":          c.Alerts.Enabled,
			"min_level":        c.Alerts.MinLevel,
			"cooldown_seconds": c.Alerts.CooldownSeconds,
			"log_to_file":      c.Alerts.LogToFile,
			"log_path":         c.Alerts.LogPath,
		},
		"semantic": map[string]any{
			"enabled":                  c.Semantic.Enabled,
			"risk_threshold_trigger":   c.Semantic.RiskThresholdTrigger,
			"cache_ttl_seconds":        c.Semantic.CacheTTLSeconds,
			"max_concurrent_requests":  c.Semantic.MaxConcurrentRequests,
			"trigger_cooldown_seconds": c.Semantic.TriggerCooldownSeconds,
			"max_cache_size":           c.Semantic.MaxCacheSize,
			"backend_target":           c.Semantic.BackendTarget,
			"backend_kind":             c.Semantic.BackendKind,
		},
	}
}

// CacheTTL converts Semantic.CacheTTLSeconds to a time.Duration.
func (s Semantic) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds * float64(time.Second))
}
