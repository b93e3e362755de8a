// Package semantic implements the selective open-vocabulary validation
// subsystem: deciding which crops warrant an expensive VLM call
// (SemanticTrigger), running that call off the hot path
// (SemanticExecutor), caching by perceptual hash (PromptCache), and
// late-fusing results into UnifiedObjects (Fusion).
package semantic

import (
	"sync"
	"time"

	"sentryfeed/internal/risk"
)

// TriggerType identifies why a TriggerEvent was generated, in spec.md
// 4.7's descending priority order.
type TriggerType int

const (
	TriggerUserQuery TriggerType = iota
	TriggerRiskThreshold
	TriggerBehaviorChange
)

func (t TriggerType) String() string {
	switch t {
	case TriggerUserQuery:
		return "USER_QUERY"
	case TriggerRiskThreshold:
		return "RISK_THRESHOLD"
	case TriggerBehaviorChange:
		return "BEHAVIOR_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// TriggerEvent is a decision to invoke the semantic backend on a specific
// crop with a specific prompt.
type TriggerEvent struct {
	TrackID      int
	TriggerType  TriggerType
	Prompt       string
	CroppedFrame []byte
}

// TriggerConfig parameterizes SemanticTrigger.
type TriggerConfig struct {
	Enabled               bool
	RiskThresholdTrigger  float64 // default 0.6
	TriggerCooldownSeconds float64 // default 2
}

// DefaultTriggerConfig returns spec.md 6's documented defaults.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{Enabled: true, RiskThresholdTrigger: 0.6, TriggerCooldownSeconds: 2}
}

// FrameCropper extracts and encodes the crop for a track's current bbox,
// clamped to frame bounds. Grounded on orbo's adapter-around-an-external-
// capability style (the image codec itself is a non-goal collaborator).
type FrameCropper func(frame []byte, bbox risk.BBox) []byte

// Trigger decides, per frame, which live tracks warrant semantic inference.
type Trigger struct {
	cfg    TriggerConfig
	cropper FrameCropper

	mu       sync.Mutex
	lastFire map[int]time.Time
}

// NewTrigger constructs a trigger with the given config and crop function.
func NewTrigger(cfg TriggerConfig, cropper FrameCropper) *Trigger {
	return &Trigger{cfg: cfg, cropper: cropper, lastFire: make(map[int]time.Time)}
}

// CheckTriggers evaluates every live track against the three trigger
// sources and returns at most one TriggerEvent per track, honoring the
// per-identity cooldown. Returns an empty slice if frame is nil/empty, per
// spec.md 4.7.
func (tr *Trigger) CheckTriggers(analyses []risk.TrackAnalysis, scores map[int]risk.RiskScore, userQuery string, frame []byte) []TriggerEvent {
	if !tr.cfg.Enabled || len(frame) == 0 {
		return nil
	}

	now := time.Now()
	var events []TriggerEvent

	for _, a := range analyses {
		tr.mu.Lock()
		last, cooling := tr.lastFire[a.TrackID]
		onCooldown := cooling && now.Sub(last).Seconds() < tr.cfg.TriggerCooldownSeconds
		tr.mu.Unlock()
		if onCooldown {
			continue
		}

		var ev *TriggerEvent
		switch {
		case userQuery != "":
			ev = &TriggerEvent{TrackID: a.TrackID, TriggerType: TriggerUserQuery, Prompt: userQuery}
		case scores[a.TrackID].Score >= tr.cfg.RiskThresholdTrigger:
			ev = &TriggerEvent{TrackID: a.TrackID, TriggerType: TriggerRiskThreshold, Prompt: "suspicious activity"}
		case a.Behavior.HasAnomaly():
			ev = &TriggerEvent{TrackID: a.TrackID, TriggerType: TriggerBehaviorChange, Prompt: behaviorPrompt(a.Behavior)}
		}
		if ev == nil {
			continue
		}

		ev.CroppedFrame = tr.cropper(frame, a.CurrentBBox)

		tr.mu.Lock()
		tr.lastFire[a.TrackID] = now
		tr.mu.Unlock()

		events = append(events, *ev)
	}
	return events
}

func behaviorPrompt(b risk.BehaviorFlags) string {
	switch {
	case b.IsLoitering:
		return "person loitering"
	case b.SuddenSpeedChange:
		return "sudden movement"
	case b.DirectionReversal:
		return "abrupt direction reversal"
	case b.IsErratic:
		return "erratic movement"
	default:
		return "unusual behavior"
	}
}
