// Package risk implements the analysis -> risk -> alert pipeline: bounded
// per-identity history, motion and behavior derivation, crowd density,
// weighted risk scoring with temporal smoothing, and cooldown-gated alert
// emission.
package risk

import "time"

// Track is a single per-frame record for a live identity, owned by the
// external tracker. The pipeline treats it as immutable input.
type Track struct {
	TrackID    int     `json:"track_id"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// BBox is a pixel-space bounding box (x1,y1)-(x2,y2).
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Center returns the box's geometric center.
func (b BBox) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Clamp clips the box to the given frame bounds.
func (b BBox) Clamp(width, height float64) BBox {
	clamp := func(v, max float64) float64 {
		if v < 0 {
			return 0
		}
		if v > max {
			return max
		}
		return v
	}
	return BBox{
		X1: clamp(b.X1, width),
		Y1: clamp(b.Y1, height),
		X2: clamp(b.X2, width),
		Y2: clamp(b.Y2, height),
	}
}

// PositionRecord is a single sampled box center, created by the
// HistoryManager from a Track.
type PositionRecord struct {
	X, Y    float64
	FrameID uint64
	T       float64
}

// TrackHistory is a bounded, time-ordered sequence of PositionRecords for
// one identity.
type TrackHistory struct {
	TrackID   int
	Records   []PositionRecord
	CreatedAt float64
	LastSeen  uint64
}

// Duration returns the elapsed time between the first and last sample.
func (h *TrackHistory) Duration() float64 {
	if len(h.Records) == 0 {
		return 0
	}
	return h.Records[len(h.Records)-1].T - h.Records[0].T
}

// MotionState is the derived, never-persisted kinematic snapshot for one
// identity at a single frame.
type MotionState struct {
	Speed         float64
	SmoothedSpeed float64
	VX, VY        float64
	Direction     float64 // radians, (-pi, pi]
	Acceleration  float64
	IsStationary  bool
}

// BehaviorFlags are independent named behavior signals plus the numeric
// context they were derived from.
type BehaviorFlags struct {
	IsStationary       bool
	IsLoitering        bool
	IsRunning          bool
	SuddenSpeedChange  bool
	DirectionReversal  bool
	IsErratic          bool
	StationaryDuration float64
	DirectionVariance  float64
}

// HasAnomaly reports whether any of the named anomaly flags are set.
func (b BehaviorFlags) HasAnomaly() bool {
	return b.IsLoitering || b.SuddenSpeedChange || b.DirectionReversal || b.IsErratic
}

// CrowdMetrics summarizes density over the live tracks in a single frame.
type CrowdMetrics struct {
	PersonCount    int
	VehicleCount   int
	GridDensities  map[GridCell]int
	MaxDensity     int
	CrowdDetected  bool
}

// GridCell identifies a bucket in CrowdAnalyzer's spatial grid.
type GridCell struct {
	X, Y int
}

// TrackAnalysis is an immutable per-frame snapshot combining identity,
// motion, and behavior for one live track.
type TrackAnalysis struct {
	TrackID         int
	ClassName       string
	Motion          MotionState
	Behavior        BehaviorFlags
	HistoryLength   int
	TimeTracked     float64
	CurrentPosition struct{ X, Y float64 }
	CurrentBBox     BBox
}

// RiskLevel is a risk score's coarse classification.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String renders the level the way Factor/Alert explanations reference it.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Factor is a single named contributor to a RiskScore's explanation.
type Factor struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Contribution float64 `json:"contribution"`
	Description string  `json:"description"`
}

// Explanation is the human-readable breakdown of a RiskScore.
type Explanation struct {
	Summary string   `json:"summary"`
	Factors []Factor `json:"factors"`
}

// RiskScore is the bounded, explainable score assigned to one identity in
// one frame.
type RiskScore struct {
	TrackID      int         `json:"track_id"`
	Score        float64     `json:"score"`
	Level        RiskLevel   `json:"level"`
	Explanation  Explanation `json:"explanation"`
	IsConcerning bool        `json:"is_concerning"`
}

// FrameRiskSummary aggregates RiskScores across every live track in one
// frame.
type FrameRiskSummary struct {
	FrameID          uint64      `json:"frame_id"`
	T                float64     `json:"t"`
	TrackRisks       []RiskScore `json:"track_risks"`
	MaxRiskLevel     RiskLevel   `json:"max_risk_level"`
	MaxRiskScore     float64     `json:"max_risk_score"`
	ConcerningTracks int         `json:"concerning_tracks"`
	HasConcerns      bool        `json:"has_concerns"`
}

// AlertLevel is the operator-facing severity of an emitted Alert.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertHigh
	AlertCritical
)

// Priority gives AlertLevel a total order for min_level comparisons.
func (l AlertLevel) Priority() int { return int(l) }

func (l AlertLevel) String() string {
	switch l {
	case AlertInfo:
		return "INFO"
	case AlertWarning:
		return "WARNING"
	case AlertHigh:
		return "HIGH"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// AlertLevelFromRiskLevel maps RiskLevel -> AlertLevel per spec.md 4.6:
// LOW->INFO, MEDIUM->WARNING, HIGH->HIGH, CRITICAL->CRITICAL.
func AlertLevelFromRiskLevel(l RiskLevel) AlertLevel {
	switch l {
	case RiskLow:
		return AlertInfo
	case RiskMedium:
		return AlertWarning
	case RiskHigh:
		return AlertHigh
	case RiskCritical:
		return AlertCritical
	default:
		return AlertInfo
	}
}

// Alert is a de-duplicated, cooldown-gated operator notification.
type Alert struct {
	EventID   string     `json:"event_id"`
	TrackID   int        `json:"track_id"`
	Level     AlertLevel `json:"level"`
	RiskScore float64    `json:"risk_score"`
	Message   string     `json:"message"`
	Zone      string     `json:"zone,omitempty"`
	Factors   []string   `json:"factors"`
	TCreated  time.Time  `json:"t_created"`
}
