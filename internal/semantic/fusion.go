package semantic

import (
	"math"

	"sentryfeed/internal/risk"
)

// UnifiedObject is the late-fused output of spec.md 4.10: base detection
// plus behavior, risk, and (optionally) the single best semantic match for
// the identity.
type UnifiedObject struct {
	TrackID             int      `json:"track_id"`
	ClassName           string   `json:"class_name"`
	Confidence          float64  `json:"confidence"`
	BBox                risk.BBox `json:"bbox"`
	ActiveBehaviors     []string `json:"active_behaviors"`
	RiskScore           float64  `json:"risk_score"`
	RiskLevel           string   `json:"risk_level"`
	SemanticLabel       string   `json:"semantic_label,omitempty"`
	SemanticConfidence  float64  `json:"semantic_confidence,omitempty"`
	MatchedPhrase       string   `json:"matched_phrase,omitempty"`
	T                   float64  `json:"t"`
}

// HasSemanticMatch reports whether a semantic detection was fused in.
func (u UnifiedObject) HasSemanticMatch() bool { return u.SemanticLabel != "" }

// IsHighRisk reports whether the object's risk score meets threshold.
func (u UnifiedObject) IsHighRisk(threshold float64) bool { return u.RiskScore >= threshold }

// round3 matches spec.md 4.10's "rounds floats to three decimals for the
// downstream consumers".
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Fuse combines tracks, their analyses, any available semantic detections
// keyed by track ID, and the frame's risk summary into exactly one
// UnifiedObject per live identity.
func Fuse(tracks []risk.Track, analyses []risk.TrackAnalysis, semanticResults map[int][]Detection, summary risk.FrameRiskSummary, t float64) []UnifiedObject {
	riskByID := make(map[int]risk.RiskScore, len(summary.TrackRisks))
	for _, rs := range summary.TrackRisks {
		riskByID[rs.TrackID] = rs
	}
	analysisByID := make(map[int]risk.TrackAnalysis, len(analyses))
	for _, a := range analyses {
		analysisByID[a.TrackID] = a
	}

	out := make([]UnifiedObject, 0, len(tracks))
	for _, tr := range tracks {
		a := analysisByID[tr.TrackID]
		rs := riskByID[tr.TrackID]

		obj := UnifiedObject{
			TrackID:         tr.TrackID,
			ClassName:       tr.ClassName,
			Confidence:      round3(tr.Confidence),
			BBox:            tr.BBox,
			ActiveBehaviors: activeBehaviors(a.Behavior),
			RiskScore:       round3(rs.Score),
			RiskLevel:       rs.Level.String(),
			T:               t,
		}

		if dets := semanticResults[tr.TrackID]; len(dets) > 0 {
			best := highestConfidence(dets)
			obj.SemanticLabel = best.Label
			obj.SemanticConfidence = round3(best.Confidence)
			obj.MatchedPhrase = best.Phrase
		}

		out = append(out, obj)
	}
	return out
}

// highestConfidence returns the highest-confidence Detection, ties broken
// by first-seen (stable scan keeps the earliest element on a tie).
func highestConfidence(dets []Detection) Detection {
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best
}

func activeBehaviors(b risk.BehaviorFlags) []string {
	var names []string
	if b.IsStationary {
		names = append(names, "stationary")
	}
	if b.IsLoitering {
		names = append(names, "loitering")
	}
	if b.IsRunning {
		names = append(names, "running")
	}
	if b.SuddenSpeedChange {
		names = append(names, "sudden_speed_change")
	}
	if b.DirectionReversal {
		names = append(names, "direction_reversal")
	}
	if b.IsErratic {
		names = append(names, "erratic")
	}
	return names
}

// HighRiskObjects filters objects meeting threshold.
func HighRiskObjects(objs []UnifiedObject, threshold float64) []UnifiedObject {
	var out []UnifiedObject
	for _, o := range objs {
		if o.IsHighRisk(threshold) {
			out = append(out, o)
		}
	}
	return out
}

// SemanticMatches filters objects carrying a semantic match.
func SemanticMatches(objs []UnifiedObject) []UnifiedObject {
	var out []UnifiedObject
	for _, o := range objs {
		if o.HasSemanticMatch() {
			out = append(out, o)
		}
	}
	return out
}
