package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"
	"sentryfeed/internal/risk"
)

func TestFuseOneObjectPerTrack(t *testing.T) {
	tracks := []risk.Track{
		{TrackID: 1, ClassName: "person", Confidence: 0.91, BBox: risk.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{TrackID: 2, ClassName: "car", Confidence: 0.80, BBox: risk.BBox{X1: 5, Y1: 5, X2: 20, Y2: 20}},
	}
	summary := risk.FrameRiskSummary{TrackRisks: []risk.RiskScore{
		{TrackID: 1, Score: 0.6, Level: risk.RiskHigh},
		{TrackID: 2, Score: 0.1, Level: risk.RiskLow},
	}}
	objs := Fuse(tracks, nil, nil, summary, 12.5)
	require.Len(t, objs, 2)
	require.Equal(t, "HIGH", objs[0].RiskLevel)
	require.Equal(t, 0.6, objs[0].RiskScore)
}

func TestFuseHighestConfidenceSemanticMatchWins(t *testing.T) {
	tracks := []risk.Track{{TrackID: 1, ClassName: "person"}}
	semanticResults := map[int][]Detection{
		1: {
			{Label: "backpack", Confidence: 0.4, Phrase: "a backpack"},
			{Label: "red jacket", Confidence: 0.88, Phrase: "person in a red jacket"},
			{Label: "hat", Confidence: 0.88, Phrase: "person wearing a hat"},
		},
	}
	objs := Fuse(tracks, nil, semanticResults, risk.FrameRiskSummary{}, 0)
	require.Len(t, objs, 1)
	require.True(t, objs[0].HasSemanticMatch())
	require.Equal(t, "red jacket", objs[0].SemanticLabel, "tie at 0.88 should resolve to first-seen")
}

func TestFuseNoSemanticMatchLeavesFieldsEmpty(t *testing.T) {
	tracks := []risk.Track{{TrackID: 1, ClassName: "person"}}
	objs := Fuse(tracks, nil, nil, risk.FrameRiskSummary{}, 0)
	require.False(t, objs[0].HasSemanticMatch())
	require.Empty(t, objs[0].SemanticLabel)
}

func TestRound3(t *testing.T) {
	require.Equal(t, 0.123, round3(0.12345))
	require.Equal(t, 0.667, round3(2.0/3.0))
}

func TestHighRiskObjectsAndSemanticMatchesFilters(t *testing.T) {
	objs := []UnifiedObject{
		{TrackID: 1, RiskScore: 0.8},
		{TrackID: 2, RiskScore: 0.1, SemanticLabel: "dog"},
		{TrackID: 3, RiskScore: 0.9, SemanticLabel: "person"},
	}
	require.Len(t, HighRiskObjects(objs, 0.6), 2)
	require.Len(t, SemanticMatches(objs), 2)
}

func TestActiveBehaviorsListsAllSetFlags(t *testing.T) {
	tracks := []risk.Track{{TrackID: 1}}
	analyses := []risk.TrackAnalysis{{TrackID: 1, Behavior: risk.BehaviorFlags{IsLoitering: true, IsErratic: true}}}
	objs := Fuse(tracks, analyses, nil, risk.FrameRiskSummary{}, 0)
	require.ElementsMatch(t, []string{"loitering", "erratic"}, objs[0].ActiveBehaviors)
}
