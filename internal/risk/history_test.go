package risk

import "testing"

func track(id int, x, y float64) Track {
	return Track{TrackID: id, ClassName: "person", BBox: BBox{X1: x - 5, Y1: y - 5, X2: x + 5, Y2: y + 5}, Confidence: 0.9}
}

func TestHistoryManagerBoundedWindow(t *testing.T) {
	hm := NewHistoryManager(30, 90)
	for i := uint64(0); i < 100; i++ {
		hm.Update([]Track{track(1, float64(i), 0)}, i, float64(i)/30)
	}
	if got := hm.HistoryLength(1); got != 30 {
		t.Fatalf("history length = %d, want 30 (window cap)", got)
	}
}

func TestHistoryManagerEvictsStale(t *testing.T) {
	hm := NewHistoryManager(30, 90)
	hm.Update([]Track{track(1, 0, 0)}, 0, 0)
	hm.Update([]Track{}, 200, 200.0/30)
	if _, ok := hm.History(1); ok {
		t.Fatal("expected stale identity to be evicted")
	}
}

func TestHistoryManagerEvictionIdempotent(t *testing.T) {
	hm := NewHistoryManager(30, 90)
	hm.Update([]Track{track(1, 0, 0)}, 0, 0)
	hm.Update([]Track{}, 200, 200.0/30)
	hm.Update([]Track{}, 300, 300.0/30)
	if _, ok := hm.History(1); ok {
		t.Fatal("expected identity to remain evicted across repeated updates")
	}
}

func TestHistoryManagerDuration(t *testing.T) {
	hm := NewHistoryManager(30, 90)
	hm.Update([]Track{track(1, 0, 0)}, 0, 0)
	hm.Update([]Track{track(1, 1, 0)}, 1, 1.0)
	if got := hm.Duration(1); got != 1.0 {
		t.Fatalf("duration = %v, want 1.0", got)
	}
}
