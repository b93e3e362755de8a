package risk

import "sync"

// HistoryManager maintains a bounded sliding window of positions per
// identity. Grounded on orbo's internal/motion/detector.go bounded-map
// eviction style, generalized from motion events to position samples.
type HistoryManager struct {
	mu            sync.Mutex
	window        int
	staleThreshold uint64
	histories     map[int]*TrackHistory
}

// NewHistoryManager constructs a manager with capacity window and the
// given stale-eviction threshold (in frames).
func NewHistoryManager(window int, staleThreshold uint64) *HistoryManager {
	return &HistoryManager{
		window:         window,
		staleThreshold: staleThreshold,
		histories:      make(map[int]*TrackHistory),
	}
}

// Update appends a PositionRecord for every live track and evicts
// identities whose last-seen frame is older than staleThreshold. O(n_tracks).
func (h *HistoryManager) Update(tracks []Track, frameID uint64, t float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, tr := range tracks {
		hist, ok := h.histories[tr.TrackID]
		if !ok {
			hist = &TrackHistory{TrackID: tr.TrackID, CreatedAt: t}
			h.histories[tr.TrackID] = hist
		}
		x, y := tr.BBox.Center()
		hist.Records = append(hist.Records, PositionRecord{X: x, Y: y, FrameID: frameID, T: t})
		if len(hist.Records) > h.window {
			hist.Records = hist.Records[len(hist.Records)-h.window:]
		}
		hist.LastSeen = frameID
	}

	for id, hist := range h.histories {
		if frameID > hist.LastSeen && frameID-hist.LastSeen > h.staleThreshold {
			delete(h.histories, id)
		}
	}
}

// History returns the history for an identity, if present.
func (h *HistoryManager) History(id int) (*TrackHistory, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.histories[id]
	return hist, ok
}

// Duration returns last.T - first.T for the identity's history, or 0 if absent.
func (h *HistoryManager) Duration(id int) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.histories[id]
	if !ok {
		return 0
	}
	return hist.Duration()
}

// HistoryLength returns the number of samples stored for an identity.
func (h *HistoryManager) HistoryLength(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.histories[id]
	if !ok {
		return 0
	}
	return len(hist.Records)
}

// LiveIDs returns the identities currently tracked (for EMA eviction
// coordination with RiskEngine.DropEvicted).
func (h *HistoryManager) LiveIDs() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.histories))
	for id := range h.histories {
		ids = append(ids, id)
	}
	return ids
}
