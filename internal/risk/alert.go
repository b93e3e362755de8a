package risk

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AlertManagerConfig parameterizes AlertManager.
type AlertManagerConfig struct {
	Enabled        bool
	MinLevel       AlertLevel
	CooldownSeconds float64 // default 10
	LogToFile      bool
	LogPath        string
}

// DefaultAlertManagerConfig returns spec.md 6's documented defaults.
func DefaultAlertManagerConfig() AlertManagerConfig {
	return AlertManagerConfig{Enabled: true, MinLevel: AlertWarning, CooldownSeconds: 10}
}

// AlertManager maps risk levels to Alerts, de-duplicating with a
// per-identity cooldown and optionally mirroring to a JSON-lines file.
// Grounded on orbo's cmd/orbo/main.go plain *log.Logger injection style.
type AlertManager struct {
	cfg    AlertManagerConfig
	logger *log.Logger

	mu          sync.Mutex
	lastEmitted map[int]time.Time
	counts      map[AlertLevel]int
	totalCount  int

	sinkMu sync.Mutex
	sink   *os.File
}

// NewAlertManager constructs a manager. If cfg.LogToFile is set, it opens
// (creating/appending to) cfg.LogPath; a failure to open is logged and
// does not prevent construction — sink failures never raise, per spec.md 7.
func NewAlertManager(cfg AlertManagerConfig, logger *log.Logger) *AlertManager {
	if logger == nil {
		logger = log.New(os.Stderr, "[sentryfeed] ", log.LstdFlags)
	}
	m := &AlertManager{
		cfg:         cfg,
		logger:      logger,
		lastEmitted: make(map[int]time.Time),
		counts:      make(map[AlertLevel]int),
	}
	if cfg.Enabled && cfg.LogToFile && cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Printf("alert: could not open log sink %q: %v", cfg.LogPath, err)
		} else {
			m.sink = f
		}
	}
	return m
}

// ProcessRisk maps a risk level to an Alert and emits it if the manager is
// enabled, the resulting AlertLevel meets MinLevel, and the per-identity
// cooldown has elapsed. Returns nil when no alert is emitted.
func (m *AlertManager) ProcessRisk(trackID int, level RiskLevel, score float64, message string, factors []string) *Alert {
	if !m.cfg.Enabled {
		return nil
	}
	alertLevel := AlertLevelFromRiskLevel(level)
	if alertLevel.Priority() < m.cfg.MinLevel.Priority() {
		return nil
	}

	now := time.Now()
	m.mu.Lock()
	if last, ok := m.lastEmitted[trackID]; ok {
		if now.Sub(last).Seconds() < m.cfg.CooldownSeconds {
			m.mu.Unlock()
			return nil
		}
	}
	m.lastEmitted[trackID] = now
	m.counts[alertLevel]++
	m.totalCount++
	m.mu.Unlock()

	alert := &Alert{
		EventID:   generateEventID(),
		TrackID:   trackID,
		Level:     alertLevel,
		RiskScore: score,
		Message:   message,
		Factors:   factors,
		TCreated:  now,
	}
	m.writeSink(alert)
	return alert
}

// generateEventID produces a unique, stable-within-a-run event ID in the
// evt_<suffix> shape spec.md 3 describes, backed by a real UUID rather than
// a hand-rolled counter.
func generateEventID() string {
	id := uuid.New().String()
	return "evt_" + id[:8] + id[9:13]
}

func (m *AlertManager) writeSink(a *Alert) {
	if m.sink == nil {
		return
	}
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()
	b, err := json.Marshal(a)
	if err != nil {
		m.logger.Printf("alert: marshal failed for %s: %v", a.EventID, err)
		return
	}
	b = append(b, '\n')
	if _, err := m.sink.Write(b); err != nil {
		m.logger.Printf("alert: sink write failed: %v", err)
	}
}

// ToLogString renders the human-readable form referenced in the original
// source's tests: includes the bracketed level and "Track <id>".
func (a *Alert) ToLogString() string {
	return fmt.Sprintf("[%s] Track %d: %s (score=%.2f)", a.Level, a.TrackID, a.Message, a.RiskScore)
}

// AlertSummary reports counts by level.
type AlertSummary struct {
	Total   int
	ByLevel map[string]int
}

// Summary returns a snapshot of emitted counts, keyed by level name.
func (m *AlertManager) Summary() AlertSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	byLevel := make(map[string]int, len(m.counts))
	for lvl, c := range m.counts {
		byLevel[lvl.String()] = c
	}
	return AlertSummary{Total: m.totalCount, ByLevel: byLevel}
}

// Close flushes and closes the file sink, if any.
func (m *AlertManager) Close() error {
	if m.sink == nil {
		return nil
	}
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()
	return m.sink.Close()
}

// sortedLevels returns the level names of a summary's counts in sorted
// order.
func sortedLevels(byLevel map[string]int) []string {
	out := make([]string, 0, len(byLevel))
	for k := range byLevel {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
