// Package pipeline wires HistoryManager through SemanticFusion into the
// single per-frame call spec.md 5 describes: strictly sequential,
// HistoryManager -> Motion -> Behavior -> Crowd -> Risk -> Alerts ->
// Trigger -> Fusion, with SemanticExecutor as the only concurrent
// subsystem. Grounded on orbo's cmd/orbo/main.go wiring order (construct
// bottom-up, start, block on signal, graceful stop) and
// internal/pipeline/interfaces.go's small single-purpose interfaces for
// the upstream/downstream contracts.
package pipeline

import (
	"log"
	"os"

	"sentryfeed/internal/bus"
	"sentryfeed/internal/config"
	"sentryfeed/internal/risk"
	"sentryfeed/internal/semantic"
)

// TrackSource supplies the live track list for a frame, per spec.md 6's
// upstream contract.
type TrackSource interface {
	Tracks(frameID uint64, t float64) []risk.Track
}

// FrameSource supplies the raw frame bytes a crop is cut from, if any.
type FrameSource interface {
	Frame(frameID uint64) (image []byte, ok bool)
}

type cacheKey struct {
	prompt string
	hash   string
}

// Pipeline owns every stateful component and exposes the three downstream
// buses (Alert, FrameRiskSummary, UnifiedObject list).
type Pipeline struct {
	logger *log.Logger

	history  *risk.HistoryManager
	motion   *risk.MotionAnalyzer
	behavior *risk.BehaviorAnalyzer
	crowd    *risk.CrowdAnalyzer
	engine   *risk.RiskEngine
	alerts   *risk.AlertManager
	trigger  *semantic.Trigger
	executor *semantic.Executor
	cache    *semantic.Cache

	// pendingCacheKey remembers, per identity, the (prompt, hash) an
	// in-flight executor job was submitted under, so its eventual result
	// can be written back into the cache. The pipeline is single-threaded
	// (spec.md 5), so this map needs no lock.
	pendingCacheKey map[int]cacheKey

	crowdThreshold int

	Alerts    *bus.Bus[risk.Alert]
	Summaries *bus.Bus[risk.FrameRiskSummary]
	Objects   *bus.Bus[[]semantic.UnifiedObject]
}

// New constructs a Pipeline from the given configuration. backend may be
// nil, in which case the semantic subsystem is disabled regardless of
// cfg.Semantic.Enabled (there is nothing to invoke).
func New(cfg config.Config, backend semantic.Backend, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[sentryfeed] ", log.LstdFlags)
	}

	zones := risk.ZoneProvider(risk.NoZones{})
	engineCfg := risk.EngineConfig{
		Weights: risk.RiskWeights{
			Loitering: cfg.Risk.Weights.Loitering, SpeedAnomaly: cfg.Risk.Weights.Speed,
			DirectionChange: cfg.Risk.Weights.Direction, CrowdDensity: cfg.Risk.Weights.Crowd,
			ZoneContext: cfg.Risk.Weights.Zone, ErraticMotion: cfg.Risk.Weights.Erratic,
		},
		Thresholds: risk.RiskThresholds{
			Medium: cfg.Risk.Thresholds.Medium, High: cfg.Risk.Thresholds.High, Critical: cfg.Risk.Thresholds.Critical,
		},
		Temporal:                 risk.TemporalConfig{EscalationRate: cfg.Risk.EscalationRate, DecayRate: cfg.Risk.DecayRate},
		UseZones:                 cfg.Risk.UseZones,
		UseTemporal:              cfg.Risk.UseTemporal,
		AccelNorm:                5.0,
		LoiteringTimeThreshold:   cfg.Analysis.LoiteringTimeThreshold,
		ErraticVarianceThreshold: cfg.Analysis.ErraticVarianceThreshold,
	}
	engine, err := risk.NewRiskEngine(engineCfg, zones)
	if err != nil {
		return nil, err
	}

	minLevel := parseAlertLevel(cfg.Alerts.MinLevel)
	alerts := risk.NewAlertManager(risk.AlertManagerConfig{
		Enabled: cfg.Alerts.Enabled, MinLevel: minLevel,
		CooldownSeconds: cfg.Alerts.CooldownSeconds,
		LogToFile:       cfg.Alerts.LogToFile, LogPath: cfg.Alerts.LogPath,
	}, logger)

	p := &Pipeline{
		logger: logger,
		history: risk.NewHistoryManager(cfg.Analysis.HistoryWindowSize, uint64(cfg.Analysis.StaleThreshold)),
		motion: risk.NewMotionAnalyzer(risk.MotionConfig{
			StationaryThreshold: cfg.Analysis.StationarySpeedThreshold, MinHistoryForAnalysis: cfg.Analysis.MinHistoryForAnalysis,
			RunningThreshold: cfg.Analysis.RunningSpeedThreshold, AssumedFPS: cfg.Analysis.AssumedFPS,
		}),
		crowd: risk.NewCrowdAnalyzer(risk.CrowdConfig{
			GridCellSize: cfg.Analysis.GridCellSize, CrowdDensityThreshold: cfg.Analysis.CrowdDensityThreshold,
		}),
		engine:          engine,
		alerts:          alerts,
		pendingCacheKey: make(map[int]cacheKey),
		crowdThreshold:  cfg.Analysis.CrowdDensityThreshold,
		Alerts:          bus.New[risk.Alert](),
		Summaries:      bus.New[risk.FrameRiskSummary](),
		Objects:        bus.New[[]semantic.UnifiedObject](),
	}
	p.behavior = risk.NewBehaviorAnalyzer(risk.BehaviorConfig{
		LoiteringTimeThreshold: cfg.Analysis.LoiteringTimeThreshold, RunningSpeedThreshold: cfg.Analysis.RunningSpeedThreshold,
		SpeedChangeThreshold: cfg.Analysis.SpeedChangeThreshold, DirectionReversalThreshold: cfg.Analysis.DirectionReversalThreshold,
		ErraticVarianceThreshold: cfg.Analysis.ErraticVarianceThreshold,
	}, p.motion)

	if cfg.Semantic.Enabled && backend != nil {
		p.trigger = semantic.NewTrigger(semantic.TriggerConfig{
			Enabled: true, RiskThresholdTrigger: cfg.Semantic.RiskThresholdTrigger,
			TriggerCooldownSeconds: cfg.Semantic.TriggerCooldownSeconds,
		}, cropFrame)
		p.executor = semantic.NewExecutor(semantic.DefaultExecutorConfig(), backend, logger)
		cache, err := semantic.NewCache(cfg.Semantic.CacheTTL(), cfg.Semantic.MaxCacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}

	return p, nil
}

func parseAlertLevel(s string) risk.AlertLevel {
	switch s {
	case "INFO":
		return risk.AlertInfo
	case "WARNING":
		return risk.AlertWarning
	case "HIGH":
		return risk.AlertHigh
	case "CRITICAL":
		return risk.AlertCritical
	default:
		return risk.AlertWarning
	}
}

// cropFrame is the FrameCropper the pipeline wires into its Trigger. It
// returns the whole frame unchanged: the bbox is not applied, so the
// semantic backend and the PromptCache hash see the full frame.
func cropFrame(frame []byte, bbox risk.BBox) []byte {
	return frame
}

// ProcessFrame runs one frame through the full sequential pipeline and
// returns its FrameRiskSummary and fused UnifiedObjects, publishing both
// (plus any emitted Alerts) to the pipeline's buses. userQuery is the
// operator's currently active semantic query, if any.
func (p *Pipeline) ProcessFrame(tracks []risk.Track, frameID uint64, t float64, frame []byte, userQuery string) (risk.FrameRiskSummary, []semantic.UnifiedObject) {
	p.history.Update(tracks, frameID, t)

	analyses := make([]risk.TrackAnalysis, 0, len(tracks))
	motionStates := make(map[int]risk.MotionState, len(tracks))
	for _, tr := range tracks {
		hist, _ := p.history.History(tr.TrackID)
		ms := p.motion.Analyze(hist)
		motionStates[tr.TrackID] = ms
	}
	behaviors := p.behavior.AnalyzeAll(p.history, motionStates)

	for _, tr := range tracks {
		hist, _ := p.history.History(tr.TrackID)
		x, y := tr.BBox.Center()
		a := risk.TrackAnalysis{
			TrackID:       tr.TrackID,
			ClassName:     tr.ClassName,
			Motion:        motionStates[tr.TrackID],
			Behavior:      behaviors[tr.TrackID],
			HistoryLength: p.history.HistoryLength(tr.TrackID),
			CurrentBBox:   tr.BBox,
		}
		a.CurrentPosition.X, a.CurrentPosition.Y = x, y
		if hist != nil {
			a.TimeTracked = hist.Duration()
		}
		analyses = append(analyses, a)
	}

	crowdMetrics := p.crowd.Analyze(tracks)
	summary := p.engine.ComputeFrameRisks(frameID, t, analyses, p.crowd, crowdMetrics, p.crowdThreshold)
	p.engine.DropEvicted(p.history.LiveIDs())

	riskByID := make(map[int]risk.RiskScore, len(summary.TrackRisks))
	for _, rs := range summary.TrackRisks {
		riskByID[rs.TrackID] = rs
		if alert := p.alerts.ProcessRisk(rs.TrackID, rs.Level, rs.Score, rs.Explanation.Summary, factorNames(rs.Explanation.Factors)); alert != nil {
			p.Alerts.Publish(*alert)
		}
	}

	var semanticResults map[int][]semantic.Detection
	if p.trigger != nil {
		events := p.trigger.CheckTriggers(analyses, riskByID, userQuery, frame)
		semanticResults = p.executor.GetResults()
		for id, dets := range semanticResults {
			if key, ok := p.pendingCacheKey[id]; ok {
				p.cache.Put(key.prompt, key.hash, dets)
				delete(p.pendingCacheKey, id)
			}
		}
		for _, ev := range events {
			if dets, ok := p.dispatchTrigger(ev); ok {
				semanticResults[ev.TrackID] = dets
			}
		}
	}

	objects := semantic.Fuse(tracks, analyses, semanticResults, summary, t)

	p.Summaries.Publish(summary)
	p.Objects.Publish(objects)

	return summary, objects
}

// dispatchTrigger consults the PromptCache for a trigger event; a hit is
// returned directly (bypassing the executor, per spec.md 4.9) and a miss
// is submitted to the executor for asynchronous inference.
func (p *Pipeline) dispatchTrigger(ev semantic.TriggerEvent) ([]semantic.Detection, bool) {
	hash, err := semantic.ImageHash(ev.CroppedFrame)
	if err != nil {
		p.logger.Printf("pipeline: hash crop for track %d: %v", ev.TrackID, err)
		p.executor.Submit(ev.TrackID, ev.CroppedFrame, ev.Prompt)
		return nil, false
	}
	if cached, ok := p.cache.Get(ev.Prompt, hash); ok {
		return cached, true
	}
	p.pendingCacheKey[ev.TrackID] = cacheKey{prompt: ev.Prompt, hash: hash}
	p.executor.Submit(ev.TrackID, ev.CroppedFrame, ev.Prompt)
	return nil, false
}

func factorNames(factors []risk.Factor) []string {
	names := make([]string, len(factors))
	for i, f := range factors {
		names[i] = f.Name
	}
	return names
}

// Stop drains in-flight semantic work and flushes the alert sink,
// idempotent under repeated calls per spec.md 7.
func (p *Pipeline) Stop() {
	if p.executor != nil {
		p.executor.Stop()
	}
	p.alerts.Close()
	p.Alerts.Close()
	p.Summaries.Close()
	p.Objects.Close()
}
