package risk

// CrowdConfig parameterizes CrowdAnalyzer.
type CrowdConfig struct {
	GridCellSize         float64 // pixels, default 100
	CrowdDensityThreshold int    // default 5
}

// DefaultCrowdConfig returns spec.md's documented defaults.
func DefaultCrowdConfig() CrowdConfig {
	return CrowdConfig{GridCellSize: 100, CrowdDensityThreshold: 5}
}

// CrowdAnalyzer buckets live track centers into a spatial grid and derives
// density metrics.
type CrowdAnalyzer struct {
	cfg CrowdConfig
}

// NewCrowdAnalyzer constructs an analyzer with the given config.
func NewCrowdAnalyzer(cfg CrowdConfig) *CrowdAnalyzer {
	return &CrowdAnalyzer{cfg: cfg}
}

// Analyze computes CrowdMetrics over the live tracks of a single frame.
func (c *CrowdAnalyzer) Analyze(tracks []Track) CrowdMetrics {
	metrics := CrowdMetrics{GridDensities: make(map[GridCell]int)}

	for _, tr := range tracks {
		switch tr.ClassName {
		case "person":
			metrics.PersonCount++
		case "car", "truck", "bus", "motorcycle", "vehicle":
			metrics.VehicleCount++
		}

		x, y := tr.BBox.Center()
		cell := GridCell{
			X: int(x / c.cfg.GridCellSize),
			Y: int(y / c.cfg.GridCellSize),
		}
		metrics.GridDensities[cell]++
	}

	for _, count := range metrics.GridDensities {
		if count > metrics.MaxDensity {
			metrics.MaxDensity = count
		}
	}
	metrics.CrowdDetected = metrics.MaxDensity >= c.cfg.CrowdDensityThreshold
	return metrics
}

// LocalDensity returns the density of the grid cell containing (x, y),
// used by RiskEngine's crowd_density factor.
func (c *CrowdAnalyzer) LocalDensity(metrics CrowdMetrics, x, y float64) int {
	cell := GridCell{X: int(x / c.cfg.GridCellSize), Y: int(y / c.cfg.GridCellSize)}
	return metrics.GridDensities[cell]
}
