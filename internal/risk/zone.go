package risk

// ZoneProvider supplies a risk weight in [0,1] for a position, used by
// RiskEngine's zone_context factor. Constructed as a capability object per
// spec.md 9's guidance against runtime try/catch on optional submodules.
type ZoneProvider interface {
	ZoneWeight(x, y float64) float64
	ZoneName(x, y float64) string
}

// NoZones is the zero ZoneProvider: always returns 0, matching
// use_zones=false.
type NoZones struct{}

func (NoZones) ZoneWeight(x, y float64) float64 { return 0 }
func (NoZones) ZoneName(x, y float64) string    { return "" }

// Zone is a named axis-aligned rectangular region (bounds inclusive) with
// an associated risk weight.
type Zone struct {
	Name       string
	MinX, MinY float64
	MaxX, MaxY float64
	RiskWeight float64
}

func (z Zone) contains(x, y float64) bool {
	return x >= z.MinX && x <= z.MaxX && y >= z.MinY && y <= z.MaxY
}

// GridZoneProvider resolves zone weight/name by linear scan over a small
// set of configured rectangular zones.
type GridZoneProvider struct {
	zones []Zone
}

// NewGridZoneProvider constructs a provider over the given zones.
func NewGridZoneProvider(zones []Zone) *GridZoneProvider {
	return &GridZoneProvider{zones: zones}
}

func (p *GridZoneProvider) ZoneWeight(x, y float64) float64 {
	for _, z := range p.zones {
		if z.contains(x, y) {
			return z.RiskWeight
		}
	}
	return 0
}

func (p *GridZoneProvider) ZoneName(x, y float64) string {
	for _, z := range p.zones {
		if z.contains(x, y) {
			return z.Name
		}
	}
	return ""
}
