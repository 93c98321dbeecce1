package detector

import (
	"context"
	"math"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/patterns"
	"github.com/monay/risk-engine/internal/watchlist"
)

// Input carries everything a detector may read for one evaluation. The
// pattern and watchlist snapshots are captured once per evaluation so a
// concurrent reload never changes what a detector sees mid-flight.
type Input struct {
	Transaction *domain.Transaction
	Profile     *domain.UserRiskProfile
	Patterns    *patterns.Snapshot
	Watchlists  *watchlist.Snapshot
}

// Detector is one independent risk signal. Detect must honor ctx
// cancellation; the engine enforces a per-detector deadline and converts
// timeouts into degraded-mode ERROR findings.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error)
}

// newFinding returns a finding that starts as a clean PASS for the detector
func newFinding(name string) *domain.RiskFinding {
	return &domain.RiskFinding{
		Detector: name,
		Status:   domain.FindingPass,
	}
}

const earthRadiusMiles = 3958.8

// distanceMiles returns the great-circle distance between two points
func distanceMiles(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
