// Package geo converts between geographic coordinates in degrees and local
// planar coordinates in kilometers around a fixed origin.
package geo

import (
	"math"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
)

// degToKm is one degree of latitude in kilometers on a 6371 km sphere.
const degToKm = 6371.0 * math.Pi / 180.0

// Projection maps latitude/longitude to east/north kilometers relative to
// the center of the configured region. The forward and inverse transforms
// are exact inverses of each other.
type Projection struct {
	originLat   float64
	originLon   float64
	kmPerDegLon float64
}

// NewProjection builds a projection centered on the region's midpoint.
func NewProjection(region *conf.RegionSettings) (*Projection, error) {
	fail := func(msg string) error {
		return errors.Newf("%s", msg).
			Component("geo").
			Category(errors.CategoryProjection).
			Context("min_latitude", region.MinLatitude).
			Context("max_latitude", region.MaxLatitude).
			Context("min_longitude", region.MinLongitude).
			Context("max_longitude", region.MaxLongitude).
			Build()
	}
	switch {
	case region.MinLatitude >= region.MaxLatitude:
		return nil, fail("region latitude bounds are inverted or empty")
	case region.MinLongitude >= region.MaxLongitude:
		return nil, fail("region longitude bounds are inverted or empty")
	case region.MinLatitude < -90 || region.MaxLatitude > 90:
		return nil, fail("latitude bounds outside [-90, 90]")
	case region.MinLongitude < -180 || region.MaxLongitude > 180:
		return nil, fail("longitude bounds outside [-180, 180]")
	}

	originLat := (region.MinLatitude + region.MaxLatitude) / 2
	kmPerDegLon := degToKm * math.Cos(originLat*math.Pi/180)
	if kmPerDegLon < 1e-9 {
		return nil, fail("region centered on a pole has no usable east axis")
	}

	return &Projection{
		originLat:   originLat,
		originLon:   (region.MinLongitude + region.MaxLongitude) / 2,
		kmPerDegLon: kmPerDegLon,
	}, nil
}

// Origin returns the projection's geographic reference point.
func (p *Projection) Origin() (lat, lon float64) {
	return p.originLat, p.originLon
}

// Forward maps geographic degrees to east/north kilometers.
func (p *Projection) Forward(lat, lon float64) (x, y float64) {
	x = (lon - p.originLon) * p.kmPerDegLon
	y = (lat - p.originLat) * degToKm
	return x, y
}

// Inverse maps east/north kilometers back to geographic degrees.
func (p *Projection) Inverse(x, y float64) (lat, lon float64) {
	lat = p.originLat + y/degToKm
	lon = p.originLon + x/p.kmPerDegLon
	return lat, lon
}

// Outcome tells a caller how planar coordinates were produced.
type Outcome int

const (
	// OutcomeProjected means the transform ran and X/Y are kilometers.
	OutcomeProjected Outcome = iota
	// OutcomeFallback means no transform was available and X/Y carry the
	// raw geographic degrees. Not an error condition.
	OutcomeFallback
	// OutcomeError means the transform was attempted and failed.
	OutcomeError
)

// Coords is the structured result of a localization attempt.
type Coords struct {
	Outcome Outcome
	X, Y    float64
	Reason  string
}

// Localize produces planar plotting coordinates for a geographic point. A
// nil projection yields the fallback result with the raw degrees.
func (p *Projection) Localize(lat, lon float64) Coords {
	if p == nil {
		return Coords{Outcome: OutcomeFallback, X: lon, Y: lat,
			Reason: "no projection configured"}
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return Coords{Outcome: OutcomeError,
			Reason: "coordinates outside geographic range"}
	}
	x, y := p.Forward(lat, lon)
	return Coords{Outcome: OutcomeProjected, X: x, Y: y}
}
