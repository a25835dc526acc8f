// Package associate groups phase picks into candidate seismic events using
// a travel-time model and a space-time grid search over the configured
// region.
package associate

import (
	"math"
	"time"

	"github.com/quakeflow/quakeflow/internal/picker"
)

// Event is one hypothesized earthquake. Latitude and longitude are filled
// by the coordinate transform step after clustering; X and Y are local
// east/north kilometers relative to the region center.
type Event struct {
	ID           string
	Time         time.Time
	Latitude     float64
	Longitude    float64
	Depth        float64 // km
	X            float64 // km east of region center
	Y            float64 // km north of region center
	PickCount    int
	RMS          float64 // seconds
	AzimuthalGap float64 // degrees
}

// Assignment links one pick to the event that explains it. The residual is
// observed minus predicted arrival time in seconds.
type Assignment struct {
	EventID  string
	Station  string
	Phase    picker.Phase
	Time     time.Time
	Residual float64
}

// Result is the payload of a successful association run.
type Result struct {
	Events      []Event
	Assignments []Assignment
	Excluded    []string // station ids of picks dropped before clustering
}

// velocityModel is a uniform two-velocity travel-time model.
type velocityModel struct {
	vp        float64 // km/s
	vs        float64 // km/s
	tolerance float64 // seconds
	cutoff    float64 // km, max hypocentral distance
}

// travel returns the predicted travel time over a hypocentral distance.
func (m velocityModel) travel(dist float64, phase picker.Phase) float64 {
	if phase == picker.PhaseS {
		return dist / m.vs
	}
	return dist / m.vp
}

// observation is a pick joined with its station's local coordinates.
type observation struct {
	pick picker.Pick
	x, y float64
}

// hypoDistance is the 3D distance from a hypocenter to a station at the
// surface.
func hypoDistance(x, y, depth, sx, sy float64) float64 {
	dx := x - sx
	dy := y - sy
	return math.Sqrt(dx*dx + dy*dy + depth*depth)
}
