package associate

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quakeflow/quakeflow/internal/picker"
)

// Grid resolution for the coarse hypocenter search. Each refinement level
// halves the node spacing around the best coarse node.
const (
	horizontalNodes  = 12
	depthNodes       = 8
	refinementLevels = 3
)

// node is one candidate hypocenter in local coordinates.
type node struct {
	x, y, depth float64
}

// searchSpace bounds the hypocenter grid in local kilometers.
type searchSpace struct {
	minX, maxX         float64
	minY, maxY         float64
	minDepth, maxDepth float64
}

func (s searchSpace) nodes() []node {
	dx := (s.maxX - s.minX) / horizontalNodes
	dy := (s.maxY - s.minY) / horizontalNodes
	dz := (s.maxDepth - s.minDepth) / depthNodes
	out := make([]node, 0, (horizontalNodes+1)*(horizontalNodes+1)*(depthNodes+1))
	for i := 0; i <= horizontalNodes; i++ {
		for j := 0; j <= horizontalNodes; j++ {
			for k := 0; k <= depthNodes; k++ {
				out = append(out, node{
					x:     s.minX + float64(i)*dx,
					y:     s.minY + float64(j)*dy,
					depth: s.minDepth + float64(k)*dz,
				})
			}
		}
	}
	return out
}

// neighborhood returns the 3x3x3 grid around center with the given spacing,
// clamped to the search space.
func (s searchSpace) neighborhood(center node, hx, hy, hz float64) []node {
	clamp := func(v, lo, hi float64) float64 {
		return math.Min(hi, math.Max(lo, v))
	}
	out := make([]node, 0, 27)
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				out = append(out, node{
					x:     clamp(center.x+float64(i)*hx, s.minX, s.maxX),
					y:     clamp(center.y+float64(j)*hy, s.minY, s.maxY),
					depth: clamp(center.depth+float64(k)*hz, s.minDepth, s.maxDepth),
				})
			}
		}
	}
	return out
}

// match is one observation explained by a candidate origin.
type match struct {
	index    int // into the observation slice
	residual float64
}

// origin is a scored candidate hypocenter plus origin time.
type origin struct {
	node    node
	time    time.Time
	matches []match
	rms     float64
}

// cluster runs the sequential grid search: the earliest unassociated pick
// nucleates a candidate origin, the best-fitting node over the whole grid
// is refined, and the candidate is kept only if it clears the pick-count
// gates. Matched picks leave the pool; a seed that fails to nucleate stays
// matchable by later seeds.
func (a *Associator) cluster(obs []observation) ([]Event, []Assignment) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].pick.Time.Before(obs[j].pick.Time)
	})

	space := a.space
	coarse := space.nodes()
	used := make([]bool, len(obs))

	var events []Event
	var assignments []Assignment

	for seed := range obs {
		if used[seed] {
			continue
		}

		best := a.bestOrigin(obs, used, seed, coarse)
		if best == nil {
			continue
		}

		// Refine around the winning coarse node with shrinking spacing.
		hx := (space.maxX - space.minX) / horizontalNodes
		hy := (space.maxY - space.minY) / horizontalNodes
		hz := (space.maxDepth - space.minDepth) / depthNodes
		for level := 0; level < refinementLevels; level++ {
			hx, hy, hz = hx/2, hy/2, hz/2
			if refined := a.bestOrigin(obs, used, seed, space.neighborhood(best.node, hx, hy, hz)); refined != nil {
				if betterOrigin(refined, best) {
					best = refined
				}
			}
		}

		if !a.passesGates(obs, best) {
			continue
		}

		event, eventAssignments := a.buildEvent(obs, best)
		for _, m := range best.matches {
			used[m.index] = true
		}
		events = append(events, event)
		assignments = append(assignments, eventAssignments...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	return events, assignments
}

// bestOrigin evaluates every candidate node with the seed pick fixing the
// origin time and returns the best-scoring origin, or nil when no node
// explains the seed at all.
func (a *Associator) bestOrigin(obs []observation, used []bool, seed int, nodes []node) *origin {
	var best *origin
	for _, nd := range nodes {
		seedDist := hypoDistance(nd.x, nd.y, nd.depth, obs[seed].x, obs[seed].y)
		if seedDist > a.model.cutoff {
			continue
		}
		seedTravel := a.model.travel(seedDist, obs[seed].pick.Phase)
		if seedTravel > a.timeBefore {
			continue
		}
		t0 := obs[seed].pick.Time.Add(-secondsToDuration(seedTravel))

		cand := a.scoreOrigin(obs, used, nd, t0)
		if cand == nil {
			continue
		}
		if best == nil || betterOrigin(cand, best) {
			best = cand
		}
	}
	return best
}

// scoreOrigin collects the unassociated picks a candidate origin explains
// within the travel-time tolerance and distance cutoff.
func (a *Associator) scoreOrigin(obs []observation, used []bool, nd node, t0 time.Time) *origin {
	var matches []match
	var sumSq float64
	for i := range obs {
		if used[i] {
			continue
		}
		dist := hypoDistance(nd.x, nd.y, nd.depth, obs[i].x, obs[i].y)
		if dist > a.model.cutoff {
			continue
		}
		predicted := t0.Add(secondsToDuration(a.model.travel(dist, obs[i].pick.Phase)))
		residual := obs[i].pick.Time.Sub(predicted).Seconds()
		if math.Abs(residual) > a.model.tolerance {
			continue
		}
		matches = append(matches, match{index: i, residual: residual})
		sumSq += residual * residual
	}
	if len(matches) == 0 {
		return nil
	}
	return &origin{
		node:    nd,
		time:    t0,
		matches: matches,
		rms:     math.Sqrt(sumSq / float64(len(matches))),
	}
}

// betterOrigin prefers more matched picks, then a lower RMS.
func betterOrigin(a, b *origin) bool {
	if len(a.matches) != len(b.matches) {
		return len(a.matches) > len(b.matches)
	}
	return a.rms < b.rms
}

// passesGates applies the minimum pick-count constraints. The combined gate
// counts stations contributing both a P and an S pick.
func (a *Associator) passesGates(obs []observation, o *origin) bool {
	if len(o.matches) < a.settings.MinPicks {
		return false
	}
	type phases struct{ p, s bool }
	byStation := make(map[string]*phases)
	for _, m := range o.matches {
		pk := obs[m.index].pick
		ph, ok := byStation[pk.Station]
		if !ok {
			ph = &phases{}
			byStation[pk.Station] = ph
		}
		switch pk.Phase {
		case picker.PhaseP:
			ph.p = true
		case picker.PhaseS:
			ph.s = true
		}
	}
	both := 0
	for _, ph := range byStation {
		if ph.p && ph.s {
			both++
		}
	}
	return both >= a.settings.MinPAndSPicks
}

// buildEvent recenters the origin time on the mean pick misfit, recomputes
// residuals against it, and derives the quality metrics.
func (a *Associator) buildEvent(obs []observation, o *origin) (Event, []Assignment) {
	var meanShift float64
	for _, m := range o.matches {
		meanShift += m.residual
	}
	meanShift /= float64(len(o.matches))
	originTime := o.time.Add(secondsToDuration(meanShift))

	event := Event{
		ID:        uuid.New().String(),
		Time:      originTime,
		Depth:     o.node.depth,
		X:         o.node.x,
		Y:         o.node.y,
		PickCount: len(o.matches),
	}

	assignments := make([]Assignment, 0, len(o.matches))
	var sumSq float64
	for _, m := range o.matches {
		residual := m.residual - meanShift
		sumSq += residual * residual
		pk := obs[m.index].pick
		assignments = append(assignments, Assignment{
			EventID:  event.ID,
			Station:  pk.Station,
			Phase:    pk.Phase,
			Time:     pk.Time,
			Residual: residual,
		})
	}
	event.RMS = math.Sqrt(sumSq / float64(len(o.matches)))
	event.AzimuthalGap = azimuthalGap(obs, o)
	return event, assignments
}

// azimuthalGap is the largest angular gap between contributing stations as
// seen from the epicenter. Fewer than two distinct stations leave the full
// circle uncovered.
func azimuthalGap(obs []observation, o *origin) float64 {
	seen := make(map[string]bool)
	var azimuths []float64
	for _, m := range o.matches {
		ob := obs[m.index]
		if seen[ob.pick.Station] {
			continue
		}
		seen[ob.pick.Station] = true
		az := math.Atan2(ob.x-o.node.x, ob.y-o.node.y) * 180 / math.Pi
		if az < 0 {
			az += 360
		}
		azimuths = append(azimuths, az)
	}
	if len(azimuths) < 2 {
		return 360
	}
	sort.Float64s(azimuths)
	gap := azimuths[0] + 360 - azimuths[len(azimuths)-1]
	for i := 1; i < len(azimuths); i++ {
		if g := azimuths[i] - azimuths[i-1]; g > gap {
			gap = g
		}
	}
	return gap
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
