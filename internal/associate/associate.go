package associate

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/quakeflow/quakeflow/internal/associate/geo"
	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/logging"
	"github.com/quakeflow/quakeflow/internal/picker"
	"github.com/quakeflow/quakeflow/internal/station"
	"github.com/quakeflow/quakeflow/internal/worker"
)

// Associator groups picks into events. It is configured once for a region
// and station table; every run is a pure function of the picks passed in.
type Associator struct {
	settings   *conf.AssociatorSettings
	table      *station.Table
	projection *geo.Projection
	model      velocityModel
	space      searchSpace
	timeBefore float64
	log        *slog.Logger
}

// NewAssociator configures an associator for the region and station table.
// A configuration failure here leaves association unavailable; the rest of
// the application keeps running.
func NewAssociator(settings *conf.AssociatorSettings, table *station.Table) (*Associator, error) {
	projection, err := geo.NewProjection(&settings.Region)
	if err != nil {
		return nil, err
	}

	vm := &settings.VelocityModel
	if vm.SVelocity <= 0 || vm.PVelocity <= vm.SVelocity {
		return nil, errors.Newf("velocity model requires Vp > Vs > 0").
			Component("associate").
			Category(errors.CategoryConfiguration).
			Context("p_velocity", vm.PVelocity).
			Context("s_velocity", vm.SVelocity).
			Build()
	}
	if vm.Tolerance <= 0 || vm.CutoffDistance <= 0 {
		return nil, errors.Newf("tolerance and cutoff distance must be positive").
			Component("associate").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// The search space is the projected region bounding box. The linear
	// projection maps corners to corners.
	minX, minY := projection.Forward(settings.Region.MinLatitude, settings.Region.MinLongitude)
	maxX, maxY := projection.Forward(settings.Region.MaxLatitude, settings.Region.MaxLongitude)

	timeBefore := settings.TimeBefore
	if timeBefore <= 0 {
		timeBefore = math.Inf(1)
	}

	return &Associator{
		settings:   settings,
		table:      table,
		projection: projection,
		model: velocityModel{
			vp:        vm.PVelocity,
			vs:        vm.SVelocity,
			tolerance: vm.Tolerance,
			cutoff:    vm.CutoffDistance,
		},
		space: searchSpace{
			minX: minX, maxX: maxX,
			minY: minY, maxY: maxY,
			minDepth: settings.Region.MinDepth,
			maxDepth: settings.Region.MaxDepth,
		},
		timeBefore: timeBefore,
		log:        logging.ForService("event-associator"),
	}, nil
}

// Projection exposes the region projection so presentation layers can
// localize coordinates without re-deriving it.
func (a *Associator) Projection() *geo.Projection {
	return a.projection
}

// filter projects the picks whose station is known and collects the ids of
// the excluded ones for diagnostics.
func (a *Associator) filter(picks []picker.Pick) ([]observation, []string) {
	var obs []observation
	excluded := make(map[string]bool)
	for _, pk := range picks {
		st, ok := a.table.Get(pk.Station)
		if !ok {
			excluded[pk.Station] = true
			continue
		}
		x, y := a.projection.Forward(st.Latitude, st.Longitude)
		obs = append(obs, observation{pick: pk, x: x, y: y})
	}

	ids := make([]string, 0, len(excluded))
	for id := range excluded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return obs, ids
}

// transformEvents converts clustered events from local kilometers back to
// geographic degrees, in place.
func (a *Associator) transformEvents(events []Event) {
	for i := range events {
		events[i].Latitude, events[i].Longitude = a.projection.Inverse(events[i].X, events[i].Y)
	}
}

// Associate runs the full association synchronously. It fails when no pick
// survives the station filter, since clustering has nothing to work with.
func (a *Associator) Associate(picks []picker.Pick) (*Result, error) {
	obs, excluded := a.filter(picks)
	if len(obs) == 0 {
		return nil, errors.Newf("no picks with known stations to associate").
			Component("associate").
			Category(errors.CategoryAssociation).
			Context("input_picks", len(picks)).
			Context("excluded_stations", len(excluded)).
			Build()
	}

	events, assignments := a.cluster(obs)
	a.transformEvents(events)
	return &Result{Events: events, Assignments: assignments, Excluded: excluded}, nil
}

// Task returns the background task running association with coarse progress
// milestones. The payload of the success notification is a *Result.
func (a *Associator) Task(picks []picker.Pick) worker.Task {
	return func(ctx context.Context, n *worker.Notifier) (any, error) {
		n.Status("Preparing association...")
		n.Progress(10)

		obs, excluded := a.filter(picks)
		n.Progress(20)
		if len(excluded) > 0 {
			n.Statusf("Excluded %d picks from unknown stations", len(picks)-len(obs))
			if a.log != nil {
				a.log.Warn("picks excluded from association",
					"stations", excluded)
			}
		}
		if len(obs) == 0 {
			return nil, errors.Newf("no picks with known stations to associate").
				Component("associate").
				Category(errors.CategoryAssociation).
				Context("input_picks", len(picks)).
				Build()
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n.Status("Associating picks into events...")
		n.Progress(30)
		events, assignments := a.cluster(obs)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n.Status("Transforming event coordinates...")
		n.Progress(80)
		a.transformEvents(events)

		n.Progress(100)
		n.Statusf("Association finished: %d events from %d picks", len(events), len(obs))
		if a.log != nil {
			a.log.Info("association finished",
				"events", len(events),
				"assignments", len(assignments),
				"picks", len(obs))
		}
		return &Result{Events: events, Assignments: assignments, Excluded: excluded}, nil
	}
}
