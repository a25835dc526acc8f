package associate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/picker"
	"github.com/quakeflow/quakeflow/internal/station"
	"github.com/quakeflow/quakeflow/internal/worker"
)

var origin0 = time.Date(2014, 4, 1, 23, 46, 47, 0, time.UTC)

func testSettings() *conf.AssociatorSettings {
	return &conf.AssociatorSettings{
		Region: conf.RegionSettings{
			MinLatitude: -1, MaxLatitude: 1,
			MinLongitude: -1, MaxLongitude: 1,
			MinDepth: 0, MaxDepth: 50,
		},
		VelocityModel: conf.VelocityModelSettings{
			PVelocity: 7.0, SVelocity: 4.0,
			Tolerance: 2.0, CutoffDistance: 250,
		},
		MinPicks:      6,
		MinPAndSPicks: 3,
		TimeBefore:    300,
	}
}

// A cross of four stations around the region center.
func crossStations() *station.Table {
	return station.NewTable([]station.Station{
		{Network: "CX", Code: "PB01", Latitude: 0.5, Longitude: 0},
		{Network: "CX", Code: "PB02", Latitude: -0.5, Longitude: 0},
		{Network: "CX", Code: "PB03", Latitude: 0, Longitude: 0.5},
		{Network: "CX", Code: "PB04", Latitude: 0, Longitude: -0.5},
	})
}

// syntheticPicks generates exact P and S arrivals at every station for an
// event at the region center at the given depth.
func syntheticPicks(t *testing.T, a *Associator, depth float64) []picker.Pick {
	t.Helper()
	var picks []picker.Pick
	for _, st := range a.table.All() {
		x, y := a.projection.Forward(st.Latitude, st.Longitude)
		dist := hypoDistance(0, 0, depth, x, y)
		for _, phase := range []picker.Phase{picker.PhaseP, picker.PhaseS} {
			picks = append(picks, picker.Pick{
				Time:        origin0.Add(secondsToDuration(a.model.travel(dist, phase))),
				Phase:       phase,
				Station:     st.ID,
				Probability: 0.9,
			})
		}
	}
	return picks
}

func runTask(t *testing.T, task worker.Task) []worker.Notification {
	t.Helper()
	n := worker.NewNotifier()
	worker.Run(context.Background(), n, task)

	var out []worker.Notification
	timeout := time.After(10 * time.Second)
	for {
		select {
		case notification, ok := <-n.Events():
			if !ok {
				return out
			}
			out = append(out, notification)
		case <-timeout:
			t.Fatal("timed out waiting for association task")
		}
	}
}

func TestAssociate_RecoversSyntheticEvent(t *testing.T) {
	a, err := NewAssociator(testSettings(), crossStations())
	require.NoError(t, err)

	// Depth 25 km sits exactly on a search node, so the exact-arrival
	// picks should be explained with near-zero residuals.
	picks := syntheticPicks(t, a, 25)
	result, err := a.Associate(picks)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	event := result.Events[0]
	assert.Equal(t, 8, event.PickCount)
	assert.InDelta(t, 0, event.Latitude, 1e-3)
	assert.InDelta(t, 0, event.Longitude, 1e-3)
	assert.InDelta(t, 25, event.Depth, 1.0)
	assert.InDelta(t, 0, event.RMS, 0.01)
	assert.InDelta(t, 90, event.AzimuthalGap, 1.0)
	assert.WithinDuration(t, origin0, event.Time, 50*time.Millisecond)
	assert.NotEmpty(t, event.ID)

	require.Len(t, result.Assignments, 8)
	for _, as := range result.Assignments {
		assert.Equal(t, event.ID, as.EventID)
		assert.InDelta(t, 0, as.Residual, 0.05)
	}
	assert.Empty(t, result.Excluded)
}

func TestAssociate_ExcludesUnknownStationPick(t *testing.T) {
	a, err := NewAssociator(testSettings(), crossStations())
	require.NoError(t, err)

	picks := syntheticPicks(t, a, 25)
	picks = append(picks, picker.Pick{
		Time:    origin0.Add(10 * time.Second),
		Phase:   picker.PhaseP,
		Station: "XX.UNKN",
	})

	result, err := a.Associate(picks)
	require.NoError(t, err)
	assert.Equal(t, []string{"XX.UNKN"}, result.Excluded)

	require.Len(t, result.Events, 1)
	for _, as := range result.Assignments {
		assert.NotEqual(t, "XX.UNKN", as.Station)
	}
}

func TestAssociate_MinPickGateHoldsBackSmallClusters(t *testing.T) {
	settings := testSettings()
	settings.MinPicks = 9 // more than the 8 synthetic picks
	a, err := NewAssociator(settings, crossStations())
	require.NoError(t, err)

	result, err := a.Associate(syntheticPicks(t, a, 25))
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Empty(t, result.Assignments)
}

func TestAssociate_PAndSGateRequiresBothPhases(t *testing.T) {
	settings := testSettings()
	settings.MinPicks = 3
	settings.MinPAndSPicks = 1
	a, err := NewAssociator(settings, crossStations())
	require.NoError(t, err)

	// Keep only the P arrivals; no station contributes both phases.
	var pOnly []picker.Pick
	for _, pk := range syntheticPicks(t, a, 25) {
		if pk.Phase == picker.PhaseP {
			pOnly = append(pOnly, pk)
		}
	}

	result, err := a.Associate(pOnly)
	require.NoError(t, err)
	assert.Empty(t, result.Events)
}

func TestAssociate_FailsWhenNothingSurvivesFiltering(t *testing.T) {
	a, err := NewAssociator(testSettings(), crossStations())
	require.NoError(t, err)

	picks := []picker.Pick{
		{Time: origin0, Phase: picker.PhaseP, Station: "XX.AAAA"},
		{Time: origin0, Phase: picker.PhaseS, Station: "XX.BBBB"},
	}
	_, err = a.Associate(picks)
	assert.Error(t, err)

	got := runTask(t, a.Task(picks))
	require.NotEmpty(t, got)
	assert.Equal(t, worker.KindFailure, got[len(got)-1].Kind)
}

func TestAssociateTask_MilestonesAndPayload(t *testing.T) {
	a, err := NewAssociator(testSettings(), crossStations())
	require.NoError(t, err)

	got := runTask(t, a.Task(syntheticPicks(t, a, 25)))
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	require.Equal(t, worker.KindSuccess, last.Kind, "message: %s", last.Message)
	result, ok := last.Payload.(*Result)
	require.True(t, ok)
	assert.Len(t, result.Events, 1)

	var milestones []int
	for _, notification := range got {
		if notification.Kind == worker.KindProgress {
			milestones = append(milestones, notification.Progress)
		}
	}
	assert.Equal(t, []int{10, 20, 30, 80, 100}, milestones)
}

func TestNewAssociator_RejectsBadVelocityModel(t *testing.T) {
	settings := testSettings()
	settings.VelocityModel.SVelocity = 8.0 // above Vp
	_, err := NewAssociator(settings, crossStations())
	assert.Error(t, err)
}
