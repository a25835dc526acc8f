// Package export writes the event catalog and pick report to CSV and plain
// text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quakeflow/quakeflow/internal/associate"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/picker"
)

// timeLayout is ISO 8601 with microseconds, matching the catalog format
// consumed by downstream tooling.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// WriteEventsCSV writes the event table.
func WriteEventsCSV(w io.Writer, events []associate.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "latitude", "longitude", "depth", "picks", "rms", "gap"}); err != nil {
		return writeErr(err)
	}
	for _, ev := range events {
		record := []string{
			ev.Time.UTC().Format(timeLayout),
			formatFloat(ev.Latitude, 6),
			formatFloat(ev.Longitude, 6),
			formatFloat(ev.Depth, 2),
			strconv.Itoa(ev.PickCount),
			formatFloat(ev.RMS, 3),
			formatFloat(ev.AzimuthalGap, 1),
		}
		if err := cw.Write(record); err != nil {
			return writeErr(err)
		}
	}
	cw.Flush()
	return writeErrIf(cw.Error())
}

// WriteAssignmentsCSV writes the pick-to-event assignment table.
func WriteAssignmentsCSV(w io.Writer, assignments []associate.Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"event", "station", "phase", "time", "residual"}); err != nil {
		return writeErr(err)
	}
	for _, as := range assignments {
		record := []string{
			as.EventID,
			as.Station,
			string(as.Phase),
			as.Time.UTC().Format(timeLayout),
			formatFloat(as.Residual, 3),
		}
		if err := cw.Write(record); err != nil {
			return writeErr(err)
		}
	}
	cw.Flush()
	return writeErrIf(cw.Error())
}

// ExportCatalog writes the event table to path and the assignment table to
// a sibling file named <base>_phases.csv.
func ExportCatalog(path string, events []associate.Event, assignments []associate.Assignment) error {
	if err := writeFile(path, func(w io.Writer) error {
		return WriteEventsCSV(w, events)
	}); err != nil {
		return err
	}
	return writeFile(PhasesPath(path), func(w io.Writer) error {
		return WriteAssignmentsCSV(w, assignments)
	})
}

// PhasesPath derives the assignment-table path from the event-table path.
func PhasesPath(eventsPath string) string {
	ext := filepath.Ext(eventsPath)
	return strings.TrimSuffix(eventsPath, ext) + "_phases" + ext
}

// WritePickReport writes the plain-text pick report, one arrival per line.
func WritePickReport(w io.Writer, picks []picker.Pick) error {
	for _, pk := range picks {
		_, err := fmt.Fprintf(w, "Time: %s, Phase: %s, Channel: %s, Probability: %.2f\n",
			pk.Time.UTC().Format(timeLayout), pk.Phase, pk.Station, pk.Probability)
		if err != nil {
			return writeErr(err)
		}
	}
	return nil
}

// MarkerMagnitude estimates a display magnitude from pick count, depth and
// RMS. This is a map-marker styling heuristic, not a calibrated magnitude,
// and is never persisted with the catalog.
func MarkerMagnitude(pickCount int, depthKm, rms float64) float64 {
	picks := math.Max(float64(pickCount), 1)
	depth := math.Max(depthKm, 1)
	m := 2.5 + 0.6*math.Log10(picks) + 0.2*math.Log10(depth/10) - 0.1*math.Min(rms, 1)
	return math.Min(8.0, math.Max(2.0, m))
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	return writeErrIf(f.Sync())
}

func writeErr(err error) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryFileIO).
		Build()
}

func writeErrIf(err error) error {
	if err == nil {
		return nil
	}
	return writeErr(err)
}

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
