package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/picker"
)

// WritePicksCSV writes picks in the table format ReadPicksCSV accepts.
func WritePicksCSV(w io.Writer, picks []picker.Pick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "phase", "station", "probability"}); err != nil {
		return writeErr(err)
	}
	for _, pk := range picks {
		record := []string{
			pk.Time.UTC().Format(timeLayout),
			string(pk.Phase),
			pk.Station,
			formatFloat(pk.Probability, 3),
		}
		if err := cw.Write(record); err != nil {
			return writeErr(err)
		}
	}
	cw.Flush()
	return writeErrIf(cw.Error())
}

// ReadPicksCSV parses a pick table with a time,phase,station,probability
// header. Timestamps are accepted with or without fractional seconds.
func ReadPicksCSV(r io.Reader) ([]picker.Pick, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, readErr(err, 1)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"time", "phase", "station", "probability"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Newf("pick table is missing column %q", required).
				Component("export").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	var picks []picker.Pick
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readErr(err, line)
		}

		ts, err := parseTime(record[col["time"]])
		if err != nil {
			return nil, readErr(err, line)
		}
		probability, err := strconv.ParseFloat(record[col["probability"]], 64)
		if err != nil {
			return nil, readErr(err, line)
		}
		phase := picker.Phase(record[col["phase"]])
		if phase != picker.PhaseP && phase != picker.PhaseS {
			return nil, errors.Newf("unknown phase %q", record[col["phase"]]).
				Component("export").
				Category(errors.CategoryValidation).
				Context("line", line).
				Build()
		}

		picks = append(picks, picker.Pick{
			Time:        ts,
			Phase:       phase,
			Station:     record[col["station"]],
			Probability: probability,
		})
	}
	return picks, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Newf("unparseable timestamp %q", s).
		Component("export").
		Category(errors.CategoryValidation).
		Build()
}

func readErr(err error, line int) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryFileIO).
		Context("line", line).
		Build()
}
