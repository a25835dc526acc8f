package station

import (
	"encoding/csv"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// LoadInventory reads a station inventory file, dispatching on the file
// extension: .csv for tabular inventories, .xml for FDSN StationXML.
func LoadInventory(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("station").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(file)
	case ".xml", ".stationxml":
		return ReadStationXML(file)
	default:
		return nil, errors.Newf("unsupported inventory format %q", filepath.Ext(path)).
			Component("station").
			Category(errors.CategoryValidation).
			Build()
	}
}

// ReadCSV parses a tabular inventory with the columns network, station,
// latitude, longitude, elevation (header required, order free).
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New(err).
			Component("station").
			Category(errors.CategoryFileIO).
			Build()
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"network", "station", "latitude", "longitude", "elevation"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Newf("inventory CSV is missing column %q", required).
				Component("station").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	var stations []Station
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(err).
				Component("station").
				Category(errors.CategoryFileIO).
				Build()
		}

		s := Station{
			Network: strings.TrimSpace(record[col["network"]]),
			Code:    strings.TrimSpace(record[col["station"]]),
		}
		s.ID = s.Network + "." + s.Code
		if s.Latitude, err = strconv.ParseFloat(record[col["latitude"]], 64); err != nil {
			return nil, badField(s.ID, "latitude", err)
		}
		if s.Longitude, err = strconv.ParseFloat(record[col["longitude"]], 64); err != nil {
			return nil, badField(s.ID, "longitude", err)
		}
		if s.Elevation, err = strconv.ParseFloat(record[col["elevation"]], 64); err != nil {
			return nil, badField(s.ID, "elevation", err)
		}
		if err := validate(&s); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	if len(stations) == 0 {
		return nil, errors.Newf("inventory contains no stations").
			Component("station").
			Category(errors.CategoryValidation).
			Build()
	}
	return NewTable(stations), nil
}

func badField(id, field string, err error) error {
	return errors.New(err).
		Component("station").
		Category(errors.CategoryValidation).
		Context("station", id).
		Context("field", field).
		Build()
}

// stationXML mirrors the subset of FDSN StationXML the pipeline needs.
type stationXML struct {
	XMLName  xml.Name `xml:"FDSNStationXML"`
	Networks []struct {
		Code     string `xml:"code,attr"`
		Stations []struct {
			Code      string  `xml:"code,attr"`
			Latitude  float64 `xml:"Latitude"`
			Longitude float64 `xml:"Longitude"`
			Elevation float64 `xml:"Elevation"`
		} `xml:"Station"`
	} `xml:"Network"`
}

// ReadStationXML parses an FDSN StationXML document into a station table.
func ReadStationXML(r io.Reader) (*Table, error) {
	var doc stationXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.New(err).
			Component("station").
			Category(errors.CategoryFileIO).
			Build()
	}

	var stations []Station
	for _, network := range doc.Networks {
		for _, st := range network.Stations {
			s := Station{
				Network:   network.Code,
				Code:      st.Code,
				ID:        network.Code + "." + st.Code,
				Latitude:  st.Latitude,
				Longitude: st.Longitude,
				Elevation: st.Elevation,
			}
			if err := validate(&s); err != nil {
				return nil, err
			}
			stations = append(stations, s)
		}
	}

	if len(stations) == 0 {
		return nil, errors.Newf("StationXML document contains no stations").
			Component("station").
			Category(errors.CategoryValidation).
			Build()
	}
	return NewTable(stations), nil
}
