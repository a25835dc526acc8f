// Package datastore persists the event catalog and picks to a relational
// store through gorm.
package datastore

import (
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quakeflow/quakeflow/internal/associate"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/logging"
	"github.com/quakeflow/quakeflow/internal/picker"
)

// Event is one catalog row.
type Event struct {
	ID           string `gorm:"primaryKey"`
	Time         time.Time
	Latitude     float64
	Longitude    float64
	Depth        float64
	PickCount    int
	RMS          float64
	AzimuthalGap float64
}

// Assignment links a pick to an event row.
type Assignment struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	EventID  string `gorm:"index"`
	Station  string
	Phase    string
	Time     time.Time
	Residual float64
}

// PickRecord is one detected arrival, stored independently of association.
type PickRecord struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	Time        time.Time
	Phase       string
	Station     string
	Probability float64
}

// Interface is the datastore abstraction consumed by the pipeline.
type Interface interface {
	Open() error
	Close() error
	SaveCatalog(events []associate.Event, assignments []associate.Assignment) error
	SavePicks(picks []picker.Pick) error
	GetAllEvents() ([]Event, error)
	GetEventAssignments(eventID string) ([]Assignment, error)
	GetAllPicks() ([]PickRecord, error)
}

// SQLiteStore implements Interface on a SQLite database file.
type SQLiteStore struct {
	path string
	db   *gorm.DB
	log  *slog.Logger
}

// NewSQLiteStore creates a store for the given database path. Open must be
// called before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path, log: logging.ForService("datastore")}
}

// Open connects and migrates the schema.
func (s *SQLiteStore) Open() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", s.path).
			Build()
	}
	if err := db.AutoMigrate(&Event{}, &Assignment{}, &PickRecord{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", s.path).
			Build()
	}
	s.db = db
	if s.log != nil {
		s.log.Info("datastore opened", "path", s.path)
	}
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveCatalog stores events with their assignments in one transaction, so
// a failed save leaves the previous catalog untouched.
func (s *SQLiteStore) SaveCatalog(events []associate.Event, assignments []associate.Assignment) error {
	if s.db == nil {
		return notOpen()
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, ev := range events {
			if err := tx.Create(eventRow(ev)).Error; err != nil {
				return err
			}
		}
		for _, as := range assignments {
			if err := tx.Create(assignmentRow(as)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("events", len(events)).
			Build()
	}
	return nil
}

// SavePicks stores a detection run's picks.
func (s *SQLiteStore) SavePicks(picks []picker.Pick) error {
	if s.db == nil {
		return notOpen()
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, pk := range picks {
			row := &PickRecord{
				Time:        pk.Time,
				Phase:       string(pk.Phase),
				Station:     pk.Station,
				Probability: pk.Probability,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("picks", len(picks)).
			Build()
	}
	return nil
}

// GetAllEvents returns the catalog ordered by origin time.
func (s *SQLiteStore) GetAllEvents() ([]Event, error) {
	if s.db == nil {
		return nil, notOpen()
	}
	var out []Event
	if err := s.db.Order("time").Find(&out).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return out, nil
}

// GetEventAssignments returns the assignments for one event ordered by
// arrival time.
func (s *SQLiteStore) GetEventAssignments(eventID string) ([]Assignment, error) {
	if s.db == nil {
		return nil, notOpen()
	}
	var out []Assignment
	if err := s.db.Where("event_id = ?", eventID).Order("time").Find(&out).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("event_id", eventID).
			Build()
	}
	return out, nil
}

// GetAllPicks returns the stored picks ordered by arrival time.
func (s *SQLiteStore) GetAllPicks() ([]PickRecord, error) {
	if s.db == nil {
		return nil, notOpen()
	}
	var out []PickRecord
	if err := s.db.Order("time").Find(&out).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return out, nil
}

func eventRow(ev associate.Event) *Event {
	return &Event{
		ID:           ev.ID,
		Time:         ev.Time,
		Latitude:     ev.Latitude,
		Longitude:    ev.Longitude,
		Depth:        ev.Depth,
		PickCount:    ev.PickCount,
		RMS:          ev.RMS,
		AzimuthalGap: ev.AzimuthalGap,
	}
}

func assignmentRow(as associate.Assignment) *Assignment {
	return &Assignment{
		EventID:  as.EventID,
		Station:  as.Station,
		Phase:    string(as.Phase),
		Time:     as.Time,
		Residual: as.Residual,
	}
}

func notOpen() error {
	return errors.Newf("datastore is not open").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}
