// Package store persists replay runs, fills and lifecycle events to
// PostgreSQL for offline analysis.
package store

import (
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"main/internal/sim"
)

// Run is one persisted replay episode.
type Run struct {
	ID          uint64 `gorm:"primaryKey"`
	SnapPath    string `gorm:"not null"`
	Fingerprint string
	Records     uint64
	Fills       int
	Events      int
	FinalCashQ  int64
	FinalPosQ   int64

	CreatedAt time.Time `gorm:"type:timestamptz"`
}

// Fill is one persisted trade.
type Fill struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     uint64 `gorm:"index;not null"`
	TsNs      int64
	OrderID   uint64
	Side      uint16
	PriceQ    int64
	QtyQ      int64
	Liquidity uint16
	NotionalQ int64
	FeeQ      int64
}

// Event is one persisted lifecycle transition.
type Event struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	RunID   uint64 `gorm:"index;not null"`
	TsNs    int64
	OrderID uint64
	Type    uint16
	State   uint16
	Reason  uint16
}

const insertBatchSize = 512

// RunID derives the persistence key for one episode from the snapshot
// fingerprint and the run start time, so repeated runs of the same artifact
// stay distinct.
func RunID(fingerprint string, startedAt time.Time) uint64 {
	var artifact uint64
	if len(fingerprint) >= 16 {
		if v, err := strconv.ParseUint(fingerprint[:16], 16, 64); err == nil {
			artifact = v
		}
	}
	return artifact ^ uint64(startedAt.UnixNano())
}

// Sink owns one PostgreSQL connection and writes run artifacts through it.
type Sink struct {
	db *gorm.DB
}

// Open connects to PostgreSQL with the given DSN, migrates the run tables
// and returns a sink ready for SaveRun.
func Open(dsn string) (*Sink, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:          logger.Default.LogMode(logger.Silent),
		CreateBatchSize: insertBatchSize,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Run{}, &Fill{}, &Event{}); err != nil {
		return nil, err
	}
	return &Sink{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun persists the summary row plus all fills and events of one episode.
func (s *Sink) SaveRun(run Run, fills []sim.FillEvent, events []sim.Event) error {
	run.Fills = len(fills)
	run.Events = len(events)
	run.CreatedAt = time.Now().UTC()
	if err := s.db.Create(&run).Error; err != nil {
		return err
	}

	if len(fills) > 0 {
		rows := make([]Fill, len(fills))
		for i, f := range fills {
			rows[i] = Fill{
				RunID:     run.ID,
				TsNs:      f.Ts,
				OrderID:   f.OrderID,
				Side:      uint16(f.Side),
				PriceQ:    f.PriceQ,
				QtyQ:      f.QtyQ,
				Liquidity: uint16(f.Liquidity),
				NotionalQ: f.NotionalQ,
				FeeQ:      f.FeeQ,
			}
		}
		if err := s.db.Create(&rows).Error; err != nil {
			return err
		}
	}

	if len(events) > 0 {
		rows := make([]Event, len(events))
		for i, e := range events {
			rows[i] = Event{
				RunID:   run.ID,
				TsNs:    e.Ts,
				OrderID: e.OrderID,
				Type:    uint16(e.Type),
				State:   uint16(e.State),
				Reason:  uint16(e.Reason),
			}
		}
		if err := s.db.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}
