package database

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vrwarp/versicle/internal/entities"
)

// Error taxonomy for the local store. Quota exhaustion is user-actionable
// and gets its own class; everything else the engine throws is wrapped as
// ErrDatabase with the cause attached.
var (
	ErrStorageFull = errs.Class("storage full")
	ErrDatabase    = errs.Class("database")
)

// Database is the local transactional store: a single SQLite file holding
// binaries, manifests, legacy rows, the replication log and settings.
// Transactions opened through WriteTx are the only atomicity boundary in
// the process.
type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, ErrDatabase.Wrap(err)
	}

	err = db.AutoMigrate(
		&entities.ManifestRecord{},
		&entities.BlobRecord{},
		&entities.LegacyBook{},
		&entities.UpdateRecord{},
		&entities.CheckpointRecord{},
		&entities.Setting{},
	)
	if err != nil {
		return nil, Classify(err)
	}

	log.WithField("path", dbPath).Info("database initialized")

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ErrDatabase.Wrap(err)
	}
	return sqlDB.Close()
}

// WriteTx runs fn inside one transaction. Every write fn performs through
// the passed handle commits atomically or not at all; fn returning an error
// rolls everything back. The returned error is already classified.
func (d *Database) WriteTx(fn func(tx *gorm.DB) error) error {
	err := d.DB.Transaction(fn)
	if err != nil {
		return Classify(err)
	}
	return nil
}

// ReadTx is WriteTx for read-mostly closures; SQLite gives the same
// snapshot guarantees either way, the separate name is for call sites.
func (d *Database) ReadTx(fn func(tx *gorm.DB) error) error {
	return d.WriteTx(fn)
}

// Classify maps an engine error into the store taxonomy. Errors already
// carrying a class pass through unchanged, so repositories can classify at
// the point of failure without double wrapping.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if ErrStorageFull.Has(err) || ErrDatabase.Has(err) {
		return err
	}
	if isFull(err) {
		return ErrStorageFull.Wrap(err)
	}
	return ErrDatabase.Wrap(err)
}

func isFull(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.Code == sqlite3.ErrFull {
			return true
		}
		// Extended disk-full I/O failures report under ErrIoErr.
		if se.Code == sqlite3.ErrIoErr && strings.Contains(se.Error(), "disk is full") {
			return true
		}
	}
	return strings.Contains(err.Error(), "database or disk is full")
}

// IsNotFound reports whether err is gorm's missing-record sentinel.
// Repositories translate it to an absent result instead of an error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
