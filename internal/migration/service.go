// Package migration upgrades pre-convergent library rows into the shared
// document. The scan is idempotent and terminates exactly once per
// installation per version: every per-record failure is logged and
// swallowed, and the version marker is advanced unconditionally after the
// scan so a partially-failed migration is a recorded outcome, never a
// retry loop.
package migration

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"

	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database/blobs"
	"github.com/vrwarp/versicle/internal/database/legacy"
	"github.com/vrwarp/versicle/internal/database/manifests"
	"github.com/vrwarp/versicle/internal/database/settings"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/extraction"
	"github.com/vrwarp/versicle/internal/reconcile"
	"github.com/vrwarp/versicle/internal/sanitize"
)

var Error = errs.Class("migration")

// TargetVersion is the schema version this build migrates to.
const TargetVersion = 2

// Status is the observable state of the service.
type Status string

const (
	StatusNotMigrated Status = "not_migrated"
	StatusMigrating   Status = "migrating"
	StatusMigrated    Status = "migrated"
)

// Summary reports what one run did. Skipped and Failed records still count
// as handled: the scan covered them and will not revisit them.
type Summary struct {
	FromVersion int `json:"from_version"`
	ToVersion   int `json:"to_version"`
	Scanned     int `json:"scanned"`
	Migrated    int `json:"migrated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

type Service struct {
	settings  *settings.Repository
	legacy    *legacy.Repository
	blobs     *blobs.Repository
	manifests *manifests.Repository
	doc       *crdt.Document
	extractor extraction.Extractor

	status Status
}

func NewService(
	settingsRepo *settings.Repository,
	legacyRepo *legacy.Repository,
	blobRepo *blobs.Repository,
	manifestRepo *manifests.Repository,
	doc *crdt.Document,
	extractor extraction.Extractor,
) *Service {
	return &Service{
		settings:  settingsRepo,
		legacy:    legacyRepo,
		blobs:     blobRepo,
		manifests: manifestRepo,
		doc:       doc,
		extractor: extractor,
		status:    StatusNotMigrated,
	}
}

func (s *Service) Status() Status {
	return s.status
}

// Run executes the migration if the version marker is behind TargetVersion.
// Cancelling the context aborts between records and leaves the marker
// unmodified, so the next launch restarts the scan from scratch; re-running
// over already-migrated entities writes the same values to the same ids and
// duplicates nothing.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	version, err := s.settings.SchemaVersion()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{FromVersion: version, ToVersion: TargetVersion}
	if version >= TargetVersion {
		s.status = StatusMigrated
		return summary, nil
	}

	s.status = StatusMigrating
	log.WithFields(log.Fields{"from": version, "to": TargetVersion}).Info("migration started")

	books, err := s.legacy.All()
	if err != nil {
		return summary, err
	}

	for _, book := range books {
		if err := ctx.Err(); err != nil {
			// Aborted before the marker write: the whole scan reruns on
			// the next launch.
			return summary, Error.Wrap(err)
		}
		summary.Scanned++
		switch handled, err := s.migrateOne(ctx, book); {
		case err != nil:
			summary.Failed++
			log.WithFields(log.Fields{"book": book.BookID, "error": err}).
				Warn("legacy record failed to migrate; continuing")
		case handled:
			summary.Migrated++
		default:
			summary.Skipped++
		}
	}

	// Advanced even after per-record failures: the migration must
	// terminate into a recorded state rather than retry forever.
	if err := s.settings.SetSchemaVersion(TargetVersion); err != nil {
		return summary, err
	}
	s.status = StatusMigrated
	log.WithFields(log.Fields{
		"scanned":  summary.Scanned,
		"migrated": summary.Migrated,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("migration finished")
	return summary, nil
}

// migrateOne converts a single legacy row. handled is false when the row
// was skipped for lack of a retrievable binary.
func (s *Service) migrateOne(ctx context.Context, book entities.LegacyBook) (handled bool, err error) {
	book, err = sanitize.Legacy(book)
	if err != nil {
		return false, err
	}

	blob, err := s.blobs.Get(entities.BlobID(book.BookID, entities.BlobKindBook))
	if err != nil {
		return false, err
	}
	if blob == nil || blob.Offloaded {
		// No content to reprocess; the row stays legacy-only until the
		// binary is restored and a reprocess runs.
		log.WithField("book", book.BookID).Info("legacy record has no retrievable binary; skipping")
		return false, nil
	}

	result, err := s.extractor.Extract(ctx, blob.Data, extraction.Options{
		TitleHint:  book.Title,
		AuthorHint: book.Author,
	})
	if err != nil {
		return false, err
	}

	manifest, err := sanitize.Manifest(entities.ManifestRecord{
		BookID:        book.BookID,
		Title:         result.Manifest.Title,
		Author:        result.Manifest.Author,
		Description:   result.Manifest.Description,
		ContentHash:   blob.Fingerprint,
		ByteSize:      result.Manifest.ByteSize,
		CharCount:     result.Manifest.CharCount,
		SchemaVersion: entities.ManifestSchemaVersion,
	})
	if err != nil {
		return false, err
	}
	if err := s.manifests.Replace(manifest); err != nil {
		return false, err
	}

	item, err := sanitize.Inventory(entities.InventoryItem{
		BookID:         book.BookID,
		Title:          manifest.Title,
		Author:         manifest.Author,
		Status:         statusFor(book.Percentage),
		SourceFilename: book.SourceFilename,
		AddedAt:        book.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return false, err
	}

	progress, err := sanitize.Progress(entities.DeviceProgress{
		BookID:     book.BookID,
		DeviceID:   s.doc.Actor(),
		Percentage: book.Percentage,
		Location:   book.Location,
		LastRead:   book.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return false, err
	}

	err = s.doc.Transact(func() error {
		if err := s.doc.Set(crdt.CollectionBooks, item.BookID, item); err != nil {
			return err
		}
		key := entities.ProgressKey(progress.BookID, progress.DeviceID)
		if err := s.doc.SetValue(crdt.CollectionProgress, key, progress); err != nil {
			return err
		}
		return s.seedHistory(book)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// seedHistory turns the legacy position into a single legacy read range so
// resume resolution can serve pre-session data. An unparsable location
// seeds nothing; reconcile would refuse it anyway.
func (s *Service) seedHistory(book entities.LegacyBook) error {
	ranges := reconcile.MergeRanges(nil, entities.ReadRange{Start: book.Location, End: book.Location})
	if len(ranges) == 0 {
		return nil
	}
	entry := entities.HistoryEntry{
		BookID:      book.BookID,
		ReadRanges:  ranges,
		LastUpdated: book.UpdatedAt.UnixMilli(),
	}
	return s.doc.Set(crdt.CollectionHistory, book.BookID, entry)
}

func statusFor(percentage float64) entities.ReadingStatus {
	switch {
	case percentage >= 0.99:
		return entities.StatusFinished
	case percentage > 0:
		return entities.StatusReading
	default:
		return entities.StatusUnread
	}
}
