package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/database/blobs"
	"github.com/vrwarp/versicle/internal/database/manifests"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/extraction"
	"github.com/vrwarp/versicle/internal/sanitize"
)

// ReprocessBookTask re-runs extraction over a stored book binary and swaps
// its manifest wholesale, stamping the current schema version. Enqueued by
// the reprocess endpoint and after restores of books whose manifests carry
// an old version.
type ReprocessBookTask struct {
	BookID string `json:"book_id"`
}

// Config returns the queue configuration for reprocess tasks.
func (t ReprocessBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reprocess_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ReprocessBookProcessor creates the processor for ReprocessBookTask.
func ReprocessBookProcessor(db *database.Database, extractor extraction.Extractor) backlite.QueueProcessor[ReprocessBookTask] {
	blobRepo := blobs.NewRepository(db.DB)
	manifestRepo := manifests.NewRepository(db.DB)

	return func(ctx context.Context, task ReprocessBookTask) error {
		blob, err := blobRepo.Get(entities.BlobID(task.BookID, entities.BlobKindBook))
		if err != nil {
			return err
		}
		if blob == nil || blob.Offloaded {
			// Nothing to reprocess without content; not a failure.
			log.WithField("book", task.BookID).Info("reprocess skipped: no retrievable binary")
			return nil
		}

		previous, err := manifestRepo.Get(task.BookID)
		if err != nil {
			return err
		}

		opts := extraction.Options{}
		if previous != nil {
			opts.TitleHint = previous.Title
			opts.AuthorHint = previous.Author
		}
		result, err := extractor.Extract(ctx, blob.Data, opts)
		if err != nil {
			return err
		}

		rec := entities.ManifestRecord{
			BookID:        task.BookID,
			Title:         result.Manifest.Title,
			Author:        result.Manifest.Author,
			Description:   result.Manifest.Description,
			ContentHash:   blob.Fingerprint,
			ByteSize:      result.Manifest.ByteSize,
			CharCount:     result.Manifest.CharCount,
			SchemaVersion: entities.ManifestSchemaVersion,
		}
		if previous != nil {
			// The cover is independent of text extraction; a swap keeps it.
			rec.CoverID = previous.CoverID
		}
		manifest, err := sanitize.Manifest(rec)
		if err != nil {
			return err
		}

		err = db.WriteTx(func(tx *gorm.DB) error {
			return manifestRepo.WithTx(tx).Replace(manifest)
		})
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"book":           task.BookID,
			"schema_version": manifest.SchemaVersion,
		}).Info("book reprocessed")
		return nil
	}
}

// NewReprocessBookQueue creates the backlite queue for reprocess tasks.
func NewReprocessBookQueue(db *database.Database, extractor extraction.Extractor) backlite.Queue {
	return backlite.NewQueue(ReprocessBookProcessor(db, extractor))
}
