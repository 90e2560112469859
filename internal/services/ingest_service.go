package services

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/database/blobs"
	"github.com/vrwarp/versicle/internal/database/manifests"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/extraction"
	"github.com/vrwarp/versicle/internal/sanitize"
)

// IngestInput is one file handed over by the ingestion collaborator.
type IngestInput struct {
	Filename string
	Content  []byte
	Cover    []byte
}

// IngestResult reports one file's outcome in a batch import.
type IngestResult struct {
	Filename string `json:"filename"`
	BookID   string `json:"book_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IngestService turns incoming files into library entries: extraction, one
// store transaction for the binary side, one document transaction for the
// replicated side.
type IngestService struct {
	db        *database.Database
	manifests *manifests.Repository
	blobs     *blobs.Repository
	doc       *crdt.Document
	extractor extraction.Extractor
	nowMs     func() int64
}

func NewIngestService(
	db *database.Database,
	manifestRepo *manifests.Repository,
	blobRepo *blobs.Repository,
	doc *crdt.Document,
	extractor extraction.Extractor,
	nowMs func() int64,
) *IngestService {
	return &IngestService{
		db:        db,
		manifests: manifestRepo,
		blobs:     blobRepo,
		doc:       doc,
		extractor: extractor,
		nowMs:     nowMs,
	}
}

// Ingest processes one file: mint a book id, extract, persist manifest and
// blobs atomically, then publish the inventory item and a zeroed progress
// entry for this device.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (string, error) {
	result, err := s.extractor.Extract(ctx, input.Content, extraction.Options{
		TitleHint: titleFromFilename(input.Filename),
	})
	if err != nil {
		return "", err
	}

	bookID := uuid.NewString()
	manifest, err := sanitize.Manifest(entities.ManifestRecord{
		BookID:        bookID,
		Title:         result.Manifest.Title,
		Author:        result.Manifest.Author,
		Description:   result.Manifest.Description,
		ContentHash:   blobs.Fingerprint(input.Content),
		ByteSize:      result.Manifest.ByteSize,
		CharCount:     result.Manifest.CharCount,
		SchemaVersion: entities.ManifestSchemaVersion,
	})
	if err != nil {
		return "", err
	}
	if len(input.Cover) > 0 {
		manifest.CoverID = entities.BlobID(bookID, entities.BlobKindCover)
	}

	err = s.db.WriteTx(func(tx *gorm.DB) error {
		if err := s.manifests.WithTx(tx).Replace(manifest); err != nil {
			return err
		}
		if err := s.blobs.WithTx(tx).Put(bookID, entities.BlobKindBook, input.Content); err != nil {
			return err
		}
		if len(input.Cover) > 0 {
			return s.blobs.WithTx(tx).Put(bookID, entities.BlobKindCover, input.Cover)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	now := s.nowMs()
	item, err := sanitize.Inventory(entities.InventoryItem{
		BookID:          bookID,
		Title:           manifest.Title,
		Author:          manifest.Author,
		Status:          entities.StatusUnread,
		SourceFilename:  input.Filename,
		AddedAt:         now,
		LastInteraction: now,
	})
	if err != nil {
		return "", err
	}
	progress := entities.DeviceProgress{
		BookID:   bookID,
		DeviceID: s.doc.Actor(),
	}

	err = s.doc.Transact(func() error {
		if err := s.doc.Set(crdt.CollectionBooks, bookID, item); err != nil {
			return err
		}
		key := entities.ProgressKey(bookID, progress.DeviceID)
		return s.doc.SetValue(crdt.CollectionProgress, key, progress)
	})
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"book": bookID, "title": manifest.Title}).Info("book ingested")
	return bookID, nil
}

// IngestBatch imports several files, catching each file's failure so one
// bad file never aborts the rest of the batch.
func (s *IngestService) IngestBatch(ctx context.Context, inputs []IngestInput) []IngestResult {
	results := make([]IngestResult, 0, len(inputs))
	for _, input := range inputs {
		res := IngestResult{Filename: input.Filename}
		bookID, err := s.Ingest(ctx, input)
		if err != nil {
			res.Error = err.Error()
			log.WithFields(log.Fields{"filename": input.Filename, "error": err}).
				Warn("file failed to import; continuing batch")
		} else {
			res.BookID = bookID
		}
		results = append(results, res)
	}
	return results
}

func titleFromFilename(name string) string {
	base := name
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	return base
}
