// Package manifests stores the immutable per-book content manifests.
package manifests

import (
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Get returns the manifest for a book, or nil when none exists.
func (r *Repository) Get(bookID string) (*entities.ManifestRecord, error) {
	var rec entities.ManifestRecord
	err := r.db.Where("book_id = ?", bookID).First(&rec).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &rec, nil
}

// GetMany returns the manifests found for the given ids, keyed by book id.
// Missing ids are simply absent from the result.
func (r *Repository) GetMany(bookIDs []string) (map[string]entities.ManifestRecord, error) {
	var recs []entities.ManifestRecord
	err := r.db.Where("book_id IN ?", bookIDs).Find(&recs).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	out := make(map[string]entities.ManifestRecord, len(recs))
	for _, rec := range recs {
		out[rec.BookID] = rec
	}
	return out, nil
}

// Replace swaps a book's manifest wholesale. Manifests are immutable:
// re-ingestion and reprocessing delete the old row and insert the new one
// in a single statement pair, never patching fields in place.
func (r *Repository) Replace(rec entities.ManifestRecord) error {
	err := r.db.Where("book_id = ?", rec.BookID).Delete(&entities.ManifestRecord{}).Error
	if err != nil {
		return database.Classify(err)
	}
	return database.Classify(r.db.Create(&rec).Error)
}

// Delete removes a book's manifest.
func (r *Repository) Delete(bookID string) error {
	return database.Classify(r.db.Where("book_id = ?", bookID).Delete(&entities.ManifestRecord{}).Error)
}
