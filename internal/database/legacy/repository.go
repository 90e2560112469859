// Package legacy reads the pre-convergent library rows. The migration
// service is the only production consumer; seeding exists for tests and
// the demo generator.
package legacy

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

// All returns every legacy row ordered by book id so migration scans are
// deterministic across runs.
func (r *Repository) All() ([]entities.LegacyBook, error) {
	var books []entities.LegacyBook
	err := r.db.Order("book_id ASC").Find(&books).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return books, nil
}

// Count returns the number of legacy rows awaiting migration.
func (r *Repository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&entities.LegacyBook{}).Count(&n).Error
	if err != nil {
		return 0, database.Classify(err)
	}
	return n, nil
}

// Seed inserts legacy rows for tests and demo data.
func (r *Repository) Seed(books []entities.LegacyBook) error {
	for _, book := range books {
		if err := r.db.Create(&book).Error; err != nil {
			return database.Classify(err)
		}
	}
	return nil
}
