package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/entities"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	dbPath := filepath.Join(t.TempDir(), "store.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func TestWriteTx_CommitsAllTables(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.WriteTx(func(tx *gorm.DB) error {
		if err := tx.Create(&entities.ManifestRecord{BookID: "book-1", Title: "One"}).Error; err != nil {
			return err
		}
		return tx.Create(&entities.BlobRecord{
			ID:     entities.BlobID("book-1", entities.BlobKindBook),
			BookID: "book-1",
			Kind:   entities.BlobKindBook,
			Data:   []byte("content"),
		}).Error
	})
	require.NoError(t, err)

	var manifests, blobs int64
	require.NoError(t, db.DB.Model(&entities.ManifestRecord{}).Count(&manifests).Error)
	require.NoError(t, db.DB.Model(&entities.BlobRecord{}).Count(&blobs).Error)
	assert.Equal(t, int64(1), manifests)
	assert.Equal(t, int64(1), blobs)
}

func TestWriteTx_RollsBackOnError(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	boom := errs.New("mid-transaction failure")
	err := db.WriteTx(func(tx *gorm.DB) error {
		if err := tx.Create(&entities.ManifestRecord{BookID: "book-1", Title: "One"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.True(t, ErrDatabase.Has(err))

	// The manifest written before the failure must not survive.
	var count int64
	require.NoError(t, db.DB.Model(&entities.ManifestRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	wrapped := Classify(errs.New("engine exploded"))
	assert.True(t, ErrDatabase.Has(wrapped))

	full := Classify(errs.New("write failed: database or disk is full"))
	assert.True(t, ErrStorageFull.Has(full))

	// Already-classified errors pass through without double wrapping.
	assert.Equal(t, full, Classify(full))
	assert.Equal(t, wrapped, Classify(wrapped))
}

func TestIsNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	var rec entities.ManifestRecord
	err := db.DB.Where("book_id = ?", "missing").First(&rec).Error
	assert.True(t, IsNotFound(err))
}
