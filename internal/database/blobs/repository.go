// Package blobs stores the large binary payloads: book files, cover images
// and synthesized-playback caches. A blob can be offloaded, which empties
// its data while the row and content fingerprint stay behind so a later
// restore can be verified.
package blobs

import (
	"encoding/hex"

	"github.com/zeebo/errs"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/entities"
)

// ErrFingerprintMismatch marks a restore whose content does not hash to the
// stored fingerprint. The restore writes nothing.
var ErrFingerprintMismatch = errs.Class("fingerprint mismatch")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Fingerprint returns the hex blake2b-256 digest of content.
func Fingerprint(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Get returns a blob row by id, or nil when none exists. Offloaded blobs
// are returned with empty Data; callers check the flag.
func (r *Repository) Get(id string) (*entities.BlobRecord, error) {
	var rec entities.BlobRecord
	err := r.db.Where("id = ?", id).First(&rec).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &rec, nil
}

// Put writes a blob, replacing any existing row with the same id, and
// stamps the content fingerprint.
func (r *Repository) Put(bookID string, kind entities.BlobKind, content []byte) error {
	rec := entities.BlobRecord{
		ID:          entities.BlobID(bookID, kind),
		BookID:      bookID,
		Kind:        kind,
		Data:        content,
		Fingerprint: Fingerprint(content),
		ByteSize:    int64(len(content)),
		Offloaded:   false,
	}
	err := r.db.Where("id = ?", rec.ID).Delete(&entities.BlobRecord{}).Error
	if err != nil {
		return database.Classify(err)
	}
	return database.Classify(r.db.Create(&rec).Error)
}

// Offload empties a blob's data while keeping the row and its fingerprint.
func (r *Repository) Offload(id string) error {
	result := r.db.Model(&entities.BlobRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"data": []byte(nil), "byte_size": int64(0), "offloaded": true})
	if result.Error != nil {
		return database.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return database.ErrDatabase.New("blob %s not found", id)
	}
	return nil
}

// Restore writes content back into an offloaded blob after verifying it
// hashes to the stored fingerprint. A mismatch aborts with
// ErrFingerprintMismatch and leaves the row untouched.
func (r *Repository) Restore(id string, content []byte) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return database.ErrDatabase.New("blob %s not found", id)
	}
	got := Fingerprint(content)
	if got != rec.Fingerprint {
		return ErrFingerprintMismatch.New("blob %s: content hash %s does not match stored %s", id, got, rec.Fingerprint)
	}
	result := r.db.Model(&entities.BlobRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"data": content, "byte_size": int64(len(content)), "offloaded": false})
	return database.Classify(result.Error)
}

// DeleteForBook removes every blob a book owns. Run inside the same
// transaction that deletes the book's manifest so a crash cannot orphan
// binaries.
func (r *Repository) DeleteForBook(bookID string) error {
	return database.Classify(r.db.Where("book_id = ?", bookID).Delete(&entities.BlobRecord{}).Error)
}
