package entities

import (
	"time"
)

// ManifestSchemaVersion is the content schema produced by the current
// extraction pipeline. Manifests carrying an older version are rebuilt by
// migration or an explicit reprocess.
const ManifestSchemaVersion = 2

type BlobKind string

const (
	BlobKindBook     BlobKind = "book"
	BlobKindCover    BlobKind = "cover"
	BlobKindPlayback BlobKind = "playback" // synthesized audio cache
)

// ManifestRecord is the immutable per-book content manifest. It is written
// once at ingestion and replaced wholesale on re-ingestion or reprocessing;
// individual fields are never patched in place.
type ManifestRecord struct {
	BookID        string    `gorm:"primaryKey;size:64" json:"book_id"`
	Title         string    `gorm:"size:512" json:"title"`
	Author        string    `gorm:"size:256" json:"author"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	CoverID       string    `gorm:"size:128" json:"cover_id,omitempty"`
	ContentHash   string    `gorm:"index;size:64" json:"content_hash"`
	ByteSize      int64     `json:"byte_size"`
	CharCount     int64     `json:"char_count"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ManifestRecord) TableName() string {
	return "static_book_manifests"
}

// BlobRecord holds a book file, cover image, or playback cache payload.
// An offloaded blob keeps its row (and fingerprint) while Data is emptied;
// restoring requires content whose fingerprint matches the stored one.
type BlobRecord struct {
	ID          string    `gorm:"primaryKey;size:160" json:"id"`
	BookID      string    `gorm:"index;size:64" json:"book_id"`
	Kind        BlobKind  `gorm:"size:20" json:"kind"`
	Data        []byte    `gorm:"type:blob" json:"-"`
	Fingerprint string    `gorm:"size:64" json:"fingerprint"`
	ByteSize    int64     `json:"byte_size"`
	Offloaded   bool      `gorm:"default:false" json:"offloaded"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (BlobRecord) TableName() string {
	return "resource_blobs"
}

// BlobID composes the primary key for a book-scoped blob.
func BlobID(bookID string, kind BlobKind) string {
	return bookID + "/" + string(kind)
}

// LegacyBook is a library row in the pre-convergent schema. Only the
// migration service (and test/demo seeding) touches this table.
type LegacyBook struct {
	BookID         string    `gorm:"primaryKey;size:64" json:"book_id"`
	Title          string    `gorm:"size:512" json:"title"`
	Author         string    `gorm:"size:256" json:"author"`
	Percentage     float64   `json:"percentage"`
	Location       string    `gorm:"size:512" json:"location,omitempty"`
	SourceFilename string    `gorm:"size:1024" json:"source_filename,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (LegacyBook) TableName() string {
	return "legacy_books"
}

// UpdateRecord is one entry of the durable replication log. Every local
// document mutation and every merged remote update appends a row; replaying
// the log from the latest checkpoint restores the document.
type UpdateRecord struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	Collection string    `gorm:"index;size:50" json:"collection"`
	EntityID   string    `gorm:"index;size:160" json:"entity_id"`
	Actor      string    `gorm:"size:64" json:"actor"`
	Clock      uint64    `json:"clock"`
	Payload    []byte    `gorm:"type:blob" json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

func (UpdateRecord) TableName() string {
	return "crdt_updates"
}

// CheckpointRecord is a full document snapshot covering every update with
// Seq <= its own Seq. Older updates may be truncated once a checkpoint
// covering them is durable.
type CheckpointRecord struct {
	Seq       uint64    `gorm:"primaryKey" json:"seq"`
	Payload   []byte    `gorm:"type:blob" json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func (CheckpointRecord) TableName() string {
	return "crdt_checkpoints"
}
