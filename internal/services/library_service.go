package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/database/blobs"
	"github.com/vrwarp/versicle/internal/database/manifests"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/reconcile"
	"github.com/vrwarp/versicle/internal/sanitize"
)

// ErrNotFound marks lookups for books the library does not hold.
var ErrNotFound = errs.Class("not found")

// BookDetail joins a book's manifest with its replicated inventory state.
type BookDetail struct {
	Manifest  entities.ManifestRecord `json:"manifest"`
	Inventory entities.InventoryItem  `json:"inventory"`
}

// ResumeInfo is what the reading front end needs to open a book: the local
// start location plus, when another device is further along, a suggestion
// it may offer. Local progress is never overwritten by the suggestion.
type ResumeInfo struct {
	BookID     string                   `json:"book_id"`
	Location   string                   `json:"location,omitempty"`
	HasHistory bool                     `json:"has_history"`
	Suggestion *ResumeSuggestion        `json:"suggestion,omitempty"`
	Progress   *entities.DeviceProgress `json:"progress,omitempty"`
}

// ResumeSuggestion surfaces another device's newer progress.
type ResumeSuggestion struct {
	DeviceID   string  `json:"device_id"`
	DeviceName string  `json:"device_name,omitempty"`
	Percentage float64 `json:"percentage"`
	Location   string  `json:"location,omitempty"`
	LastRead   int64   `json:"last_read"`
}

// LibraryService is the read/write composition over the store and the
// document that the HTTP layer and CLI consume.
type LibraryService struct {
	db        *database.Database
	manifests *manifests.Repository
	blobs     *blobs.Repository
	doc       *crdt.Document
	nowMs     func() int64
}

func NewLibraryService(
	db *database.Database,
	manifestRepo *manifests.Repository,
	blobRepo *blobs.Repository,
	doc *crdt.Document,
	nowMs func() int64,
) *LibraryService {
	return &LibraryService{
		db:        db,
		manifests: manifestRepo,
		blobs:     blobRepo,
		doc:       doc,
		nowMs:     nowMs,
	}
}

// BookDetail returns manifest plus inventory for one book.
func (s *LibraryService) BookDetail(bookID string) (*BookDetail, error) {
	manifest, err := s.manifests.Get(bookID)
	if err != nil {
		return nil, err
	}
	var item entities.InventoryItem
	ok, err := s.doc.Get(crdt.CollectionBooks, bookID, &item)
	if err != nil {
		return nil, err
	}
	if manifest == nil && !ok {
		return nil, ErrNotFound.New("book %s", bookID)
	}
	detail := &BookDetail{Inventory: item}
	if manifest != nil {
		detail.Manifest = *manifest
	}
	return detail, nil
}

// History returns a book's reading history, nil when none exists.
func (s *LibraryService) History(bookID string) (*entities.HistoryEntry, error) {
	var entry entities.HistoryEntry
	ok, err := s.doc.Get(crdt.CollectionHistory, bookID, &entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Resume resolves the start location and the cross-device suggestion for
// one book.
func (s *LibraryService) Resume(bookID string) (*ResumeInfo, error) {
	entry, err := s.History(bookID)
	if err != nil {
		return nil, err
	}

	info := &ResumeInfo{BookID: bookID}
	if location, ok := reconcile.ResolveStartLocation(entry); ok {
		info.Location = location
		info.HasHistory = true
	}

	progress, err := s.progressForBook(bookID)
	if err != nil {
		return nil, err
	}
	local := s.doc.Actor()
	for i := range progress {
		if progress[i].DeviceID == local {
			p := progress[i]
			info.Progress = &p
			break
		}
	}

	if best := reconcile.SuggestResume(progress, local); best != nil {
		info.Suggestion = &ResumeSuggestion{
			DeviceID:   best.DeviceID,
			DeviceName: s.deviceName(best.DeviceID),
			Percentage: best.Percentage,
			Location:   best.Location,
			LastRead:   best.LastRead,
		}
	}
	return info, nil
}

// RecordRange folds a newly-read range into the book's history. This is
// the only write path into readRanges and sessions.
func (s *LibraryService) RecordRange(bookID string, r entities.ReadRange, source entities.SessionSource, label string) error {
	entry, err := s.History(bookID)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &entities.HistoryEntry{BookID: bookID}
	}

	now := s.nowMs()
	updated := reconcile.Record(*entry, r, entities.Session{
		Start:     r.Start,
		End:       r.End,
		Timestamp: now,
		Source:    source,
		Label:     sanitize.Text(label, sanitize.MaxLabelLen),
	})
	return s.doc.Set(crdt.CollectionHistory, bookID, updated)
}

// FlushProgress is the coalescer's flush function: it writes the batch of
// latest positions in one document transaction and re-derives the
// denormalized status line on each touched book.
func (s *LibraryService) FlushProgress(batch map[string]entities.DeviceProgress) error {
	return s.doc.Transact(func() error {
		for key, p := range batch {
			clean, err := sanitize.Progress(p)
			if err != nil {
				log.WithFields(log.Fields{"key": key, "error": err}).
					Warn("dropping unsanitizable progress update")
				continue
			}
			if err := s.doc.SetValue(crdt.CollectionProgress, key, clean); err != nil {
				return err
			}
			fields := map[string]any{
				"status":           string(statusFor(clean.Percentage)),
				"status_line":      statusLine(clean),
				"last_interaction": clean.LastRead,
			}
			if err := s.doc.SetFields(crdt.CollectionBooks, clean.BookID, fields); err != nil {
				return err
			}
		}
		return nil
	})
}

// Offload drops a book's binary while keeping all metadata; the flag
// replicates so other devices can show the book as offloaded here.
func (s *LibraryService) Offload(bookID string) error {
	err := s.db.WriteTx(func(tx *gorm.DB) error {
		return s.blobs.WithTx(tx).Offload(entities.BlobID(bookID, entities.BlobKindBook))
	})
	if err != nil {
		return err
	}
	return s.doc.SetFields(crdt.CollectionBooks, bookID, map[string]any{"offloaded": true})
}

// Restore writes a book binary back after fingerprint verification; a
// mismatch aborts before anything is written.
func (s *LibraryService) Restore(bookID string, content []byte) error {
	err := s.db.WriteTx(func(tx *gorm.DB) error {
		return s.blobs.WithTx(tx).Restore(entities.BlobID(bookID, entities.BlobKindBook), content)
	})
	if err != nil {
		return err
	}
	return s.doc.SetFields(crdt.CollectionBooks, bookID, map[string]any{"offloaded": false})
}

// Delete removes a book everywhere: manifest, every blob and cache entry in
// one store transaction, then the replicated entries. A crash between the
// two leaves replicated metadata without binaries, which a later delete of
// the same id cleans up; it never leaves orphaned binaries.
func (s *LibraryService) Delete(bookID string) error {
	err := s.db.WriteTx(func(tx *gorm.DB) error {
		if err := s.manifests.WithTx(tx).Delete(bookID); err != nil {
			return err
		}
		return s.blobs.WithTx(tx).DeleteForBook(bookID)
	})
	if err != nil {
		return err
	}

	progressKeys, annotationIDs, err := s.keysForBook(bookID)
	if err != nil {
		return err
	}
	return s.doc.Transact(func() error {
		if err := s.doc.Delete(crdt.CollectionBooks, bookID); err != nil {
			return err
		}
		if err := s.doc.Delete(crdt.CollectionHistory, bookID); err != nil {
			return err
		}
		for _, key := range progressKeys {
			if err := s.doc.Delete(crdt.CollectionProgress, key); err != nil {
				return err
			}
		}
		for _, id := range annotationIDs {
			if err := s.doc.Delete(crdt.CollectionAnnotations, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rename applies user title/author overrides.
func (s *LibraryService) Rename(bookID, titleOverride, authorOverride string) error {
	return s.doc.SetFields(crdt.CollectionBooks, bookID, map[string]any{
		"title_override":  sanitize.Text(titleOverride, sanitize.MaxTitleLen),
		"author_override": sanitize.Text(authorOverride, sanitize.MaxAuthorLen),
	})
}

// SetTags replaces a book's tag list.
func (s *LibraryService) SetTags(bookID string, tags []string) error {
	return s.doc.SetFields(crdt.CollectionBooks, bookID, map[string]any{
		"tags": sanitize.Tags(tags),
	})
}

// Annotations lists a book's annotations ordered by creation time.
func (s *LibraryService) Annotations(bookID string) ([]entities.Annotation, error) {
	var out []entities.Annotation
	err := s.doc.List(crdt.CollectionAnnotations, func(id string, raw json.RawMessage) error {
		var a entities.Annotation
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		if a.BookID == bookID {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddAnnotation creates a highlight or note on a book. The id is minted
// here so concurrent creation on two devices never collides.
func (s *LibraryService) AddAnnotation(a entities.Annotation) (entities.Annotation, error) {
	if _, err := s.BookDetail(a.BookID); err != nil {
		return entities.Annotation{}, err
	}

	a.ID = uuid.NewString()
	if a.CreatedAt == 0 {
		a.CreatedAt = s.nowMs()
	}
	clean, err := sanitize.Annotation(a)
	if err != nil {
		return entities.Annotation{}, err
	}

	if err := s.doc.Set(crdt.CollectionAnnotations, clean.ID, clean); err != nil {
		return entities.Annotation{}, err
	}
	return clean, nil
}

// DeleteAnnotation removes one annotation by id.
func (s *LibraryService) DeleteAnnotation(annotationID string) error {
	var a entities.Annotation
	ok, err := s.doc.Get(crdt.CollectionAnnotations, annotationID, &a)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound.New("annotation %s", annotationID)
	}
	return s.doc.Delete(crdt.CollectionAnnotations, annotationID)
}

// Devices lists the registry, most recently seen first.
func (s *LibraryService) Devices() ([]entities.Device, error) {
	var devices []entities.Device
	err := s.doc.List(crdt.CollectionDevices, func(id string, raw json.RawMessage) error {
		var d entities.Device
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		devices = append(devices, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(devices); i++ {
		for j := i; j > 0 && devices[j].LastSeen > devices[j-1].LastSeen; j-- {
			devices[j], devices[j-1] = devices[j-1], devices[j]
		}
	}
	return devices, nil
}

// RegisterDevice upserts the local device's registry entry with a fresh
// LastSeen. Attribution only; nothing reads this for access control.
func (s *LibraryService) RegisterDevice(deviceID, displayName string) error {
	device, err := sanitize.Device(entities.Device{
		DeviceID:    deviceID,
		DisplayName: displayName,
		LastSeen:    s.nowMs(),
	})
	if err != nil {
		return err
	}
	return s.doc.Set(crdt.CollectionDevices, device.DeviceID, device)
}

func (s *LibraryService) progressForBook(bookID string) ([]entities.DeviceProgress, error) {
	var out []entities.DeviceProgress
	prefix := bookID + "/"
	err := s.doc.List(crdt.CollectionProgress, func(id string, raw json.RawMessage) error {
		if !strings.HasPrefix(id, prefix) {
			return nil
		}
		var p entities.DeviceProgress
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *LibraryService) keysForBook(bookID string) (progressKeys, annotationIDs []string, err error) {
	prefix := bookID + "/"
	err = s.doc.List(crdt.CollectionProgress, func(id string, raw json.RawMessage) error {
		if strings.HasPrefix(id, prefix) {
			progressKeys = append(progressKeys, id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	err = s.doc.List(crdt.CollectionAnnotations, func(id string, raw json.RawMessage) error {
		var a entities.Annotation
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		if a.BookID == bookID {
			annotationIDs = append(annotationIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return progressKeys, annotationIDs, nil
}

func (s *LibraryService) deviceName(deviceID string) string {
	var d entities.Device
	ok, err := s.doc.Get(crdt.CollectionDevices, deviceID, &d)
	if err != nil || !ok {
		return ""
	}
	return d.DisplayName
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

func statusLine(p entities.DeviceProgress) string {
	if p.SectionIndex > 0 || p.QueueIndex > 0 {
		return fmt.Sprintf("Listening · section %d", p.SectionIndex+1)
	}
	return fmt.Sprintf("Reading · %d%%", int(p.Percentage*100))
}
