// Package sanitize normalizes and bounds records before they enter the
// local store or the replicated document. String fields are trimmed and
// silently truncated to tolerate malformed upstream metadata; records
// missing identity fields are rejected so corruption never reaches the
// convergent layer.
package sanitize

import (
	"strings"

	"github.com/zeebo/errs"

	"github.com/vrwarp/versicle/internal/entities"
)

// ErrIntegrity marks records that fail validation. Callers exclude such
// records from results and log them; the failure is never fatal.
var ErrIntegrity = errs.Class("integrity")

// Maximum lengths in runes. Longer values are truncated, not rejected.
const (
	MaxTitleLen       = 500
	MaxAuthorLen      = 255
	MaxDescriptionLen = 2000
	MaxLabelLen       = 120
	MaxTagLen         = 64
	MaxLocationLen    = 512
	MaxFilenameLen    = 1024
)

// Text trims surrounding whitespace and caps the value at max runes.
func Text(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Percentage clamps a reading percentage into [0, 1].
func Percentage(p float64) float64 {
	if p < 0 || p != p { // NaN guard
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Timestamp zeroes negative epoch-millisecond values.
func Timestamp(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts
}

// Tags trims, caps and deduplicates a tag list, preserving first-seen order
// and dropping entries that trim to empty.
func Tags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := Text(tag, MaxTagLen)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Manifest bounds a manifest record. The book id is the record's identity
// and its absence is a rejection.
func Manifest(rec entities.ManifestRecord) (entities.ManifestRecord, error) {
	if strings.TrimSpace(rec.BookID) == "" {
		return entities.ManifestRecord{}, ErrIntegrity.New("manifest without book id")
	}
	rec.BookID = strings.TrimSpace(rec.BookID)
	rec.Title = Text(rec.Title, MaxTitleLen)
	rec.Author = Text(rec.Author, MaxAuthorLen)
	rec.Description = Text(rec.Description, MaxDescriptionLen)
	if rec.ByteSize < 0 {
		rec.ByteSize = 0
	}
	if rec.CharCount < 0 {
		rec.CharCount = 0
	}
	return rec, nil
}

// Inventory bounds a library membership record.
func Inventory(item entities.InventoryItem) (entities.InventoryItem, error) {
	if strings.TrimSpace(item.BookID) == "" {
		return entities.InventoryItem{}, ErrIntegrity.New("inventory item without book id")
	}
	item.BookID = strings.TrimSpace(item.BookID)
	item.Title = Text(item.Title, MaxTitleLen)
	item.Author = Text(item.Author, MaxAuthorLen)
	item.TitleOverride = Text(item.TitleOverride, MaxTitleLen)
	item.AuthorOverride = Text(item.AuthorOverride, MaxAuthorLen)
	item.StatusLine = Text(item.StatusLine, MaxLabelLen)
	item.SourceFilename = Text(item.SourceFilename, MaxFilenameLen)
	item.Tags = Tags(item.Tags)
	if item.Status == "" {
		item.Status = entities.StatusUnread
	}
	item.AddedAt = Timestamp(item.AddedAt)
	item.LastInteraction = Timestamp(item.LastInteraction)
	return item, nil
}

// Progress bounds a device progress record; both identities are required.
func Progress(p entities.DeviceProgress) (entities.DeviceProgress, error) {
	if strings.TrimSpace(p.BookID) == "" {
		return entities.DeviceProgress{}, ErrIntegrity.New("progress without book id")
	}
	if strings.TrimSpace(p.DeviceID) == "" {
		return entities.DeviceProgress{}, ErrIntegrity.New("progress without device id")
	}
	p.BookID = strings.TrimSpace(p.BookID)
	p.DeviceID = strings.TrimSpace(p.DeviceID)
	p.Percentage = Percentage(p.Percentage)
	p.Location = Text(p.Location, MaxLocationLen)
	if p.QueueIndex < 0 {
		p.QueueIndex = 0
	}
	if p.SectionIndex < 0 {
		p.SectionIndex = 0
	}
	p.LastRead = Timestamp(p.LastRead)
	return p, nil
}

// Annotation bounds a highlight/note record.
func Annotation(a entities.Annotation) (entities.Annotation, error) {
	if strings.TrimSpace(a.ID) == "" {
		return entities.Annotation{}, ErrIntegrity.New("annotation without id")
	}
	if strings.TrimSpace(a.BookID) == "" {
		return entities.Annotation{}, ErrIntegrity.New("annotation without book id")
	}
	a.ID = strings.TrimSpace(a.ID)
	a.BookID = strings.TrimSpace(a.BookID)
	a.Start = Text(a.Start, MaxLocationLen)
	a.End = Text(a.End, MaxLocationLen)
	a.Text = Text(a.Text, MaxDescriptionLen)
	a.Note = Text(a.Note, MaxDescriptionLen)
	a.Color = Text(a.Color, 16)
	a.CreatedAt = Timestamp(a.CreatedAt)
	return a, nil
}

// Device bounds a registry entry.
func Device(d entities.Device) (entities.Device, error) {
	if strings.TrimSpace(d.DeviceID) == "" {
		return entities.Device{}, ErrIntegrity.New("device without id")
	}
	d.DeviceID = strings.TrimSpace(d.DeviceID)
	d.DisplayName = Text(d.DisplayName, MaxLabelLen)
	d.LastSeen = Timestamp(d.LastSeen)
	return d, nil
}

// Legacy bounds a pre-migration library row before it is converted.
func Legacy(b entities.LegacyBook) (entities.LegacyBook, error) {
	if strings.TrimSpace(b.BookID) == "" {
		return entities.LegacyBook{}, ErrIntegrity.New("legacy book without id")
	}
	b.BookID = strings.TrimSpace(b.BookID)
	b.Title = Text(b.Title, MaxTitleLen)
	b.Author = Text(b.Author, MaxAuthorLen)
	b.Percentage = Percentage(b.Percentage)
	b.Location = Text(b.Location, MaxLocationLen)
	b.SourceFilename = Text(b.SourceFilename, MaxFilenameLen)
	return b, nil
}
