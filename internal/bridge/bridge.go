// Package bridge is the one-directional pipeline from document mutations to
// application state: observe, project a derived snapshot, publish only when
// it actually changed. The bridge sees the document through a read-only
// interface, so the type system rules out the feedback loop a callback
// writing back into the document would create.
package bridge

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/entities"
)

// DocumentReader is the slice of the document the bridge is allowed: reads
// and observation, no mutation.
type DocumentReader interface {
	List(collection string, decode func(id string, raw json.RawMessage) error) error
	Observe(collection string, fn crdt.Observer)
	Actor() string
}

// LibraryRow is one book of the derived library snapshot, ready for a
// front end to render.
type LibraryRow struct {
	BookID          string                 `json:"book_id"`
	Title           string                 `json:"title"`
	Author          string                 `json:"author"`
	Tags            []string               `json:"tags,omitempty"`
	Status          entities.ReadingStatus `json:"status"`
	StatusLine      string                 `json:"status_line,omitempty"`
	Offloaded       bool                   `json:"offloaded"`
	Percentage      float64                `json:"percentage"`
	LastInteraction int64                  `json:"last_interaction"`
}

// Sink receives published snapshots. Implementations must not reach back
// into the document.
type Sink interface {
	PublishLibrary(rows []LibraryRow)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rows []LibraryRow)

func (f SinkFunc) PublishLibrary(rows []LibraryRow) {
	f(rows)
}

// Bridge projects the books and progress collections into a sorted library
// snapshot and pushes it to the sink whenever the derived value changes.
type Bridge struct {
	doc  DocumentReader
	sink Sink

	mu        sync.Mutex
	published []LibraryRow
}

func New(doc DocumentReader, sink Sink) *Bridge {
	return &Bridge{doc: doc, sink: sink}
}

// Start wires the observers and publishes the initial snapshot.
func (b *Bridge) Start() {
	b.doc.Observe(crdt.CollectionBooks, b.onChange)
	b.doc.Observe(crdt.CollectionProgress, b.onChange)
	b.onChange(crdt.Change{})
}

// Snapshot returns the last published rows.
func (b *Bridge) Snapshot() []LibraryRow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}

func (b *Bridge) onChange(crdt.Change) {
	rows := b.project()

	b.mu.Lock()
	// Deep equality bounds churn: rapid remote merges that do not change
	// the derived view publish nothing.
	if reflect.DeepEqual(rows, b.published) {
		b.mu.Unlock()
		return
	}
	b.published = rows
	b.mu.Unlock()

	b.sink.PublishLibrary(rows)
}

func (b *Bridge) project() []LibraryRow {
	local := b.doc.Actor()

	progressByBook := make(map[string]entities.DeviceProgress)
	_ = b.doc.List(crdt.CollectionProgress, func(id string, raw json.RawMessage) error {
		var p entities.DeviceProgress
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if p.DeviceID == local {
			progressByBook[p.BookID] = p
		}
		return nil
	})

	var rows []LibraryRow
	_ = b.doc.List(crdt.CollectionBooks, func(id string, raw json.RawMessage) error {
		var item entities.InventoryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		if item.BookID == "" {
			log.WithField("entity", id).Warn("skipping inventory item without book id")
			return nil
		}
		row := LibraryRow{
			BookID:          item.BookID,
			Title:           item.DisplayTitle(),
			Author:          item.DisplayAuthor(),
			Tags:            item.Tags,
			Status:          item.Status,
			StatusLine:      item.StatusLine,
			Offloaded:       item.Offloaded,
			LastInteraction: item.LastInteraction,
		}
		if p, ok := progressByBook[item.BookID]; ok {
			row.Percentage = p.Percentage
		}
		rows = append(rows, row)
		return nil
	})

	sort.Slice(rows, func(i, j int) bool {
		ti := strings.ToLower(rows[i].Title)
		tj := strings.ToLower(rows[j].Title)
		if ti != tj {
			return ti < tj
		}
		return rows[i].BookID < rows[j].BookID
	})
	return rows
}
