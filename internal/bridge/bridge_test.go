package bridge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database/updatelog"
	"github.com/vrwarp/versicle/internal/entities"
)

type recordingSink struct {
	published [][]LibraryRow
}

func (s *recordingSink) PublishLibrary(rows []LibraryRow) {
	s.published = append(s.published, rows)
}

func setupBridge(t *testing.T) (*crdt.Document, *Bridge, *recordingSink) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "bridge.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.UpdateRecord{}, &entities.CheckpointRecord{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	doc := crdt.NewDocument("device-a", updatelog.NewRepository(db))
	require.NoError(t, doc.Load())

	sink := &recordingSink{}
	b := New(doc, sink)
	b.Start()
	return doc, b, sink
}

func item(id, title string) entities.InventoryItem {
	return entities.InventoryItem{
		BookID: id,
		Title:  title,
		Status: entities.StatusReading,
	}
}

func TestBridge_PublishesSortedSnapshot(t *testing.T) {
	doc, b, sink := setupBridge(t)

	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-1", item("book-1", "Walden")))
	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-2", item("book-2", "Emma")))

	rows := b.Snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, "Emma", rows[0].Title)
	assert.Equal(t, "Walden", rows[1].Title)
	assert.NotEmpty(t, sink.published)
}

func TestBridge_TitleOverrideShown(t *testing.T) {
	doc, b, _ := setupBridge(t)

	inv := item("book-1", "Plain Title")
	inv.TitleOverride = "My Shelf Name"
	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-1", inv))

	rows := b.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "My Shelf Name", rows[0].Title)
}

func TestBridge_LocalProgressJoined(t *testing.T) {
	doc, b, _ := setupBridge(t)

	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-1", item("book-1", "Emma")))
	require.NoError(t, doc.SetValue(crdt.CollectionProgress, entities.ProgressKey("book-1", "device-a"),
		entities.DeviceProgress{BookID: "book-1", DeviceID: "device-a", Percentage: 0.4}))

	// Another device's progress does not leak into the local view.
	require.NoError(t, doc.SetValue(crdt.CollectionProgress, entities.ProgressKey("book-1", "device-b"),
		entities.DeviceProgress{BookID: "book-1", DeviceID: "device-b", Percentage: 0.9}))

	rows := b.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, 0.4, rows[0].Percentage)
}

func TestBridge_UnchangedDerivedValueNotPublished(t *testing.T) {
	doc, _, sink := setupBridge(t)

	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-1", item("book-1", "Emma")))
	n := len(sink.published)

	// Re-writing the same values changes registers but not the derived
	// snapshot, so nothing new is published.
	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-1", item("book-1", "Emma")))
	assert.Len(t, sink.published, n)
}

func TestBridge_DeleteRemovesRow(t *testing.T) {
	doc, b, _ := setupBridge(t)

	require.NoError(t, doc.Set(crdt.CollectionBooks, "book-1", item("book-1", "Emma")))
	require.NoError(t, doc.Delete(crdt.CollectionBooks, "book-1"))

	assert.Empty(t, b.Snapshot())
}
