package crdt

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vrwarp/versicle/internal/database/updatelog"
	"github.com/vrwarp/versicle/internal/entities"
)

// memoryLog keeps the update log in memory for tests that do not need a
// real store underneath.
type memoryLog struct {
	recs []entities.UpdateRecord
}

func (m *memoryLog) Append(rec *entities.UpdateRecord) (uint64, error) {
	rec.Seq = uint64(len(m.recs) + 1)
	m.recs = append(m.recs, *rec)
	return rec.Seq, nil
}

func (m *memoryLog) Since(seq uint64) ([]entities.UpdateRecord, error) {
	var out []entities.UpdateRecord
	for _, rec := range m.recs {
		if rec.Seq > seq {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryLog) LatestCheckpoint() (*entities.CheckpointRecord, error) {
	return nil, nil
}

func newTestDocument(actor string) *Document {
	return NewDocument(actor, &memoryLog{})
}

type testBook struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

func TestStamp_Newer(t *testing.T) {
	assert.True(t, Stamp{Clock: 2, Actor: "a"}.Newer(Stamp{Clock: 1, Actor: "z"}))
	assert.False(t, Stamp{Clock: 1, Actor: "z"}.Newer(Stamp{Clock: 2, Actor: "a"}))

	// Equal clocks break ties on the actor, identically everywhere.
	assert.True(t, Stamp{Clock: 3, Actor: "b"}.Newer(Stamp{Clock: 3, Actor: "a"}))
	assert.False(t, Stamp{Clock: 3, Actor: "a"}.Newer(Stamp{Clock: 3, Actor: "b"}))
}

func TestDocument_SetAndGet(t *testing.T) {
	doc := newTestDocument("device-a")

	require.NoError(t, doc.Set(CollectionBooks, "book-1", testBook{Title: "Emma", Author: "Jane Austen"}))

	var got testBook
	ok, err := doc.Get(CollectionBooks, "book-1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Emma", got.Title)
}

func TestDocument_Get_Missing(t *testing.T) {
	doc := newTestDocument("device-a")

	var got testBook
	ok, err := doc.Get(CollectionBooks, "nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocument_Delete(t *testing.T) {
	doc := newTestDocument("device-a")

	require.NoError(t, doc.Set(CollectionBooks, "book-1", testBook{Title: "Emma"}))
	require.NoError(t, doc.Delete(CollectionBooks, "book-1"))

	var got testBook
	ok, err := doc.Get(CollectionBooks, "book-1", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

// exchange pushes every update either document has logged into the other.
func exchange(t *testing.T, a, b *Document, reverse bool) {
	t.Helper()
	fromA, err := a.UpdatesSince(0)
	require.NoError(t, err)
	fromB, err := b.UpdatesSince(0)
	require.NoError(t, err)

	if reverse {
		for i, j := 0, len(fromA)-1; i < j; i, j = i+1, j-1 {
			fromA[i], fromA[j] = fromA[j], fromA[i]
		}
		for i, j := 0, len(fromB)-1; i < j; i, j = i+1, j-1 {
			fromB[i], fromB[j] = fromB[j], fromB[i]
		}
	}
	for _, su := range fromA {
		require.NoError(t, b.ApplyRemote(su.Update))
	}
	for _, su := range fromB {
		require.NoError(t, a.ApplyRemote(su.Update))
	}
}

func TestDocument_ConcurrentFieldEditsBothSurvive(t *testing.T) {
	docA := newTestDocument("device-a")
	docB := newTestDocument("device-b")

	require.NoError(t, docA.Set(CollectionBooks, "book-1", testBook{Title: "Emma", Author: "Austen"}))
	updates, err := docA.UpdatesSince(0)
	require.NoError(t, err)
	for _, su := range updates {
		require.NoError(t, docB.ApplyRemote(su.Update))
	}

	// Offline, each device edits a different field.
	require.NoError(t, docA.SetFields(CollectionBooks, "book-1", map[string]any{"title": "Emma (annotated)"}))
	require.NoError(t, docB.SetFields(CollectionBooks, "book-1", map[string]any{"author": "Jane Austen"}))

	exchange(t, docA, docB, false)

	var gotA, gotB testBook
	_, err = docA.Get(CollectionBooks, "book-1", &gotA)
	require.NoError(t, err)
	_, err = docB.Get(CollectionBooks, "book-1", &gotB)
	require.NoError(t, err)

	assert.Equal(t, gotA, gotB)
	assert.Equal(t, "Emma (annotated)", gotA.Title)
	assert.Equal(t, "Jane Austen", gotA.Author)
}

func TestDocument_ConvergesRegardlessOfArrivalOrder(t *testing.T) {
	build := func() (*Document, *Document) {
		docA := newTestDocument("device-a")
		docB := newTestDocument("device-b")
		_ = docA.Set(CollectionBooks, "book-1", testBook{Title: "A's title", Author: "A's author"})
		_ = docA.Set(CollectionBooks, "book-2", testBook{Title: "only on A"})
		_ = docB.Set(CollectionBooks, "book-1", testBook{Title: "B's title", Author: "B's author"})
		_ = docB.Delete(CollectionBooks, "book-2")
		return docA, docB
	}

	read := func(doc *Document) map[string]testBook {
		out := make(map[string]testBook)
		_ = doc.List(CollectionBooks, func(id string, raw json.RawMessage) error {
			var b testBook
			if err := json.Unmarshal(raw, &b); err != nil {
				return err
			}
			out[id] = b
			return nil
		})
		return out
	}

	forwardA, forwardB := build()
	exchange(t, forwardA, forwardB, false)

	reverseA, reverseB := build()
	exchange(t, reverseA, reverseB, true)

	assert.Equal(t, read(forwardA), read(forwardB))
	assert.Equal(t, read(reverseA), read(reverseB))
	assert.Equal(t, read(forwardA), read(reverseA))
}

func TestDocument_ApplyRemote_Idempotent(t *testing.T) {
	docA := newTestDocument("device-a")
	docB := newTestDocument("device-b")

	require.NoError(t, docA.Set(CollectionBooks, "book-1", testBook{Title: "Emma"}))
	updates, err := docA.UpdatesSince(0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for _, su := range updates {
			require.NoError(t, docB.ApplyRemote(su.Update))
		}
	}

	// Applying the same update repeatedly logs it at most once.
	logged, err := docB.UpdatesSince(0)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestDocument_SetValue_WholeValueLWW(t *testing.T) {
	docA := newTestDocument("device-a")
	docB := newTestDocument("device-b")

	type progress struct {
		Percentage float64 `json:"percentage"`
	}

	require.NoError(t, docA.SetValue(CollectionProgress, "book-1/device-a", progress{Percentage: 0.2}))
	require.NoError(t, docA.SetValue(CollectionProgress, "book-1/device-a", progress{Percentage: 0.5}))

	exchange(t, docA, docB, false)

	var got progress
	ok, err := docB.Get(CollectionProgress, "book-1/device-a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.5, got.Percentage)
}

func TestDocument_Transact_SingleNotificationPerCollection(t *testing.T) {
	doc := newTestDocument("device-a")

	var events []Change
	doc.Observe(CollectionBooks, func(c Change) {
		events = append(events, c)
	})

	err := doc.Transact(func() error {
		if err := doc.Set(CollectionBooks, "book-1", testBook{Title: "One"}); err != nil {
			return err
		}
		return doc.Set(CollectionBooks, "book-2", testBook{Title: "Two"})
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.ElementsMatch(t, []string{"book-1", "book-2"}, events[0].EntityIDs)
}

func TestDocument_ObserversFireOnRemoteMerge(t *testing.T) {
	docA := newTestDocument("device-a")
	docB := newTestDocument("device-b")

	var remote []Change
	docB.Observe(CollectionBooks, func(c Change) {
		remote = append(remote, c)
	})

	require.NoError(t, docA.Set(CollectionBooks, "book-1", testBook{Title: "Emma"}))
	updates, err := docA.UpdatesSince(0)
	require.NoError(t, err)
	for _, su := range updates {
		require.NoError(t, docB.ApplyRemote(su.Update))
	}

	require.Len(t, remote, 1)
	assert.True(t, remote[0].Remote)

	// A losing replay fires nothing.
	for _, su := range updates {
		require.NoError(t, docB.ApplyRemote(su.Update))
	}
	assert.Len(t, remote, 1)
}

func TestDocument_SurvivesRestartThroughCheckpoint(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crdt.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()
	require.NoError(t, db.AutoMigrate(&entities.UpdateRecord{}, &entities.CheckpointRecord{}))

	repo := updatelog.NewRepository(db)

	doc := NewDocument("device-a", repo)
	require.NoError(t, doc.Load())
	require.NoError(t, doc.Set(CollectionBooks, "book-1", testBook{Title: "Emma"}))
	require.NoError(t, doc.Set(CollectionBooks, "book-2", testBook{Title: "Persuasion"}))

	// Checkpoint, truncate, then keep writing past the checkpoint.
	payload, seq, err := doc.Snapshot()
	require.NoError(t, err)
	require.NoError(t, repo.Checkpoint(seq, payload, 3))
	require.NoError(t, doc.Set(CollectionBooks, "book-2", testBook{Title: "Persuasion", Author: "Jane Austen"}))

	reloaded := NewDocument("device-a", repo)
	require.NoError(t, reloaded.Load())

	var got testBook
	ok, err := reloaded.Get(CollectionBooks, "book-2", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Jane Austen", got.Author)

	ok, err = reloaded.Get(CollectionBooks, "book-1", &got)
	require.NoError(t, err)
	assert.True(t, ok)

	// The clock keeps advancing from where it left off.
	assert.GreaterOrEqual(t, reloaded.Clock(), doc.Clock())
}
