package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/database/settings"
	"github.com/vrwarp/versicle/internal/database/updatelog"
	"github.com/vrwarp/versicle/internal/entities"
)

type fixture struct {
	doc      *crdt.Document
	updates  *updatelog.Repository
	settings *settings.Repository
	cfg      config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "scheduler.db")
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	updates := updatelog.NewRepository(db.DB)
	doc := crdt.NewDocument("device-local", updates)
	require.NoError(t, doc.Load())

	cfg := config.Config{}
	cfg.Checkpoint.Schedule = "0 */6 * * *"
	cfg.Checkpoint.Keep = 3
	cfg.Devices.PruneSchedule = "30 4 * * *"
	cfg.Devices.PruneHorizon = 90 * 24 * time.Hour

	return &fixture{
		doc:      doc,
		updates:  updates,
		settings: settings.NewRepository(db.DB),
		cfg:      cfg,
	}
}

func TestScheduler_RunCheckpoint(t *testing.T) {
	f := newFixture(t)
	s := New(f.doc, f.updates, f.settings, f.cfg)

	require.NoError(t, f.doc.SetValue(crdt.CollectionBooks, "book-1", map[string]string{"title": "Emma"}))

	require.NoError(t, s.RunCheckpoint())

	cp, err := f.updates.LatestCheckpoint()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, f.doc.LastSeq(), cp.Seq)

	// The compacted log has nothing newer than the checkpoint.
	pending, err := f.updates.Since(cp.Seq)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stamp, ok, err := f.settings.Get(entities.SettingKeyLastCheckpointAt)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339, stamp)
	assert.NoError(t, err)
}

func TestScheduler_RunCheckpoint_EmptyLogIsNoop(t *testing.T) {
	f := newFixture(t)
	s := New(f.doc, f.updates, f.settings, f.cfg)

	require.NoError(t, s.RunCheckpoint())

	cp, err := f.updates.LatestCheckpoint()
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestScheduler_RunDevicePrune(t *testing.T) {
	f := newFixture(t)
	s := New(f.doc, f.updates, f.settings, f.cfg)

	now := time.Now().UnixMilli()
	old := time.Now().Add(-120 * 24 * time.Hour).UnixMilli()

	require.NoError(t, f.doc.SetValue(crdt.CollectionDevices, "device-local", entities.Device{
		DeviceID: "device-local", DisplayName: "Desk", LastSeen: old,
	}))
	require.NoError(t, f.doc.SetValue(crdt.CollectionDevices, "device-b", entities.Device{
		DeviceID: "device-b", DisplayName: "Phone", LastSeen: now,
	}))
	require.NoError(t, f.doc.SetValue(crdt.CollectionDevices, "device-c", entities.Device{
		DeviceID: "device-c", DisplayName: "Old Tablet", LastSeen: old,
	}))

	require.NoError(t, s.RunDevicePrune())

	var dev entities.Device
	found, err := f.doc.Get(crdt.CollectionDevices, "device-c", &dev)
	require.NoError(t, err)
	assert.False(t, found, "stale device should be pruned")

	found, err = f.doc.Get(crdt.CollectionDevices, "device-b", &dev)
	require.NoError(t, err)
	assert.True(t, found, "recent device should survive")

	// The local device never prunes itself, no matter how old.
	found, err = f.doc.Get(crdt.CollectionDevices, "device-local", &dev)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t)
	s := New(f.doc, f.updates, f.settings, f.cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	require.NotNil(t, s.GetNextRunTime())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.GetNextRunTime())
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	f.cfg.Checkpoint.Schedule = "not a schedule"
	s := New(f.doc, f.updates, f.settings, f.cfg)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsRunning())
}
