package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrwarp/versicle/internal/entities"
)

func session(start, end string, ts int64, source entities.SessionSource) entities.Session {
	return entities.Session{Start: start, End: end, Timestamp: ts, Source: source}
}

func TestCoalesceSession_WithinWindowExtends(t *testing.T) {
	sessions := CoalesceSession(nil, session("/6/4/2:0", "/6/4/2:50", 1_000_000, entities.SessionSourceReading))

	// Two minutes later, same source: still the same session.
	sessions = CoalesceSession(sessions, session("/6/4/2:50", "/6/4/2:120", 1_120_000, entities.SessionSourceReading))

	require.Len(t, sessions, 1)
	assert.Equal(t, "/6/4/2:0", sessions[0].Start)
	assert.Equal(t, "/6/4/2:120", sessions[0].End)
	assert.Equal(t, int64(1_120_000), sessions[0].Timestamp)
}

func TestCoalesceSession_BeyondWindowAppends(t *testing.T) {
	sessions := CoalesceSession(nil, session("/6/4/2:0", "/6/4/2:50", 1_000_000, entities.SessionSourceReading))

	// Ten minutes later: a new session.
	sessions = CoalesceSession(sessions, session("/6/4/2:50", "/6/4/2:120", 1_600_000, entities.SessionSourceReading))

	assert.Len(t, sessions, 2)
}

func TestCoalesceSession_DifferentSourceAppends(t *testing.T) {
	sessions := CoalesceSession(nil, session("/6/4/2:0", "/6/4/2:50", 1_000_000, entities.SessionSourceReading))
	sessions = CoalesceSession(sessions, session("/6/4/2:50", "/6/4/2:120", 1_060_000, entities.SessionSourcePlayback))

	assert.Len(t, sessions, 2)
}

func TestCoalesceSession_PlaybackNeverExtends(t *testing.T) {
	sessions := CoalesceSession(nil, session("/6/4/2:0", "/6/4/2:50", 1_000_000, entities.SessionSourcePlayback))

	// Continuous playback within the window still opens a new session.
	sessions = CoalesceSession(sessions, session("/6/4/2:50", "/6/4/2:120", 1_030_000, entities.SessionSourcePlayback))

	assert.Len(t, sessions, 2)
}

func TestCoalesceSession_OutOfOrderTimestampAppends(t *testing.T) {
	sessions := CoalesceSession(nil, session("/6/4/2:0", "/6/4/2:50", 2_000_000, entities.SessionSourceReading))

	// A merged-in event that predates the last session cannot extend it.
	sessions = CoalesceSession(sessions, session("/6/2/2:0", "/6/2/2:30", 1_900_000, entities.SessionSourceReading))

	assert.Len(t, sessions, 2)
}

func TestCoalesceSession_CapEvictsOldest(t *testing.T) {
	var sessions []entities.Session
	for i := 0; i < MaxSessions+10; i++ {
		// Spaced beyond the window so nothing coalesces.
		sessions = CoalesceSession(sessions, session("/6/4/2:0", "/6/4/2:10", int64(i)*SessionWindowMs*2, entities.SessionSourceReading))
	}

	assert.Len(t, sessions, MaxSessions)
	assert.Equal(t, int64(10)*SessionWindowMs*2, sessions[0].Timestamp)
}

func TestRecord_UpdatesAllParts(t *testing.T) {
	entry := entities.HistoryEntry{BookID: "book-1"}

	entry = Record(entry,
		entities.ReadRange{Start: "/6/4/2:0", End: "/6/4/2:50"},
		session("/6/4/2:0", "/6/4/2:50", 1_000_000, entities.SessionSourceReading))

	assert.Len(t, entry.ReadRanges, 1)
	assert.Len(t, entry.Sessions, 1)
	assert.Equal(t, int64(1_000_000), entry.LastUpdated)
}
