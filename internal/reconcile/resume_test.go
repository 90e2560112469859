package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrwarp/versicle/internal/entities"
)

func TestResolveStartLocation_NoEntry(t *testing.T) {
	location, ok := ResolveStartLocation(nil)
	assert.False(t, ok)
	assert.Empty(t, location)
}

func TestResolveStartLocation_EmptyEntry(t *testing.T) {
	_, ok := ResolveStartLocation(&entities.HistoryEntry{BookID: "book-1"})
	assert.False(t, ok)
}

func TestResolveStartLocation_LegacyRangesOnly(t *testing.T) {
	entry := &entities.HistoryEntry{
		ReadRanges: []entities.ReadRange{
			{Start: "/6/2/2:0", End: "/6/2/2:100"},
		},
	}

	location, ok := ResolveStartLocation(entry)
	require.True(t, ok)

	// Legacy data resumes at the end of the last range: furthest progress.
	assert.Equal(t, "/6/2/2:100", location)
}

func TestResolveStartLocation_SessionStartWins(t *testing.T) {
	entry := &entities.HistoryEntry{
		ReadRanges: []entities.ReadRange{
			{Start: "/6/2/2:0", End: "/6/2/2:100"},
		},
		Sessions: []entities.Session{
			{Start: "/6/4/2:200", End: "/6/4/2:260", Timestamp: 1000, Source: entities.SessionSourceReading},
			{Start: "/6/4/2:300", End: "/6/4/2:380", Timestamp: 2000, Source: entities.SessionSourceReading},
		},
	}

	location, ok := ResolveStartLocation(entry)
	require.True(t, ok)

	// The most recent session's start, not its end and not the older
	// session.
	assert.Equal(t, "/6/4/2:300", location)
}

func TestResolveStartLocation_RecencyByTimestampNotPosition(t *testing.T) {
	// A replica merge interleaved an older session after a newer one.
	entry := &entities.HistoryEntry{
		Sessions: []entities.Session{
			{Start: "/6/4/2:300", Timestamp: 5000, Source: entities.SessionSourceReading},
			{Start: "/6/2/2:10", Timestamp: 1000, Source: entities.SessionSourceReading},
		},
	}

	location, ok := ResolveStartLocation(entry)
	require.True(t, ok)
	assert.Equal(t, "/6/4/2:300", location)
}

func progressEntry(deviceID string, pct float64, lastRead int64) entities.DeviceProgress {
	return entities.DeviceProgress{
		BookID:     "book-1",
		DeviceID:   deviceID,
		Percentage: pct,
		LastRead:   lastRead,
	}
}

func TestSuggestResume_NewerRemoteSurfaced(t *testing.T) {
	progress := []entities.DeviceProgress{
		progressEntry("local", 0.5, 1000),
		progressEntry("phone", 0.8, 2000),
	}

	got := SuggestResume(progress, "local")
	require.NotNil(t, got)
	assert.Equal(t, "phone", got.DeviceID)
	assert.Equal(t, 0.8, got.Percentage)
}

func TestSuggestResume_OlderRemoteIgnored(t *testing.T) {
	progress := []entities.DeviceProgress{
		progressEntry("local", 0.5, 3000),
		progressEntry("phone", 0.9, 2000),
	}

	assert.Nil(t, SuggestResume(progress, "local"))
}

func TestSuggestResume_HighestPercentageAmongNewer(t *testing.T) {
	progress := []entities.DeviceProgress{
		progressEntry("local", 0.3, 1000),
		progressEntry("phone", 0.6, 2000),
		progressEntry("tablet", 0.9, 1500),
		progressEntry("reader", 0.4, 3000),
	}

	got := SuggestResume(progress, "local")
	require.NotNil(t, got)
	assert.Equal(t, "tablet", got.DeviceID)
}

func TestSuggestResume_TieKeepsFirstFound(t *testing.T) {
	progress := []entities.DeviceProgress{
		progressEntry("local", 0.1, 1000),
		progressEntry("phone", 0.7, 2000),
		progressEntry("tablet", 0.7, 3000),
	}

	got := SuggestResume(progress, "local")
	require.NotNil(t, got)
	assert.Equal(t, "phone", got.DeviceID)
}

func TestSuggestResume_NoLocalEntryMakesAllRemotesEligible(t *testing.T) {
	progress := []entities.DeviceProgress{
		progressEntry("phone", 0.25, 500),
	}

	got := SuggestResume(progress, "local")
	require.NotNil(t, got)
	assert.Equal(t, "phone", got.DeviceID)
}

func TestSuggestResume_OnlyLocal(t *testing.T) {
	progress := []entities.DeviceProgress{
		progressEntry("local", 0.5, 1000),
	}

	assert.Nil(t, SuggestResume(progress, "local"))
}
