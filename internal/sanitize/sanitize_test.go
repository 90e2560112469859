package sanitize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrwarp/versicle/internal/entities"
)

func TestText_TrimsAndTruncates(t *testing.T) {
	assert.Equal(t, "Walden", Text("  Walden \n", MaxTitleLen))

	long := strings.Repeat("a", 3000)
	got := Text(long, MaxTitleLen)
	assert.Len(t, []rune(got), MaxTitleLen)

	// Truncation counts runes, not bytes.
	multibyte := strings.Repeat("ö", 3000)
	got = Text(multibyte, MaxTitleLen)
	assert.Len(t, []rune(got), MaxTitleLen)
}

func TestPercentage_Clamps(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(-0.5))
	assert.Equal(t, 1.0, Percentage(3.2))
	assert.Equal(t, 0.42, Percentage(0.42))
}

func TestTimestamp_RejectsNegative(t *testing.T) {
	assert.Equal(t, int64(0), Timestamp(-1))
	now := time.Now().UnixMilli()
	assert.Equal(t, now, Timestamp(now))
}

func TestTags_DedupesAndBounds(t *testing.T) {
	got := Tags([]string{" fiction ", "fiction", "", "history", strings.Repeat("x", 200)})
	assert.Equal(t, []string{"fiction", "history", strings.Repeat("x", MaxTagLen)}, got)
}

func TestManifest_TruncatesOversizedTitle(t *testing.T) {
	m, err := Manifest(entities.ManifestRecord{
		BookID: "book-1",
		Title:  strings.Repeat("t", 3000),
		Author: strings.Repeat("a", 600),
	})
	require.NoError(t, err)
	assert.Len(t, []rune(m.Title), MaxTitleLen)
	assert.Len(t, []rune(m.Author), MaxAuthorLen)
}

func TestManifest_RejectsMissingID(t *testing.T) {
	_, err := Manifest(entities.ManifestRecord{Title: "No ID"})
	require.Error(t, err)
	assert.True(t, ErrIntegrity.Has(err))

	_, err = Manifest(entities.ManifestRecord{BookID: "   ", Title: "Blank ID"})
	require.Error(t, err)
	assert.True(t, ErrIntegrity.Has(err))
}

func TestInventory_RejectsMissingID(t *testing.T) {
	_, err := Inventory(entities.InventoryItem{Title: "No ID"})
	require.Error(t, err)
	assert.True(t, ErrIntegrity.Has(err))
}

func TestProgress_ClampsAndRejects(t *testing.T) {
	p, err := Progress(entities.DeviceProgress{
		BookID:       "book-1",
		DeviceID:     "device-1",
		Percentage:   1.7,
		QueueIndex:   -3,
		SectionIndex: -1,
		LastRead:     -50,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Percentage)
	assert.Equal(t, 0, p.QueueIndex)
	assert.Equal(t, 0, p.SectionIndex)
	assert.Equal(t, int64(0), p.LastRead)

	_, err = Progress(entities.DeviceProgress{BookID: "book-1"})
	require.Error(t, err)
	assert.True(t, ErrIntegrity.Has(err))
}

func TestDevice_RejectsMissingID(t *testing.T) {
	_, err := Device(entities.Device{DisplayName: "Kitchen Tablet"})
	require.Error(t, err)
	assert.True(t, ErrIntegrity.Has(err))
}

func TestLegacy_NormalizesRecord(t *testing.T) {
	b, err := Legacy(entities.LegacyBook{
		BookID:     " legacy-1 ",
		Title:      "  Dracula  ",
		Percentage: 1.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", b.BookID)
	assert.Equal(t, "Dracula", b.Title)
	assert.Equal(t, 1.0, b.Percentage)
}
