package reconcile

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vrwarp/versicle/internal/entities"
)

func rng(start, end string) entities.ReadRange {
	return entities.ReadRange{Start: start, End: end}
}

func TestMergeRanges_InsertIntoEmpty(t *testing.T) {
	got := MergeRanges(nil, rng("/6/4/2:0", "/6/4/2:100"))
	assert.Equal(t, []entities.ReadRange{rng("/6/4/2:0", "/6/4/2:100")}, got)
}

func TestMergeRanges_CoveredRangeIsIdempotent(t *testing.T) {
	existing := []entities.ReadRange{
		rng("/6/2/2:0", "/6/2/2:50"),
		rng("/6/4/2:0", "/6/4/2:100"),
	}

	got := MergeRanges(existing, rng("/6/4/2:10", "/6/4/2:90"))
	assert.Equal(t, existing, got)

	// Merging an exact element changes nothing either.
	got = MergeRanges(existing, rng("/6/2/2:0", "/6/2/2:50"))
	assert.Equal(t, existing, got)
}

func TestMergeRanges_OverlappingCombine(t *testing.T) {
	got := MergeRanges(
		[]entities.ReadRange{rng("/6/4/2:0", "/6/4/2:50")},
		rng("/6/4/2:30", "/6/4/2:120"),
	)
	assert.Equal(t, []entities.ReadRange{rng("/6/4/2:0", "/6/4/2:120")}, got)
}

func TestMergeRanges_TouchingCombine(t *testing.T) {
	got := MergeRanges(
		[]entities.ReadRange{rng("/6/4/2:0", "/6/4/2:50")},
		rng("/6/4/2:50", "/6/4/2:80"),
	)
	assert.Equal(t, []entities.ReadRange{rng("/6/4/2:0", "/6/4/2:80")}, got)
}

func TestMergeRanges_DisjointStaySorted(t *testing.T) {
	got := MergeRanges(
		[]entities.ReadRange{rng("/6/8/2:0", "/6/8/2:40")},
		rng("/6/2/2:0", "/6/2/2:40"),
	)
	assert.Equal(t, []entities.ReadRange{
		rng("/6/2/2:0", "/6/2/2:40"),
		rng("/6/8/2:0", "/6/8/2:40"),
	}, got)
}

func TestMergeRanges_BridgesMultipleExisting(t *testing.T) {
	existing := []entities.ReadRange{
		rng("/6/2/2:0", "/6/2/2:40"),
		rng("/6/6/2:0", "/6/6/2:40"),
		rng("/6/10/2:0", "/6/10/2:40"),
	}

	// A range spanning the gap swallows both of its neighbours.
	got := MergeRanges(existing, rng("/6/2/2:30", "/6/6/2:20"))
	assert.Equal(t, []entities.ReadRange{
		rng("/6/2/2:0", "/6/6/2:40"),
		rng("/6/10/2:0", "/6/10/2:40"),
	}, got)
}

func TestMergeRanges_ReversedInputNormalized(t *testing.T) {
	got := MergeRanges(nil, rng("/6/4/2:100", "/6/4/2:0"))
	assert.Equal(t, []entities.ReadRange{rng("/6/4/2:0", "/6/4/2:100")}, got)
}

func TestMergeRanges_MalformedLeavesListUnchanged(t *testing.T) {
	existing := []entities.ReadRange{rng("/6/4/2:0", "/6/4/2:100")}

	assert.Equal(t, existing, MergeRanges(existing, rng("chapter-3", "/6/4/2:200")))
	assert.Equal(t, existing, MergeRanges(existing, rng("/6/4/2:150", "")))

	// A corrupt existing entry also freezes the list rather than dropping
	// anything.
	corrupt := []entities.ReadRange{rng("not-a-cfi", "/6/4/2:100")}
	assert.Equal(t, corrupt, MergeRanges(corrupt, rng("/6/4/2:0", "/6/4/2:50")))
}

func TestMergeRanges_CapEvictsOldest(t *testing.T) {
	var ranges []entities.ReadRange
	for i := 0; i < MaxRanges; i++ {
		// Disjoint ranges in distinct spine steps, all even indices.
		step := (i + 1) * 2
		ranges = MergeRanges(ranges, entities.ReadRange{
			Start: fmtRange(step, 0),
			End:   fmtRange(step, 10),
		})
	}
	assert.Len(t, ranges, MaxRanges)

	first := ranges[0]
	ranges = MergeRanges(ranges, entities.ReadRange{
		Start: fmtRange((MaxRanges+1)*2, 0),
		End:   fmtRange((MaxRanges+1)*2, 10),
	})
	assert.Len(t, ranges, MaxRanges)
	assert.NotContains(t, ranges, first)
}

func fmtRange(step, offset int) string {
	return "/6/" + strconv.Itoa(step) + "/2:" + strconv.Itoa(offset)
}
