// Package reconcile holds the pure domain logic over reading-position data:
// range merge/coalescing, session coalescing, resume resolution and
// cross-device arbitration. It is the only code allowed to rewrite a
// history entry's ranges and sessions.
package reconcile

import (
	"github.com/vrwarp/versicle/internal/cfi"
	"github.com/vrwarp/versicle/internal/entities"
)

const (
	// MaxRanges bounds a history entry's coalesced range cover; the oldest
	// entries are evicted first.
	MaxRanges = 100

	// MaxSessions bounds the retained session list the same way.
	MaxSessions = 100

	// SessionWindowMs is how close together two same-source events must be
	// to extend one session instead of opening another.
	SessionWindowMs = 300_000
)

// MergeRanges inserts r into the coalesced cover and re-coalesces: the
// result is sorted, any two overlapping or touching ranges are combined,
// and merging an already-covered range returns the input unchanged. A
// malformed fragment identifier anywhere leaves the list as it was.
func MergeRanges(existing []entities.ReadRange, r entities.ReadRange) []entities.ReadRange {
	start, err := cfi.Parse(r.Start)
	if err != nil {
		return existing
	}
	end, err := cfi.Parse(r.End)
	if err != nil {
		return existing
	}
	if cfi.Compare(start, end) > 0 {
		r.Start, r.End = r.End, r.Start
		start, end = end, start
	}

	type parsed struct {
		rng        entities.ReadRange
		start, end cfi.Pointer
	}
	all := make([]parsed, 0, len(existing)+1)
	for _, ex := range existing {
		s, err := cfi.Parse(ex.Start)
		if err != nil {
			return existing
		}
		e, err := cfi.Parse(ex.End)
		if err != nil {
			return existing
		}
		all = append(all, parsed{rng: ex, start: s, end: e})
	}
	all = append(all, parsed{rng: r, start: start, end: end})

	// Insertion sort keeps this simple; the list is capped at MaxRanges.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && cfi.Compare(all[j].start, all[j-1].start) < 0; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}

	merged := all[:1]
	for _, cur := range all[1:] {
		last := &merged[len(merged)-1]
		// Touching counts as overlap: the cover stays minimal.
		if cfi.Compare(cur.start, last.end) <= 0 {
			if cfi.Compare(cur.end, last.end) > 0 {
				last.rng.End = cur.rng.End
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}

	out := make([]entities.ReadRange, 0, len(merged))
	for _, m := range merged {
		out = append(out, m.rng)
	}
	if len(out) > MaxRanges {
		out = out[len(out)-MaxRanges:]
	}
	return out
}
