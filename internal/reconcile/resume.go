package reconcile

import "github.com/vrwarp/versicle/internal/entities"

// ResolveStartLocation picks where the reader resumes. The most recent
// session wins and the reader resumes at that session's start, not its end;
// when only pre-session legacy ranges exist, the end of the last range
// stands in for furthest progress. ok is false when there is nothing to
// resume from.
func ResolveStartLocation(entry *entities.HistoryEntry) (location string, ok bool) {
	if entry == nil {
		return "", false
	}
	if len(entry.Sessions) > 0 {
		// Recency by timestamp, not list position: a replica merge can
		// interleave sessions from two devices.
		best := entry.Sessions[0]
		for _, s := range entry.Sessions[1:] {
			if s.Timestamp > best.Timestamp {
				best = s
			}
		}
		return best.Start, true
	}
	if n := len(entry.ReadRanges); n > 0 {
		return entry.ReadRanges[n-1].End, true
	}
	return "", false
}

// SuggestResume arbitrates across devices: among the remote devices whose
// LastRead is strictly newer than the local device's, the one furthest
// through the book is suggested; percentage ties keep the first found. The
// suggestion never overwrites local progress; surfacing it is the caller's
// whole obligation. A book the local device has never opened makes every
// remote device eligible.
func SuggestResume(progress []entities.DeviceProgress, localDeviceID string) *entities.DeviceProgress {
	var localLastRead int64
	for _, p := range progress {
		if p.DeviceID == localDeviceID {
			localLastRead = p.LastRead
			break
		}
	}

	var best *entities.DeviceProgress
	for i := range progress {
		p := &progress[i]
		if p.DeviceID == localDeviceID {
			continue
		}
		if p.LastRead <= localLastRead {
			continue
		}
		if best == nil || p.Percentage > best.Percentage {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}
