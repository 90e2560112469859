package reconcile

import "github.com/vrwarp/versicle/internal/entities"

// CoalesceSession folds a new position event into the session list. An
// event within SessionWindowMs of the last session of the same source
// extends that session in place instead of opening a new one, so
// per-sentence position updates do not explode into thousands of entries.
// Continuous playback is exempt: every playback stretch stays discrete.
func CoalesceSession(sessions []entities.Session, s entities.Session) []entities.Session {
	if len(sessions) > 0 {
		last := &sessions[len(sessions)-1]
		within := s.Timestamp >= last.Timestamp && s.Timestamp-last.Timestamp < SessionWindowMs
		if last.Source == s.Source && s.Source != entities.SessionSourcePlayback && within {
			last.End = s.End
			last.Timestamp = s.Timestamp
			if s.Label != "" {
				last.Label = s.Label
			}
			return sessions
		}
	}
	sessions = append(sessions, s)
	if len(sessions) > MaxSessions {
		sessions = sessions[len(sessions)-MaxSessions:]
	}
	return sessions
}

// Record is the single entry point that mutates a history entry: it merges
// the range into the cover, coalesces the session and stamps LastUpdated.
func Record(entry entities.HistoryEntry, r entities.ReadRange, s entities.Session) entities.HistoryEntry {
	entry.ReadRanges = MergeRanges(entry.ReadRanges, r)
	entry.Sessions = CoalesceSession(entry.Sessions, s)
	if s.Timestamp > entry.LastUpdated {
		entry.LastUpdated = s.Timestamp
	}
	return entry
}
