package crdt

// Stamp is a Lamport timestamp: a logical clock value paired with the actor
// (device) that produced it. Stamps totally order concurrent register
// writes so every replica picks the same winner.
type Stamp struct {
	Clock uint64 `json:"clock"`
	Actor string `json:"actor"`
}

// Newer reports whether a supersedes b. Higher clock wins; equal clocks are
// broken by the lexicographically greater actor so the order is total and
// identical on every replica.
func (a Stamp) Newer(b Stamp) bool {
	if a.Clock != b.Clock {
		return a.Clock > b.Clock
	}
	return a.Actor > b.Actor
}

// IsZero reports whether the stamp has never been written.
func (s Stamp) IsZero() bool {
	return s.Clock == 0 && s.Actor == ""
}
