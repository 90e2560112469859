package crdt

import "encoding/json"

// Collection names of the shared document.
const (
	CollectionBooks       = "books"
	CollectionProgress    = "progress"
	CollectionHistory     = "history"
	CollectionAnnotations = "annotations"
	CollectionDevices     = "devices"
	CollectionSettings    = "settings"
)

// valueField is the register key used for entities replicated whole
// rather than field by field.
const valueField = "@value"

// Register is one last-writer-wins cell: a JSON value plus the stamp of the
// write that produced it.
type Register struct {
	Value json.RawMessage `json:"value,omitempty"`
	Stamp Stamp           `json:"stamp"`
}

// Update is the exchange unit of the replication log: the registers one
// mutation touched on one entity. Applying an update merges each register
// independently, so updates commute and replicas converge regardless of
// arrival order.
type Update struct {
	Collection string              `json:"collection"`
	EntityID   string              `json:"entity_id"`
	Fields     map[string]Register `json:"fields,omitempty"`
	Tombstone  *Register           `json:"tombstone,omitempty"`
}

// SeqUpdate is an update with its position in the local log, the unit the
// replication channel pulls.
type SeqUpdate struct {
	Seq    uint64 `json:"seq"`
	Update Update `json:"update"`
}

// maxClock returns the highest clock the update carries.
func (u Update) maxClock() uint64 {
	var max uint64
	for _, reg := range u.Fields {
		if reg.Stamp.Clock > max {
			max = reg.Stamp.Clock
		}
	}
	if u.Tombstone != nil && u.Tombstone.Stamp.Clock > max {
		max = u.Tombstone.Stamp.Clock
	}
	return max
}

// entity is one keyed value of a collection: its field registers plus an
// optional deletion tombstone. The entity is live while any field write is
// newer than the tombstone.
type entity struct {
	Fields    map[string]Register `json:"fields,omitempty"`
	Tombstone *Register           `json:"tombstone,omitempty"`
}

func (e *entity) live() bool {
	if e.Tombstone == nil {
		return true
	}
	for _, reg := range e.Fields {
		if reg.Stamp.Newer(e.Tombstone.Stamp) {
			return true
		}
	}
	return false
}
