// Package crdt implements the shared mutable document: named collections of
// last-writer-wins registers ordered by Lamport stamps, durably logged
// through the local store so state survives restarts before any replica has
// been seen. Two replicas that exchange their logs converge to the same
// state whatever the arrival order; the document guarantees convergence,
// not linear ordering.
package crdt

import (
	"encoding/json"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"

	"github.com/vrwarp/versicle/internal/entities"
)

var Error = errs.Class("crdt")

// UpdateLog is the slice of the local store the document persists through.
// *updatelog.Repository satisfies it.
type UpdateLog interface {
	Append(*entities.UpdateRecord) (uint64, error)
	Since(uint64) ([]entities.UpdateRecord, error)
	LatestCheckpoint() (*entities.CheckpointRecord, error)
}

// Change describes one committed mutation batch for observers. Remote is
// true when the change arrived from another replica's update.
type Change struct {
	Collection string
	EntityIDs  []string
	Remote     bool
}

// Observer receives changes for one collection. Callbacks run synchronously
// after the mutation commits and must not write back into the document.
type Observer func(Change)

// Document is the convergent state shared across the user's devices. It is
// owned by whoever constructs it and injected into every component that
// reads or writes replicated state; there is no package-level instance.
type Document struct {
	mu          sync.Mutex
	actor       string
	clock       uint64
	collections map[string]map[string]*entity
	updates     UpdateLog
	lastSeq     uint64
	observers   map[string][]Observer
	txDepth     int
	txPending   []Change
}

// NewDocument creates an empty document for the given actor (the local
// device id), persisting through updates.
func NewDocument(actor string, updates UpdateLog) *Document {
	return &Document{
		actor:       actor,
		collections: make(map[string]map[string]*entity),
		updates:     updates,
		observers:   make(map[string][]Observer),
	}
}

// Actor returns the local device id the document stamps writes with.
func (d *Document) Actor() string {
	return d.actor
}

// Clock returns the current Lamport clock value.
func (d *Document) Clock() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// LastSeq returns the log sequence of the newest persisted update.
func (d *Document) LastSeq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeq
}

// Observe registers fn for changes to one collection. Registration is not
// concurrency-safe with mutation; wire observers during composition.
func (d *Document) Observe(collection string, fn Observer) {
	d.observers[collection] = append(d.observers[collection], fn)
}

// Load restores the document from the newest checkpoint plus every later
// logged update. Call once before the document is shared.
func (d *Document) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var since uint64
	cp, err := d.updates.LatestCheckpoint()
	if err != nil {
		return err
	}
	if cp != nil {
		var snap snapshot
		if err := json.Unmarshal(cp.Payload, &snap); err != nil {
			return Error.Wrap(err)
		}
		d.collections = snap.Collections
		if d.collections == nil {
			d.collections = make(map[string]map[string]*entity)
		}
		if snap.Clock > d.clock {
			d.clock = snap.Clock
		}
		since = cp.Seq
		d.lastSeq = cp.Seq
	}

	recs, err := d.updates.Since(since)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		var u Update
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			// A corrupt log row is skipped, not fatal; the rest of the
			// log still replays.
			log.WithFields(log.Fields{"seq": rec.Seq, "error": err}).
				Warn("skipping undecodable update record")
			continue
		}
		d.mergeLocked(u)
		if c := u.maxClock(); c > d.clock {
			d.clock = c
		}
		d.lastSeq = rec.Seq
	}
	return nil
}

// Get decodes the entity's winning registers into out. ok is false when the
// entity does not exist or is deleted.
func (d *Document) Get(collection, id string, out any) (bool, error) {
	d.mu.Lock()
	raw, ok := d.rawLocked(collection, id)
	d.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, Error.Wrap(err)
	}
	return true, nil
}

// List decodes every live entity of a collection into a map keyed by entity
// id. decode receives the raw JSON and the id and returns an error to skip
// that entity (logged, never fatal).
func (d *Document) List(collection string, decode func(id string, raw json.RawMessage) error) error {
	d.mu.Lock()
	type pair struct {
		id  string
		raw json.RawMessage
	}
	var pairs []pair
	for id := range d.collections[collection] {
		if raw, ok := d.rawLocked(collection, id); ok {
			pairs = append(pairs, pair{id, raw})
		}
	}
	d.mu.Unlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })
	for _, p := range pairs {
		if err := decode(p.id, p.raw); err != nil {
			log.WithFields(log.Fields{
				"collection": collection,
				"entity":     p.id,
				"error":      err,
			}).Warn("skipping undecodable entity")
		}
	}
	return nil
}

// rawLocked assembles the winning JSON value of a live entity.
func (d *Document) rawLocked(collection, id string) (json.RawMessage, bool) {
	ent, ok := d.collections[collection][id]
	if !ok || !ent.live() {
		return nil, false
	}
	if reg, ok := ent.Fields[valueField]; ok {
		return reg.Value, true
	}
	fields := make(map[string]json.RawMessage, len(ent.Fields))
	for name, reg := range ent.Fields {
		fields[name] = reg.Value
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set writes an entity field by field: the value is flattened into its JSON
// fields and each becomes one register write under a fresh stamp. Fields
// absent from value keep their current registers, so two devices editing
// different fields both survive the merge.
func (d *Document) Set(collection, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return Error.Wrap(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Error.Wrap(err)
	}
	return d.write(collection, id, func(stamp Stamp) Update {
		regs := make(map[string]Register, len(fields))
		for name, fv := range fields {
			regs[name] = Register{Value: fv, Stamp: stamp}
		}
		return Update{Collection: collection, EntityID: id, Fields: regs}
	})
}

// SetFields writes only the named fields, for targeted edits like a rename
// or a tag change.
func (d *Document) SetFields(collection, id string, fields map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(fields))
	for name, fv := range fields {
		raw, err := json.Marshal(fv)
		if err != nil {
			return Error.Wrap(err)
		}
		encoded[name] = raw
	}
	return d.write(collection, id, func(stamp Stamp) Update {
		regs := make(map[string]Register, len(encoded))
		for name, fv := range encoded {
			regs[name] = Register{Value: fv, Stamp: stamp}
		}
		return Update{Collection: collection, EntityID: id, Fields: regs}
	})
}

// SetValue replaces an entity wholesale under a single register, for
// entities without useful field structure (per-device progress, where each
// device only ever writes its own entry).
func (d *Document) SetValue(collection, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return Error.Wrap(err)
	}
	return d.write(collection, id, func(stamp Stamp) Update {
		return Update{
			Collection: collection,
			EntityID:   id,
			Fields:     map[string]Register{valueField: {Value: raw, Stamp: stamp}},
		}
	})
}

// Delete tombstones an entity. A concurrent field write with a newer stamp
// revives it; otherwise every replica converges on the deletion.
func (d *Document) Delete(collection, id string) error {
	return d.write(collection, id, func(stamp Stamp) Update {
		return Update{
			Collection: collection,
			EntityID:   id,
			Tombstone:  &Register{Stamp: stamp},
		}
	})
}

func (d *Document) write(collection, id string, build func(Stamp) Update) error {
	d.mu.Lock()
	d.clock++
	u := build(Stamp{Clock: d.clock, Actor: d.actor})
	d.mergeLocked(u)
	err := d.persistLocked(u)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	change := Change{Collection: collection, EntityIDs: []string{id}}
	if d.txDepth > 0 {
		d.txPending = append(d.txPending, change)
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()
	d.notify(change)
	return nil
}

// Transact groups several writes into one change notification per
// collection, so observers see a single event for a multi-field flow like
// ingesting a book.
func (d *Document) Transact(fn func() error) error {
	d.mu.Lock()
	d.txDepth++
	d.mu.Unlock()

	err := fn()

	d.mu.Lock()
	d.txDepth--
	var pending []Change
	if d.txDepth == 0 {
		pending = coalesceChanges(d.txPending)
		d.txPending = nil
	}
	d.mu.Unlock()

	for _, change := range pending {
		d.notify(change)
	}
	return err
}

// ApplyRemote merges one update from another replica. Registers the local
// state already supersedes are ignored; anything that wins is persisted to
// the local log and observers are notified once. Applying the same update
// twice is a no-op.
func (d *Document) ApplyRemote(u Update) error {
	d.mu.Lock()
	won := d.mergeLocked(u)
	if !won {
		d.mu.Unlock()
		return nil
	}
	if c := u.maxClock(); c > d.clock {
		d.clock = c
	}
	if err := d.persistLocked(u); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()
	d.notify(Change{Collection: u.Collection, EntityIDs: []string{u.EntityID}, Remote: true})
	return nil
}

// UpdatesSince returns the locally-logged updates with Seq > seq, the pull
// half of the replication-channel seam.
func (d *Document) UpdatesSince(seq uint64) ([]SeqUpdate, error) {
	recs, err := d.updates.Since(seq)
	if err != nil {
		return nil, err
	}
	out := make([]SeqUpdate, 0, len(recs))
	for _, rec := range recs {
		var u Update
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			log.WithFields(log.Fields{"seq": rec.Seq, "error": err}).
				Warn("skipping undecodable update record")
			continue
		}
		out = append(out, SeqUpdate{Seq: rec.Seq, Update: u})
	}
	return out, nil
}

// Snapshot serializes the full document state for a checkpoint, returning
// the payload and the last log sequence it covers.
func (d *Document) Snapshot() ([]byte, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(snapshot{Clock: d.clock, Collections: d.collections})
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	return payload, d.lastSeq, nil
}

type snapshot struct {
	Clock       uint64                        `json:"clock"`
	Collections map[string]map[string]*entity `json:"collections"`
}

// mergeLocked folds an update into memory register by register, reporting
// whether any register won.
func (d *Document) mergeLocked(u Update) bool {
	coll := d.collections[u.Collection]
	if coll == nil {
		coll = make(map[string]*entity)
		d.collections[u.Collection] = coll
	}
	ent := coll[u.EntityID]
	if ent == nil {
		ent = &entity{Fields: make(map[string]Register)}
		coll[u.EntityID] = ent
	}

	won := false
	for name, reg := range u.Fields {
		current, ok := ent.Fields[name]
		if !ok || reg.Stamp.Newer(current.Stamp) {
			ent.Fields[name] = reg
			won = true
		}
	}
	if u.Tombstone != nil {
		if ent.Tombstone == nil || u.Tombstone.Stamp.Newer(ent.Tombstone.Stamp) {
			ent.Tombstone = u.Tombstone
			won = true
		}
	}
	return won
}

func (d *Document) persistLocked(u Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return Error.Wrap(err)
	}
	seq, err := d.updates.Append(&entities.UpdateRecord{
		Collection: u.Collection,
		EntityID:   u.EntityID,
		Actor:      d.actor,
		Clock:      u.maxClock(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	d.lastSeq = seq
	return nil
}

func (d *Document) notify(change Change) {
	for _, fn := range d.observers[change.Collection] {
		fn(change)
	}
}

func coalesceChanges(changes []Change) []Change {
	byCollection := make(map[string]*Change)
	var order []string
	for _, c := range changes {
		agg, ok := byCollection[c.Collection]
		if !ok {
			copied := c
			byCollection[c.Collection] = &copied
			order = append(order, c.Collection)
			continue
		}
		agg.EntityIDs = append(agg.EntityIDs, c.EntityIDs...)
		agg.Remote = agg.Remote && c.Remote
	}
	out := make([]Change, 0, len(order))
	for _, name := range order {
		out = append(out, *byCollection[name])
	}
	return out
}
