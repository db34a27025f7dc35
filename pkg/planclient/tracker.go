package planclient

import (
	"cmp"
	"slices"

	"github.com/hyperengineering/holocene/internal/types"
)

// DeletePolicy controls what Delete does with a pending Update for the same id.
type DeletePolicy int

const (
	// KeepPendingUpdate leaves the Update in place, so the batch carries an
	// Update immediately followed by a Delete for the id.
	KeepPendingUpdate DeletePolicy = iota

	// DropPendingUpdate discards the Update, so only the Delete is sent.
	DropPendingUpdate
)

// String returns the policy name used on the command line.
func (p DeletePolicy) String() string {
	switch p {
	case KeepPendingUpdate:
		return "keep"
	case DropPendingUpdate:
		return "drop"
	default:
		return "unknown"
	}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithDeletePolicy sets how Delete treats a pending Update.
func WithDeletePolicy(p DeletePolicy) TrackerOption {
	return func(t *Tracker) {
		t.policy = p
	}
}

// slot is one pending intent payload and its submission sequence number.
type slot struct {
	seq  uint64
	data *types.PlanPatch
}

// entry holds the Create and Update slots for one record id.
type entry struct {
	create *slot
	update *slot
}

type deleteIntent struct {
	seq uint64
	id  string
}

// Tracker accumulates edits as the smallest ordered list of intents that
// reproduces their net effect. There is at most one Create and one Update
// per id; ordering across ids follows submission order.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	policy  DeletePolicy
	seq     uint64
	entries map[string]*entry
	deletes []deleteIntent
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the configured delete policy.
func (t *Tracker) Policy() DeletePolicy {
	return t.policy
}

func (t *Tracker) next() uint64 {
	t.seq++
	return t.seq
}

func (t *Tracker) entryFor(id string) *entry {
	e, ok := t.entries[id]
	if !ok {
		e = &entry{}
		t.entries[id] = e
	}
	return e
}

// Add records a Create intent for a new row. plan.ID is the temporary
// client id; it identifies the row locally and is never sent.
func (t *Tracker) Add(plan types.Plan) {
	e := t.entryFor(plan.ID)
	e.create = &slot{seq: t.next(), data: types.PatchFrom(plan)}
}

// Edit records the current snapshot of a row after a change.
//
// A pending Create absorbs the snapshot. A pending Update is replaced by
// it. Otherwise a new Update carrying the full snapshot is appended.
func (t *Tracker) Edit(plan types.Plan) {
	e := t.entryFor(plan.ID)
	switch {
	case e.create != nil:
		e.create.data = e.create.data.Merge(types.PatchFrom(plan))
	case e.update != nil:
		e.update.data = types.PatchFrom(plan)
	default:
		e.update = &slot{seq: t.next(), data: types.PatchFrom(plan)}
	}
}

// Delete records the removal of a row.
//
// Deleting a row that is still pending creation drops its Create and emits
// nothing. Otherwise a Delete is appended once per id, and any pending
// Update is handled according to the delete policy.
func (t *Tracker) Delete(id string) {
	if e, ok := t.entries[id]; ok && e.create != nil {
		delete(t.entries, id)
		return
	}

	if t.policy == DropPendingUpdate {
		if e, ok := t.entries[id]; ok {
			e.update = nil
			delete(t.entries, id)
		}
	}

	if slices.ContainsFunc(t.deletes, func(d deleteIntent) bool { return d.id == id }) {
		return
	}
	t.deletes = append(t.deletes, deleteIntent{seq: t.next(), id: id})
}

// IsNew reports whether id belongs to a row that is pending creation.
func (t *Tracker) IsNew(id string) bool {
	e, ok := t.entries[id]
	return ok && e.create != nil
}

// Serialize returns the pending intents in submission order. Create
// payloads never carry an id; Update and Delete carry the store id.
func (t *Tracker) Serialize() []types.Operation {
	type pending struct {
		seq uint64
		op  types.Operation
	}

	all := make([]pending, 0, t.Len())
	for id, e := range t.entries {
		if e.create != nil {
			all = append(all, pending{e.create.seq, types.Operation{
				Action: types.ActionCreate,
				Data:   e.create.data.Clone(),
			}})
		}
		if e.update != nil {
			all = append(all, pending{e.update.seq, types.Operation{
				Action: types.ActionUpdate,
				ID:     id,
				Data:   e.update.data.Clone(),
			}})
		}
	}
	for _, d := range t.deletes {
		all = append(all, pending{d.seq, types.Operation{Action: types.ActionDelete, ID: d.id}})
	}

	slices.SortFunc(all, func(a, b pending) int {
		return cmp.Compare(a.seq, b.seq)
	})

	ops := make([]types.Operation, len(all))
	for i, p := range all {
		ops[i] = p.op
	}
	return ops
}

// Clear discards every pending intent.
func (t *Tracker) Clear() {
	t.entries = make(map[string]*entry)
	t.deletes = nil
}

// Len returns the number of pending intents.
func (t *Tracker) Len() int {
	n := len(t.deletes)
	for _, e := range t.entries {
		if e.create != nil {
			n++
		}
		if e.update != nil {
			n++
		}
	}
	return n
}

// Empty reports whether no intents are pending.
func (t *Tracker) Empty() bool {
	return t.Len() == 0
}
