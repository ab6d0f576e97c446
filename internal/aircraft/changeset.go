package aircraft

import (
	"errors"
	"fmt"
	"time"
)

// ErrChangeSetLocked is the panic value raised when a locked change set is
// written to. That is always a bug in the caller.
var ErrChangeSetLocked = errors.New("change set is locked")

// Change is one field change inside a change set
type Change interface {
	Key() HistoryField
	Untyped() any
}

// ChangedValue records the new value of one field
type ChangedValue[T any] struct {
	Field HistoryField
	Value T
}

// Key returns the field that changed
func (c ChangedValue[T]) Key() HistoryField { return c.Field }

// Untyped returns the new value as an interface
func (c ChangedValue[T]) Untyped() any { return c.Value }

// ChangeSet is every field change caused by one message or one lookup. It is
// open while the changes are applied and then locked for good.
type ChangeSet struct {
	stamp   int64
	utc     time.Time
	locked  bool
	changes []Change
	fields  FieldMask
}

// NewChangeSet opens a change set
func NewChangeSet(stamp int64, utc time.Time) *ChangeSet {
	return &ChangeSet{stamp: stamp, utc: utc}
}

// Stamp is the logical time of the change
func (c *ChangeSet) Stamp() int64 {
	return c.stamp
}

// UTC is the wall-clock time of the change
func (c *ChangeSet) UTC() time.Time {
	return c.utc
}

// Locked reports whether the change set is closed to writes
func (c *ChangeSet) Locked() bool {
	return c.locked
}

// Lock closes the change set. Locking twice is fine.
func (c *ChangeSet) Lock() {
	c.locked = true
}

// EnsureLaterThan moves UTC forward by one tick if it is not after t
func (c *ChangeSet) EnsureLaterThan(t time.Time) {
	c.mustBeOpen()
	if !c.utc.After(t) {
		c.utc = t.Add(time.Nanosecond)
	}
}

// Changes returns the changes in the order they were made
func (c *ChangeSet) Changes() []Change {
	out := make([]Change, len(c.changes))
	copy(out, c.changes)
	return out
}

// Len returns the number of changes
func (c *ChangeSet) Len() int {
	return len(c.changes)
}

// HasChanges reports whether anything changed
func (c *ChangeSet) HasChanges() bool {
	return len(c.changes) > 0
}

// Fields returns the set of fields that changed
func (c *ChangeSet) Fields() FieldMask {
	return c.fields
}

// Touches reports whether any field in mask changed
func (c *ChangeSet) Touches(mask FieldMask) bool {
	return c.fields&mask != 0
}

// Value returns the value a field was changed to
func (c *ChangeSet) Value(field HistoryField) (any, bool) {
	if !c.fields.Has(field) {
		return nil, false
	}
	for i := len(c.changes) - 1; i >= 0; i-- {
		if c.changes[i].Key() == field {
			return c.changes[i].Untyped(), true
		}
	}
	return nil, false
}

func (c *ChangeSet) String() string {
	return fmt.Sprintf("changeset(stamp=%d utc=%s changes=%d)", c.stamp, c.utc.Format(time.RFC3339Nano), len(c.changes))
}

func (c *ChangeSet) add(change Change) {
	c.mustBeOpen()
	c.changes = append(c.changes, change)
	c.fields = c.fields.With(change.Key())
}

func (c *ChangeSet) mustBeOpen() {
	if c.locked {
		panic(ErrChangeSetLocked)
	}
}
