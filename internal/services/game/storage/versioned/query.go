package versioned

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
)

// Key identifies a stored object.
type Key struct {
	Type string
	ID   string
}

// String renders the key as type/id.
func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// Factory builds the value an object has before it is first persisted.
type Factory func() any

// Continuation derives the next step of a transaction from the Results so
// far. Returning an error aborts and rolls back the whole transaction; a nil
// Query is a no-op step.
type Continuation func(*Results) (*Query, error)

// WriteEntry replaces the value of an object and increments its version.
type WriteEntry struct {
	Key
	Value any
}

// BumpEntry increments an object's version without touching its value.
// Default overrides the schema default when the object does not exist yet.
type BumpEntry struct {
	Key
	Default Factory
}

// ReadEntry loads an object's value and version.
// Default overrides the schema default when the object does not exist yet.
type ReadEntry struct {
	Key
	Default Factory
}

// ExtraEntry passes a value through to Results without persisting it.
type ExtraEntry struct {
	Name  string
	Value any
}

// Step is one continuation with its replace flag.
type Step struct {
	Next    Continuation
	Replace bool
}

// Query accumulates the operations of one transactional unit of work.
//
// Builder methods never fail at the call site; the first invalid call is
// recorded and reported by Err, and executing the query returns it before
// any transaction is opened.
type Query struct {
	write  bool
	writes []WriteEntry
	bumps  []BumpEntry
	reads  []ReadEntry
	extras []ExtraEntry
	steps  []Step
	err    error
}

// NewQuery returns an empty write-capable query.
func NewQuery() *Query {
	return &Query{write: true}
}

// NewReadQuery returns an empty read-only query. Update and Bump calls on it
// fail with ErrUnsupportedOperation.
func NewReadQuery() *Query {
	return &Query{}
}

// Update appends a write of value to (typ, id).
func (q *Query) Update(typ, id string, value any) *Query {
	key, ok := q.key("update", typ, id)
	if !ok {
		return q
	}
	if !q.write {
		q.fail(apperrors.WrapWithMetadata(apperrors.CodeStoreUnsupportedOperation,
			fmt.Sprintf("update %s on read-only query", key), keyMetadata(key), nil))
		return q
	}
	q.writes = append(q.writes, WriteEntry{Key: key, Value: value})
	return q
}

// Bump appends a version-only increment of (typ, id) using the schema default
// if the object does not exist yet.
func (q *Query) Bump(typ, id string) *Query {
	return q.BumpWithDefault(typ, id, nil)
}

// BumpWithDefault is Bump with an explicit default factory.
func (q *Query) BumpWithDefault(typ, id string, factory Factory) *Query {
	key, ok := q.key("bump", typ, id)
	if !ok {
		return q
	}
	if !q.write {
		q.fail(apperrors.WrapWithMetadata(apperrors.CodeStoreUnsupportedOperation,
			fmt.Sprintf("bump %s on read-only query", key), keyMetadata(key), nil))
		return q
	}
	q.bumps = append(q.bumps, BumpEntry{Key: key, Default: factory})
	return q
}

// Get appends a read of (typ, id) using the schema default if the object does
// not exist yet.
func (q *Query) Get(typ, id string) *Query {
	return q.GetWithDefault(typ, id, nil)
}

// GetWithDefault is Get with an explicit default factory.
func (q *Query) GetWithDefault(typ, id string, factory Factory) *Query {
	key, ok := q.key("get", typ, id)
	if !ok {
		return q
	}
	q.reads = append(q.reads, ReadEntry{Key: key, Default: factory})
	return q
}

// Extra attaches a pass-through value visible to continuations and callers.
func (q *Query) Extra(name string, value any) *Query {
	if strings.TrimSpace(name) == "" {
		q.fail(apperrors.New(apperrors.CodeStoreInvalidQuery, "extra name is required"))
		return q
	}
	q.extras = append(q.extras, ExtraEntry{Name: name, Value: value})
	return q
}

// Then appends a continuation. When replace is true the nested query's
// Results become the current Results for later continuations and for the
// caller; otherwise only its writes and bumps are observable, through the
// shared updates map.
func (q *Query) Then(next Continuation, replace bool) *Query {
	if next == nil {
		q.fail(apperrors.New(apperrors.CodeStoreInvalidQuery, "continuation is required"))
		return q
	}
	q.steps = append(q.steps, Step{Next: next, Replace: replace})
	return q
}

// ThenQuery appends a fixed nested query that ignores the Results so far.
func (q *Query) ThenQuery(nested *Query) *Query {
	if nested == nil {
		q.fail(apperrors.New(apperrors.CodeStoreInvalidQuery, "nested query is required"))
		return q
	}
	return q.Then(func(*Results) (*Query, error) { return nested, nil }, false)
}

// Err returns the first builder error, if any.
func (q *Query) Err() error {
	return q.err
}

// Writes reports whether the query may write; it selects the transaction mode.
func (q *Query) Writes() bool {
	return q.write
}

// Empty reports whether the query declares no operations at all.
func (q *Query) Empty() bool {
	return len(q.writes) == 0 && len(q.bumps) == 0 && len(q.reads) == 0 &&
		len(q.extras) == 0 && len(q.steps) == 0
}

// WriteEntries returns the declared writes in order.
func (q *Query) WriteEntries() []WriteEntry { return q.writes }

// BumpEntries returns the declared bumps in order.
func (q *Query) BumpEntries() []BumpEntry { return q.bumps }

// ReadEntries returns the declared reads in order.
func (q *Query) ReadEntries() []ReadEntry { return q.reads }

// ExtraEntries returns the declared extras in order.
func (q *Query) ExtraEntries() []ExtraEntry { return q.extras }

// Steps returns the declared continuations in order.
func (q *Query) Steps() []Step { return q.steps }

func (q *Query) key(op, typ, id string) (Key, bool) {
	key := Key{Type: strings.TrimSpace(typ), ID: strings.TrimSpace(id)}
	if key.Type == "" || key.ID == "" {
		q.fail(apperrors.New(apperrors.CodeStoreInvalidQuery, op+": object type and id are required"))
		return Key{}, false
	}
	return key, true
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}
