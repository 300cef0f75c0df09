package versioned

import (
	"fmt"
	"maps"
	"sync"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
)

// DefaultVersion is the version reported for objects that were never persisted.
const DefaultVersion int64 = 1

// Versioned is a decoded value with the version it was read at.
type Versioned struct {
	Value   any
	Version int64
}

// Persisted reports whether the object has ever been written or bumped.
func (v Versioned) Persisted() bool {
	return v.Version > DefaultVersion
}

// Updates accumulates the latest version per object type across a whole
// continuation tree. One Updates value is shared by every Results of a
// transaction.
type Updates struct {
	mu       sync.Mutex
	versions map[string]int64
}

// NewUpdates returns an empty accumulator.
func NewUpdates() *Updates {
	return &Updates{versions: make(map[string]int64)}
}

// Record stores version as the latest version of typ.
func (u *Updates) Record(typ string, version int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.versions[typ] = version
}

// Version returns the latest recorded version of typ.
func (u *Updates) Version(typ string) (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	version, ok := u.versions[typ]
	return version, ok
}

// Map returns a copy of the accumulated type to version map.
func (u *Updates) Map() map[string]int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return maps.Clone(u.versions)
}

// Results holds what one step of an execution produced.
type Results struct {
	reads   map[Key]Versioned
	extras  map[string]any
	updates *Updates
}

// NewResults returns empty Results bound to a shared updates accumulator.
func NewResults(updates *Updates) *Results {
	if updates == nil {
		updates = NewUpdates()
	}
	return &Results{
		reads:   make(map[Key]Versioned),
		extras:  make(map[string]any),
		updates: updates,
	}
}

// SetRead records the value read for key.
func (r *Results) SetRead(key Key, value Versioned) {
	r.reads[key] = value
}

// SetExtra records a pass-through value.
func (r *Results) SetExtra(name string, value any) {
	r.extras[name] = value
}

// Lookup returns the value read for (typ, id).
func (r *Results) Lookup(typ, id string) (Versioned, bool) {
	value, ok := r.reads[Key{Type: typ, ID: id}]
	return value, ok
}

// ExtraValue returns the pass-through value named name.
func (r *Results) ExtraValue(name string) (any, bool) {
	value, ok := r.extras[name]
	return value, ok
}

// Updates returns the type to latest version map accumulated so far. After a
// successful execution it holds the committed version of every type written
// or bumped anywhere in the transaction.
func (r *Results) Updates() map[string]int64 {
	return r.updates.Map()
}

// Accumulator exposes the shared updates accumulator to backends.
func (r *Results) Accumulator() *Updates {
	return r.updates
}

// Read returns the typed value and version read for (typ, id).
func Read[T any](r *Results, typ, id string) (T, int64, error) {
	var zero T
	if r == nil {
		return zero, 0, apperrors.New(apperrors.CodeStoreInvalidQuery, "results are required")
	}
	value, ok := r.Lookup(typ, id)
	if !ok {
		key := Key{Type: typ, ID: id}
		return zero, 0, apperrors.WrapWithMetadata(apperrors.CodeStoreInvalidQuery,
			fmt.Sprintf("%s was not read by this query", key), keyMetadata(key), nil)
	}
	typed, ok := value.Value.(T)
	if !ok {
		key := Key{Type: typ, ID: id}
		return zero, 0, apperrors.WrapWithMetadata(apperrors.CodeStoreInvalidQuery,
			fmt.Sprintf("%s holds %T, not %T", key, value.Value, zero), keyMetadata(key), nil)
	}
	return typed, value.Version, nil
}

// Extra returns the typed pass-through value named name.
func Extra[T any](r *Results, name string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	value, ok := r.ExtraValue(name)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}
