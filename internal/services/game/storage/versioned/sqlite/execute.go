package sqlite

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxDepth bounds continuation nesting.
const maxDepth = 64

// Execute runs q and its whole continuation tree in one transaction and
// commits once at the end. Any failure, at any depth, rolls back everything.
//
// The returned Results are those of q, or of the last replacing continuation;
// their updates map holds the committed version of every type written or
// bumped anywhere in the tree.
func (s *Store) Execute(ctx context.Context, q *versioned.Query) (*versioned.Results, error) {
	if s == nil || s.sqlDB == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "storage is not configured")
	}
	if q == nil {
		return nil, apperrors.New(apperrors.CodeStoreInvalidQuery, "query is required")
	}
	if err := q.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	ctx, span := s.telemetry.start(ctx, q.Writes(), len(q.Steps()))
	outcome := outcomeRolledBack
	var err error
	defer func() {
		s.telemetry.finish(ctx, span, q.Writes(), outcome, started, err)
	}()

	tx, err := s.begin(ctx, q.Writes())
	if err != nil {
		return nil, err
	}
	defer tx.close()

	updates := versioned.NewUpdates()
	results, err := s.run(ctx, span, tx, q, updates, 0)
	if err != nil {
		return nil, err
	}
	if err = tx.commit(ctx); err != nil {
		return nil, err
	}
	outcome = outcomeCommitted
	return results, nil
}

// run applies one query's writes, bumps, reads and extras, then walks its
// continuations depth-first on the same transaction.
func (s *Store) run(ctx context.Context, span trace.Span, tx *txn, q *versioned.Query, updates *versioned.Updates, depth int) (*versioned.Results, error) {
	if err := q.Err(); err != nil {
		return nil, err
	}
	if depth > maxDepth {
		return nil, apperrors.New(apperrors.CodeStoreInvalidQuery, fmt.Sprintf("continuations nested deeper than %d", maxDepth))
	}
	if q.Writes() && !tx.write {
		return nil, apperrors.New(apperrors.CodeStoreUnsupportedOperation, "write query nested in read-only transaction")
	}

	for _, w := range q.WriteEntries() {
		payload, err := s.schemas.Encode(w.Type, w.Value)
		if err != nil {
			return nil, serializationError("encode", w.Key, err)
		}
		version, err := tx.upsertObject(ctx, w.Key, payload)
		if err != nil {
			return nil, err
		}
		updates.Record(w.Type, version)
	}

	for _, b := range q.BumpEntries() {
		version, err := s.bump(ctx, tx, b)
		if err != nil {
			return nil, err
		}
		updates.Record(b.Type, version)
	}

	results := versioned.NewResults(updates)
	for _, r := range q.ReadEntries() {
		value, err := s.read(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		results.SetRead(r.Key, value)
	}

	for _, e := range q.ExtraEntries() {
		results.SetExtra(e.Name, e.Value)
	}

	current := results
	for i, step := range q.Steps() {
		span.AddEvent("continuation", trace.WithAttributes(
			attribute.Int("store.depth", depth),
			attribute.Int("store.step", i),
			attribute.Bool("store.replace", step.Replace),
		))
		next, err := step.Next(current)
		if err != nil {
			return nil, fmt.Errorf("continuation %d at depth %d: %w", i, depth, err)
		}
		if next == nil {
			continue
		}
		nested, err := s.run(ctx, span, tx, next, updates, depth+1)
		if err != nil {
			return nil, err
		}
		if step.Replace {
			current = nested
		}
	}
	return current, nil
}

func (s *Store) bump(ctx context.Context, tx *txn, b versioned.BumpEntry) (int64, error) {
	version, ok, err := tx.bumpObject(ctx, b.Key)
	if err != nil {
		return 0, err
	}
	if ok {
		return version, nil
	}

	value, err := s.defaultValue(b.Key, b.Default)
	if err != nil {
		return 0, err
	}
	payload, err := s.schemas.Encode(b.Type, value)
	if err != nil {
		return 0, serializationError("encode default", b.Key, err)
	}
	return tx.insertObject(ctx, b.Key, payload)
}

func (s *Store) read(ctx context.Context, tx *txn, r versioned.ReadEntry) (versioned.Versioned, error) {
	payload, version, ok, err := tx.loadObject(ctx, r.Key)
	if err != nil {
		return versioned.Versioned{}, err
	}
	if !ok {
		value, err := s.defaultValue(r.Key, r.Default)
		if err != nil {
			return versioned.Versioned{}, err
		}
		return versioned.Versioned{Value: value, Version: versioned.DefaultVersion}, nil
	}

	value, err := s.schemas.Decode(r.Type, payload)
	if err != nil {
		return versioned.Versioned{}, serializationError("decode", r.Key, err)
	}
	return versioned.Versioned{Value: value, Version: version}, nil
}

func (s *Store) defaultValue(key versioned.Key, factory versioned.Factory) (any, error) {
	if factory != nil {
		return factory(), nil
	}
	value, err := s.schemas.Default(key.Type)
	if err != nil {
		return nil, serializationError("default", key, err)
	}
	return value, nil
}
