package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
)

// firstVersion is the version of a row the first time it is persisted; the
// virtual version of an absent row is versioned.DefaultVersion.
const firstVersion = versioned.DefaultVersion + 1

// upsertObject replaces the value of key and returns its new version,
// COALESCE(existing, 1) + 1.
func (t *txn) upsertObject(ctx context.Context, key versioned.Key, payload []byte) (int64, error) {
	var version int64
	err := t.withConn(func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`INSERT INTO objects (type, id, value, version)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(type, id) DO UPDATE SET
			    value = excluded.value,
			    version = objects.version + 1
			 RETURNING version`,
			key.Type, key.ID, payload, firstVersion,
		).Scan(&version)
	})
	if err != nil {
		return 0, storeError("write", key, err)
	}
	return version, nil
}

// bumpObject increments the version of an existing row in place. It reports
// false when the row does not exist.
func (t *txn) bumpObject(ctx context.Context, key versioned.Key) (int64, bool, error) {
	var version int64
	err := t.withConn(func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`UPDATE objects SET version = version + 1
			 WHERE type = ? AND id = ?
			 RETURNING version`,
			key.Type, key.ID,
		).Scan(&version)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeError("bump", key, err)
	}
	return version, true, nil
}

// insertObject persists a row that is known to be absent at firstVersion.
func (t *txn) insertObject(ctx context.Context, key versioned.Key, payload []byte) (int64, error) {
	var version int64
	err := t.withConn(func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`INSERT INTO objects (type, id, value, version)
			 VALUES (?, ?, ?, ?)
			 RETURNING version`,
			key.Type, key.ID, payload, firstVersion,
		).Scan(&version)
	})
	if err != nil {
		return 0, storeError("insert", key, err)
	}
	return version, nil
}

// loadObject returns the stored payload and version of key.
func (t *txn) loadObject(ctx context.Context, key versioned.Key) ([]byte, int64, bool, error) {
	var payload []byte
	var version int64
	err := t.withConn(func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`SELECT value, version FROM objects WHERE type = ? AND id = ?`,
			key.Type, key.ID,
		).Scan(&payload, &version)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, storeError("read", key, err)
	}
	return payload, version, true, nil
}
