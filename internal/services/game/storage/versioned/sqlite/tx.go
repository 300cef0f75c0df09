package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"sync"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
	"github.com/louisbranch/gamestate/internal/platform/id"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
)

// txn is one transaction pinned to a dedicated connection. Its mutex
// serializes statements with a force rollback issued by Store.Close.
type txn struct {
	id       string
	write    bool
	registry *txRegistry

	mu        sync.Mutex
	conn      *sql.Conn
	done      bool
	committed bool
}

// txRegistry tracks open transactions so Store.Close can roll them back.
type txRegistry struct {
	mu     sync.Mutex
	open   map[string]*txn
	closed bool
}

func newTxRegistry() *txRegistry {
	return &txRegistry{open: make(map[string]*txn)}
}

func (r *txRegistry) add(t *txn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return apperrors.New(apperrors.CodeStoreUnavailable, "store is closed")
	}
	r.open[t.id] = t
	return nil
}

func (r *txRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, id)
}

func (r *txRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// shutdown refuses new transactions and returns the ones still open.
func (r *txRegistry) shutdown() []*txn {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	open := make([]*txn, 0, len(r.open))
	for _, t := range r.open {
		open = append(open, t)
	}
	return open
}

func (r *txRegistry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// begin pins a connection and starts a transaction: IMMEDIATE for writers,
// DEFERRED for readers.
func (s *Store) begin(ctx context.Context, write bool) (*txn, error) {
	if s.registry.isClosed() {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "store is closed")
	}
	txID, err := id.NewID()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreTransactionFailed, "allocate transaction id", err)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()
	conn, err := s.sqlDB.Conn(acquireCtx)
	if err != nil {
		if ctx.Err() == nil && acquireCtx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.CodeStoreTimeout, "acquire connection", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "acquire connection", err)
	}

	mode := "DEFERRED"
	if write {
		mode = "IMMEDIATE"
	}
	if _, err := conn.ExecContext(ctx, "BEGIN "+mode); err != nil {
		_ = conn.Close()
		return nil, storeError("begin "+mode, versioned.Key{}, err)
	}

	t := &txn{id: txID, write: write, registry: s.registry, conn: conn}
	if err := s.registry.add(t); err != nil {
		t.close()
		return nil, err
	}
	return t, nil
}

// withConn runs fn against the pinned connection unless the transaction has
// already been committed or rolled back.
func (t *txn) withConn(fn func(*sql.Conn) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxClosed
	}
	return fn(t.conn)
}

func (t *txn) commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return storeError("commit", versioned.Key{}, errTxClosed)
	}
	if _, err := t.conn.ExecContext(ctx, "COMMIT"); err != nil {
		// A failed COMMIT may leave the transaction open; close rolls it back.
		return storeError("commit", versioned.Key{}, err)
	}
	t.done = true
	t.committed = true
	return nil
}

// close rolls back unless committed, releases the connection and deregisters
// the transaction. It is idempotent.
func (t *txn) close() {
	defer t.registry.remove(t.id)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return
	}
	if !t.done {
		t.done = true
		if _, err := t.conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
			log.Printf("rollback transaction %s: %v", t, err)
			discard(t.conn)
			t.conn = nil
			return
		}
	}
	if err := t.conn.Close(); err != nil {
		log.Printf("release connection for transaction %s: %v", t, err)
	}
	t.conn = nil
}

// discard drops a connection whose transaction state is unknown instead of
// returning it to the pool.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error {
		return driver.ErrBadConn
	})
}

func (t *txn) String() string {
	mode := "read"
	if t.write {
		mode = "write"
	}
	return fmt.Sprintf("%s(%s)", t.id, mode)
}
