// Package sqlite executes versioned queries against a single SQLite file.
//
// Writers start transactions with BEGIN IMMEDIATE so concurrent writers
// serialize on the database lock; read-only queries use BEGIN DEFERRED and,
// with the WAL journal, never block writers. Lock waits are bounded by the
// SQLite busy timeout and surface as versioned.ErrTimeout.
//
// Every open transaction is tracked by the Store so Close can roll back
// transactions abandoned by their callers.
package sqlite
