// Package versioned describes transactional units of work against the game
// object store.
//
// Every stored object is addressed by a (type, id) key and carries a version.
// A Query declares writes, version bumps, reads and pass-through extras plus
// an ordered chain of continuations; each continuation sees the Results
// produced so far and returns a nested Query that runs inside the same
// transaction. Backends (see the sqlite subpackage) execute a Query atomically
// and return Results whose updates map holds the final version of every type
// touched anywhere in the chain.
//
// Version 1 is a sentinel: reading an object that was never persisted yields
// the schema default at version 1 without creating it, and the first write or
// bump stores it at version 2.
package versioned
