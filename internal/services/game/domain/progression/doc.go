// Package progression models player advancement stored in the versioned
// object store: profiles, per-player journals, reward tokens and the
// activity log.
//
// The package owns the schema definitions the store needs (defaults and the
// discriminated decode tables for rewards and activity entries) and the
// queries that move a player forward. Each query is one transaction: reading a
// profile, deciding whether a level was crossed and crediting the follow-up
// rewards all commit together or not at all.
package progression
