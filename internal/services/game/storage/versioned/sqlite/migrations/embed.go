// Package migrations embeds the SQL schema history of the object store.
package migrations

import "embed"

// ObjectsFS holds the object store migrations under objects/.
//
//go:embed objects/*.sql
var ObjectsFS embed.FS
