// Package migrations embeds the SQL schema for every supported database.
package migrations

import "embed"

// FS holds sqlite/*.sql and postgres/*.sql in golang-migrate naming.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Directories inside FS.
const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
