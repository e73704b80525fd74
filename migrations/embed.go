// Package migrations embeds the SQL migrations applied by the auth backend.
package migrations

import "embed"

// FS holds the goose migration files.
//
//go:embed *.sql
var FS embed.FS
