// Package migrations embeds the SQL migrations for the API database.
package migrations

import "embed"

// Files holds every .sql file in this directory. Order matters: 000001,
// 000002, and so on.
//
//go:embed *.sql
var Files embed.FS
