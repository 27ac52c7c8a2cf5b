// Package migrations embeds SQL migration files into the binary.
//
// Pass FS to database.(*DB).Migrate; the files sit at the root of it.
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
