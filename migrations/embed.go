// Package migrations embeds the SQL schema migrations. The server applies
// them with goose at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
