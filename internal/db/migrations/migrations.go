// Package migrations embeds the goose SQL migrations applied by db.Open.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
