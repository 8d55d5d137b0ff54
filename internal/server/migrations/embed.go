// Package migrations embeds the goose schema migrations for the postgres
// user store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
