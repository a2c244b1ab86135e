// Package migrations embeds the goose migrations of the local object store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
