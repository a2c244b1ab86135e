// Package migrations embeds the cloud container's Postgres schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
