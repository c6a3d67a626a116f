// Package migrations embeds the storefront schema for database.RunMigrations.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
