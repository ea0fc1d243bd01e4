package saved

import "embed"

// Migrations holds the schema for PostgresStore in golang-migrate layout.
//
//go:embed migrations/*.sql
var Migrations embed.FS
