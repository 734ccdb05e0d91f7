package sql

import "embed"

// SchemaFS contains all goose migration files under schema/
//
//go:embed schema/*.sql
var SchemaFS embed.FS
