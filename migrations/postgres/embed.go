// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the payload-store migrations.
//
//go:embed payloads/*.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "payloads"
