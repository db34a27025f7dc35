// Package migrations holds the goose SQL migrations for the plan store.
package migrations

import "embed"

// FS contains every migration file, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
