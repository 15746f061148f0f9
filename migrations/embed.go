// Package migrations embeds the SQLite schema for the readings store.
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
