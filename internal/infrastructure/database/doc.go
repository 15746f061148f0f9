// Package database provides SQLite connectivity for the readings store.
//
// This package manages:
//   - Opening file-backed or in-memory databases
//   - Applying embedded schema migrations
//   - Health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/envmonitor.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive. Each file is named YYYYMMDD_HHMMSS_description.up.sql
// and may have a matching .down.sql kept for manual rollback.
package database
