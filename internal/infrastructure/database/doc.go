// Package database provides SQLite connectivity for the lockbot user table.
//
// It is only used when storage.backend is "sqlite"; the default backend is
// a single JSON file.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Schema migrations loaded from any fs.FS (the binary embeds them)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(cfg.Storage.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
