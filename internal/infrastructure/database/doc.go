// Package database opens the bridge's SQLite file and applies embedded
// schema migrations.
//
// The database backs the output journal, which remembers the last value
// commanded on every relay and digital output so it can be restored after
// a restart.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
