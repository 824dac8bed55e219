// Package database provides SQLite connectivity for biobridge.
//
// The bridge keeps a small local store: the member directory consulted
// before enrolment, and its schema migrations. Migrations are embedded
// in the binary (see the top-level migrations package) and applied on
// startup.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and each .up.sql should ship with a .down.sql.
package database
