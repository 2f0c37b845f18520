// Package sqlite stores workflow drafts in a SQLite file.
//
// Each draft is one row; the definition column holds the canvas JSON. The
// table is created on open, so a fresh path is enough to start:
//
//	drafts, err := sqlite.NewSqliteDraftStore(sqlite.SqliteOptions{
//		Path: "./drafts.db",
//	})
//	if err != nil {
//		return err
//	}
//	defer drafts.Close()
//
// The driver is github.com/mattn/go-sqlite3, which needs cgo.
package sqlite
