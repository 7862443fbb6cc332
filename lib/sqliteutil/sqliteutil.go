package sqliteutil

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// OpenDB opens a sqlite database at the given path (or `:memory:`)
// and applies the given schema. "already exists" errors from schema
// application are ignored so reopening an existing database works.
func OpenDB(schema, path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection to :memory: gets its own empty db
		database.SetMaxOpenConns(1)
	}
	_, err = database.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}

// OpenLibsql opens a remote libsql database by url, applying the schema
// the same way OpenDB does.
func OpenLibsql(schema, url string) (*sql.DB, error) {
	database, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("open libsql at %q: %w", url, err)
	}
	_, err = database.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}
