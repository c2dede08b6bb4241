package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/registryx/registryx/pkg/config"
	"github.com/registryx/registryx/pkg/metadataindex"
)

// Connect opens the Postgres connection pool and ensures the schema exists.
// There is no separate migration tool, matching the donor's "ensure schema
// at connect time" idiom — the schema is additive (CREATE TABLE/INDEX IF
// NOT EXISTS) and safe to run on every startup.
func Connect(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(metadataindex.Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
