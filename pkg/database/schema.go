package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

// Migrate applies the schema. Every statement is idempotent so it is safe on each start.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Msg("database schema applied")
	return nil
}
