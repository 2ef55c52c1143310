// Package pgschema creates the PostgreSQL tables used by the book and account repositories.
package pgschema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

// Apply is idempotent.
func Apply(ctx context.Context, pg *pgxpool.Pool) error {
	if _, err := pg.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Empty reports whether the book and account tables have no rows, so the caller knows to seed them.
func Empty(ctx context.Context, pg *pgxpool.Pool) (bool, error) {
	var empty bool
	err := pg.QueryRow(ctx,
		`SELECT NOT EXISTS (SELECT 1 FROM book) AND NOT EXISTS (SELECT 1 FROM account)`).Scan(&empty)
	if err != nil {
		return false, fmt.Errorf("checking for seed data: %w", err)
	}
	return empty, nil
}
