package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

// migrations are the forward steps of the storage schema, applied in
// version order and recorded by goose in goose_db_version.
var migrations = []*goose.Migration{
	goose.NewGoMigration(1, &goose.GoFunc{RunTx: execAll(func() []string {
		var stmts []string
		stmts = append(stmts, schemaDDL()...)
		stmts = append(stmts, indexDDL()...)
		return append(stmts, triggerDDL()...)
	})}, nil),
}

// execAll returns a goose step that runs every statement in one transaction.
func execAll(statements func() []string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// Migrate applies every pending migration to db. It is a no-op when the
// schema is current.
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, nil,
		goose.WithGoMigrations(migrations...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	for _, r := range results {
		log.WithFields(log.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("applied storage migration")
	}
	return nil
}

// timestampLayout is fixed width so stored timestamps sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestamp formats t the way every created/updated column stores it.
func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp is the inverse of timestamp.
func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}
