// Package migrate applies embedded SQL migrations on startup.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/challengeties/rewards/migrations"
)

const dialect = "postgres"

// Up runs all pending migrations from the embedded filesystem.
func Up(ctx context.Context, dsn string) error {
	db, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.UpContext(ctx, db, ".")
}

// Status reports the applied version of the profile schema.
func Status(ctx context.Context, dsn string) (int64, error) {
	db, err := open(dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return goose.GetDBVersionContext(ctx, db)
}

// Latest is the highest embedded migration version.
func Latest() (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	ms, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	if err != nil {
		return 0, err
	}
	last, err := ms.Last()
	if err != nil {
		return 0, err
	}
	return last.Version, nil
}

func open(dsn string) (*sql.DB, error) {
	if err := setup(); err != nil {
		return nil, err
	}
	return sql.Open("pgx", dsn)
}

func setup() error {
	goose.SetBaseFS(migrations.FS)
	return goose.SetDialect(dialect)
}
