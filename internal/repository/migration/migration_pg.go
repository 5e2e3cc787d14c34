package migration

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog"
)

//go:embed init.sql
var initSQL string

func RunMigrations(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if _, err := db.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("run journal migration: %w", err)
	}

	logger.Info().Msg("migrations completed")
	return nil
}
