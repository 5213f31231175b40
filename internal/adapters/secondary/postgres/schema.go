package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_run (
	id                 UUID PRIMARY KEY,
	pipeline_name      TEXT NOT NULL,
	status             TEXT NOT NULL,
	stage              TEXT NOT NULL DEFAULT '',
	artifact_dir       TEXT NOT NULL,
	trained_model_path TEXT NOT NULL DEFAULT '',
	train_accuracy     DOUBLE PRECISION,
	test_accuracy      DOUBLE PRECISION,
	error              TEXT NOT NULL DEFAULT '',
	started_at         TIMESTAMPTZ NOT NULL,
	finished_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pipeline_run_status ON pipeline_run (status);
CREATE INDEX IF NOT EXISTS idx_pipeline_run_started_at ON pipeline_run (started_at DESC);
`

// Migrate creates the run table if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
