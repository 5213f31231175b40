package sqlite

// SchemaSQL defines the run store tables.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_run (
    id                 TEXT PRIMARY KEY,     -- uuid
    pipeline_name      TEXT NOT NULL,
    status             TEXT NOT NULL,        -- RUNNING | SUCCEEDED | FAILED
    stage              TEXT NOT NULL DEFAULT '',
    artifact_dir       TEXT NOT NULL,
    trained_model_path TEXT NOT NULL DEFAULT '',
    train_accuracy     REAL,
    test_accuracy      REAL,
    error              TEXT NOT NULL DEFAULT '',
    started_at         TEXT NOT NULL,        -- fixed-width RFC3339, UTC
    finished_at        TEXT
);

CREATE INDEX IF NOT EXISTS idx_pipeline_run_status ON pipeline_run(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_run_started_at ON pipeline_run(started_at);
`
