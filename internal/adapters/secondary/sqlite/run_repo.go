package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"
)

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open creates the database file and its parent directory if needed and
// applies SchemaSQL.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(SchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

type runRepo struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) ports.RunRepository {
	return &runRepo{db: db}
}

const runColumns = `id, pipeline_name, status, stage, artifact_dir, trained_model_path,
	train_accuracy, test_accuracy, error, started_at, finished_at`

func (r *runRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pipeline_run (`+runColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID.String(), run.PipelineName, string(run.Status), string(run.Stage),
		run.ArtifactDir, run.TrainedModelPath, nullFloat(run.TrainAccuracy), nullFloat(run.TestAccuracy),
		run.Error, run.StartedAt.UTC().Format(timeLayout), nullTime(run.FinishedAt),
	)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("pipeline run %s already exists: %w", run.ID, err)
		}
		return fmt.Errorf("create pipeline run: %w", err)
	}
	return nil
}

func (r *runRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_run
		SET status=?, stage=?, trained_model_path=?, train_accuracy=?,
			test_accuracy=?, error=?, finished_at=?
		WHERE id=?`,
		string(run.Status), string(run.Stage), run.TrainedModelPath,
		nullFloat(run.TrainAccuracy), nullFloat(run.TestAccuracy), run.Error,
		nullTime(run.FinishedAt), run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_run WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get pipeline run by id: %w", err)
	}
	return run, nil
}

func (r *runRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	where := "1=1"
	args := []interface{}{}
	if filter.Status != "" {
		where = "status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_run WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pipeline runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM pipeline_run WHERE ` + where +
		` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.PipelineRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan pipeline run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate pipeline run rows: %w", err)
	}
	return runs, total, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*domain.PipelineRun, error) {
	var (
		run               domain.PipelineRun
		id, status, stage string
		startedAt         string
		finishedAt        sql.NullString
		trainAcc, testAcc sql.NullFloat64
	)
	err := row.Scan(&id, &run.PipelineName, &status, &stage, &run.ArtifactDir,
		&run.TrainedModelPath, &trainAcc, &testAcc, &run.Error, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.Status = domain.RunStatus(status)
	run.Stage = domain.Stage(stage)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	if trainAcc.Valid {
		run.TrainAccuracy = &trainAcc.Float64
	}
	if testAcc.Valid {
		run.TestAccuracy = &testAcc.Float64
	}
	return &run, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
