package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"
)

type runRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) ports.RunRepository {
	return &runRepo{pool: pool}
}

const runColumns = `id, pipeline_name, status, stage, artifact_dir, trained_model_path,
	train_accuracy, test_accuracy, error, started_at, finished_at`

func (r *runRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		INSERT INTO pipeline_run (` + runColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.PipelineName, string(run.Status), string(run.Stage),
		run.ArtifactDir, run.TrainedModelPath, run.TrainAccuracy, run.TestAccuracy,
		run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("pipeline run %s already exists: %w", run.ID, err)
		}
		return fmt.Errorf("create pipeline run: %w", err)
	}
	return nil
}

func (r *runRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		UPDATE pipeline_run
		SET status=$1, stage=$2, trained_model_path=$3, train_accuracy=$4,
			test_accuracy=$5, error=$6, finished_at=$7
		WHERE id=$8
	`
	result, err := r.pool.Exec(ctx, query,
		string(run.Status), string(run.Stage), run.TrainedModelPath,
		run.TrainAccuracy, run.TestAccuracy, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_run WHERE id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get pipeline run by id: %w", err)
	}
	return run, nil
}

func (r *runRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	where := "1=1"
	args := []interface{}{}
	argPos := 1
	if filter.Status != "" {
		where = fmt.Sprintf("status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM pipeline_run WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pipeline runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM pipeline_run
		WHERE %s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
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

func scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var status, stage string
	err := row.Scan(
		&run.ID, &run.PipelineName, &status, &stage, &run.ArtifactDir,
		&run.TrainedModelPath, &run.TrainAccuracy, &run.TestAccuracy,
		&run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.Stage = domain.Stage(stage)
	return &run, nil
}
