package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Kestrel/internal/domain"
)

// RunRepo — репозиторий журнала запусков flow.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт запись о стартовавшем run.
// Повторная доставка run.started не ошибка: конфликт по id игнорируется.
func (r *RunRepo) Create(ctx context.Context, run *domain.FlowRun) error {
	inputsJSON, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO flow_runs (id, flow, status, inputs, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Flow,
		run.Status,
		inputsJSON,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flow run: %w", err)
	}
	return nil
}

// Finish закрывает запись: статус, время завершения и счётчики шагов.
func (r *RunRepo) Finish(ctx context.Context, run *domain.FlowRun) error {
	query := `
		UPDATE flow_runs
		SET status = $2, finished_at = $3,
		    total = $4, completed = $5, recovered = $6, failed = $7, skipped = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.FinishedAt,
		run.Total,
		run.Completed,
		run.Recovered,
		run.Failed,
		run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("finish flow run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	query := `
		SELECT id, flow, status, inputs, started_at, finished_at,
		       total, completed, recovered, failed, skipped
		FROM flow_runs
		WHERE id = $1
	`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Flow   string
	Status domain.RunStatus
	Limit  int
	Offset int
}

// List возвращает runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.FlowRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, flow, status, inputs, started_at, finished_at,
		       total, completed, recovered, failed, skipped
		FROM flow_runs
		WHERE ($1::text IS NULL OR flow = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Flow),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list flow runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.FlowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListFlows возвращает имена flow, встречающиеся в журнале,
// с количеством запусков каждого.
func (r *RunRepo) ListFlows(ctx context.Context) ([]FlowStat, error) {
	query := `
		SELECT flow, COUNT(*), MAX(started_at)
		FROM flow_runs
		GROUP BY flow
		ORDER BY MAX(started_at) DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var stats []FlowStat
	for rows.Next() {
		var s FlowStat
		if err := rows.Scan(&s.Flow, &s.Runs, &s.LastRunAt); err != nil {
			return nil, fmt.Errorf("scan flow stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// FlowStat — сводка по одному flow в журнале.
type FlowStat struct {
	Flow      string    `json:"flow"`
	Runs      int       `json:"runs"`
	LastRunAt time.Time `json:"last_run_at"`
}

// scanRun сканирует строку в FlowRun.
func scanRun(row pgx.Row) (*domain.FlowRun, error) {
	var run domain.FlowRun
	var inputsJSON []byte

	err := row.Scan(
		&run.ID,
		&run.Flow,
		&run.Status,
		&inputsJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Total,
		&run.Completed,
		&run.Recovered,
		&run.Failed,
		&run.Skipped,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow run: %w", err)
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &run.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
