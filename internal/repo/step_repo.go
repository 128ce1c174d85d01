package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Kestrel/internal/domain"
)

// StepRepo — репозиторий итогов шагов.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

// Create сохраняет запись об итоге шага.
// Имя шага уникально внутри run, поэтому повторная доставка
// step.finished не создаёт дубликат.
func (r *StepRepo) Create(ctx context.Context, rec *domain.StepRecord) error {
	outputsJSON, err := json.Marshal(rec.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `
		INSERT INTO step_records
			(id, run_id, step, status, outputs, error, skip_cause, skip_after, elapsed_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, step) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.RunID,
		rec.Step,
		rec.Status,
		outputsJSON,
		nullString(rec.Error),
		nullString(rec.SkipCause),
		rec.SkipAfter,
		rec.ElapsedMs,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step record: %w", err)
	}
	return nil
}

// ListByRun возвращает итоги шагов одного run в порядке фиксации.
func (r *StepRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StepRecord, error) {
	query := `
		SELECT id, run_id, step, status, outputs, error, skip_cause, skip_after, elapsed_ms, finished_at
		FROM step_records
		WHERE run_id = $1
		ORDER BY finished_at ASC, step ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list step records: %w", err)
	}
	defer rows.Close()

	var records []domain.StepRecord
	for rows.Next() {
		var rec domain.StepRecord
		var outputsJSON []byte
		var recError, skipCause *string

		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Step,
			&rec.Status,
			&outputsJSON,
			&recError,
			&skipCause,
			&rec.SkipAfter,
			&rec.ElapsedMs,
			&rec.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step record: %w", err)
		}

		if outputsJSON != nil {
			if err := json.Unmarshal(outputsJSON, &rec.Outputs); err != nil {
				return nil, fmt.Errorf("unmarshal outputs: %w", err)
			}
		}
		if recError != nil {
			rec.Error = *recError
		}
		if skipCause != nil {
			rec.SkipCause = *skipCause
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}
