package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/repo"
)

// Run DTOs

// RunResponse — ответ с записью о запуске.
type RunResponse struct {
	ID         uuid.UUID        `json:"id"`
	Flow       string           `json:"flow"`
	Status     domain.RunStatus `json:"status"`
	Inputs     map[string]any   `json:"inputs,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Recovered  int              `json:"recovered"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
}

// RunFromDomain конвертирует domain.FlowRun в RunResponse.
func RunFromDomain(r domain.FlowRun) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Flow:       r.Flow,
		Status:     r.Status,
		Inputs:     r.Inputs,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
		Total:      r.Total,
		Completed:  r.Completed,
		Recovered:  r.Recovered,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
	}
}

// Step DTOs

// StepResponse — ответ с итогом шага.
type StepResponse struct {
	Step       string         `json:"step"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	SkipCause  string         `json:"skip_cause,omitempty"`
	SkipAfter  []string       `json:"skip_after,omitempty"`
	ElapsedMs  int64          `json:"elapsed_ms"`
	FinishedAt time.Time      `json:"finished_at"`
}

// StepFromDomain конвертирует domain.StepRecord в StepResponse.
func StepFromDomain(rec domain.StepRecord) StepResponse {
	return StepResponse{
		Step:       rec.Step,
		Status:     string(rec.Status),
		Outputs:    rec.Outputs,
		Error:      rec.Error,
		SkipCause:  rec.SkipCause,
		SkipAfter:  rec.SkipAfter,
		ElapsedMs:  rec.ElapsedMs,
		FinishedAt: rec.FinishedAt,
	}
}

// Flow DTOs

// FlowResponse — сводка по flow в журнале.
type FlowResponse struct {
	Flow      string    `json:"flow"`
	Runs      int       `json:"runs"`
	LastRunAt time.Time `json:"last_run_at"`
}

// FlowFromStat конвертирует repo.FlowStat в FlowResponse.
func FlowFromStat(s repo.FlowStat) FlowResponse {
	return FlowResponse{
		Flow:      s.Flow,
		Runs:      s.Runs,
		LastRunAt: s.LastRunAt,
	}
}
