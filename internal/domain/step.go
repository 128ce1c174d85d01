package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/flow"
)

// StepRecord — запись журнала об итоге одного шага внутри run.
type StepRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на FlowRun.
	RunID uuid.UUID `json:"run_id"`

	// Step — имя шага.
	Step string `json:"step"`

	// Status — финальный статус шага (COMPLETED, FAILED, RECOVERED, SKIPPED).
	Status flow.Status `json:"status"`

	// Outputs — результат шага для COMPLETED и RECOVERED.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Error — текст ошибки для FAILED и RECOVERED.
	Error string `json:"error,omitempty"`

	// SkipCause — причина пропуска для SKIPPED.
	SkipCause string `json:"skip_cause,omitempty"`

	// SkipAfter — имена упавших шагов, вызвавших пропуск.
	SkipAfter []string `json:"skip_after,omitempty"`

	// ElapsedMs — длительность выполнения в миллисекундах.
	// Ноль для пропущенных шагов.
	ElapsedMs int64 `json:"elapsed_ms"`

	// FinishedAt — время фиксации итога.
	FinishedAt time.Time `json:"finished_at"`
}

// NewStepRecord создаёт запись об итоге шага.
func NewStepRecord(runID uuid.UUID, step string, status flow.Status) *StepRecord {
	return &StepRecord{
		ID:         uuid.New(),
		RunID:      runID,
		Step:       step,
		Status:     status,
		FinishedAt: time.Now().UTC(),
	}
}
