package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/flow"
)

// FlowRun — запись журнала об одном выполнении flow.
//
// FlowRun создаётся при старте Execute и закрывается при завершении.
// Счётчики шагов заполняются из итоговой сводки выполнения.
type FlowRun struct {
	// ID — уникальный идентификатор запуска.
	ID uuid.UUID `json:"id"`

	// Flow — имя flow.
	Flow string `json:"flow"`

	// Status — текущий статус запуска.
	Status RunStatus `json:"status"`

	// Inputs — входные данные, переданные в Execute.
	Inputs map[string]any `json:"inputs,omitempty"`

	// StartedAt — время старта выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, если run ещё выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Счётчики шагов по итогам выполнения.
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// NewFlowRun создаёт запись о стартовавшем запуске.
func NewFlowRun(flowName string, inputs map[string]any) *FlowRun {
	return &FlowRun{
		ID:        uuid.New(),
		Flow:      flowName,
		Status:    RunStatusRunning,
		Inputs:    inputs,
		StartedAt: time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *FlowRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *FlowRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Finish закрывает запись по итоговой сводке выполнения.
func (r *FlowRun) Finish(summary flow.Summary) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = RunStatusFromSummary(summary)
	r.Total = summary.Total
	r.Completed = summary.Completed
	r.Recovered = summary.Recovered
	r.Failed = summary.Failed
	r.Skipped = summary.Skipped
}
