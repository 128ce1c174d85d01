package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/repo"
)

// runReader — операции чтения журнала запусков.
// Реализуется *repo.RunRepo.
type runReader interface {
	List(ctx context.Context, filter repo.RunFilter) ([]domain.FlowRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error)
	ListFlows(ctx context.Context) ([]repo.FlowStat, error)
}

// stepReader — операции чтения итогов шагов.
// Реализуется *repo.StepRepo.
type stepReader interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StepRecord, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs   runReader
	steps  stepReader
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs   runReader
	Steps  stepReader
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:   cfg.Runs,
		steps:  cfg.Steps,
		logger: logger,
	}
}
