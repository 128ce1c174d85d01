package mq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/flow"
	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/telemetry"
)

// RunObserver — flow.Observer, публикующий события выполнения в RabbitMQ.
//
// На каждый Execute заводит новую запись FlowRun и публикует
// run.started, step.finished для каждого шага и run.finished.
// Ошибки публикации логируются и не влияют на выполнение flow.
//
// Observer рассчитан на последовательные Execute одного Manager:
// параллельные выполнения перемешают события двух runs.
type RunObserver struct {
	publisher runPublisher
	logger    *slog.Logger
	flowName  string

	mu  sync.Mutex
	run *domain.FlowRun

	// publishTimeout — бюджет на публикацию одного события.
	publishTimeout time.Duration
}

// runPublisher — публикация событий выполнения.
// Реализуется *Publisher.
type runPublisher interface {
	PublishRunStarted(ctx context.Context, run *domain.FlowRun) error
	PublishRunFinished(ctx context.Context, run *domain.FlowRun) error
	PublishStepFinished(ctx context.Context, rec *domain.StepRecord) error
}

// NewRunObserver создаёт observer для flow с именем flowName.
func NewRunObserver(publisher runPublisher, logger *slog.Logger, flowName string) *RunObserver {
	return &RunObserver{
		publisher:      publisher,
		logger:         telemetry.WithFlow(logger, flowName),
		flowName:       flowName,
		publishTimeout: 5 * time.Second,
	}
}

// RunID возвращает идентификатор текущего run.
func (o *RunObserver) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return ""
	}
	return o.run.ID.String()
}

func (o *RunObserver) OnFlowStart(input flow.Input) {
	o.mu.Lock()
	o.run = domain.NewFlowRun(o.flowName, input)
	run := o.run
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.publishTimeout)
	defer cancel()

	if err := o.publisher.PublishRunStarted(ctx, run); err != nil {
		o.logger.Warn("failed to publish run.started", "run_id", run.ID, "error", err)
	}
}

func (o *RunObserver) OnStepStart(string) {}

func (o *RunObserver) OnStepComplete(step string, out flow.Output, elapsed time.Duration) {
	rec := o.newRecord(step, flow.StatusCompleted)
	rec.Outputs = out
	rec.ElapsedMs = elapsed.Milliseconds()
	o.publishStep(rec)
}

func (o *RunObserver) OnStepFailed(step string, err error) {
	rec := o.newRecord(step, flow.StatusFailed)
	rec.Error = err.Error()
	o.publishStep(rec)
}

func (o *RunObserver) OnStepRecovered(step string, out flow.Output) {
	rec := o.newRecord(step, flow.StatusRecovered)
	rec.Outputs = out
	o.publishStep(rec)
}

func (o *RunObserver) OnStepSkipped(step string, skip flow.Skip) {
	rec := o.newRecord(step, flow.StatusSkipped)
	rec.SkipCause = string(skip.Cause)
	rec.SkipAfter = skip.After
	o.publishStep(rec)
}

func (o *RunObserver) OnFlowFinish(result *flow.Result) {
	o.mu.Lock()
	run := o.run
	o.mu.Unlock()
	if run == nil {
		return
	}

	run.Finish(result.Summarize())

	ctx, cancel := context.WithTimeout(context.Background(), o.publishTimeout)
	defer cancel()

	if err := o.publisher.PublishRunFinished(ctx, run); err != nil {
		o.logger.Warn("failed to publish run.finished", "run_id", run.ID, "error", err)
	}
}

// newRecord создаёт запись об итоге шага для текущего run.
func (o *RunObserver) newRecord(step string, status flow.Status) *domain.StepRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		// OnFlowStart не вызывался: шаг вне известного run
		return domain.NewStepRecord(uuid.Nil, step, status)
	}
	return domain.NewStepRecord(o.run.ID, step, status)
}

// publishStep публикует событие об итоге шага.
func (o *RunObserver) publishStep(rec *domain.StepRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), o.publishTimeout)
	defer cancel()

	if err := o.publisher.PublishStepFinished(ctx, rec); err != nil {
		o.logger.Warn("failed to publish step.finished",
			"run_id", rec.RunID,
			"step", rec.Step,
			"error", err,
		)
	}
}
