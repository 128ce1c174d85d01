package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Kestrel/flow"
	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/mq"
	"github.com/shaiso/Kestrel/internal/repo"
	"github.com/shaiso/Kestrel/internal/telemetry"
)

// handleRunEvent обрабатывает run.started и run.finished.
func (r *Recorder) handleRunEvent(ctx context.Context, delivery *mq.Delivery) error {
	switch delivery.Message.Type {
	case mq.MessageTypeRunStarted:
		return r.recordRunStarted(ctx, delivery)
	case mq.MessageTypeRunFinished:
		return r.recordRunFinished(ctx, delivery)
	default:
		// Неизвестный тип — в DLQ через nack без requeue не отправляем,
		// просто подтверждаем: сообщение нам не предназначено
		r.logger.Warn("unexpected run event type", "type", delivery.Message.Type)
		return nil
	}
}

// recordRunStarted создаёт запись журнала о стартовавшем run.
func (r *Recorder) recordRunStarted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunStartedPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse run.started payload", "error", err)
		return err
	}

	run := &domain.FlowRun{
		ID:        payload.RunID,
		Flow:      payload.Flow,
		Status:    domain.RunStatusRunning,
		Inputs:    payload.Inputs,
		StartedAt: payload.StartedAt,
	}

	if err := r.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("record run started: %w", err)
	}

	telemetry.WithRunID(r.logger, run.ID.String()).Info("run recorded", "flow", run.Flow)
	return nil
}

// recordRunFinished закрывает запись журнала.
func (r *Recorder) recordRunFinished(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunFinishedPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse run.finished payload", "error", err)
		return err
	}

	run := &domain.FlowRun{
		ID:         payload.RunID,
		Flow:       payload.Flow,
		Status:     payload.Status,
		FinishedAt: &payload.FinishedAt,
		Total:      payload.Total,
		Completed:  payload.Completed,
		Recovered:  payload.Recovered,
		Failed:     payload.Failed,
		Skipped:    payload.Skipped,
	}

	if err := r.runs.Finish(ctx, run); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// run.finished пришёл раньше run.started или запись
			// потеряна — создаём закрытую запись
			r.logger.Warn("run.finished for unknown run, creating record", "run_id", run.ID)
			run.StartedAt = payload.FinishedAt
			if err := r.runs.Create(ctx, run); err != nil {
				return fmt.Errorf("record unknown finished run: %w", err)
			}
			return nil
		}
		return fmt.Errorf("record run finished: %w", err)
	}

	telemetry.WithRunID(r.logger, run.ID.String()).Info("run finished",
		"flow", run.Flow,
		"status", run.Status,
		"completed", run.Completed,
		"failed", run.Failed,
		"skipped", run.Skipped,
	)
	return nil
}

// handleStepEvent обрабатывает step.finished.
func (r *Recorder) handleStepEvent(ctx context.Context, delivery *mq.Delivery) error {
	if delivery.Message.Type != mq.MessageTypeStepFinished {
		r.logger.Warn("unexpected step event type", "type", delivery.Message.Type)
		return nil
	}

	payload, err := mq.ParsePayload[mq.StepFinishedPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse step.finished payload", "error", err)
		return err
	}

	rec := domain.NewStepRecord(payload.RunID, payload.Step, flow.Status(payload.Status))
	rec.Outputs = payload.Outputs
	rec.Error = payload.Error
	rec.SkipCause = payload.SkipCause
	rec.SkipAfter = payload.SkipAfter
	rec.ElapsedMs = payload.ElapsedMs
	rec.FinishedAt = payload.FinishedAt

	if err := r.steps.Create(ctx, rec); err != nil {
		return fmt.Errorf("record step finished: %w", err)
	}

	telemetry.WithStep(r.logger, rec.Step).Debug("step recorded",
		"run_id", rec.RunID,
		"status", rec.Status,
	)
	return nil
}
