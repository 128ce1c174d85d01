package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Kestrel/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStarted   MessageType = "run.started"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeStepFinished MessageType = "step.finished"
)

// Publisher публикует события выполнения flow в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunStartedPayload — payload события о старте run.
type RunStartedPayload struct {
	RunID     uuid.UUID      `json:"run_id"`
	Flow      string         `json:"flow"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	StartedAt time.Time      `json:"started_at"`
}

// RunFinishedPayload — payload события о завершении run.
type RunFinishedPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	Flow       string           `json:"flow"`
	Status     domain.RunStatus `json:"status"`
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Recovered  int              `json:"recovered"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	FinishedAt time.Time        `json:"finished_at"`
}

// StepFinishedPayload — payload события об итоге шага.
type StepFinishedPayload struct {
	RunID      uuid.UUID      `json:"run_id"`
	Step       string         `json:"step"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	SkipCause  string         `json:"skip_cause,omitempty"`
	SkipAfter  []string       `json:"skip_after,omitempty"`
	ElapsedMs  int64          `json:"elapsed_ms"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunStarted публикует событие о старте run.
func (p *Publisher) PublishRunStarted(ctx context.Context, run *domain.FlowRun) error {
	return p.publish(ctx, ExchangeRuns, RoutingKeyStarted, MessageTypeRunStarted, RunStartedPayload{
		RunID:     run.ID,
		Flow:      run.Flow,
		Inputs:    run.Inputs,
		StartedAt: run.StartedAt,
	})
}

// PublishRunFinished публикует событие о завершении run.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.FlowRun) error {
	finishedAt := run.StartedAt
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	return p.publish(ctx, ExchangeRuns, RoutingKeyFinished, MessageTypeRunFinished, RunFinishedPayload{
		RunID:      run.ID,
		Flow:       run.Flow,
		Status:     run.Status,
		Total:      run.Total,
		Completed:  run.Completed,
		Recovered:  run.Recovered,
		Failed:     run.Failed,
		Skipped:    run.Skipped,
		FinishedAt: finishedAt,
	})
}

// PublishStepFinished публикует событие об итоге шага.
func (p *Publisher) PublishStepFinished(ctx context.Context, rec *domain.StepRecord) error {
	return p.publish(ctx, ExchangeSteps, RoutingKeyFinished, MessageTypeStepFinished, StepFinishedPayload{
		RunID:      rec.RunID,
		Step:       rec.Step,
		Status:     string(rec.Status),
		Outputs:    rec.Outputs,
		Error:      rec.Error,
		SkipCause:  rec.SkipCause,
		SkipAfter:  rec.SkipAfter,
		ElapsedMs:  rec.ElapsedMs,
		FinishedAt: rec.FinishedAt,
	})
}

// publish оборачивает payload в Message и публикует.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, exchange, routingKey, msg)
}
