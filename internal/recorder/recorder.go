package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/mq"
)

// runStore — операции журнала запусков, нужные recorder.
// Реализуется *repo.RunRepo.
type runStore interface {
	Create(ctx context.Context, run *domain.FlowRun) error
	Finish(ctx context.Context, run *domain.FlowRun) error
}

// stepStore — операции итогов шагов, нужные recorder.
// Реализуется *repo.StepRepo.
type stepStore interface {
	Create(ctx context.Context, rec *domain.StepRecord) error
}

// Recorder потребляет события выполнения из RabbitMQ и записывает
// их в журнал в PostgreSQL.
//
// Recorder — единственный писатель журнала: движок flow о БД не
// знает, он только публикует события через RunObserver.
type Recorder struct {
	runs  runStore
	steps stepStore
	conn  *mq.Connection

	runConsumer  *mq.Consumer
	stepConsumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Recorder.
type Config struct {
	RunStore  runStore
	StepStore stepStore
	Conn      *mq.Connection
	Logger    *slog.Logger
}

// New создаёт новый Recorder.
func New(cfg Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		runs:   cfg.RunStore,
		steps:  cfg.StepStore,
		conn:   cfg.Conn,
		logger: logger,
	}
}

// Start запускает consumers для runs.events и steps.events.
func (r *Recorder) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.runConsumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunEvents,
		Handler:  r.handleRunEvent,
		Prefetch: 10,
	})

	r.stepConsumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    mq.QueueStepEvents,
		Handler:  r.handleStepEvent,
		Prefetch: 10,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("run events consumer error", "error", err)
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.stepConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("step events consumer error", "error", err)
		}
	}()

	r.logger.Info("recorder started")
	return nil
}

// Stop останавливает Recorder и дожидается горутин.
func (r *Recorder) Stop() {
	r.logger.Info("stopping recorder...")

	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	if r.runConsumer != nil {
		r.runConsumer.Stop()
	}
	if r.stepConsumer != nil {
		r.stepConsumer.Stop()
	}

	r.wg.Wait()
	r.logger.Info("recorder stopped")
}
