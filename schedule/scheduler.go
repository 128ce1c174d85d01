package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Kestrel/flow"
)

// Ошибки планировщика.
var (
	// ErrEmptyEntryName — не задано имя записи.
	ErrEmptyEntryName = errors.New("schedule entry name is empty")

	// ErrNilManager — не задан Manager.
	ErrNilManager = errors.New("schedule entry manager is nil")

	// ErrDuplicateEntry — запись с таким именем уже добавлена.
	ErrDuplicateEntry = errors.New("duplicate schedule entry")
)

// Entry — flow, запускаемый по расписанию.
type Entry struct {
	// Name — уникальное имя записи для логов и коллбэков.
	Name string

	// Spec — расписание запуска.
	Spec Spec

	// Manager — flow для выполнения.
	Manager *flow.Manager

	// Input — фабрика входных данных для каждого запуска.
	// Может быть nil.
	Input func() flow.Input
}

// ResultFunc — коллбэк с итогом выполнения записи.
type ResultFunc func(name string, result *flow.Result)

// Scheduler запускает зарегистрированные flow по их расписаниям.
//
// Выполнения не накладываются: новый запуск записи не стартует,
// пока предыдущий запуск той же записи не завершился.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entryState
	byName  map[string]*entryState

	logger   *slog.Logger
	onResult ResultFunc
}

// entryState — запись и её состояние между тиками.
type entryState struct {
	Entry

	// nextDue — следующее время запуска (UTC).
	nextDue time.Time

	// inFlight — предыдущий запуск ещё выполняется.
	inFlight bool
}

// SchedulerOption настраивает Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger задаёт логгер планировщика.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResultFunc задаёт коллбэк итогов выполнения.
func WithResultFunc(fn ResultFunc) SchedulerOption {
	return func(s *Scheduler) {
		s.onResult = fn
	}
}

// New создаёт Scheduler.
func New(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		byName: make(map[string]*entryState),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add регистрирует запись. Возвращает ошибку при невалидном Spec,
// пустом имени, nil Manager или дубликате имени.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" {
		return ErrEmptyEntryName
	}
	if e.Manager == nil {
		return fmt.Errorf("%w: %s", ErrNilManager, e.Name)
	}
	if err := e.Spec.Validate(); err != nil {
		return fmt.Errorf("entry %s: %w", e.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[e.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name)
	}

	st := &entryState{Entry: e}
	s.entries = append(s.entries, st)
	s.byName[e.Name] = st
	return nil
}

// Len возвращает количество зарегистрированных записей.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run — цикл планировщика. Блокирует до отмены ctx.
//
// Каждая запись запускается при наступлении её nextDue; выполнения
// разных записей идут параллельно, дожидаться их завершения при
// отмене ctx не нужно — каждый flow получает тот же ctx и завершится
// сам.
func (s *Scheduler) Run(ctx context.Context) error {
	now := time.Now()

	s.mu.Lock()
	for _, st := range s.entries {
		next, err := st.Spec.Next(now)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("entry %s: %w", st.Name, err)
		}
		st.nextDue = next
	}
	s.mu.Unlock()

	s.logger.Info("scheduler started", "entries", s.Len())

	timer := time.NewTimer(s.untilNext(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()

		case <-timer.C:
			s.tick(ctx, time.Now())
			timer.Reset(s.untilNext(time.Now()))
		}
	}
}

// untilNext возвращает время до ближайшего nextDue.
func (s *Scheduler) untilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Пустой планировщик просыпается редко: Add после Run не
	// поддерживается, но цикл не должен крутиться впустую.
	next := now.Add(time.Hour)
	for _, st := range s.entries {
		if st.nextDue.Before(next) {
			next = st.nextDue
		}
	}

	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// tick запускает все записи с наступившим nextDue.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.entries {
		if st.nextDue.After(now) {
			continue
		}

		next, err := st.Spec.Next(now)
		if err != nil {
			// Spec прошёл Validate, сюда попадать не должен
			s.logger.Error("failed to compute next run", "entry", st.Name, "error", err)
			st.nextDue = now.Add(time.Hour)
			continue
		}
		st.nextDue = next

		if st.inFlight {
			s.logger.Warn("previous run still in flight, skipping", "entry", st.Name)
			continue
		}

		st.inFlight = true
		go s.execute(ctx, st)
	}
}

// execute выполняет один запуск записи.
func (s *Scheduler) execute(ctx context.Context, st *entryState) {
	defer func() {
		s.mu.Lock()
		st.inFlight = false
		s.mu.Unlock()
	}()

	var input flow.Input
	if st.Input != nil {
		input = st.Input()
	}

	s.logger.Info("scheduled flow started", "entry", st.Name)

	result, err := st.Manager.Execute(ctx, input)
	if err != nil {
		s.logger.Error("scheduled flow rejected", "entry", st.Name, "error", err)
		return
	}

	summary := result.Summarize()
	s.logger.Info("scheduled flow finished",
		"entry", st.Name,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)

	if s.onResult != nil {
		s.onResult(st.Name, result)
	}
}
