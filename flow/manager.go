package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager — реестр шагов и точка входа выполнения flow.
//
// Шаги добавляются через AddStep, порядок добавления сохраняется
// (он используется только как tie-break при диспетчеризации и для
// отображения, никогда — как неявная зависимость). Execute можно
// вызывать многократно: каждое выполнение независимо и получает
// свой Context.
//
// Manager не потокобезопасен для AddStep; Execute можно вызывать
// из разных горутин, если определение flow больше не меняется.
type Manager struct {
	steps  []*Step
	byName map[string]*Step

	limit    int
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
}

// Option — настройка Manager.
type Option func(*Manager)

// WithConcurrency ограничивает число одновременно выполняющихся шагов.
// 0 (по умолчанию) — без ограничения.
func WithConcurrency(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// WithTimeout задаёт дедлайн всего flow. Кооперативный: по истечении
// новые шаги не запускаются (помечаются SKIPPED с причиной DEADLINE),
// а выполняющиеся получают отмену через свой ctx и дожидаются выхода.
// 0 (по умолчанию) — без дедлайна.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithObserver задаёт Observer жизненного цикла шагов.
// По умолчанию используется LogObserver поверх логгера Manager.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLogger задаёт логгер Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager создаёт Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		byName: make(map[string]*Step),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.observer == nil {
		m.observer = NewLogObserver(m.logger)
	}
	return m
}

// AddStep регистрирует шаг.
//
// Возвращает ValidationError, если имя пустое, unit-of-work не задан
// или шаг с таким именем уже зарегистрирован. Ссылки в Requires на
// ещё не добавленные шаги допустимы: они проверяются в Execute.
func (m *Manager) AddStep(s Step) error {
	if s.Name == "" {
		return newValidationError("", "step has empty name", ErrEmptyStepName)
	}
	if s.Run == nil {
		return newValidationError(s.Name, "step has nil run function", ErrNilStepFunc)
	}
	if _, exists := m.byName[s.Name]; exists {
		return newValidationError(s.Name,
			fmt.Sprintf("step %q already registered", s.Name), ErrDuplicateStep)
	}

	step := s
	m.steps = append(m.steps, &step)
	m.byName[s.Name] = &step
	return nil
}

// Steps возвращает описания шагов в порядке добавления.
// Read-only интроспекция для диагностики и визуализации.
func (m *Manager) Steps() []StepInfo {
	infos := make([]StepInfo, 0, len(m.steps))
	for _, s := range m.steps {
		requires := make([]string, len(s.Requires))
		copy(requires, s.Requires)
		infos = append(infos, StepInfo{
			Name:       s.Name,
			Requires:   requires,
			Agent:      s.Agent,
			HasRecover: s.Recover != nil,
		})
	}
	return infos
}

// Len возвращает количество зарегистрированных шагов.
func (m *Manager) Len() int {
	return len(m.steps)
}

// Validate строит граф зависимостей без выполнения.
//
// Возвращает ValidationError при неизвестной зависимости или цикле.
// Execute выполняет ту же проверку перед запуском шагов.
func (m *Manager) Validate() error {
	_, err := buildGraph(m.steps)
	return err
}

// Execute выполняет flow с данным входом.
//
// Возвращает ошибку только для невалидного определения flow — до
// запуска какого-либо unit-of-work. Ошибки шагов содержатся в Result:
// Execute завершается нормально, даже если упали все шаги.
func (m *Manager) Execute(ctx context.Context, input Input) (*Result, error) {
	g, err := buildGraph(m.steps)
	if err != nil {
		return nil, err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	e := newExecution(m, g, input)
	return e.run(ctx), nil
}
