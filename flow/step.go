package flow

import "context"

// Input — входные данные flow.
//
// Передаются в Execute и видны каждому шагу без изменений.
// Движок не копирует Input: вызывающая сторона обязуется не менять
// его до завершения Execute.
type Input = map[string]any

// Output — результат успешного шага.
//
// Записывается в Context под именем шага и доступен всем шагам,
// зависящим от него (и любым уже после его завершения).
type Output = map[string]any

// StepFunc — unit-of-work шага.
//
// Получает контекст отмены, неизменяемый вход flow и снимок Context
// с результатами уже завершённых шагов. Возвращает Output или ошибку.
//
// Функция должна проверять ctx.Done() при блокирующих операциях:
// при истечении дедлайна flow движок не прерывает выполняющиеся шаги
// принудительно, а только сигнализирует через ctx.
type StepFunc func(ctx context.Context, input Input, fc *Context) (Output, error)

// RecoverFunc — обработчик ошибки шага.
//
// Получает ошибку unit-of-work и текущий Context. Если возвращает
// Output без ошибки, шаг считается восстановленным (RECOVERED) и его
// зависимые шаги выполняются с подставленным результатом. Если
// возвращает ошибку, шаг считается упавшим без обработчика.
type RecoverFunc func(ctx context.Context, stepErr error, fc *Context) (Output, error)

// Step — именованный шаг flow.
type Step struct {
	// Name — уникальное имя шага в рамках одного flow.
	// Используется в Requires других шагов и как ключ в Context.
	Name string

	// Agent — непрозрачный дескриптор возможности (например, ссылка
	// на агента). Движок никогда не интерпретирует это поле, только
	// хранит и отдаёт через Steps(). Тело шага обычно захватывает
	// агента замыканием; поле нужно для интроспекции.
	Agent any

	// Run — unit-of-work шага. Обязательное поле.
	Run StepFunc

	// Requires — имена шагов, которые должны завершиться успешно
	// (COMPLETED или RECOVERED) до запуска этого шага.
	Requires []string

	// Recover — необязательный обработчик ошибки. Если nil, ошибка
	// шага каскадно пропускает всех его транзитивных зависимых.
	Recover RecoverFunc
}

// StepInfo — read-only описание шага для интроспекции.
type StepInfo struct {
	// Name — имя шага.
	Name string `json:"name"`

	// Requires — объявленные зависимости.
	Requires []string `json:"requires,omitempty"`

	// Agent — непрозрачный дескриптор, как был передан в Step.
	Agent any `json:"-"`

	// HasRecover — есть ли у шага recovery-обработчик.
	HasRecover bool `json:"has_recover,omitempty"`
}

// Status — статус шага в рамках одного выполнения flow.
//
// Жизненный цикл:
//
//	PENDING → READY → RUNNING → {COMPLETED | FAILED | RECOVERED}
//	PENDING → SKIPPED (каскад от упавшей зависимости или дедлайн)
//	READY   → SKIPPED (только по дедлайну)
type Status string

const (
	// StatusPending — шаг ожидает выполнения зависимостей.
	StatusPending Status = "PENDING"

	// StatusReady — все зависимости выполнены, шаг в очереди на запуск.
	StatusReady Status = "READY"

	// StatusRunning — unit-of-work шага выполняется.
	StatusRunning Status = "RUNNING"

	// StatusCompleted — шаг завершён успешно.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed — шаг завершился ошибкой без восстановления.
	StatusFailed Status = "FAILED"

	// StatusRecovered — шаг упал, но recovery-обработчик вернул
	// замещающий результат.
	StatusRecovered Status = "RECOVERED"

	// StatusSkipped — шаг не выполнялся: упала зависимость либо
	// истёк дедлайн flow. Причина — в Result.Skips.
	StatusSkipped Status = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRecovered, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess возвращает true, если шаг дал результат (сам или через
// recovery-обработчик) и его зависимые могут выполняться.
func (s Status) IsSuccess() bool {
	return s == StatusCompleted || s == StatusRecovered
}
