package flow

import "errors"

// Ошибки валидации определения flow.
var (
	// ErrEmptyStepName — шаг без имени.
	ErrEmptyStepName = errors.New("step has empty name")

	// ErrNilStepFunc — шаг без unit-of-work.
	ErrNilStepFunc = errors.New("step has nil run function")

	// ErrDuplicateStep — несколько шагов с одинаковым именем.
	ErrDuplicateStep = errors.New("duplicate step name")

	// ErrUnknownDependency — шаг требует несуществующий шаг.
	ErrUnknownDependency = errors.New("step requires unknown step")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// ValidationError — ошибка валидации с контекстом.
//
// Возвращается из AddStep и Execute до запуска какого-либо шага.
// Выполнение при этом не начинается: определение flow нужно исправить
// и повторить вызов.
type ValidationError struct {
	Step    string // имя шага, где обнаружена ошибка
	Message string // описание ошибки
	Err     error  // базовая ошибка (sentinel)
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Step != "" {
		return "step " + e.Step + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(step, message string, err error) *ValidationError {
	return &ValidationError{
		Step:    step,
		Message: message,
		Err:     err,
	}
}
