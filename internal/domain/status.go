package domain

import "github.com/shaiso/Kestrel/flow"

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED  (все шаги COMPLETED)
//	        ↘ PARTIAL    (есть RECOVERED или SKIPPED, но нет FAILED)
//	        ↘ FAILED     (есть хотя бы один FAILED шаг)
type RunStatus string

const (
	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все шаги завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusPartial — run завершён с деградацией: часть шагов
	// восстановлена или пропущена, но ни один не упал.
	RunStatusPartial RunStatus = "PARTIAL"

	// RunStatusFailed — хотя бы один шаг завершился с ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunStatusFromSummary выводит статус run из сводки выполнения.
func RunStatusFromSummary(s flow.Summary) RunStatus {
	switch {
	case s.Failed > 0:
		return RunStatusFailed
	case s.Recovered > 0 || s.Skipped > 0:
		return RunStatusPartial
	default:
		return RunStatusSucceeded
	}
}

// ParseRunStatus парсит строку в RunStatus.
// Неизвестные значения считаются RUNNING.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "PARTIAL":
		return RunStatusPartial
	case "FAILED":
		return RunStatusFailed
	default:
		return RunStatusRunning
	}
}
