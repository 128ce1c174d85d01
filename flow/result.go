package flow

// SkipCause — причина, по которой шаг был пропущен.
type SkipCause string

const (
	// SkipDependencyFailed — упала зависимость (прямая или транзитивная).
	SkipDependencyFailed SkipCause = "DEPENDENCY_FAILED"

	// SkipDeadline — истёк дедлайн flow до запуска шага.
	SkipDeadline SkipCause = "DEADLINE"
)

// Skip — диагностика пропущенного шага.
type Skip struct {
	// Cause — причина пропуска.
	Cause SkipCause `json:"cause"`

	// After — имена упавших шагов, из-за которых произошёл пропуск.
	// Заполнено для SkipDependencyFailed; содержит исходные FAILED-шаги
	// (не промежуточные SKIPPED в цепочке).
	After []string `json:"after,omitempty"`
}

// Failure — запись об ошибке шага.
type Failure struct {
	// Step — имя шага.
	Step string `json:"step"`

	// Err — исходная ошибка.
	Err error `json:"error"`

	// Recovered — true, если recovery-обработчик вернул замещающий
	// результат и шаг завершился как RECOVERED.
	Recovered bool `json:"recovered,omitempty"`

	// FromHandler — true, если ошибка произошла внутри самого
	// recovery-обработчика.
	FromHandler bool `json:"from_handler,omitempty"`
}

// Result — итог одного выполнения flow.
//
// Read-only снимок: Execute возвращает его после того, как ни один
// шаг больше не выполняется. Ошибки уровня шагов не поднимаются как
// error — вызывающая сторона сама решает по Result, что считать
// приемлемым частичным успехом.
type Result struct {
	// Context — итоговые результаты шагов (имя → Output).
	// Содержит записи для всех COMPLETED и RECOVERED шагов.
	Context map[string]Output

	// Statuses — финальный статус каждого шага.
	Statuses map[string]Status

	// Failures — все ошибки в порядке возникновения: исходные ошибки
	// шагов и ошибки внутри recovery-обработчиков.
	Failures []Failure

	// Skips — диагностика пропущенных шагов (имя → причина).
	Skips map[string]Skip
}

// OK возвращает true, если все шаги завершились COMPLETED.
func (r *Result) OK() bool {
	for _, s := range r.Statuses {
		if s != StatusCompleted {
			return false
		}
	}
	return true
}

// Status возвращает финальный статус шага.
func (r *Result) Status(step string) Status {
	return r.Statuses[step]
}

// Output возвращает результат шага из итогового контекста.
func (r *Result) Output(step string) (Output, bool) {
	out, ok := r.Context[step]
	return out, ok
}

// FailedSteps возвращает имена шагов со статусом FAILED
// в порядке возникновения ошибок.
func (r *Result) FailedSteps() []string {
	var steps []string
	seen := make(map[string]bool)
	for _, f := range r.Failures {
		if f.Recovered || f.FromHandler || seen[f.Step] {
			continue
		}
		if r.Statuses[f.Step] == StatusFailed {
			steps = append(steps, f.Step)
			seen[f.Step] = true
		}
	}
	return steps
}

// counts возвращает количество шагов по статусам.
func (r *Result) counts() map[Status]int {
	counts := make(map[Status]int)
	for _, s := range r.Statuses {
		counts[s]++
	}
	return counts
}

// Summary возвращает краткую сводку для логов.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Summarize собирает сводку по статусам шагов.
func (r *Result) Summarize() Summary {
	c := r.counts()
	return Summary{
		Total:     len(r.Statuses),
		Completed: c[StatusCompleted],
		Recovered: c[StatusRecovered],
		Failed:    c[StatusFailed],
		Skipped:   c[StatusSkipped],
	}
}
