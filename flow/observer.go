package flow

import (
	"log/slog"
	"time"
)

// Observer — хуки жизненного цикла выполнения flow.
//
// Передаётся в Manager через WithObserver. Движок не держит никакого
// глобального состояния наблюдения: всё, что нужно снаружи (логи,
// метрики, публикация событий), подключается через этот интерфейс.
//
// Хуки вызываются из горутины планировщика (кроме OnStepStart,
// который вызывается перед запуском горутины шага), поэтому
// реализации не должны блокироваться надолго.
type Observer interface {
	// OnFlowStart вызывается после успешной валидации, до запуска шагов.
	OnFlowStart(input Input)

	// OnStepStart вызывается при переходе шага в RUNNING.
	OnStepStart(step string)

	// OnStepComplete вызывается при переходе шага в COMPLETED.
	OnStepComplete(step string, out Output, elapsed time.Duration)

	// OnStepFailed вызывается при переходе шага в FAILED
	// (после неуспеха recovery-обработчика, если он был).
	OnStepFailed(step string, err error)

	// OnStepRecovered вызывается при переходе шага в RECOVERED.
	OnStepRecovered(step string, out Output)

	// OnStepSkipped вызывается при переходе шага в SKIPPED.
	OnStepSkipped(step string, skip Skip)

	// OnFlowFinish вызывается после завершения всех шагов.
	OnFlowFinish(result *Result)
}

// NopObserver — пустая реализация Observer для встраивания.
// Позволяет реализовать только нужные хуки.
type NopObserver struct{}

func (NopObserver) OnFlowStart(Input)                              {}
func (NopObserver) OnStepStart(string)                             {}
func (NopObserver) OnStepComplete(string, Output, time.Duration)   {}
func (NopObserver) OnStepFailed(string, error)                     {}
func (NopObserver) OnStepRecovered(string, Output)                 {}
func (NopObserver) OnStepSkipped(string, Skip)                     {}
func (NopObserver) OnFlowFinish(*Result)                           {}

// MultiObserver объединяет несколько Observer в один.
// Хуки вызываются в порядке перечисления.
func MultiObserver(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) OnFlowStart(input Input) {
	for _, o := range m {
		o.OnFlowStart(input)
	}
}

func (m multiObserver) OnStepStart(step string) {
	for _, o := range m {
		o.OnStepStart(step)
	}
}

func (m multiObserver) OnStepComplete(step string, out Output, elapsed time.Duration) {
	for _, o := range m {
		o.OnStepComplete(step, out, elapsed)
	}
}

func (m multiObserver) OnStepFailed(step string, err error) {
	for _, o := range m {
		o.OnStepFailed(step, err)
	}
}

func (m multiObserver) OnStepRecovered(step string, out Output) {
	for _, o := range m {
		o.OnStepRecovered(step, out)
	}
}

func (m multiObserver) OnStepSkipped(step string, skip Skip) {
	for _, o := range m {
		o.OnStepSkipped(step, skip)
	}
}

func (m multiObserver) OnFlowFinish(result *Result) {
	for _, o := range m {
		o.OnFlowFinish(result)
	}
}

// LogObserver — Observer, пишущий жизненный цикл шагов в slog.
// Используется по умолчанию, если Observer не задан.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver создаёт LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (l *LogObserver) OnFlowStart(input Input) {
	l.logger.Info("flow started", "inputs", len(input))
}

func (l *LogObserver) OnStepStart(step string) {
	l.logger.Debug("step started", "step", step)
}

func (l *LogObserver) OnStepComplete(step string, out Output, elapsed time.Duration) {
	l.logger.Info("step completed", "step", step, "outputs", len(out), "elapsed", elapsed)
}

func (l *LogObserver) OnStepFailed(step string, err error) {
	l.logger.Warn("step failed", "step", step, "error", err)
}

func (l *LogObserver) OnStepRecovered(step string, out Output) {
	l.logger.Info("step recovered", "step", step, "outputs", len(out))
}

func (l *LogObserver) OnStepSkipped(step string, skip Skip) {
	l.logger.Info("step skipped", "step", step, "cause", skip.Cause, "after", skip.After)
}

func (l *LogObserver) OnFlowFinish(result *Result) {
	s := result.Summarize()
	l.logger.Info("flow finished",
		"total", s.Total,
		"completed", s.Completed,
		"recovered", s.Recovered,
		"failed", s.Failed,
		"skipped", s.Skipped,
	)
}
