package flow

import (
	"context"
	"fmt"
	"time"
)

// completion — событие завершения одного шага.
//
// Шаги сообщают о завершении через канал, а не через общие флаги:
// все переходы статусов делает единственная горутина планировщика,
// критическая секция сводится к записи в Context.
type completion struct {
	n *node

	// out — результат шага либо замещающий результат обработчика.
	out Output

	// err — исходная ошибка unit-of-work (nil при успехе).
	err error

	// recovered — recovery-обработчик вернул замещающий результат.
	recovered bool

	// handlerErr — ошибка самого recovery-обработчика.
	handlerErr error

	elapsed time.Duration
}

// execution — состояние одного выполнения flow.
//
// Всеми полями владеет горутина планировщика (метод run). Горутины
// шагов взаимодействуют с ней только через канал done и читают
// Context через его собственный RWMutex.
type execution struct {
	m     *Manager
	g     *graph
	input Input

	store *Context

	// statuses — текущий статус каждого шага.
	statuses map[string]Status

	// remaining — количество незавершённых зависимостей шага.
	remaining map[string]int

	// ready — очередь готовых шагов в порядке наступления готовности.
	ready []*node

	// running — количество выполняющихся шагов.
	running int

	// done — канал событий завершения шагов.
	done chan completion

	failures []Failure
	skips    map[string]Skip
}

// newExecution подготавливает состояние выполнения.
func newExecution(m *Manager, g *graph, input Input) *execution {
	e := &execution{
		m:         m,
		g:         g,
		input:     input,
		store:     newContext(),
		statuses:  make(map[string]Status, g.size()),
		remaining: make(map[string]int, g.size()),
		done:      make(chan completion, g.size()),
		skips:     make(map[string]Skip),
	}
	for _, n := range g.order {
		e.statuses[n.step.Name] = StatusPending
		e.remaining[n.step.Name] = n.depends
	}
	return e
}

// run — цикл планировщика. Возвращает Result, когда ни один шаг
// не выполняется и очередь готовности пуста.
func (e *execution) run(ctx context.Context) *Result {
	e.m.observer.OnFlowStart(e.input)

	// Шаги без зависимостей готовы сразу, в порядке добавления.
	for _, n := range e.g.roots() {
		e.statuses[n.step.Name] = StatusReady
		e.ready = append(e.ready, n)
	}

	for {
		e.dispatch(ctx)

		if e.running == 0 && len(e.ready) == 0 {
			break
		}

		select {
		case c := <-e.done:
			e.handleCompletion(c)

		case <-ctx.Done():
			// Дедлайн flow: незапущенные шаги пропускаем, а
			// выполняющиеся дожидаемся — они получили отмену
			// через свой ctx и должны выйти сами.
			e.skipUnstarted()
			for e.running > 0 {
				e.handleCompletion(<-e.done)
			}
		}
	}

	result := e.buildResult()
	e.m.observer.OnFlowFinish(result)
	return result
}

// dispatch запускает готовые шаги, пока есть свободные слоты.
//
// Шаги запускаются в порядке наступления готовности; готовые в рамках
// одного события — в порядке добавления в Manager (dependents хранятся
// в этом порядке).
func (e *execution) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	for len(e.ready) > 0 && (e.m.limit == 0 || e.running < e.m.limit) {
		n := e.ready[0]
		e.ready = e.ready[1:]

		e.statuses[n.step.Name] = StatusRunning
		e.running++
		e.m.observer.OnStepStart(n.step.Name)

		go e.runStep(ctx, n)
	}
}

// runStep выполняет unit-of-work шага в отдельной горутине и,
// при ошибке, его recovery-обработчик. Результат уходит в done.
func (e *execution) runStep(ctx context.Context, n *node) {
	started := time.Now()

	out, err := e.callStep(ctx, n)

	c := completion{n: n, elapsed: time.Since(started)}
	if err == nil {
		c.out = out
	} else {
		c.err = err
		if n.step.Recover != nil {
			rout, rerr := e.callRecover(ctx, n, err)
			if rerr == nil {
				c.out = rout
				c.recovered = true
			} else {
				c.handlerErr = rerr
			}
		}
	}

	e.done <- c
}

// callStep вызывает unit-of-work, преобразуя панику в ошибку шага:
// паника не должна ронять процесс и портить результаты соседних веток.
func (e *execution) callStep(ctx context.Context, n *node) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("step %s panicked: %v", n.step.Name, r)
		}
	}()
	return n.step.Run(ctx, e.input, e.store)
}

// callRecover вызывает recovery-обработчик с той же защитой от паники.
func (e *execution) callRecover(ctx context.Context, n *node, stepErr error) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("recover handler of step %s panicked: %v", n.step.Name, r)
		}
	}()
	return n.step.Recover(ctx, stepErr, e.store)
}

// handleCompletion обрабатывает завершение шага: записывает результат
// в Context (успех/восстановление) до разблокировки зависимых либо
// запускает каскадный skip (необработанная ошибка).
func (e *execution) handleCompletion(c completion) {
	e.running--
	name := c.n.step.Name

	switch {
	case c.err == nil:
		e.store.set(name, c.out)
		e.statuses[name] = StatusCompleted
		e.m.observer.OnStepComplete(name, c.out, c.elapsed)
		e.unblock(c.n)

	case c.recovered:
		e.failures = append(e.failures, Failure{Step: name, Err: c.err, Recovered: true})
		e.store.set(name, c.out)
		e.statuses[name] = StatusRecovered
		e.m.observer.OnStepRecovered(name, c.out)
		e.unblock(c.n)

	default:
		e.failures = append(e.failures, Failure{Step: name, Err: c.err})
		if c.handlerErr != nil {
			e.failures = append(e.failures, Failure{Step: name, Err: c.handlerErr, FromHandler: true})
		}
		e.statuses[name] = StatusFailed
		e.m.observer.OnStepFailed(name, c.err)
		e.cascadeSkip(c.n)
	}
}

// unblock уменьшает счётчики зависимостей у зависимых шагов и
// переводит достигшие нуля в очередь готовности.
func (e *execution) unblock(n *node) {
	for _, d := range n.dependents {
		name := d.step.Name
		if e.statuses[name] != StatusPending {
			continue
		}
		e.remaining[name]--
		if e.remaining[name] == 0 {
			e.statuses[name] = StatusReady
			e.ready = append(e.ready, d)
		}
	}
}

// cascadeSkip помечает все транзитивные зависимые упавшего шага как
// SKIPPED обходом в ширину по обратной смежности. Пропущенный шаг
// никогда не выполняется, даже если остальные его зависимости успешны.
func (e *execution) cascadeSkip(failed *node) {
	origin := failed.step.Name

	queue := make([]*node, len(failed.dependents))
	copy(queue, failed.dependents)

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		name := d.step.Name

		if e.statuses[name] == StatusSkipped {
			// Уже пропущен из-за другой ошибки — дописываем источник.
			skip := e.skips[name]
			if skip.Cause == SkipDependencyFailed && !containsString(skip.After, origin) {
				skip.After = append(skip.After, origin)
				e.skips[name] = skip
			}
			continue
		}
		if e.statuses[name] != StatusPending {
			continue
		}

		e.statuses[name] = StatusSkipped
		skip := Skip{Cause: SkipDependencyFailed, After: []string{origin}}
		e.skips[name] = skip
		e.m.observer.OnStepSkipped(name, skip)

		queue = append(queue, d.dependents...)
	}
}

// skipUnstarted помечает все незапущенные шаги как SKIPPED по дедлайну
// и очищает очередь готовности.
func (e *execution) skipUnstarted() {
	for _, n := range e.g.order {
		name := n.step.Name
		switch e.statuses[name] {
		case StatusPending, StatusReady:
			e.statuses[name] = StatusSkipped
			skip := Skip{Cause: SkipDeadline}
			e.skips[name] = skip
			e.m.observer.OnStepSkipped(name, skip)
		}
	}
	e.ready = nil
}

// buildResult собирает итоговый Result.
func (e *execution) buildResult() *Result {
	statuses := make(map[string]Status, len(e.statuses))
	for name, s := range e.statuses {
		statuses[name] = s
	}
	return &Result{
		Context:  e.store.Snapshot(),
		Statuses: statuses,
		Failures: e.failures,
		Skips:    e.skips,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
