package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingObserver собирает события жизненного цикла для проверок.
type recordingObserver struct {
	NopObserver

	mu        sync.Mutex
	started   []string
	completed []string
	failed    []string
	recovered []string
	skipped   map[string]Skip
	flowStart int
	flowDone  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{skipped: make(map[string]Skip)}
}

func (o *recordingObserver) OnFlowStart(Input) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flowStart++
}

func (o *recordingObserver) OnStepStart(step string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, step)
}

func (o *recordingObserver) OnStepComplete(step string, _ Output, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, step)
}

func (o *recordingObserver) OnStepFailed(step string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, step)
}

func (o *recordingObserver) OnStepRecovered(step string, _ Output) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recovered = append(o.recovered, step)
}

func (o *recordingObserver) OnStepSkipped(step string, skip Skip) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped[step] = skip
}

func (o *recordingObserver) OnFlowFinish(*Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flowDone++
}

func TestExecute_SimpleChain(t *testing.T) {
	m := NewManager()

	m.AddStep(Step{Name: "research", Run: func(_ context.Context, input Input, _ *Context) (Output, error) {
		return Output{"findings": "data for " + input["topic"].(string)}, nil
	}})
	m.AddStep(Step{Name: "summarize", Requires: []string{"research"},
		Run: func(_ context.Context, _ Input, fc *Context) (Output, error) {
			research, ok := fc.Get("research")
			if !ok {
				t.Error("summarize should see research result")
				return nil, errors.New("no research result")
			}
			return Output{"summary": "summary of " + research["findings"].(string)}, nil
		}})

	result, err := m.Execute(context.Background(), Input{"topic": "ai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK() {
		t.Fatalf("flow should succeed, statuses: %v", result.Statuses)
	}

	out, ok := result.Output("summarize")
	if !ok {
		t.Fatal("summarize result should be in context")
	}
	if out["summary"] != "summary of data for ai" {
		t.Errorf("unexpected summary: %v", out["summary"])
	}
}

func TestExecute_TopologicalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	record := func(name string) StepFunc {
		return func(context.Context, Input, *Context) (Output, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return Output{}, nil
		}
	}

	// A → B → D, A → C → D
	m := NewManager()
	m.AddStep(Step{Name: "A", Run: record("A")})
	m.AddStep(Step{Name: "B", Requires: []string{"A"}, Run: record("B")})
	m.AddStep(Step{Name: "C", Requires: []string{"A"}, Run: record("C")})
	m.AddStep(Step{Name: "D", Requires: []string{"B", "C"}, Run: record("D")})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK() {
		t.Fatalf("flow should succeed, statuses: %v", result.Statuses)
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}

	if pos["A"] > pos["B"] || pos["A"] > pos["C"] {
		t.Errorf("A should run before B and C, order: %v", order)
	}
	if pos["B"] > pos["D"] || pos["C"] > pos["D"] {
		t.Errorf("B and C should run before D, order: %v", order)
	}
}

func TestExecute_StepRunsOnce(t *testing.T) {
	counts := make(map[string]*atomic.Int32)

	m := NewManager()
	for _, name := range []string{"A", "B", "C", "D"} {
		counts[name] = &atomic.Int32{}
	}
	m.AddStep(Step{Name: "A", Run: countingStep(counts["A"])})
	m.AddStep(Step{Name: "B", Requires: []string{"A"}, Run: countingStep(counts["B"])})
	m.AddStep(Step{Name: "C", Requires: []string{"A"}, Run: countingStep(counts["C"])})
	m.AddStep(Step{Name: "D", Requires: []string{"B", "C"}, Run: countingStep(counts["D"])})

	if _, err := m.Execute(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Шаг выполняется не более одного раза за выполнение,
	// даже при нескольких входящих рёбрах
	for name, c := range counts {
		if c.Load() != 1 {
			t.Errorf("step %s should run exactly once, got %d", name, c.Load())
		}
	}
}

func TestExecute_IndependentConcurrency(t *testing.T) {
	const delay = 100 * time.Millisecond

	sleeper := func(context.Context, Input, *Context) (Output, error) {
		time.Sleep(delay)
		return Output{}, nil
	}

	m := NewManager()
	m.AddStep(Step{Name: "left", Run: sleeper})
	m.AddStep(Step{Name: "right", Run: sleeper})

	started := time.Now()
	result, err := m.Execute(context.Background(), nil)
	elapsed := time.Since(started)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK() {
		t.Fatalf("flow should succeed, statuses: %v", result.Statuses)
	}

	// Независимые шаги выполняются параллельно: ~d, а не ~2d
	if elapsed >= 2*delay {
		t.Errorf("independent steps should run concurrently, took %v", elapsed)
	}
}

func TestExecute_ConcurrencyBound(t *testing.T) {
	var current, peak atomic.Int32

	busy := func(context.Context, Input, *Context) (Output, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return Output{}, nil
	}

	m := NewManager(WithConcurrency(2))
	for _, name := range []string{"s1", "s2", "s3", "s4", "s5"} {
		m.AddStep(Step{Name: name, Run: busy})
	}

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK() {
		t.Fatalf("flow should succeed, statuses: %v", result.Statuses)
	}

	if peak.Load() > 2 {
		t.Errorf("at most 2 steps should run simultaneously, peak was %d", peak.Load())
	}
}

func TestExecute_CascadeSkip(t *testing.T) {
	var bCalls atomic.Int32
	stepErr := errors.New("boom")

	m := NewManager()
	m.AddStep(Step{Name: "A", Run: func(context.Context, Input, *Context) (Output, error) {
		return nil, stepErr
	}})
	m.AddStep(Step{Name: "B", Requires: []string{"A"}, Run: countingStep(&bCalls)})
	m.AddStep(Step{Name: "C", Run: noopStep})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status("A") != StatusFailed {
		t.Errorf("A should be FAILED, got %s", result.Status("A"))
	}
	if result.Status("B") != StatusSkipped {
		t.Errorf("B should be SKIPPED, got %s", result.Status("B"))
	}
	if result.Status("C") != StatusCompleted {
		t.Errorf("independent C should be COMPLETED, got %s", result.Status("C"))
	}

	// Пропущенный шаг не выполнялся
	if bCalls.Load() != 0 {
		t.Errorf("B should never run, got %d calls", bCalls.Load())
	}

	// Пропуск атрибутирован упавшему шагу
	skip, ok := result.Skips["B"]
	if !ok {
		t.Fatal("B should have a skip record")
	}
	if skip.Cause != SkipDependencyFailed {
		t.Errorf("expected DEPENDENCY_FAILED cause, got %s", skip.Cause)
	}
	if len(skip.After) != 1 || skip.After[0] != "A" {
		t.Errorf("skip should reference A, got %v", skip.After)
	}

	// Ошибка записана против шага A
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failures))
	}
	f := result.Failures[0]
	if f.Step != "A" || !errors.Is(f.Err, stepErr) || f.Recovered {
		t.Errorf("unexpected failure record: %+v", f)
	}
}

func TestExecute_CascadeSkip_Transitive(t *testing.T) {
	var calls atomic.Int32

	m := NewManager()
	m.AddStep(Step{Name: "A", Run: func(context.Context, Input, *Context) (Output, error) {
		return nil, errors.New("boom")
	}})
	m.AddStep(Step{Name: "B", Requires: []string{"A"}, Run: countingStep(&calls)})
	m.AddStep(Step{Name: "C", Requires: []string{"B"}, Run: countingStep(&calls)})
	m.AddStep(Step{Name: "E", Run: noopStep})
	// D требует и упавшую ветку, и успешную — всё равно SKIPPED
	m.AddStep(Step{Name: "D", Requires: []string{"A", "E"}, Run: countingStep(&calls)})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"B", "C", "D"} {
		if result.Status(name) != StatusSkipped {
			t.Errorf("%s should be SKIPPED, got %s", name, result.Status(name))
		}
		skip := result.Skips[name]
		if len(skip.After) != 1 || skip.After[0] != "A" {
			t.Errorf("%s skip should reference originating failure A, got %v", name, skip.After)
		}
	}
	if result.Status("E") != StatusCompleted {
		t.Errorf("E should be COMPLETED, got %s", result.Status("E"))
	}
	if calls.Load() != 0 {
		t.Errorf("skipped steps should never run, got %d calls", calls.Load())
	}
}

func TestExecute_Recovery(t *testing.T) {
	stepErr := errors.New("model unavailable")

	m := NewManager()
	m.AddStep(Step{
		Name: "A",
		Run: func(context.Context, Input, *Context) (Output, error) {
			return nil, stepErr
		},
		Recover: func(_ context.Context, err error, _ *Context) (Output, error) {
			if !errors.Is(err, stepErr) {
				t.Errorf("handler should receive the original error, got %v", err)
			}
			return Output{"status": "degraded"}, nil
		},
	})
	m.AddStep(Step{Name: "C", Requires: []string{"A"},
		Run: func(_ context.Context, _ Input, fc *Context) (Output, error) {
			a, ok := fc.Get("A")
			if !ok {
				return nil, errors.New("A result missing")
			}
			return Output{"seen": a["status"]}, nil
		}})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status("A") != StatusRecovered {
		t.Errorf("A should be RECOVERED, got %s", result.Status("A"))
	}
	if result.Status("C") != StatusCompleted {
		t.Errorf("C should run with the substitute value, got %s", result.Status("C"))
	}

	// Зависимый шаг видит замещающий результат
	out, _ := result.Output("C")
	if out["seen"] != "degraded" {
		t.Errorf("C should see degraded status, got %v", out["seen"])
	}

	// Исходная ошибка записана как восстановленная
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure record, got %d", len(result.Failures))
	}
	if !result.Failures[0].Recovered {
		t.Error("failure should be marked recovered")
	}
}

func TestExecute_HandlerFailure(t *testing.T) {
	stepErr := errors.New("boom")
	handlerErr := errors.New("handler boom")

	m := NewManager()
	m.AddStep(Step{
		Name: "A",
		Run: func(context.Context, Input, *Context) (Output, error) {
			return nil, stepErr
		},
		Recover: func(context.Context, error, *Context) (Output, error) {
			return nil, handlerErr
		},
	})
	m.AddStep(Step{Name: "B", Requires: []string{"A"}, Run: noopStep})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ошибка обработчика эквивалентна необработанной ошибке шага
	if result.Status("A") != StatusFailed {
		t.Errorf("A should be FAILED, got %s", result.Status("A"))
	}
	if result.Status("B") != StatusSkipped {
		t.Errorf("B should be SKIPPED, got %s", result.Status("B"))
	}

	// Записаны обе ошибки: исходная и из обработчика
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 failure records, got %d", len(result.Failures))
	}
	if !errors.Is(result.Failures[0].Err, stepErr) || result.Failures[0].FromHandler {
		t.Errorf("first failure should be the original error: %+v", result.Failures[0])
	}
	if !errors.Is(result.Failures[1].Err, handlerErr) || !result.Failures[1].FromHandler {
		t.Errorf("second failure should come from the handler: %+v", result.Failures[1])
	}
}

func TestExecute_ContextVisibility(t *testing.T) {
	slow := func(d time.Duration, out Output) StepFunc {
		return func(context.Context, Input, *Context) (Output, error) {
			time.Sleep(d)
			return out, nil
		}
	}

	m := NewManager()
	m.AddStep(Step{Name: "A", Run: slow(30*time.Millisecond, Output{"from": "A"})})
	m.AddStep(Step{Name: "B", Run: slow(60*time.Millisecond, Output{"from": "B"})})
	m.AddStep(Step{Name: "D", Requires: []string{"A", "B"},
		Run: func(_ context.Context, _ Input, fc *Context) (Output, error) {
			// Обе зависимости обязаны быть записаны полностью
			// до запуска D — частичных значений не бывает
			for _, dep := range []string{"A", "B"} {
				out, ok := fc.Get(dep)
				if !ok {
					t.Errorf("D should see %s in context", dep)
					continue
				}
				if out["from"] != dep {
					t.Errorf("dependency %s result incomplete: %v", dep, out)
				}
			}
			return Output{}, nil
		}})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK() {
		t.Fatalf("flow should succeed, statuses: %v", result.Statuses)
	}
}

func TestExecute_FullContextExposed(t *testing.T) {
	// Контракт: выполняющийся шаг видит полный контекст, включая
	// завершённые шаги вне его объявленных зависимостей.
	m := NewManager(WithConcurrency(1))
	m.AddStep(Step{Name: "first", Run: func(context.Context, Input, *Context) (Output, error) {
		return Output{"n": 1}, nil
	}})
	m.AddStep(Step{Name: "second", Run: func(_ context.Context, _ Input, fc *Context) (Output, error) {
		// При limit=1 first гарантированно завершён до запуска second
		if !fc.Has("first") {
			t.Error("second should see completed unrelated step first")
		}
		return Output{}, nil
	}})

	if _, err := m.Execute(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecute_TieBreak_InsertionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	record := func(name string) StepFunc {
		return func(context.Context, Input, *Context) (Output, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return Output{}, nil
		}
	}

	// При limit=1 готовые одновременно шаги диспетчеризуются
	// в порядке добавления
	m := NewManager(WithConcurrency(1))
	m.AddStep(Step{Name: "c", Run: record("c")})
	m.AddStep(Step{Name: "a", Run: record("a")})
	m.AddStep(Step{Name: "b", Run: record("b")})

	if _, err := m.Execute(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"c", "a", "b"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("expected dispatch order %v, got %v", want, order)
		}
	}
}

func TestExecute_Deadline(t *testing.T) {
	m := NewManager(WithConcurrency(1), WithTimeout(50*time.Millisecond))

	// first выполняется дольше дедлайна, но уважает отмену
	m.AddStep(Step{Name: "first", Run: func(ctx context.Context, _ Input, _ *Context) (Output, error) {
		select {
		case <-time.After(time.Second):
			return Output{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}})
	// second не успеет запуститься при limit=1
	m.AddStep(Step{Name: "second", Run: noopStep})
	m.AddStep(Step{Name: "dependent", Requires: []string{"first"}, Run: noopStep})

	started := time.Now()
	result, err := m.Execute(context.Background(), nil)
	elapsed := time.Since(started)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Execute вернулся вскоре после дедлайна, не дожидаясь таймера шага
	if elapsed > 500*time.Millisecond {
		t.Errorf("execute should return soon after the deadline, took %v", elapsed)
	}

	if result.Status("first") != StatusFailed {
		t.Errorf("first should be FAILED with ctx error, got %s", result.Status("first"))
	}

	// Незапущенные шаги пропущены по дедлайну, не по каскаду
	for _, name := range []string{"second", "dependent"} {
		if result.Status(name) != StatusSkipped {
			t.Errorf("%s should be SKIPPED, got %s", name, result.Status(name))
		}
		if result.Skips[name].Cause != SkipDeadline {
			t.Errorf("%s skip cause should be DEADLINE, got %s", name, result.Skips[name].Cause)
		}
	}

	// Ошибка отмены записана против first
	if len(result.Failures) == 0 || !errors.Is(result.Failures[0].Err, context.DeadlineExceeded) {
		t.Errorf("first failure should be DeadlineExceeded, got %+v", result.Failures)
	}
}

func TestExecute_PanicContained(t *testing.T) {
	m := NewManager()
	m.AddStep(Step{Name: "A", Run: func(context.Context, Input, *Context) (Output, error) {
		panic("unexpected state")
	}})
	m.AddStep(Step{Name: "C", Run: noopStep})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Паника шага превращается в его ошибку и не трогает соседей
	if result.Status("A") != StatusFailed {
		t.Errorf("A should be FAILED, got %s", result.Status("A"))
	}
	if result.Status("C") != StatusCompleted {
		t.Errorf("C should be COMPLETED, got %s", result.Status("C"))
	}
}

func TestExecute_Idempotent(t *testing.T) {
	m := NewManager()
	m.AddStep(Step{Name: "A", Run: func(context.Context, Input, *Context) (Output, error) {
		return nil, errors.New("always fails")
	}})
	m.AddStep(Step{Name: "B", Requires: []string{"A"}, Run: noopStep})
	m.AddStep(Step{Name: "C", Run: noopStep})

	first, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Повторное выполнение даёт ту же форму статусов
	for name, s := range first.Statuses {
		if second.Statuses[name] != s {
			t.Errorf("status of %s differs: %s vs %s", name, s, second.Statuses[name])
		}
	}
}

func TestExecute_Observer(t *testing.T) {
	obs := newRecordingObserver()

	m := NewManager(WithObserver(obs))
	m.AddStep(Step{Name: "ok", Run: noopStep})
	m.AddStep(Step{Name: "bad", Run: func(context.Context, Input, *Context) (Output, error) {
		return nil, errors.New("boom")
	}})
	m.AddStep(Step{Name: "after-bad", Requires: []string{"bad"}, Run: noopStep})
	m.AddStep(Step{
		Name: "healed",
		Run: func(context.Context, Input, *Context) (Output, error) {
			return nil, errors.New("boom")
		},
		Recover: func(context.Context, error, *Context) (Output, error) {
			return Output{}, nil
		},
	})

	if _, err := m.Execute(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if obs.flowStart != 1 || obs.flowDone != 1 {
		t.Errorf("flow hooks should fire once, got start=%d done=%d", obs.flowStart, obs.flowDone)
	}
	if len(obs.started) != 3 {
		t.Errorf("3 steps should start, got %v", obs.started)
	}
	if len(obs.completed) != 1 || obs.completed[0] != "ok" {
		t.Errorf("only ok should complete, got %v", obs.completed)
	}
	if len(obs.failed) != 1 || obs.failed[0] != "bad" {
		t.Errorf("only bad should fail, got %v", obs.failed)
	}
	if len(obs.recovered) != 1 || obs.recovered[0] != "healed" {
		t.Errorf("healed should recover, got %v", obs.recovered)
	}
	if _, ok := obs.skipped["after-bad"]; !ok {
		t.Errorf("after-bad should be reported skipped, got %v", obs.skipped)
	}
}

func TestExecute_EmptyFlow(t *testing.T) {
	m := NewManager()

	result, err := m.Execute(context.Background(), Input{"x": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Statuses) != 0 || len(result.Context) != 0 {
		t.Errorf("empty flow should produce empty result: %+v", result)
	}
	if !result.OK() {
		t.Error("empty flow is trivially OK")
	}
}

func TestResult_Summarize(t *testing.T) {
	m := NewManager()
	m.AddStep(Step{Name: "ok", Run: noopStep})
	m.AddStep(Step{Name: "bad", Run: func(context.Context, Input, *Context) (Output, error) {
		return nil, errors.New("boom")
	}})
	m.AddStep(Step{Name: "after-bad", Requires: []string{"bad"}, Run: noopStep})

	result, err := m.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := result.Summarize()
	if s.Total != 3 || s.Completed != 1 || s.Failed != 1 || s.Skipped != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}

	failed := result.FailedSteps()
	if len(failed) != 1 || failed[0] != "bad" {
		t.Errorf("expected failed steps [bad], got %v", failed)
	}
}
