package flow

import (
	"fmt"
	"sync"
)

// Context — общее хранилище результатов шагов одного выполнения flow.
//
// Отображение имя шага → Output. Растёт монотонно: ключ записывается
// ровно один раз (планировщиком, после COMPLETED или RECOVERED) и
// после этого не меняется. Читать может любой выполняющийся шаг и
// вызывающая сторона после Execute.
//
// Выполняющийся шаг видит полный контекст — результаты всех уже
// завершённых шагов, а не только объявленных зависимостей. Для
// объявленных зависимостей запись гарантированно присутствует и
// полна: планировщик записывает результат до разблокировки зависимых.
type Context struct {
	mu      sync.RWMutex
	results map[string]Output
}

// newContext создаёт пустой Context.
func newContext() *Context {
	return &Context{
		results: make(map[string]Output),
	}
}

// NewContextFrom создаёт Context с готовыми результатами шагов.
// Удобно для тестирования StepFunc в изоляции от Manager.
func NewContextFrom(results map[string]Output) *Context {
	c := newContext()
	for name, out := range results {
		c.results[name] = out
	}
	return c
}

// Get возвращает результат шага по имени.
func (c *Context) Get(name string) (Output, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out, ok := c.results[name]
	return out, ok
}

// Has проверяет наличие результата шага.
func (c *Context) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Len возвращает количество записанных результатов.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.results)
}

// Snapshot возвращает копию отображения имя шага → Output.
// Сами Output не копируются: по контракту они не мутируются после записи.
func (c *Context) Snapshot() map[string]Output {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string]Output, len(c.results))
	for name, out := range c.results {
		snap[name] = out
	}
	return snap
}

// set записывает результат шага. Вызывается только планировщиком.
//
// Повторная запись ключа невозможна при соблюдении инвариантов
// планировщика ("шаг выполняется не более одного раза"); если она
// всё же произошла — это баг планировщика, а не проблема данных,
// поэтому паника, а не ошибка.
func (c *Context) set(name string, out Output) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[name]; exists {
		panic(fmt.Sprintf("flow: context entry %q written twice", name))
	}
	c.results[name] = out
}
