package flow

import (
	"fmt"
	"strings"
)

// node — узел графа зависимостей.
type node struct {
	// step — определение шага.
	step *Step

	// index — позиция шага в порядке добавления. Используется как
	// tie-break при диспетчеризации, никогда — как неявная зависимость.
	index int

	// depends — количество зависимостей (входящих рёбер).
	depends int

	// dependents — шаги, зависящие от этого узла, в порядке добавления.
	// По ним планировщик разносит события завершения.
	dependents []*node
}

// graph — граф зависимостей шагов одного flow.
type graph struct {
	// nodes — все узлы (имя шага → узел).
	nodes map[string]*node

	// order — узлы в порядке добавления шагов.
	order []*node
}

// buildGraph строит и валидирует граф зависимостей.
//
// Проверяет, что каждая зависимость ссылается на существующий шаг,
// и что граф ацикличен. Уникальность имён гарантируется реестром
// (Manager.AddStep), но проверяется и здесь: buildGraph должен быть
// самодостаточным.
func buildGraph(steps []*Step) (*graph, error) {
	g := &graph{
		nodes: make(map[string]*node, len(steps)),
		order: make([]*node, 0, len(steps)),
	}

	// Первый проход: создаём узлы.
	for i, step := range steps {
		if _, exists := g.nodes[step.Name]; exists {
			return nil, newValidationError(step.Name, "duplicate step name", ErrDuplicateStep)
		}
		n := &node{step: step, index: i}
		g.nodes[step.Name] = n
		g.order = append(g.order, n)
	}

	// Второй проход: связываем узлы по Requires.
	for _, n := range g.order {
		for _, req := range n.step.Requires {
			dep, exists := g.nodes[req]
			if !exists {
				return nil, newValidationError(n.step.Name,
					fmt.Sprintf("requires unknown step %q", req), ErrUnknownDependency)
			}
			dep.dependents = append(dep.dependents, n)
			n.depends++
		}
	}

	// Проверяем на циклы.
	if cycle := g.findCycle(); cycle != nil {
		return nil, newValidationError(cycle[0],
			fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
			ErrCyclicDependency)
	}

	return g, nil
}

// findCycle ищет цикл обходом в глубину с пометкой стека рекурсии.
//
// Возвращает имена шагов-участников цикла в порядке обнаружения
// (ребро назад к узлу, ещё находящемуся на стеке, замыкает цикл),
// либо nil, если граф ацикличен. Обход идёт в порядке добавления
// шагов — результат детерминирован.
func (g *graph) findCycle() []string {
	const (
		white = iota // не посещён
		grey         // на стеке рекурсии
		black        // обработан
	)

	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(n *node) []string
	visit = func(n *node) []string {
		name := n.step.Name
		color[name] = grey
		stack = append(stack, name)

		for _, req := range n.step.Requires {
			dep := g.nodes[req]
			switch color[req] {
			case grey:
				// Ребро назад: вырезаем участников цикла со стека.
				for i, s := range stack {
					if s == req {
						cycle := make([]string, len(stack)-i)
						copy(cycle, stack[i:])
						return cycle
					}
				}
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for _, n := range g.order {
		if color[n.step.Name] == white {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// roots возвращает узлы без зависимостей в порядке добавления.
func (g *graph) roots() []*node {
	roots := make([]*node, 0)
	for _, n := range g.order {
		if n.depends == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// size возвращает количество узлов.
func (g *graph) size() int {
	return len(g.nodes)
}
