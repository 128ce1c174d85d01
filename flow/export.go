package flow

import (
	"fmt"
	"io"
	"strings"
)

// ExportDOT записывает объявленный граф зависимостей в формате
// Graphviz DOT. Read-only: определение flow не меняется, шаги не
// выполняются.
//
// Узлы выводятся в порядке добавления, рёбра — от зависимости к
// зависимому шагу. Шаги с recovery-обработчиком помечаются пунктиром.
func (m *Manager) ExportDOT(w io.Writer) error {
	var b strings.Builder

	b.WriteString("digraph flow {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for _, s := range m.steps {
		attrs := ""
		if s.Recover != nil {
			attrs = " [style=dashed]"
		}
		fmt.Fprintf(&b, "  %s%s;\n", dotQuote(s.Name), attrs)
	}
	for _, s := range m.steps {
		for _, req := range s.Requires {
			fmt.Fprintf(&b, "  %s -> %s;\n", dotQuote(req), dotQuote(s.Name))
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// dotQuote экранирует имя шага для DOT.
func dotQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}
