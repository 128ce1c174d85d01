// Package flow реализует движок многошаговых рабочих процессов.
//
// Flow — это набор именованных шагов (Step), каждый из которых может
// объявлять зависимости от других шагов (Requires). Движок выполняет
// шаги с учётом порядка зависимостей, запуская независимые шаги
// параллельно, и собирает их результаты в общий контекст (Context),
// доступный последующим шагам.
//
// Структура:
//   - step.go     — определение Step, сигнатуры unit-of-work и статусы
//   - manager.go  — Manager: реестр шагов и точка входа Execute
//   - graph.go    — построение графа зависимостей, валидация, поиск циклов
//   - context.go  — Context: write-once хранилище результатов шагов
//   - executor.go — планировщик: очередь готовности, параллельный запуск,
//     каскадный skip при ошибках, recovery-обработчики
//   - result.go   — Result: итог выполнения flow
//   - observer.go — Observer: хуки жизненного цикла шагов
//   - export.go   — экспорт графа в Graphviz DOT
//
// Тело шага для движка непрозрачно: это функция с фиксированным
// контрактом (вход flow, снимок контекста) → (результат, ошибка).
// Что внутри — вызов агента, HTTP-запрос, локальное вычисление —
// движок не знает и не проверяет.
//
// Ошибка шага никогда не прерывает независимые ветки графа: она
// распространяется только по рёбрам зависимостей каскадным skip.
// Execute возвращает ошибку только для невалидного определения flow
// (дубликат имени, неизвестная зависимость, цикл).
package flow
