// Package cli реализует инструмент командной строки Kestrel.
//
// # Обзор
//
// CLI — клиентская утилита для просмотра журнала запусков через
// Kestrel API. Работает по HTTP, не импортирует внутренние пакеты
// системы записи.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Kestrel API. Инкапсулирует запросы, парсинг
// ответов (DataResponse, ListResponse, ErrorResponse) и обработку
// ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Flow: "pipeline"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (с флагом --json)
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: kestrel run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list
//   - run: list, show, steps
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
