// Package api содержит HTTP API журнала запусков.
//
// Структура:
//   - handler.go     — Handler с DI (репозитории, logger)
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (logging, recovery)
//   - response.go    — унифицированные JSON-ответы и обработка ошибок
//   - dto.go         — Data Transfer Objects (response)
//   - run_handler.go — обработчики для /runs и /flows
//
// API read-only: история запусков, итоги шагов, сводка по flow.
package api
