// Package telemetry обеспечивает наблюдаемость Kestrel.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики выполнения flow
//
// Сервисы журнала используют единый формат логирования и экспортируют
// метрики на /metrics endpoint. MetricsObserver подключает метрики
// к выполнению flow через flow.Observer.
package telemetry
