// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий выполнения
//   - consumer.go   — потребление событий из очередей
//   - observer.go   — flow.Observer, публикующий события выполнения
//
// Типы сообщений:
//   - run.started    — Execute стартовал
//   - run.finished   — Execute завершился, со сводкой по шагам
//   - step.finished  — шаг получил финальный статус
//
// Exchanges:
//   - kestrel.runs   — события запусков
//   - kestrel.steps  — события шагов
//   - kestrel.dlq    — dead letter queue
package mq
