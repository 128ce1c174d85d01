// Package recorder записывает события выполнения flow в журнал.
//
// Recorder потребляет события из RabbitMQ (runs.events, steps.events)
// и сохраняет их в PostgreSQL через repo. Это единственный писатель
// журнала: движок flow публикует события и о хранилище не знает.
//
// Ошибка записи возвращается из handler — сообщение уходит в nack
// с requeue и будет доставлено повторно; после исчерпания попыток
// сообщение попадает в DLQ на уровне очереди.
package recorder
