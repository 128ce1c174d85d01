// Package schedule запускает flow по расписанию.
//
// Расписание задаётся Spec: либо cron-выражение из 5 полей с
// опциональной таймзоной, либо фиксированный интервал.
//
// Использование:
//
//	sched := schedule.New(schedule.WithLogger(logger))
//	err := sched.Add(schedule.Entry{
//	    Name:    "nightly-report",
//	    Spec:    schedule.Spec{Cron: "0 3 * * *", Timezone: "Europe/Moscow"},
//	    Manager: reportFlow,
//	})
//	...
//	// Блокирует до отмены ctx
//	sched.Run(ctx)
//
// Выполнения одной записи не накладываются: если предыдущий запуск
// ещё идёт, очередной тик пропускается с предупреждением в логе.
//
// Структура:
//   - spec.go      — Spec, валидация и вычисление следующего запуска
//   - scheduler.go — Scheduler, цикл тиков и запуск flow
package schedule
