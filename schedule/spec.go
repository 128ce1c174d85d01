package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Ошибки валидации Spec.
var (
	// ErrEmptySpec — не задан ни cron, ни интервал.
	ErrEmptySpec = errors.New("schedule spec has neither cron nor interval")

	// ErrAmbiguousSpec — заданы и cron, и интервал одновременно.
	ErrAmbiguousSpec = errors.New("schedule spec has both cron and interval")
)

// Spec — расписание запуска flow: либо cron-выражение, либо интервал.
type Spec struct {
	// Cron — cron-выражение из 5 полей: "*/5 * * * *".
	Cron string

	// Every — фиксированный интервал между запусками.
	Every time.Duration

	// Timezone — таймзона для вычисления cron-времени ("Europe/Moscow").
	// Пустая строка означает UTC.
	Timezone string
}

// IsCron возвращает true, если расписание задано cron-выражением.
func (s Spec) IsCron() bool {
	return s.Cron != ""
}

// IsInterval возвращает true, если расписание задано интервалом.
func (s Spec) IsInterval() bool {
	return s.Every > 0
}

// Validate проверяет корректность Spec.
func (s Spec) Validate() error {
	if !s.IsCron() && !s.IsInterval() {
		return ErrEmptySpec
	}
	if s.IsCron() && s.IsInterval() {
		return ErrAmbiguousSpec
	}
	if s.IsCron() {
		if _, err := cronParser.Parse(s.Cron); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}
	return nil
}

// Next вычисляет следующее время запуска после from.
// Результат возвращается в UTC.
func (s Spec) Next(from time.Time) (time.Time, error) {
	loc := time.UTC
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err == nil {
			loc = l
		}
	}
	fromInTz := from.In(loc)

	if s.IsCron() {
		parsed, err := cronParser.Parse(s.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", s.Cron, err)
		}
		return parsed.Next(fromInTz).UTC(), nil
	}

	if s.IsInterval() {
		return fromInTz.Add(s.Every).UTC(), nil
	}

	return time.Time{}, ErrEmptySpec
}
