package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Kestrel/flow"
)

// Transform возвращает StepFunc, преобразующий данные предыдущих
// шагов через Go templates.
//
// Каждый mapping рендерится по входным данным flow и результатам
// завершённых шагов; результат попадает в Output под своим ключом.
//
// Конфигурация:
//
//	steps.Transform(map[string]string{
//	    "total":    "{{ len .Steps.fetch.body }}",
//	    "first_id": "{{ index .Steps.fetch.body 0 }}",
//	})
//
// Отрендеренные строки коэрцируются обратно в JSON типы: "10" станет
// int64(10), "true" — bool, "[1,2]" — слайсом.
func Transform(mappings map[string]string) flow.StepFunc {
	return func(ctx context.Context, input flow.Input, fc *flow.Context) (flow.Output, error) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		if len(mappings) == 0 {
			return flow.Output{}, nil
		}

		data := newTemplateData(input, fc)
		outputs := make(flow.Output, len(mappings))
		for key, tmpl := range mappings {
			rendered, err := render(tmpl, data)
			if err != nil {
				return nil, fmt.Errorf("transform %s: %w", key, err)
			}
			outputs[key] = coerceValue(rendered)
		}
		return outputs, nil
	}
}

// coerceValue пытается распарсить строку как JSON значение.
// Если не получается — возвращает строку как есть.
func coerceValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	return value
}
