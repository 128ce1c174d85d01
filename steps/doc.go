// Package steps содержит готовые фабрики flow.StepFunc для типовых
// действий: HTTP запрос, задержка, трансформация данных.
//
// # Обзор
//
// Каждая фабрика принимает конфигурацию и возвращает flow.StepFunc,
// который можно зарегистрировать в flow.Manager:
//
//	m := flow.NewManager()
//	m.AddStep(flow.Step{
//	    Name: "fetch",
//	    Run:  steps.HTTP(steps.HTTPConfig{URL: "https://api.example.com/items"}),
//	})
//	m.AddStep(flow.Step{
//	    Name:     "report",
//	    Requires: []string{"fetch"},
//	    Run: steps.Transform(map[string]string{
//	        "total": "{{ len .Steps.fetch.body }}",
//	    }),
//	})
//
// # Шаблоны
//
// Строковые поля конфигурации поддерживают Go templates с доступом
// к входным данным flow и результатам завершённых шагов:
//
//	{{ .Inputs.token }}
//	{{ .Steps.fetch.status_code }}
//	{{ .Steps.fetch.body }}
//
// Доступны дополнительные функции: json, fromJSON, default, coalesce,
// join, split, lower, upper, trim, replace и другие (см. template.go).
//
// # Файлы пакета
//
//   - template.go  — рендеринг шаблонов по данным flow
//   - http.go      — HTTP запрос
//   - delay.go     — задержка
//   - transform.go — трансформация данных через шаблоны
package steps
