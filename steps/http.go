package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Kestrel/flow"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPConfig — конфигурация HTTP шага.
//
// URL, значения Headers и строки внутри Body поддерживают шаблоны.
type HTTPConfig struct {
	// Method — HTTP метод. По умолчанию GET.
	Method string

	// URL — адрес запроса. Обязателен.
	URL string

	// Headers — заголовки запроса.
	Headers map[string]string

	// Body — тело запроса: string и []byte отправляются как есть,
	// остальное сериализуется в JSON.
	Body any

	// Timeout — таймаут запроса. По умолчанию 30 секунд.
	Timeout time.Duration

	// NoFollowRedirects — не следовать за редиректами.
	NoFollowRedirects bool

	// SkipTLSVerify — не проверять TLS сертификат сервера.
	SkipTLSVerify bool

	// FailOnStatus — считать статус >= 400 ошибкой шага.
	FailOnStatus bool
}

// HTTP возвращает StepFunc, выполняющий HTTP запрос.
//
// Outputs:
//
//	{
//	    "status_code": 200,
//	    "headers": {"Content-Type": "application/json", ...},
//	    "body": {...}  // распарсенный JSON или строка
//	}
func HTTP(cfg HTTPConfig) flow.StepFunc {
	client := buildHTTPClient(cfg)

	return func(ctx context.Context, input flow.Input, fc *flow.Context) (flow.Output, error) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: http: url is required", ErrInvalidConfig)
		}

		req, err := buildHTTPRequest(ctx, cfg, newTemplateData(input, fc))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		out, err := parseHTTPResponse(resp)
		if err != nil {
			return nil, err
		}

		if cfg.FailOnStatus && resp.StatusCode >= 400 {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return out, nil
	}
}

// buildHTTPClient создаёт клиента один раз на фабрику: все выполнения
// шага переиспользуют соединения.
func buildHTTPClient(cfg HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if cfg.NoFollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.SkipTLSVerify,
			},
		},
	}
}

// buildHTTPRequest рендерит шаблоны конфигурации и собирает запрос.
func buildHTTPRequest(ctx context.Context, cfg HTTPConfig, data *templateData) (*http.Request, error) {
	url, err := render(cfg.URL, data)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		rendered, err := render(value, data)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}
		headers[key] = rendered
	}

	var bodyReader io.Reader
	if cfg.Body != nil {
		body, err := renderValue(cfg.Body, data)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		bodyBytes, err := serializeBody(body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, hasContentType := headers["Content-Type"]; !hasContentType {
			headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseHTTPResponse превращает HTTP ответ в Output шага.
func parseHTTPResponse(resp *http.Response) (flow.Output, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			// Невалидный JSON отдаём как строку
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]string)
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return flow.Output{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}

// HTTPError — ошибка HTTP статуса при FailOnStatus.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка ошибкой HTTP статуса.
func IsHTTPError(err error) bool {
	_, ok := err.(*HTTPError)
	return ok
}
