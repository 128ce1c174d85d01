package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/repo"
	"github.com/shaiso/Kestrel/internal/telemetry"
)

// ListRuns возвращает список запусков с фильтрацией.
// GET /api/v1/runs?flow=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		Flow:   r.URL.Query().Get("flow"),
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ParseRunStatus(status)
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает один запуск по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunSteps возвращает итоги шагов запуска.
// GET /api/v1/runs/{id}/steps
func (h *Handler) ListRunSteps(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует: пустой список шагов не
	// отличим от несуществующего run без этой проверки
	if _, err := h.runs.GetByID(r.Context(), id); HandleRepoError(w, telemetry.FromContext(r.Context()), err, "run not found") {
		return
	}

	records, err := h.steps.ListByRun(r.Context(), id)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	result := make([]StepResponse, len(records))
	for i, rec := range records {
		result[i] = StepFromDomain(rec)
	}

	List(w, result, len(result))
}

// ListFlows возвращает сводку по flow в журнале.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runs.ListFlows(r.Context())
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	result := make([]FlowResponse, len(stats))
	for i, s := range stats {
		result[i] = FlowFromStat(s)
	}

	List(w, result, len(result))
}

// Health — проверка живости сервиса.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseIntParam парсит числовой query параметр с дефолтным значением.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
