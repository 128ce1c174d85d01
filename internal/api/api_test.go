package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/flow"
	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/repo"
)

// fakeRunReader — in-memory журнал запусков для тестов.
type fakeRunReader struct {
	runs  map[uuid.UUID]*domain.FlowRun
	stats []repo.FlowStat
}

func (f *fakeRunReader) List(_ context.Context, filter repo.RunFilter) ([]domain.FlowRun, error) {
	var result []domain.FlowRun
	for _, run := range f.runs {
		if filter.Flow != "" && run.Flow != filter.Flow {
			continue
		}
		result = append(result, *run)
	}
	return result, nil
}

func (f *fakeRunReader) GetByID(_ context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunReader) ListFlows(context.Context) ([]repo.FlowStat, error) {
	return f.stats, nil
}

// fakeStepReader — in-memory итоги шагов для тестов.
type fakeStepReader struct {
	records map[uuid.UUID][]domain.StepRecord
}

func (f *fakeStepReader) ListByRun(_ context.Context, runID uuid.UUID) ([]domain.StepRecord, error) {
	return f.records[runID], nil
}

func newTestServer(runs *fakeRunReader, steps *fakeStepReader) *httptest.Server {
	h := NewHandler(Config{Runs: runs, Steps: steps, Logger: slog.Default()})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func testRun(flowName string) *domain.FlowRun {
	finished := time.Now().UTC()
	return &domain.FlowRun{
		ID:         uuid.New(),
		Flow:       flowName,
		Status:     domain.RunStatusSucceeded,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: &finished,
		Total:      2,
		Completed:  2,
	}
}

func TestListRuns(t *testing.T) {
	runA := testRun("alpha")
	runB := testRun("beta")
	server := newTestServer(&fakeRunReader{
		runs: map[uuid.UUID]*domain.FlowRun{runA.ID: runA, runB.ID: runB},
	}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data  []RunResponse `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 2 || len(body.Data) != 2 {
		t.Errorf("expected 2 runs, got %+v", body)
	}
}

func TestListRuns_FilterByFlow(t *testing.T) {
	runA := testRun("alpha")
	runB := testRun("beta")
	server := newTestServer(&fakeRunReader{
		runs: map[uuid.UUID]*domain.FlowRun{runA.ID: runA, runB.ID: runB},
	}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs?flow=alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data []RunResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Flow != "alpha" {
		t.Errorf("expected only alpha runs, got %+v", body.Data)
	}
}

func TestGetRun(t *testing.T) {
	run := testRun("alpha")
	server := newTestServer(&fakeRunReader{
		runs: map[uuid.UUID]*domain.FlowRun{run.ID: run},
	}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs/" + run.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data RunResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.ID != run.ID || body.Data.Status != domain.RunStatusSucceeded {
		t.Errorf("unexpected run: %+v", body.Data)
	}
	if body.Data.DurationMs != 1000 {
		t.Errorf("expected duration 1000ms, got %d", body.Data.DurationMs)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	server := newTestServer(&fakeRunReader{runs: map[uuid.UUID]*domain.FlowRun{}}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs/" + uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetRun_InvalidID(t *testing.T) {
	server := newTestServer(&fakeRunReader{runs: map[uuid.UUID]*domain.FlowRun{}}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs/not-a-uuid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListRunSteps(t *testing.T) {
	run := testRun("alpha")
	rec := domain.NewStepRecord(run.ID, "fetch", flow.StatusCompleted)
	rec.ElapsedMs = 42

	server := newTestServer(
		&fakeRunReader{runs: map[uuid.UUID]*domain.FlowRun{run.ID: run}},
		&fakeStepReader{records: map[uuid.UUID][]domain.StepRecord{run.ID: {*rec}}},
	)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs/" + run.ID.String() + "/steps")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data []StepResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("expected 1 step, got %d", len(body.Data))
	}
	if body.Data[0].Step != "fetch" || body.Data[0].ElapsedMs != 42 {
		t.Errorf("unexpected step: %+v", body.Data[0])
	}
}

func TestListRunSteps_UnknownRun(t *testing.T) {
	server := newTestServer(&fakeRunReader{runs: map[uuid.UUID]*domain.FlowRun{}}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/runs/" + uuid.New().String() + "/steps")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown run, got %d", resp.StatusCode)
	}
}

func TestListFlows(t *testing.T) {
	server := newTestServer(&fakeRunReader{
		runs: map[uuid.UUID]*domain.FlowRun{},
		stats: []repo.FlowStat{
			{Flow: "alpha", Runs: 3, LastRunAt: time.Now().UTC()},
		},
	}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/flows")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data []FlowResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Flow != "alpha" || body.Data[0].Runs != 3 {
		t.Errorf("unexpected flows: %+v", body.Data)
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(&fakeRunReader{}, &fakeStepReader{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
