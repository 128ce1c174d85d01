package recorder

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kestrel/flow"
	"github.com/shaiso/Kestrel/internal/domain"
	"github.com/shaiso/Kestrel/internal/mq"
	"github.com/shaiso/Kestrel/internal/repo"
)

// fakeRunStore — in-memory замена RunRepo для тестов.
type fakeRunStore struct {
	created  []*domain.FlowRun
	finished []*domain.FlowRun

	finishErr error
}

func (f *fakeRunStore) Create(_ context.Context, run *domain.FlowRun) error {
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRunStore) Finish(_ context.Context, run *domain.FlowRun) error {
	if f.finishErr != nil {
		return f.finishErr
	}
	f.finished = append(f.finished, run)
	return nil
}

// fakeStepStore — in-memory замена StepRepo для тестов.
type fakeStepStore struct {
	records []*domain.StepRecord
}

func (f *fakeStepStore) Create(_ context.Context, rec *domain.StepRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func newTestRecorder(runs *fakeRunStore, steps *fakeStepStore) *Recorder {
	return New(Config{
		RunStore:  runs,
		StepStore: steps,
		Logger:    slog.Default(),
	})
}

func delivery(msgType mq.MessageType, payload any) *mq.Delivery {
	return &mq.Delivery{
		Message: mq.Message{
			ID:        uuid.New().String(),
			Type:      msgType,
			Payload:   payload,
			Timestamp: time.Now(),
		},
	}
}

func TestHandleRunEvent_Started(t *testing.T) {
	runs := &fakeRunStore{}
	r := newTestRecorder(runs, &fakeStepStore{})

	runID := uuid.New()
	started := time.Now().UTC().Truncate(time.Second)

	err := r.handleRunEvent(context.Background(), delivery(mq.MessageTypeRunStarted, mq.RunStartedPayload{
		RunID:     runID,
		Flow:      "daily-report",
		Inputs:    map[string]any{"day": "2025-06-01"},
		StartedAt: started,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.created) != 1 {
		t.Fatalf("expected 1 created run, got %d", len(runs.created))
	}
	run := runs.created[0]
	if run.ID != runID || run.Flow != "daily-report" {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.Status != domain.RunStatusRunning {
		t.Errorf("new run should be RUNNING, got %s", run.Status)
	}
	if run.Inputs["day"] != "2025-06-01" {
		t.Errorf("inputs should survive the round trip: %v", run.Inputs)
	}
}

func TestHandleRunEvent_Finished(t *testing.T) {
	runs := &fakeRunStore{}
	r := newTestRecorder(runs, &fakeStepStore{})

	runID := uuid.New()
	finished := time.Now().UTC()

	err := r.handleRunEvent(context.Background(), delivery(mq.MessageTypeRunFinished, mq.RunFinishedPayload{
		RunID:      runID,
		Flow:       "daily-report",
		Status:     domain.RunStatusPartial,
		Total:      4,
		Completed:  2,
		Recovered:  1,
		Skipped:    1,
		FinishedAt: finished,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.finished) != 1 {
		t.Fatalf("expected 1 finished run, got %d", len(runs.finished))
	}
	run := runs.finished[0]
	if run.Status != domain.RunStatusPartial {
		t.Errorf("expected PARTIAL, got %s", run.Status)
	}
	if run.Total != 4 || run.Completed != 2 || run.Recovered != 1 || run.Skipped != 1 {
		t.Errorf("unexpected counters: %+v", run)
	}
}

func TestHandleRunEvent_FinishedUnknownRun(t *testing.T) {
	// run.finished для неизвестного run создаёт закрытую запись
	runs := &fakeRunStore{finishErr: repo.ErrNotFound}
	r := newTestRecorder(runs, &fakeStepStore{})

	err := r.handleRunEvent(context.Background(), delivery(mq.MessageTypeRunFinished, mq.RunFinishedPayload{
		RunID:      uuid.New(),
		Flow:       "orphan",
		Status:     domain.RunStatusFailed,
		FinishedAt: time.Now().UTC(),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.created) != 1 {
		t.Fatalf("expected fallback create, got %d created", len(runs.created))
	}
	if runs.created[0].Status != domain.RunStatusFailed {
		t.Errorf("fallback record should keep final status, got %s", runs.created[0].Status)
	}
}

func TestHandleRunEvent_UnknownType(t *testing.T) {
	runs := &fakeRunStore{}
	r := newTestRecorder(runs, &fakeStepStore{})

	// Неизвестный тип подтверждается без записи
	err := r.handleRunEvent(context.Background(), delivery("run.mystery", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.created) != 0 || len(runs.finished) != 0 {
		t.Error("unknown event type should not touch the store")
	}
}

func TestHandleStepEvent(t *testing.T) {
	steps := &fakeStepStore{}
	r := newTestRecorder(&fakeRunStore{}, steps)

	runID := uuid.New()

	err := r.handleStepEvent(context.Background(), delivery(mq.MessageTypeStepFinished, mq.StepFinishedPayload{
		RunID:      runID,
		Step:       "fetch",
		Status:     string(flow.StatusCompleted),
		Outputs:    map[string]any{"count": float64(10)},
		ElapsedMs:  120,
		FinishedAt: time.Now().UTC(),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(steps.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(steps.records))
	}
	rec := steps.records[0]
	if rec.RunID != runID || rec.Step != "fetch" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Status != flow.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", rec.Status)
	}
	if rec.ElapsedMs != 120 {
		t.Errorf("elapsed should survive, got %d", rec.ElapsedMs)
	}
}

func TestHandleStepEvent_Skipped(t *testing.T) {
	steps := &fakeStepStore{}
	r := newTestRecorder(&fakeRunStore{}, steps)

	err := r.handleStepEvent(context.Background(), delivery(mq.MessageTypeStepFinished, mq.StepFinishedPayload{
		RunID:      uuid.New(),
		Step:       "notify",
		Status:     string(flow.StatusSkipped),
		SkipCause:  string(flow.SkipDependencyFailed),
		SkipAfter:  []string{"fetch"},
		FinishedAt: time.Now().UTC(),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := steps.records[0]
	if rec.SkipCause != string(flow.SkipDependencyFailed) {
		t.Errorf("skip cause should survive, got %q", rec.SkipCause)
	}
	if len(rec.SkipAfter) != 1 || rec.SkipAfter[0] != "fetch" {
		t.Errorf("skip attribution should survive, got %v", rec.SkipAfter)
	}
}
