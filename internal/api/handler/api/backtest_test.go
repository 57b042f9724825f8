package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hindsightlab/hindsight/internal/api/job"
	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/backtest"
	"github.com/hindsightlab/hindsight/internal/core"
)

type fakeRunner struct {
	report  *app.RunReport
	err     error
	lastReq app.RunRequest
}

func (f *fakeRunner) Run(ctx context.Context, req app.RunRequest) (*app.RunReport, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeRunner) Strategies() []app.StrategyInfo {
	return []app.StrategyInfo{
		{Name: "rsi_bb", Description: "RSI(14) + Bollinger(20, 2.0)", MinBars: 20},
		{Name: "sma_cross", Description: "SMA crossover (10/50)", MinBars: 50},
	}
}

func (f *fakeRunner) Symbols(ctx context.Context, n int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"ETHBTC", "LTCBTC"}, nil
}

func runReportFixture(t *testing.T) *app.RunReport {
	t.Helper()
	table, err := backtest.Compare(map[backtest.Key]backtest.Summary{
		{Symbol: "ETHBTC", Strategy: "sma_cross"}: {TotalReturn: 0.1, NumTrades: 3},
	}, "")
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return &app.RunReport{
		RunID:     "run-1",
		Table:     table,
		Artifacts: []string{"run-1/trades.csv", "run-1/summary.csv", "run-1/comparison.csv"},
	}
}

// waitForJob polls until the job leaves pending/running or the
// deadline passes.
func waitForJob(t *testing.T, store *job.Store, id string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if j.Status == job.StatusCompleted || j.Status == job.StatusFailed {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never finished")
	return nil
}

func TestBacktestHandler_Create(t *testing.T) {
	jobStore := job.NewStore(100, time.Hour)
	runner := &fakeRunner{report: runReportFixture(t)}
	handler := NewBacktestHandler(jobStore, runner)

	body := bytes.NewBufferString(`{
		"symbols": ["ETHBTC"],
		"strategies": ["sma_cross"],
		"interval": "1m",
		"start": "2024-01-01",
		"end": "2024-02-01"
	}`)
	req := httptest.NewRequest("POST", "/api/v1/backtest", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.JobID == "" {
		t.Fatal("expected a job ID")
	}
	if resp.Data.Status != string(job.StatusPending) {
		t.Errorf("expected pending, got %s", resp.Data.Status)
	}

	j := waitForJob(t, jobStore, resp.Data.JobID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s", j.Status)
	}
	result, ok := j.Result.(RunResult)
	if !ok {
		t.Fatalf("unexpected result type %T", j.Result)
	}
	if result.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", result.RunID)
	}
	if len(result.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(result.Rows))
	}

	if runner.lastReq.Interval != core.Interval1m {
		t.Errorf("expected interval 1m, got %s", runner.lastReq.Interval)
	}
	wantFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !runner.lastReq.From.Equal(wantFrom) {
		t.Errorf("expected from %s, got %s", wantFrom, runner.lastReq.From)
	}
}

func TestBacktestHandler_CreateFailure(t *testing.T) {
	jobStore := job.NewStore(100, time.Hour)
	runner := &fakeRunner{err: core.WrapError(core.ErrFetchFailed, nil)}
	handler := NewBacktestHandler(jobStore, runner)

	body := bytes.NewBufferString(`{"start": "2024-01-01", "end": "2024-02-01"}`)
	req := httptest.NewRequest("POST", "/api/v1/backtest", body)
	w := httptest.NewRecorder()

	handler.Create(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	j := waitForJob(t, jobStore, resp.Data.JobID)
	if j.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %s", j.Status)
	}
	if j.Error == nil || j.Error.Code != "FETCH_FAILED" {
		t.Errorf("expected FETCH_FAILED error, got %v", j.Error)
	}
}

func TestBacktestHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing window", `{"symbols": ["ETHBTC"]}`},
		{"bad start", `{"start": "jan 1", "end": "2024-02-01"}`},
		{"inverted window", `{"start": "2024-02-01", "end": "2024-01-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobStore := job.NewStore(100, time.Hour)
			handler := NewBacktestHandler(jobStore, &fakeRunner{})

			req := httptest.NewRequest("POST", "/api/v1/backtest", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			handler.Create(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestBacktestHandler_GetStatus(t *testing.T) {
	jobStore := job.NewStore(100, time.Hour)
	handler := NewBacktestHandler(jobStore, &fakeRunner{})

	j := jobStore.Create("backtest")

	req := httptest.NewRequest("GET", "/api/v1/backtest/"+j.ID, nil)
	req.SetPathValue("id", j.ID)
	w := httptest.NewRecorder()
	handler.GetStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.JobID != j.ID {
		t.Errorf("expected %s, got %s", j.ID, resp.Data.JobID)
	}
	if resp.Data.Status != string(job.StatusPending) {
		t.Errorf("expected pending, got %s", resp.Data.Status)
	}
}

func TestBacktestHandler_GetStatusCompleted(t *testing.T) {
	jobStore := job.NewStore(100, time.Hour)
	handler := NewBacktestHandler(jobStore, &fakeRunner{})

	j := jobStore.Create("backtest")
	if err := jobStore.Update(j.ID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = 100
		j.Result = RunResult{RunID: "run-1"}
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/backtest/"+j.ID, nil)
	req.SetPathValue("id", j.ID)
	w := httptest.NewRecorder()
	handler.GetStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			Status string `json:"status"`
			Result *struct {
				RunID string `json:"run_id"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	// The status vocabulary on the wire is "completed", not "complete".
	if resp.Data.Status != "completed" {
		t.Errorf("expected status completed, got %q", resp.Data.Status)
	}
	if resp.Data.Result == nil || resp.Data.Result.RunID != "run-1" {
		t.Error("expected result attached to a completed job")
	}
}

func TestBacktestHandler_GetStatusNotFound(t *testing.T) {
	jobStore := job.NewStore(100, time.Hour)
	handler := NewBacktestHandler(jobStore, &fakeRunner{})

	req := httptest.NewRequest("GET", "/api/v1/backtest/nope", nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()
	handler.GetStatus(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
