// Package api holds the JSON API handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hindsightlab/hindsight/internal/api/job"
	"github.com/hindsightlab/hindsight/internal/api/response"
	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/core"
)

const backtestTimeout = 10 * time.Minute

// Runner is the slice of the orchestrator the API needs.
type Runner interface {
	Run(ctx context.Context, req app.RunRequest) (*app.RunReport, error)
	Strategies() []app.StrategyInfo
	Symbols(ctx context.Context, n int) ([]string, error)
}

// BacktestRequest is the request body for starting a backtest run.
// Symbols and strategies left empty fall back to pair discovery and
// all registered strategies.
type BacktestRequest struct {
	Symbols    []string `json:"symbols,omitempty"`
	Strategies []string `json:"strategies,omitempty"`
	Interval   string   `json:"interval,omitempty"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	SortBy     string   `json:"sort_by,omitempty"`
	Narrate    bool     `json:"narrate,omitempty"`
}

// RunResult is the jobs' completed payload: the ranked table in its
// flat projection plus run artifacts.
type RunResult struct {
	RunID     string     `json:"run_id"`
	SortKey   string     `json:"sort_key"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	Artifacts []string   `json:"artifacts"`
	Narrative string     `json:"narrative,omitempty"`
	Skipped   []app.Skip `json:"skipped,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	runner   Runner
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(jobStore *job.Store, runner Runner) *BacktestHandler {
	return &BacktestHandler{jobStore: jobStore, runner: runner}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	if req.Start == "" || req.End == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("start and end are required")))
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	end, err := parseTime(req.End)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if !start.Before(end) {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("start %s is not before end %s", req.Start, req.End)))
		return
	}

	j := h.jobStore.Create("backtest")

	go h.runBacktest(j.ID, app.RunRequest{
		Symbols:    req.Symbols,
		Strategies: req.Strategies,
		Interval:   core.Interval(req.Interval),
		From:       start,
		To:         end,
		SortKey:    req.SortBy,
		Narrate:    req.Narrate,
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runBacktest executes the run and updates the job as it goes.
func (h *BacktestHandler) runBacktest(jobID string, req app.RunRequest) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	out, err := h.runner.Run(ctx, req)

	if err != nil {
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(core.ErrInvalidData, err)
		}
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = 100
		j.Result = RunResult{
			RunID:     out.RunID,
			SortKey:   out.Table.SortKey,
			Headers:   out.Table.Headers(),
			Rows:      out.Table.Records(),
			Artifacts: out.Artifacts,
			Narrative: out.Narrative,
			Skipped:   out.Skipped,
		}
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusCompleted {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

// parseTime accepts a date or a full RFC3339 timestamp.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
