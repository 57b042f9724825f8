package api

import (
	"net/http"

	"github.com/hindsightlab/hindsight/internal/api/response"
)

// StrategiesHandler lists the registered strategies.
type StrategiesHandler struct {
	runner Runner
}

// NewStrategiesHandler creates a new strategies handler.
func NewStrategiesHandler(runner Runner) *StrategiesHandler {
	return &StrategiesHandler{runner: runner}
}

// List returns the registered strategies, sorted by name.
func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"strategies": h.runner.Strategies(),
	})
}
