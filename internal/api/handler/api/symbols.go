package api

import (
	"net/http"
	"strconv"

	"github.com/hindsightlab/hindsight/internal/api/response"
	"github.com/hindsightlab/hindsight/internal/core"
)

// SymbolsHandler exposes exchange pair discovery.
type SymbolsHandler struct {
	runner Runner
}

// NewSymbolsHandler creates a new symbols handler.
func NewSymbolsHandler(runner Runner) *SymbolsHandler {
	return &SymbolsHandler{runner: runner}
}

// List returns the top pairs for the configured quote asset, ranked
// by 24h quote volume. An optional ?limit= caps the count.
func (h *SymbolsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrConfigInvalid, err))
			return
		}
		limit = n
	}

	symbols, err := h.runner.Symbols(r.Context(), limit)
	if err != nil {
		response.Error(w, http.StatusBadGateway, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
	})
}
