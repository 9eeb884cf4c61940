package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"debt-ledger/internal/api/handler/dto"
	"debt-ledger/internal/domain/debt"
	"debt-ledger/internal/pkg/apperrors"
)

type StatsHandler struct {
	service debt.StatsService
	logger  *slog.Logger
}

func NewStatsHandler(s debt.StatsService, l *slog.Logger) *StatsHandler {
	return &StatsHandler{
		service: s,
		logger:  l.With("component", "StatsHandler"),
	}
}

// GetStats returns the aggregated portfolio dashboard.
//
// @Summary Retrieve aggregate statistics
// @Description Returns portfolio-wide totals: client counts, debt counts and amounts, breakdowns by status, client type and aging bucket. All figures are derived at query time.
// @Tags Stats
// @Produce json
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to now"
// @Success 200 {object} dto.StatsResponse "Statistics successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid asOf parameter"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /stats [get]
// @Security BearerAuth
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfFromQuery(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	stats, err := h.service.GetAggregateStats(r.Context(), asOf)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewStatsResponse(stats))
}
