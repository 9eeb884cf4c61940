package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"debt-ledger/internal/api/handler/dto"
	"debt-ledger/internal/api/middleware"
	"debt-ledger/internal/domain/debt"
	"debt-ledger/internal/pkg/apperrors"
)

type DebtHandler struct {
	service debt.DebtService
	logger  *slog.Logger
}

func NewDebtHandler(s debt.DebtService, l *slog.Logger) *DebtHandler {
	return &DebtHandler{
		service: s,
		logger:  l.With("component", "DebtHandler"),
	}
}

// CreateDebt registers a new obligation for a client.
//
// @Summary Create a new debt
// @Description Registers a new debt for an active client with an amount, interest rate and due date.
// @Tags Debts
// @Accept json
// @Produce json
// @Param request body dto.CreateDebtRequest true "Debt creation request payload"
// @Success 201 {object} dto.DebtResponse "Debt successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts [post]
// @Security BearerAuth
func (h *DebtHandler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDebtRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.CreateDebt(r.Context(), req.ClientID, req.TotalAmountDecimal(), req.InterestRateDecimal(), req.DueDateTime(), req.PaymentTermsDays, debt.Priority(req.Priority))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewDebtResponse(created))
}

// GetDebt retrieves the derived view of a debt.
//
// @Summary Retrieve debt details
// @Description Retrieves a debt with its derived balance, accrued interest, status and aging bucket. An optional asOf query parameter (YYYY-MM-DD) evaluates the debt at a past or future date.
// @Tags Debts
// @Produce json
// @Param debtID path int true "Debt ID"
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to now"
// @Success 200 {object} dto.DebtViewResponse "Debt view successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid debt ID or asOf parameter"
// @Failure 404 {object} dto.ErrorResponse "Debt not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts/{debtID} [get]
// @Security BearerAuth
func (h *DebtHandler) GetDebt(w http.ResponseWriter, r *http.Request) {
	debtID, err := idFromURL(r, "debtID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	asOf, err := asOfFromQuery(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	view, err := h.service.GetDebtView(r.Context(), debtID, asOf)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewDebtViewResponse(view))
}

// ListOverdueDebts lists every debt currently past due with an open balance.
//
// @Summary List overdue debts
// @Description Lists all debts whose derived status is OVERDUE. An optional asOf query parameter evaluates overdueness at a given date.
// @Tags Debts
// @Produce json
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to now"
// @Success 200 {array} dto.DebtViewResponse "Overdue debts successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid asOf parameter"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts/overdue [get]
// @Security BearerAuth
func (h *DebtHandler) ListOverdueDebts(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfFromQuery(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	views, err := h.service.ListOverdueDebts(r.Context(), asOf)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.DebtViewResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, dto.NewDebtViewResponse(v))
	}
	respondJSON(w, http.StatusOK, resp)
}

// RecordPayment applies a payment to a debt.
//
// @Summary Record a payment
// @Description Records a positive payment against a debt. Payments exceeding the remaining balance are rejected.
// @Tags Debts
// @Accept json
// @Produce json
// @Param debtID path int true "Debt ID"
// @Param request body dto.RecordPaymentRequest true "Payment request payload"
// @Success 200 {object} dto.PaymentResultResponse "Payment successfully recorded"
// @Failure 400 {object} dto.ErrorResponse "Invalid debt ID, request payload, or validation error"
// @Failure 404 {object} dto.ErrorResponse "Debt not found"
// @Failure 409 {object} dto.ErrorResponse "Debt already paid or cancelled, or concurrent update conflict"
// @Failure 422 {object} dto.ErrorResponse "Payment exceeds remaining balance"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts/{debtID}/payments [post]
// @Security BearerAuth
func (h *DebtHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	debtID, err := idFromURL(r, "debtID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	recordedBy := middleware.CallerFromContext(r.Context())
	result, err := h.service.RecordPayment(r.Context(), debtID, req.AmountDecimal(), req.PaymentDateTime(), recordedBy, req.Method)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentResultResponse(result))
}

// RecordAdjustment applies a negative correction to a debt.
//
// @Summary Record an adjustment
// @Description Records a negative adjustment against a debt, for example to reverse a mistaken payment. This can reopen a paid debt.
// @Tags Debts
// @Accept json
// @Produce json
// @Param debtID path int true "Debt ID"
// @Param request body dto.RecordAdjustmentRequest true "Adjustment request payload"
// @Success 200 {object} dto.PaymentResultResponse "Adjustment successfully recorded"
// @Failure 400 {object} dto.ErrorResponse "Invalid debt ID, request payload, or validation error"
// @Failure 404 {object} dto.ErrorResponse "Debt not found"
// @Failure 409 {object} dto.ErrorResponse "Debt cancelled, or concurrent update conflict"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts/{debtID}/adjustments [post]
// @Security BearerAuth
func (h *DebtHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	debtID, err := idFromURL(r, "debtID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.RecordAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	recordedBy := middleware.CallerFromContext(r.Context())
	result, err := h.service.RecordAdjustment(r.Context(), debtID, req.AmountDecimal(), req.DateTime(), recordedBy, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentResultResponse(result))
}

// CancelDebt writes off a debt.
//
// @Summary Cancel a debt
// @Description Cancels a non-terminal debt with a mandatory reason. Cancelled debts accept no further payments.
// @Tags Debts
// @Accept json
// @Produce json
// @Param debtID path int true "Debt ID"
// @Param request body dto.CancelDebtRequest true "Cancellation request payload"
// @Success 200 {object} map[string]string "Debt successfully cancelled"
// @Failure 400 {object} dto.ErrorResponse "Invalid debt ID or missing reason"
// @Failure 404 {object} dto.ErrorResponse "Debt not found"
// @Failure 409 {object} dto.ErrorResponse "Debt already paid or cancelled"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts/{debtID}/cancel [post]
// @Security BearerAuth
func (h *DebtHandler) CancelDebt(w http.ResponseWriter, r *http.Request) {
	debtID, err := idFromURL(r, "debtID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.CancelDebtRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	actor := middleware.CallerFromContext(r.Context())
	if err := h.service.CancelDebt(r.Context(), debtID, req.Reason, actor); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Debt cancelled"})
}

// RefreshDebtStatus forces a status re-derivation for one debt.
//
// @Summary Refresh debt status
// @Description Re-derives the debt's status from its payments and the calendar, persisting it only when it changed.
// @Tags Debts
// @Produce json
// @Param debtID path int true "Debt ID"
// @Success 200 {object} map[string]bool "Refresh result"
// @Failure 400 {object} dto.ErrorResponse "Invalid debt ID"
// @Failure 404 {object} dto.ErrorResponse "Debt not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /debts/{debtID}/refresh [post]
// @Security BearerAuth
func (h *DebtHandler) RefreshDebtStatus(w http.ResponseWriter, r *http.Request) {
	debtID, err := idFromURL(r, "debtID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	changed, err := h.service.RefreshStatus(r.Context(), debtID, nil)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}
