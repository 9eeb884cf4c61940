package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"debt-ledger/internal/api/handler/dto"
	"debt-ledger/internal/domain/client"
	"debt-ledger/internal/domain/debt"
	"debt-ledger/internal/pkg/apperrors"
)

type ClientHandler struct {
	service     client.ClientService
	debtService debt.DebtService
	logger      *slog.Logger
}

func NewClientHandler(s client.ClientService, ds debt.DebtService, l *slog.Logger) *ClientHandler {
	return &ClientHandler{
		service:     s,
		debtService: ds,
		logger:      l.With("component", "ClientHandler"),
	}
}

// CreateClient registers a new debtor.
//
// @Summary Create a new client
// @Description Registers a new client (debtor) with a credit limit and default payment terms.
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body dto.CreateClientRequest true "Client creation request payload"
// @Success 201 {object} dto.ClientResponse "Client successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients [post]
// @Security BearerAuth
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.CreateClient(r.Context(), req.Name, req.Email, client.ClientType(req.Type), req.CreditLimitDecimal(), req.PaymentTermsDays)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewClientResponse(created))
}

// GetClient retrieves a single client.
//
// @Summary Retrieve client details
// @Description Retrieves a client by its ID.
// @Tags Clients
// @Produce json
// @Param clientID path int true "Client ID"
// @Success 200 {object} dto.ClientResponse "Client details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID} [get]
// @Security BearerAuth
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := idFromURL(r, "clientID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	c, err := h.service.GetClient(r.Context(), clientID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewClientResponse(c))
}

// ListClients lists clients, optionally only active ones.
//
// @Summary List clients
// @Description Lists all clients. Pass ?active=true to restrict to active clients.
// @Tags Clients
// @Produce json
// @Param active query bool false "Only return active clients"
// @Success 200 {array} dto.ClientResponse "Clients successfully retrieved"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients [get]
// @Security BearerAuth
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	clients, err := h.service.ListClients(r.Context(), activeOnly)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.ClientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, dto.NewClientResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

// UpdateClientStatus changes a client's status.
//
// @Summary Update client status
// @Description Sets a client's status to ACTIVE, INACTIVE or BLOCKED.
// @Tags Clients
// @Accept json
// @Produce json
// @Param clientID path int true "Client ID"
// @Param request body dto.UpdateClientStatusRequest true "New status"
// @Success 200 {object} map[string]string "Status successfully updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID or status"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID}/status [put]
// @Security BearerAuth
func (h *ClientHandler) UpdateClientStatus(w http.ResponseWriter, r *http.Request) {
	clientID, err := idFromURL(r, "clientID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.UpdateClientStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.UpdateClientStatus(r.Context(), clientID, client.ClientStatus(req.Status)); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

// DeleteClient removes a client without open debts.
//
// @Summary Delete a client
// @Description Deletes a client. Refused with 409 while the client still has open debts.
// @Tags Clients
// @Produce json
// @Param clientID path int true "Client ID"
// @Success 204 "Client successfully deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 409 {object} dto.ErrorResponse "Client still has open debts"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID} [delete]
// @Security BearerAuth
func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := idFromURL(r, "clientID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.DeleteClient(r.Context(), clientID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListClientDebts lists all debts of one client.
//
// @Summary List a client's debts
// @Description Lists every debt owned by the given client, regardless of status.
// @Tags Clients
// @Produce json
// @Param clientID path int true "Client ID"
// @Success 200 {array} dto.DebtResponse "Debts successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid client ID"
// @Failure 404 {object} dto.ErrorResponse "Client not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /clients/{clientID}/debts [get]
// @Security BearerAuth
func (h *ClientHandler) ListClientDebts(w http.ResponseWriter, r *http.Request) {
	clientID, err := idFromURL(r, "clientID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if _, err := h.service.GetClient(r.Context(), clientID); err != nil {
		respondError(w, err)
		return
	}

	debts, err := h.debtService.ListDebtsByClient(r.Context(), clientID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.DebtResponse, 0, len(debts))
	for _, d := range debts {
		resp = append(resp, dto.NewDebtResponse(d))
	}
	respondJSON(w, http.StatusOK, resp)
}
