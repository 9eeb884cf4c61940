package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"debt-ledger/internal/api/handler/dto"
	"debt-ledger/internal/domain/client"
	"debt-ledger/internal/domain/debt"
	"debt-ledger/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockClientService struct {
	mock.Mock
}

func (m *MockClientService) CreateClient(ctx context.Context, name, email string, clientType client.ClientType, creditLimit decimal.Decimal, paymentTermsDays int) (*client.Client, error) {
	args := m.Called(ctx, name, email, clientType, creditLimit, paymentTermsDays)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClientService) GetClient(ctx context.Context, clientID int64) (*client.Client, error) {
	args := m.Called(ctx, clientID)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClientService) ListClients(ctx context.Context, activeOnly bool) ([]*client.Client, error) {
	args := m.Called(ctx, activeOnly)
	if clients, ok := args.Get(0).([]*client.Client); ok {
		return clients, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClientService) UpdateClientStatus(ctx context.Context, clientID int64, status client.ClientStatus) error {
	args := m.Called(ctx, clientID, status)
	return args.Error(0)
}

func (m *MockClientService) DeleteClient(ctx context.Context, clientID int64) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func testClient() *client.Client {
	return &client.Client{
		ClientID:         5,
		Name:             "Acme Corp",
		Email:            "billing@acme.test",
		Type:             client.TypeCompany,
		CreditLimit:      decimal.NewFromInt(5_000_000),
		PaymentTermsDays: 30,
		Status:           client.StatusActive,
	}
}

func TestClientHandlerCreateClient(t *testing.T) {
	mockService := new(MockClientService)
	handler := NewClientHandler(mockService, nil, logger)

	t.Run("successfully creates client", func(t *testing.T) {
		mockService.On("CreateClient", mock.Anything, "Acme Corp", "billing@acme.test", client.TypeCompany, mock.Anything, 30).
			Return(testClient(), nil)

		body, _ := json.Marshal(dto.CreateClientRequest{
			Name:             "Acme Corp",
			Email:            "billing@acme.test",
			Type:             "COMPANY",
			CreditLimit:      "5000000",
			PaymentTermsDays: 30,
		})
		req := httptest.NewRequest(http.MethodPost, "/clients", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateClient(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.ClientResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Equal(t, int64(5), resp.ClientID)
		assert.Equal(t, "5000000.00", resp.CreditLimit)
		mockService.AssertExpectations(t)
	})

	t.Run("rejects invalid type before hitting the service", func(t *testing.T) {
		body, _ := json.Marshal(dto.CreateClientRequest{Name: "Acme", Type: "CHARITY", PaymentTermsDays: 30})
		req := httptest.NewRequest(http.MethodPost, "/clients", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateClient(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "CreateClient", mock.Anything, "Acme", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestClientHandlerGetClient(t *testing.T) {
	mockService := new(MockClientService)
	handler := NewClientHandler(mockService, nil, logger)

	t.Run("successfully retrieves client", func(t *testing.T) {
		mockService.On("GetClient", mock.Anything, int64(5)).Return(testClient(), nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/clients/5", nil), "clientID", "5")
		rec := httptest.NewRecorder()

		handler.GetClient(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.ClientResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Equal(t, "Acme Corp", resp.Name)
		mockService.AssertExpectations(t)
	})

	t.Run("returns 404 when client not found", func(t *testing.T) {
		mockService.On("GetClient", mock.Anything, int64(99)).
			Return((*client.Client)(nil), fmt.Errorf("%w: client 99", apperrors.ErrNotFound))

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/clients/99", nil), "clientID", "99")
		rec := httptest.NewRecorder()

		handler.GetClient(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockService.AssertExpectations(t)
	})
}

func TestClientHandlerListClients(t *testing.T) {
	mockService := new(MockClientService)
	handler := NewClientHandler(mockService, nil, logger)

	t.Run("active filter forwarded to the service", func(t *testing.T) {
		mockService.On("ListClients", mock.Anything, true).Return([]*client.Client{testClient()}, nil)

		req := httptest.NewRequest(http.MethodGet, "/clients?active=true", nil)
		rec := httptest.NewRecorder()

		handler.ListClients(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.ClientResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		mockService.AssertExpectations(t)
	})

	t.Run("empty list encodes as an empty array", func(t *testing.T) {
		mockService.On("ListClients", mock.Anything, false).Return([]*client.Client{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/clients", nil)
		rec := httptest.NewRecorder()

		handler.ListClients(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
		mockService.AssertExpectations(t)
	})
}

func TestClientHandlerUpdateClientStatus(t *testing.T) {
	mockService := new(MockClientService)
	handler := NewClientHandler(mockService, nil, logger)

	t.Run("successfully updates status", func(t *testing.T) {
		mockService.On("UpdateClientStatus", mock.Anything, int64(5), client.StatusBlocked).Return(nil)

		body, _ := json.Marshal(dto.UpdateClientStatusRequest{Status: "BLOCKED"})
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/clients/5/status", bytes.NewReader(body)), "clientID", "5")
		rec := httptest.NewRecorder()

		handler.UpdateClientStatus(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		body, _ := json.Marshal(dto.UpdateClientStatusRequest{Status: "SLEEPING"})
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/clients/5/status", bytes.NewReader(body)), "clientID", "5")
		rec := httptest.NewRecorder()

		handler.UpdateClientStatus(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "UpdateClientStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestClientHandlerDeleteClient(t *testing.T) {
	mockService := new(MockClientService)
	handler := NewClientHandler(mockService, nil, logger)

	t.Run("successfully deletes client", func(t *testing.T) {
		mockService.On("DeleteClient", mock.Anything, int64(5)).Return(nil)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/clients/5", nil), "clientID", "5")
		rec := httptest.NewRecorder()

		handler.DeleteClient(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("open debts map to 409", func(t *testing.T) {
		mockService.On("DeleteClient", mock.Anything, int64(6)).
			Return(fmt.Errorf("%w: %w: 2 open debts", apperrors.ErrConflict, client.ErrHasOpenDebts))

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/clients/6", nil), "clientID", "6")
		rec := httptest.NewRecorder()

		handler.DeleteClient(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp dto.ErrorResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Contains(t, resp.Error.Message, "open debts")
		mockService.AssertExpectations(t)
	})
}

func TestClientHandlerListClientDebts(t *testing.T) {
	t.Run("lists debts for an existing client", func(t *testing.T) {
		mockService := new(MockClientService)
		mockDebtService := new(MockDebtService)
		handler := NewClientHandler(mockService, mockDebtService, logger)

		mockService.On("GetClient", mock.Anything, int64(5)).Return(testClient(), nil)
		mockDebtService.On("ListDebtsByClient", mock.Anything, int64(5)).Return([]*debt.Debt{
			{ID: 1, ClientID: 5, TotalAmount: decimal.NewFromInt(1_000_000), Status: debt.StatusPending},
		}, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/clients/5/debts", nil), "clientID", "5")
		rec := httptest.NewRecorder()

		handler.ListClientDebts(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.DebtResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		assert.Equal(t, int64(5), resp[0].ClientID)
		mockService.AssertExpectations(t)
		mockDebtService.AssertExpectations(t)
	})

	t.Run("unknown client yields 404 without listing debts", func(t *testing.T) {
		mockService := new(MockClientService)
		mockDebtService := new(MockDebtService)
		handler := NewClientHandler(mockService, mockDebtService, logger)

		mockService.On("GetClient", mock.Anything, int64(99)).
			Return((*client.Client)(nil), fmt.Errorf("%w: client 99", apperrors.ErrNotFound))

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/clients/99/debts", nil), "clientID", "99")
		rec := httptest.NewRecorder()

		handler.ListClientDebts(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockDebtService.AssertNotCalled(t, "ListDebtsByClient", mock.Anything, mock.Anything)
	})
}
