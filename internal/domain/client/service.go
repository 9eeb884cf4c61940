package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"debt-ledger/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type ClientService interface {
	CreateClient(ctx context.Context, name, email string, clientType ClientType, creditLimit decimal.Decimal, paymentTermsDays int) (*Client, error)
	GetClient(ctx context.Context, clientID int64) (*Client, error)
	ListClients(ctx context.Context, activeOnly bool) ([]*Client, error)
	UpdateClientStatus(ctx context.Context, clientID int64, status ClientStatus) error
	DeleteClient(ctx context.Context, clientID int64) error
}

var _ ClientService = (*clientService)(nil)

type clientService struct {
	repo   ClientRepository
	logger *slog.Logger
}

func NewClientService(repo ClientRepository, logger *slog.Logger) ClientService {
	if repo == nil {
		panic("client repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewClientService, using default stderr handler")
	}

	return &clientService{
		repo:   repo,
		logger: logger.With(slog.String("component", "clientService")),
	}
}

func (s *clientService) CreateClient(ctx context.Context, name, email string, clientType ClientType, creditLimit decimal.Decimal, paymentTermsDays int) (*Client, error) {
	s.logger.InfoContext(ctx, "Attempting to create new client")

	name = strings.TrimSpace(name)
	if name == "" {
		s.logger.WarnContext(ctx, "Validation failed: name is empty")
		return nil, apperrors.NewValidationError("name", "client name cannot be empty")
	}
	if !clientType.Valid() {
		s.logger.WarnContext(ctx, "Validation failed: unknown client type", slog.String("type", string(clientType)))
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unknown client type %q", clientType))
	}
	if creditLimit.IsNegative() {
		s.logger.WarnContext(ctx, "Validation failed: negative credit limit")
		return nil, apperrors.NewValidationError("creditLimit", "credit limit cannot be negative")
	}
	if paymentTermsDays <= 0 {
		s.logger.WarnContext(ctx, "Validation failed: non-positive payment terms")
		return nil, apperrors.NewValidationError("paymentTerms", "payment terms must be a positive number of days")
	}

	c := NewClient(name, strings.TrimSpace(email), clientType, creditLimit, paymentTermsDays)
	if err := s.repo.Save(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new client", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new client: %w", err)
	}

	s.logger.InfoContext(ctx, "Client created successfully", slog.Int64("clientID", c.ClientID))
	return c, nil
}

func (s *clientService) GetClient(ctx context.Context, clientID int64) (*Client, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Client not found", slog.Int64("clientID", clientID))
			return nil, fmt.Errorf("%w: client %d", apperrors.ErrNotFound, clientID)
		}
		s.logger.ErrorContext(ctx, "Failed to get client", slog.Int64("clientID", clientID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get client %d: %w", clientID, err)
	}
	return c, nil
}

func (s *clientService) ListClients(ctx context.Context, activeOnly bool) ([]*Client, error) {
	clients, err := s.repo.FindAll(ctx, activeOnly)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list clients", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) UpdateClientStatus(ctx context.Context, clientID int64, status ClientStatus) error {
	if !status.Valid() {
		return apperrors.NewValidationError("status", fmt.Sprintf("unknown client status %q", status))
	}

	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if c.Status == status {
		s.logger.DebugContext(ctx, "Client status already set, skipping write", slog.Int64("clientID", clientID), slog.String("status", string(status)))
		return nil
	}

	if err := s.repo.SetStatus(ctx, clientID, status); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update client status", slog.Int64("clientID", clientID), slog.Any("error", err))
		return fmt.Errorf("failed to update status for client %d: %w", clientID, err)
	}
	s.logger.InfoContext(ctx, "Client status updated", slog.Int64("clientID", clientID), slog.String("from", string(c.Status)), slog.String("to", string(status)))
	return nil
}

// DeleteClient removes a client record. A client that still owns open debts
// is never deleted; staff must settle or cancel those debts first.
func (s *clientService) DeleteClient(ctx context.Context, clientID int64) error {
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return err
	}

	openDebts, err := s.repo.CountOpenDebts(ctx, clientID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count open debts for client", slog.Int64("clientID", clientID), slog.Any("error", err))
		return fmt.Errorf("failed to count open debts for client %d: %w", clientID, err)
	}
	if openDebts > 0 {
		s.logger.WarnContext(ctx, "Refusing to delete client with open debts", slog.Int64("clientID", clientID), slog.Int("openDebts", openDebts))
		return fmt.Errorf("%w: %w: %d open debts", apperrors.ErrConflict, ErrHasOpenDebts, openDebts)
	}

	if err := s.repo.Delete(ctx, clientID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete client", slog.Int64("clientID", clientID), slog.Any("error", err))
		return fmt.Errorf("failed to delete client %d: %w", clientID, err)
	}
	s.logger.InfoContext(ctx, "Client deleted", slog.Int64("clientID", clientID))
	return nil
}
