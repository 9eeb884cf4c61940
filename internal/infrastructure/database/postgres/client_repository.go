package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"debt-ledger/internal/domain/client"
	"debt-ledger/internal/infrastructure/monitoring"
	"debt-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const clientColumns = `id, name, email, type, credit_limit, payment_terms_days, status, created_at, updated_at`

type ClientRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ client.ClientRepository = (*ClientRepository)(nil)

func NewClientRepository(db DBPool, logger *slog.Logger) *ClientRepository {
	return &ClientRepository{db: db, logger: logger.With("component", "ClientRepository")}
}

func (r *ClientRepository) Save(ctx context.Context, c *client.Client) error {
	insertSQL := `
        INSERT INTO clients (name, email, type, credit_limit, payment_terms_days, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	status := "success"
	startTime := time.Now()
	err := r.db.QueryRow(ctx, insertSQL,
		c.Name, c.Email, c.Type, c.CreditLimit, c.PaymentTermsDays, c.Status,
	).Scan(&c.ClientID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("SaveClient", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert client", "error", err)
		return fmt.Errorf("%w: failed to insert client: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Client created in DB", "client_id", c.ClientID)
	return nil
}

func (r *ClientRepository) FindByID(ctx context.Context, clientID int64) (*client.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	var c client.Client
	err := r.db.QueryRow(ctx, query, clientID).Scan(
		&c.ClientID, &c.Name, &c.Email, &c.Type, &c.CreditLimit,
		&c.PaymentTermsDays, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Client not found", "client_id", clientID)
			return nil, client.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get client by ID", "client_id", clientID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &c, nil
}

func (r *ClientRepository) FindAll(ctx context.Context, activeOnly bool) ([]*client.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY id ASC`
	if activeOnly {
		query = `SELECT ` + clientColumns + ` FROM clients WHERE status = 'ACTIVE' ORDER BY id ASC`
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query clients", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	clients := make([]*client.Client, 0)
	for rows.Next() {
		var c client.Client
		err := rows.Scan(
			&c.ClientID, &c.Name, &c.Email, &c.Type, &c.CreditLimit,
			&c.PaymentTermsDays, &c.Status, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan client row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		clients = append(clients, &c)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating client rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return clients, nil
}

func (r *ClientRepository) SetStatus(ctx context.Context, clientID int64, status client.ClientStatus) error {
	updateSQL := `UPDATE clients SET status = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, updateSQL, status, clientID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update client status", "client_id", clientID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return client.ErrNotFound
	}
	return nil
}

func (r *ClientRepository) CountOpenDebts(ctx context.Context, clientID int64) (int, error) {
	query := `SELECT COUNT(*) FROM debts WHERE client_id = $1 AND status NOT IN ('PAID', 'CANCELLED')`

	var count int
	if err := r.db.QueryRow(ctx, query, clientID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count open debts", "client_id", clientID, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return count, nil
}

func (r *ClientRepository) Delete(ctx context.Context, clientID int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete client", "client_id", clientID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return client.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Client deleted from DB", "client_id", clientID)
	return nil
}
