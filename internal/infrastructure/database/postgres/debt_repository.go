package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"debt-ledger/internal/domain/debt"
	"debt-ledger/internal/infrastructure/monitoring"
	"debt-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const debtColumns = `id, debt_number, client_id, total_amount, interest_rate, due_date, payment_terms_days, priority, status, version, cancelled_reason, cancelled_by, created_at, updated_at`

type DebtRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ debt.Repository = (*DebtRepository)(nil)

func NewDebtRepository(db DBPool, logger *slog.Logger) *DebtRepository {
	return &DebtRepository{db: db, logger: logger.With("component", "DebtRepository")}
}

func (r *DebtRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *DebtRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *DebtRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *DebtRepository) CreateDebt(ctx context.Context, d *debt.Debt) (*debt.Debt, error) {
	insertSQL := `
        INSERT INTO debts (debt_number, client_id, total_amount, interest_rate, due_date, payment_terms_days, priority, status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING ` + debtColumns

	status := "success"
	startTime := time.Now()
	created, err := scanDebt(r.db.QueryRow(ctx, insertSQL,
		d.DebtNumber, d.ClientID, d.TotalAmount, d.InterestRate, d.DueDate,
		d.PaymentTermsDays, d.Priority, d.Status, d.Version,
	))
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("CreateDebt", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert debt", "error", err)
		return nil, fmt.Errorf("%w: failed to insert debt: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Debt created in DB", "debt_id", created.ID, "debt_number", created.DebtNumber)
	return created, nil
}

func (r *DebtRepository) GetDebtByID(ctx context.Context, debtID int64) (*debt.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE id = $1`

	status := "success"
	startTime := time.Now()
	d, err := scanDebt(r.db.QueryRow(ctx, query, debtID))
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetDebtByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Debt not found", "debt_id", debtID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get debt by ID", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return d, nil
}

func (r *DebtRepository) GetDebtForUpdate(ctx context.Context, tx pgx.Tx, debtID int64) (*debt.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE id = $1 FOR UPDATE`

	d, err := scanDebt(tx.QueryRow(ctx, query, debtID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock debt row", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return d, nil
}

func (r *DebtRepository) GetPaymentsByDebtID(ctx context.Context, debtID int64) ([]debt.Payment, error) {
	query := `
        SELECT id, debt_id, amount, payment_date, method, recorded_by, created_at
        FROM payments
        WHERE debt_id = $1
        ORDER BY payment_date ASC, id ASC`

	rows, err := r.db.Query(ctx, query, debtID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments := make([]debt.Payment, 0)
	for rows.Next() {
		var p debt.Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.PaymentDate, &p.Method, &p.RecordedBy, &p.CreatedAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "debt_id", debtID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return payments, nil
}

func (r *DebtRepository) ListDebtsByClient(ctx context.Context, clientID int64) ([]*debt.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE client_id = $1 ORDER BY due_date ASC`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query debts by client", "client_id", clientID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	return collectDebts(rows)
}

func (r *DebtRepository) ListOpenDebts(ctx context.Context) ([]debt.DebtWithPayments, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE status NOT IN ('PAID', 'CANCELLED') ORDER BY due_date ASC`
	return r.listWithPayments(ctx, "ListOpenDebts", query)
}

func (r *DebtRepository) ListAllDebts(ctx context.Context) ([]debt.DebtWithPayments, error) {
	query := `SELECT ` + debtColumns + ` FROM debts ORDER BY id ASC`
	return r.listWithPayments(ctx, "ListAllDebts", query)
}

func (r *DebtRepository) ListDebtsDueWithin(ctx context.Context, from time.Time, days int) ([]debt.DebtWithPayments, error) {
	query := `
        SELECT ` + debtColumns + `
        FROM debts
        WHERE status NOT IN ('PAID', 'CANCELLED')
          AND due_date >= $1 AND due_date <= $2
        ORDER BY due_date ASC`
	return r.listWithPayments(ctx, "ListDebtsDueWithin", query, from, from.AddDate(0, 0, days))
}

func (r *DebtRepository) listWithPayments(ctx context.Context, queryName, query string, args ...any) ([]debt.DebtWithPayments, error) {
	status := "success"
	startTime := time.Now()
	defer func() {
		monitoring.RecordDBQuery(queryName, status, time.Since(startTime))
	}()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to query debts", "query_name", queryName, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	debts, err := collectDebts(rows)
	if err != nil {
		status = "error"
		return nil, err
	}

	result := make([]debt.DebtWithPayments, 0, len(debts))
	for _, d := range debts {
		payments, err := r.GetPaymentsByDebtID(ctx, d.ID)
		if err != nil {
			status = "error"
			return nil, err
		}
		result = append(result, debt.DebtWithPayments{Debt: d, Payments: payments})
	}
	return result, nil
}

func (r *DebtRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *debt.Payment) error {
	insertSQL := `
        INSERT INTO payments (debt_id, amount, payment_date, method, recorded_by, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        RETURNING id, created_at`

	err := tx.QueryRow(ctx, insertSQL, p.DebtID, p.Amount, p.PaymentDate, p.Method, p.RecordedBy).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert payment", "debt_id", p.DebtID, "error", err)
		return fmt.Errorf("%w: failed to insert payment: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

// UpdateDebtInTx writes status and cancellation fields guarded by the version
// counter. Zero rows affected means another writer got there first; that is
// surfaced as ErrConflict so the caller can re-read and retry.
func (r *DebtRepository) UpdateDebtInTx(ctx context.Context, tx pgx.Tx, d *debt.Debt, expectedVersion int64) error {
	updateSQL := `
        UPDATE debts
        SET status = $1, cancelled_reason = $2, cancelled_by = $3, version = version + 1, updated_at = NOW()
        WHERE id = $4 AND version = $5`

	cmdTag, err := tx.Exec(ctx, updateSQL, d.Status, d.CancelledReason, d.CancelledBy, d.ID, expectedVersion)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update debt", "debt_id", d.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Debt version mismatch on update", "debt_id", d.ID, "expected_version", expectedVersion)
		return fmt.Errorf("%w: debt %d changed since read (version %d)", apperrors.ErrConflict, d.ID, expectedVersion)
	}
	d.Version = expectedVersion + 1
	return nil
}

func scanDebt(row pgx.Row) (*debt.Debt, error) {
	var d debt.Debt
	err := row.Scan(
		&d.ID, &d.DebtNumber, &d.ClientID, &d.TotalAmount, &d.InterestRate,
		&d.DueDate, &d.PaymentTermsDays, &d.Priority, &d.Status, &d.Version,
		&d.CancelledReason, &d.CancelledBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDebts(rows pgx.Rows) ([]*debt.Debt, error) {
	debts := make([]*debt.Debt, 0)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return debts, nil
}
