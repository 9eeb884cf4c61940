package debt

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateDebt(ctx context.Context, d *Debt) (*Debt, error)

	GetDebtByID(ctx context.Context, debtID int64) (*Debt, error)

	// GetDebtForUpdate reads a debt inside a transaction with a row lock so a
	// payment and a status write observe a consistent version.
	GetDebtForUpdate(ctx context.Context, tx pgx.Tx, debtID int64) (*Debt, error)

	GetPaymentsByDebtID(ctx context.Context, debtID int64) ([]Payment, error)

	ListDebtsByClient(ctx context.Context, clientID int64) ([]*Debt, error)

	// ListOpenDebts returns every debt not in a terminal state, with its
	// payments, for derivation-driven reads (overdue listing and the
	// reminder tick).
	ListOpenDebts(ctx context.Context) ([]DebtWithPayments, error)

	// ListAllDebts returns every debt with its payments, terminal ones
	// included. The stats aggregator folds over this.
	ListAllDebts(ctx context.Context) ([]DebtWithPayments, error)

	// ListDebtsDueWithin returns open debts whose due date falls in
	// [from, from+days], used for upcoming-due reminders.
	ListDebtsDueWithin(ctx context.Context, from time.Time, days int) ([]DebtWithPayments, error)

	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *Payment) error

	// UpdateDebtInTx persists status (and cancellation fields) guarded by the
	// version counter: the write matches WHERE version = expectedVersion and
	// returns apperrors.ErrConflict when no row matches.
	UpdateDebtInTx(ctx context.Context, tx pgx.Tx, d *Debt, expectedVersion int64) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}

// DebtWithPayments pairs a debt with its payment history so callers can run
// the aging derivation without a second round trip per debt.
type DebtWithPayments struct {
	Debt     *Debt
	Payments []Payment
}
