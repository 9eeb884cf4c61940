package debt

import (
	"fmt"
	"strings"
	"time"

	"debt-ledger/internal/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DebtStatus string

const (
	StatusPending   DebtStatus = "PENDING"
	StatusPartial   DebtStatus = "PARTIAL"
	StatusPaid      DebtStatus = "PAID"
	StatusOverdue   DebtStatus = "OVERDUE"
	StatusCancelled DebtStatus = "CANCELLED"
)

func (s DebtStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses never transition again; the aging engine also stops
// reporting overdue days and bucket membership for them.
func (s DebtStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransition encodes the lifecycle state machine. Pending, partial and
// overdue are mutually reachable because they are re-derived from payments and
// the calendar; paid is reached only when the balance hits zero; cancellation
// is allowed from any non-terminal state.
func (s DebtStatus) CanTransition(to DebtStatus) bool {
	if s == to {
		return false
	}
	if s.Terminal() {
		return false
	}
	switch to {
	case StatusPending, StatusPartial, StatusOverdue, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Debt is a single obligation owed by a client. Status is derived state that
// is persisted for query efficiency; only the debt service writes it, and
// always from a fresh derivation. Version is the optimistic-concurrency
// counter checked on every write.
type Debt struct {
	ID               int64           `json:"id"`
	DebtNumber       string          `json:"debtNumber"`
	ClientID         int64           `json:"clientId"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	InterestRate     decimal.Decimal `json:"interestRate"`
	DueDate          time.Time       `json:"dueDate"`
	PaymentTermsDays int             `json:"paymentTermsDays"`
	Priority         Priority        `json:"priority"`
	Status           DebtStatus      `json:"status"`
	Version          int64           `json:"version"`
	CancelledReason  *string         `json:"cancelledReason,omitempty"`
	CancelledBy      *string         `json:"cancelledBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Payment is immutable once recorded. Corrections are made with a negative
// adjustment payment, never by editing history.
type Payment struct {
	ID          int64           `json:"id"`
	DebtID      int64           `json:"debtId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"paymentDate"`
	Method      string          `json:"method,omitempty"`
	RecordedBy  string          `json:"recordedBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func NewDebt(clientID int64, totalAmount, interestRate decimal.Decimal, dueDate time.Time, paymentTermsDays int, priority Priority) (*Debt, error) {
	if clientID <= 0 {
		return nil, apperrors.NewValidationError("clientId", "client ID is required")
	}
	if !totalAmount.IsPositive() {
		return nil, apperrors.NewValidationError("totalAmount", "total amount must be positive")
	}
	if interestRate.IsNegative() {
		return nil, apperrors.NewValidationError("interestRate", "interest rate cannot be negative")
	}
	if dueDate.IsZero() {
		return nil, apperrors.NewValidationError("dueDate", "due date is required")
	}
	if paymentTermsDays <= 0 {
		return nil, apperrors.NewValidationError("paymentTerms", "payment terms must be a positive number of days")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	now := time.Now()
	return &Debt{
		DebtNumber:       newDebtNumber(),
		ClientID:         clientID,
		TotalAmount:      totalAmount,
		InterestRate:     interestRate,
		DueDate:          dueDate,
		PaymentTermsDays: paymentTermsDays,
		Priority:         priority,
		Status:           StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func newDebtNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "DBT-" + id[:8]
}
