package debt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"debt-ledger/internal/domain/client"
	"debt-ledger/internal/event"
	"debt-ledger/internal/infrastructure/monitoring"
	"debt-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// conflictRetryAttempts bounds the re-read-and-retry loop on optimistic
// concurrency failures before the conflict is surfaced to the caller.
const conflictRetryAttempts = 3

// DebtView is the derived read model of a debt at a point in time.
type DebtView struct {
	Debt            *Debt           `json:"debt"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	AccruedInterest decimal.Decimal `json:"accruedInterest"`
	TotalPaid       decimal.Decimal `json:"totalPaid"`
	Status          DebtStatus      `json:"status"`
	DaysOverdue     int             `json:"daysOverdue"`
	AgingBucket     AgingBucket     `json:"agingBucket"`
	AsOf            time.Time       `json:"asOf"`
}

// PaymentResult is what a caller needs after a financial mutation: the new
// balance and the (possibly transitioned) status.
type PaymentResult struct {
	DebtID          int64           `json:"debtId"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Status          DebtStatus      `json:"status"`
}

type DebtService interface {
	CreateDebt(ctx context.Context, clientID int64, totalAmount, interestRate decimal.Decimal, dueDate time.Time, paymentTermsDays int, priority Priority) (*Debt, error)

	GetDebtView(ctx context.Context, debtID int64, asOf *time.Time) (*DebtView, error)

	ListDebtsByClient(ctx context.Context, clientID int64) ([]*Debt, error)

	ListOverdueDebts(ctx context.Context, asOf *time.Time) ([]*DebtView, error)

	RecordPayment(ctx context.Context, debtID int64, amount decimal.Decimal, paymentDate time.Time, recordedBy, method string) (*PaymentResult, error)

	// RecordAdjustment appends a negative correction payment. This is the only
	// way to reopen a paid debt; history is never edited.
	RecordAdjustment(ctx context.Context, debtID int64, amount decimal.Decimal, date time.Time, recordedBy, reason string) (*PaymentResult, error)

	CancelDebt(ctx context.Context, debtID int64, reason, actor string) error

	// RefreshStatus re-derives the debt's status and persists it only when it
	// actually changed, emitting a status-changed event on real transitions.
	RefreshStatus(ctx context.Context, debtID int64, asOf *time.Time) (bool, error)
}

var _ DebtService = (*debtService)(nil)

type debtService struct {
	repo          Repository
	clientService client.ClientService
	pub           event.EventPublisher
	policy        InterestPolicy
	logger        *slog.Logger
	now           func() time.Time
}

func NewDebtService(repo Repository, cs client.ClientService, pub event.EventPublisher, policy InterestPolicy, logger *slog.Logger) DebtService {
	if repo == nil {
		panic("debt repository cannot be nil")
	}
	return &debtService{
		repo:          repo,
		clientService: cs,
		pub:           pub,
		policy:        policy,
		logger:        logger.With(slog.String("component", "debtService")),
		now:           time.Now,
	}
}

// WithClock replaces the service clock. Tests use it to pin "today".
func (s *debtService) WithClock(now func() time.Time) *debtService {
	s.now = now
	return s
}

func (s *debtService) asOfOrNow(asOf *time.Time) time.Time {
	if asOf != nil && !asOf.IsZero() {
		return *asOf
	}
	return s.now()
}

func (s *debtService) CreateDebt(ctx context.Context, clientID int64, totalAmount, interestRate decimal.Decimal, dueDate time.Time, paymentTermsDays int, priority Priority) (*Debt, error) {
	s.logger.InfoContext(ctx, "Creating new debt", slog.Int64("clientID", clientID))

	c, err := s.clientService.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %d not found", apperrors.ErrValidation, clientID)
		}
		return nil, fmt.Errorf("failed to verify client: %w", err)
	}
	if !c.IsActive() {
		s.logger.WarnContext(ctx, "Attempted to create debt for non-active client", slog.Int64("clientID", clientID), slog.String("clientStatus", string(c.Status)))
		return nil, fmt.Errorf("%w: client %d is not active", apperrors.ErrValidation, clientID)
	}

	if paymentTermsDays <= 0 {
		paymentTermsDays = c.PaymentTermsDays
	}

	d, err := NewDebt(clientID, totalAmount, interestRate, dueDate, paymentTermsDays, priority)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateDebt(ctx, d)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save debt", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save debt: %w", err)
	}

	s.logger.InfoContext(ctx, "Debt created", slog.Int64("debtID", created.ID), slog.String("debtNumber", created.DebtNumber))
	return created, nil
}

func (s *debtService) GetDebtView(ctx context.Context, debtID int64, asOf *time.Time) (*DebtView, error) {
	d, err := s.repo.GetDebtByID(ctx, debtID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Debt not found", slog.Int64("debtID", debtID))
			return nil, fmt.Errorf("%w: debt %d", apperrors.ErrNotFound, debtID)
		}
		return nil, fmt.Errorf("failed to get debt %d: %w", debtID, err)
	}

	payments, err := s.repo.GetPaymentsByDebtID(ctx, debtID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for debt %d: %w", debtID, err)
	}

	at := s.asOfOrNow(asOf)
	return s.buildView(d, payments, at), nil
}

func (s *debtService) buildView(d *Debt, payments []Payment, asOf time.Time) *DebtView {
	der := Derive(d, payments, asOf, s.policy)
	return &DebtView{
		Debt:            d,
		RemainingAmount: der.RemainingAmount,
		AccruedInterest: der.AccruedInterest,
		TotalPaid:       der.TotalPaid,
		Status:          der.Status,
		DaysOverdue:     der.DaysOverdue,
		AgingBucket:     der.AgingBucket,
		AsOf:            asOf,
	}
}

func (s *debtService) ListDebtsByClient(ctx context.Context, clientID int64) ([]*Debt, error) {
	debts, err := s.repo.ListDebtsByClient(ctx, clientID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list debts by client", slog.Int64("clientID", clientID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to list debts for client %d: %w", clientID, err)
	}
	return debts, nil
}

func (s *debtService) ListOverdueDebts(ctx context.Context, asOf *time.Time) ([]*DebtView, error) {
	at := s.asOfOrNow(asOf)
	open, err := s.repo.ListOpenDebts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list open debts", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list open debts: %w", err)
	}

	views := make([]*DebtView, 0)
	for _, dp := range open {
		v := s.buildView(dp.Debt, dp.Payments, at)
		if v.Status == StatusOverdue {
			views = append(views, v)
		}
	}
	return views, nil
}

func (s *debtService) RecordPayment(ctx context.Context, debtID int64, amount decimal.Decimal, paymentDate time.Time, recordedBy, method string) (*PaymentResult, error) {
	if !amount.IsPositive() {
		monitoring.RecordPayment("failure_amount")
		return nil, apperrors.NewValidationError("amount", "payment amount must be positive")
	}
	return s.applyPayment(ctx, debtID, amount, paymentDate, recordedBy, method)
}

func (s *debtService) RecordAdjustment(ctx context.Context, debtID int64, amount decimal.Decimal, date time.Time, recordedBy, reason string) (*PaymentResult, error) {
	if !amount.IsNegative() {
		monitoring.RecordPayment("failure_amount")
		return nil, apperrors.NewValidationError("amount", "adjustment amount must be negative")
	}
	method := "ADJUSTMENT"
	if reason != "" {
		method = "ADJUSTMENT: " + reason
	}
	return s.applyPayment(ctx, debtID, amount, date, recordedBy, method)
}

// applyPayment appends a payment and the resulting status transition in one
// transaction, guarded by the debt's version counter. On a version conflict
// the whole attempt is rolled back and retried with a fresh read.
func (s *debtService) applyPayment(ctx context.Context, debtID int64, amount decimal.Decimal, paymentDate time.Time, recordedBy, method string) (*PaymentResult, error) {
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}
	// A future-dated payment would be recorded but excluded from the
	// derivation at now, reporting the balance unchanged.
	if paymentDate.After(s.now()) {
		monitoring.RecordPayment("failure_amount")
		return nil, apperrors.NewValidationError("paymentDate", "payment date cannot be in the future")
	}

	var result *PaymentResult
	var err error
	for attempt := 1; attempt <= conflictRetryAttempts; attempt++ {
		result, err = s.applyPaymentOnce(ctx, debtID, amount, paymentDate, recordedBy, method)
		if err == nil || !errors.Is(err, apperrors.ErrConflict) {
			break
		}
		monitoring.RecordConflictRetry()
		s.logger.WarnContext(ctx, "Version conflict applying payment, retrying with fresh read",
			slog.Int64("debtID", debtID), slog.Int("attempt", attempt))
	}

	switch {
	case err == nil:
		monitoring.RecordPayment("success")
	case errors.Is(err, apperrors.ErrOverpayment):
		monitoring.RecordPayment("failure_overpayment")
	case errors.Is(err, apperrors.ErrDebtAlreadyPaid), errors.Is(err, apperrors.ErrDebtCancelled):
		monitoring.RecordPayment("failure_terminal")
	case errors.Is(err, apperrors.ErrConflict):
		monitoring.RecordPayment("failure_conflict")
	default:
		monitoring.RecordPayment("failure_internal")
	}
	return result, err
}

func (s *debtService) applyPaymentOnce(ctx context.Context, debtID int64, amount decimal.Decimal, paymentDate time.Time, recordedBy, method string) (result *PaymentResult, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	d, err := s.repo.GetDebtForUpdate(ctx, tx, debtID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: debt %d", apperrors.ErrNotFound, debtID)
		}
		return nil, fmt.Errorf("%w: could not read debt %d: %v", apperrors.ErrInternalServer, debtID, err)
	}

	if d.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: debt %d", apperrors.ErrDebtCancelled, debtID)
	}

	payments, err := s.repo.GetPaymentsByDebtID(ctx, debtID)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read payments for debt %d: %v", apperrors.ErrInternalServer, debtID, err)
	}

	asOf := s.now()
	before := Derive(d, payments, asOf, s.policy)

	if amount.IsPositive() {
		if d.Status == StatusPaid || before.RemainingAmount.IsZero() {
			return nil, fmt.Errorf("%w: debt %d", apperrors.ErrDebtAlreadyPaid, debtID)
		}
		// Reject rather than cap, so staff can split the payment correctly.
		if amount.GreaterThan(before.RemainingAmount) {
			return nil, fmt.Errorf("%w: payment %s exceeds remaining %s on debt %d",
				apperrors.ErrOverpayment, amount.String(), before.RemainingAmount.String(), debtID)
		}
	}

	payment := &Payment{
		DebtID:      debtID,
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      method,
		RecordedBy:  recordedBy,
	}
	if err = s.repo.InsertPaymentInTx(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("%w: could not insert payment: %v", apperrors.ErrInternalServer, err)
	}

	// A terminal PAID is re-derivable after a negative adjustment: clear it
	// before re-deriving so the engine can compute the reopened status.
	priorStatus := d.Status
	if amount.IsNegative() && d.Status == StatusPaid {
		d.Status = StatusPartial
	}
	after := Derive(d, append(payments, *payment), asOf, s.policy)

	expectedVersion := d.Version
	d.Status = after.Status
	d.UpdatedAt = s.now()
	if err = s.repo.UpdateDebtInTx(ctx, tx, d, expectedVersion); err != nil {
		return nil, err
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: could not commit payment transaction: %v", apperrors.ErrInternalServer, err)
	}

	if after.Status != priorStatus {
		monitoring.RecordStatusTransition(string(priorStatus), string(after.Status))
		s.publishStatusChanged(ctx, d, priorStatus, after.Status)
	}

	s.logger.InfoContext(ctx, "Payment applied",
		slog.Int64("debtID", debtID),
		slog.String("amount", amount.String()),
		slog.String("remaining", after.RemainingAmount.String()),
		slog.String("status", string(after.Status)))

	return &PaymentResult{
		DebtID:          debtID,
		RemainingAmount: after.RemainingAmount,
		Status:          after.Status,
	}, nil
}

func (s *debtService) CancelDebt(ctx context.Context, debtID int64, reason, actor string) (err error) {
	if reason == "" {
		return apperrors.NewValidationError("reason", "cancellation reason is required")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	d, err := s.repo.GetDebtForUpdate(ctx, tx, debtID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: debt %d", apperrors.ErrNotFound, debtID)
		}
		return fmt.Errorf("%w: could not read debt %d: %v", apperrors.ErrInternalServer, debtID, err)
	}

	switch d.Status {
	case StatusCancelled:
		return fmt.Errorf("%w: debt %d", apperrors.ErrDebtCancelled, debtID)
	case StatusPaid:
		return fmt.Errorf("%w: debt %d cannot be cancelled", apperrors.ErrDebtAlreadyPaid, debtID)
	}

	priorStatus := d.Status
	expectedVersion := d.Version
	d.Status = StatusCancelled
	d.CancelledReason = &reason
	d.CancelledBy = &actor
	d.UpdatedAt = s.now()

	if err = s.repo.UpdateDebtInTx(ctx, tx, d, expectedVersion); err != nil {
		return err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return fmt.Errorf("%w: could not commit cancellation: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordStatusTransition(string(priorStatus), string(StatusCancelled))
	s.publishStatusChanged(ctx, d, priorStatus, StatusCancelled)
	s.logger.InfoContext(ctx, "Debt cancelled", slog.Int64("debtID", debtID), slog.String("actor", actor), slog.String("reason", reason))
	return nil
}

func (s *debtService) RefreshStatus(ctx context.Context, debtID int64, asOf *time.Time) (changed bool, err error) {
	at := s.asOfOrNow(asOf)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	d, err := s.repo.GetDebtForUpdate(ctx, tx, debtID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return false, fmt.Errorf("%w: debt %d", apperrors.ErrNotFound, debtID)
		}
		return false, fmt.Errorf("%w: could not read debt %d: %v", apperrors.ErrInternalServer, debtID, err)
	}

	if d.Status.Terminal() {
		err = s.repo.RollbackTx(ctx, tx)
		return false, err
	}

	payments, err := s.repo.GetPaymentsByDebtID(ctx, debtID)
	if err != nil {
		return false, fmt.Errorf("%w: could not read payments for debt %d: %v", apperrors.ErrInternalServer, debtID, err)
	}

	der := Derive(d, payments, at, s.policy)
	if der.Status == d.Status || !d.Status.CanTransition(der.Status) {
		// Stored status already matches the derivation; no redundant write.
		err = s.repo.RollbackTx(ctx, tx)
		return false, err
	}

	priorStatus := d.Status
	expectedVersion := d.Version
	d.Status = der.Status
	d.UpdatedAt = s.now()
	if err = s.repo.UpdateDebtInTx(ctx, tx, d, expectedVersion); err != nil {
		return false, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return false, fmt.Errorf("%w: could not commit status refresh: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordStatusTransition(string(priorStatus), string(der.Status))
	s.publishStatusChanged(ctx, d, priorStatus, der.Status)
	s.logger.InfoContext(ctx, "Debt status refreshed",
		slog.Int64("debtID", debtID), slog.String("from", string(priorStatus)), slog.String("to", string(der.Status)))
	return true, nil
}

// publishStatusChanged is best-effort: the local transaction is already
// committed, so a transport failure is logged and never unwinds the write.
func (s *debtService) publishStatusChanged(ctx context.Context, d *Debt, from, to DebtStatus) {
	if s.pub == nil {
		return
	}
	evt := event.DebtStatusChangedEvent{
		DebtID:     d.ID,
		DebtNumber: d.DebtNumber,
		ClientID:   d.ClientID,
		OldStatus:  string(from),
		NewStatus:  string(to),
		Timestamp:  s.now(),
	}
	if pubErr := s.pub.PublishDebtStatusChanged(ctx, evt); pubErr != nil {
		depErr := apperrors.NewExternalDependencyError("rabbitmq", true, pubErr)
		s.logger.ErrorContext(ctx, "Failed to publish debt status change", slog.Any("error", depErr))
	}
}
