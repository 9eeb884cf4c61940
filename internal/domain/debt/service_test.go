package debt

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"debt-ledger/internal/domain/client"
	"debt-ledger/internal/event"
	"debt-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateDebt(ctx context.Context, d *Debt) (*Debt, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Debt), args.Error(1)
}

func (m *MockRepository) GetDebtByID(ctx context.Context, debtID int64) (*Debt, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Debt), args.Error(1)
}

func (m *MockRepository) GetDebtForUpdate(ctx context.Context, tx pgx.Tx, debtID int64) (*Debt, error) {
	args := m.Called(ctx, tx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Debt), args.Error(1)
}

func (m *MockRepository) GetPaymentsByDebtID(ctx context.Context, debtID int64) ([]Payment, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *MockRepository) ListDebtsByClient(ctx context.Context, clientID int64) ([]*Debt, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Debt), args.Error(1)
}

func (m *MockRepository) ListOpenDebts(ctx context.Context) ([]DebtWithPayments, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DebtWithPayments), args.Error(1)
}

func (m *MockRepository) ListAllDebts(ctx context.Context) ([]DebtWithPayments, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DebtWithPayments), args.Error(1)
}

func (m *MockRepository) ListDebtsDueWithin(ctx context.Context, from time.Time, days int) ([]DebtWithPayments, error) {
	args := m.Called(ctx, from, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DebtWithPayments), args.Error(1)
}

func (m *MockRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *Payment) error {
	args := m.Called(ctx, tx, p)
	return args.Error(0)
}

func (m *MockRepository) UpdateDebtInTx(ctx context.Context, tx pgx.Tx, d *Debt, expectedVersion int64) error {
	args := m.Called(ctx, tx, d, expectedVersion)
	return args.Error(0)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type MockClientService struct {
	mock.Mock
}

func (m *MockClientService) CreateClient(ctx context.Context, name, email string, clientType client.ClientType, creditLimit decimal.Decimal, paymentTermsDays int) (*client.Client, error) {
	args := m.Called(ctx, name, email, clientType, creditLimit, paymentTermsDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

func (m *MockClientService) GetClient(ctx context.Context, clientID int64) (*client.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

func (m *MockClientService) ListClients(ctx context.Context, activeOnly bool) ([]*client.Client, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*client.Client), args.Error(1)
}

func (m *MockClientService) UpdateClientStatus(ctx context.Context, clientID int64, status client.ClientStatus) error {
	args := m.Called(ctx, clientID, status)
	return args.Error(0)
}

func (m *MockClientService) DeleteClient(ctx context.Context, clientID int64) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDebtStatusChanged(ctx context.Context, evt event.DebtStatusChangedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockPublisher) PublishReminderIntent(ctx context.Context, intent event.ReminderIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func activeClient(id int64) *client.Client {
	c := client.NewClient("Acme Corp", "billing@acme.test", client.TypeCompany, decimal.NewFromInt(10_000_000), 30)
	c.ClientID = id
	return c
}

func newServiceUnderTest(repo *MockRepository, cs *MockClientService, pub *MockPublisher, now time.Time) *debtService {
	var publisher event.EventPublisher
	if pub != nil {
		publisher = pub
	}
	var clients client.ClientService
	if cs != nil {
		clients = cs
	}
	svc := NewDebtService(repo, clients, publisher, DefaultInterestPolicy(), logger).(*debtService)
	return svc.WithClock(func() time.Time { return now })
}

func expectTx(repo *MockRepository) {
	repo.On("BeginTx", mock.Anything).Return(nil, nil)
	repo.On("RollbackTx", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestCreateDebt(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a debt for an active client", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockClientService)
		svc := newServiceUnderTest(repo, cs, nil, date(2024, time.January, 1))

		cs.On("GetClient", ctx, int64(1)).Return(activeClient(1), nil)
		repo.On("CreateDebt", ctx, mock.MatchedBy(func(d *Debt) bool {
			return d.ClientID == 1 && d.Status == StatusPending && d.Priority == PriorityHigh
		})).Return(&Debt{ID: 7, DebtNumber: "DBT-1A2B3C4D", ClientID: 1, Status: StatusPending}, nil)

		created, err := svc.CreateDebt(ctx, 1, decimal.NewFromInt(1_000_000), decimal.NewFromInt(2), date(2024, time.February, 1), 30, PriorityHigh)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, created.Status)
		assert.Equal(t, int64(7), created.ID)
		repo.AssertExpectations(t)
		cs.AssertExpectations(t)
	})

	t.Run("rejects debt for unknown client", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockClientService)
		svc := newServiceUnderTest(repo, cs, nil, date(2024, time.January, 1))

		cs.On("GetClient", ctx, int64(99)).Return(nil, apperrors.ErrNotFound)

		_, err := svc.CreateDebt(ctx, 99, decimal.NewFromInt(1000), decimal.Zero, date(2024, time.February, 1), 30, PriorityLow)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		repo.AssertNotCalled(t, "CreateDebt", mock.Anything, mock.Anything)
	})

	t.Run("rejects debt for blocked client", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockClientService)
		svc := newServiceUnderTest(repo, cs, nil, date(2024, time.January, 1))

		blocked := activeClient(2)
		blocked.Status = client.StatusBlocked
		cs.On("GetClient", ctx, int64(2)).Return(blocked, nil)

		_, err := svc.CreateDebt(ctx, 2, decimal.NewFromInt(1000), decimal.Zero, date(2024, time.February, 1), 30, PriorityLow)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("falls back to the client's payment terms", func(t *testing.T) {
		repo := new(MockRepository)
		cs := new(MockClientService)
		svc := newServiceUnderTest(repo, cs, nil, date(2024, time.January, 1))

		cs.On("GetClient", ctx, int64(1)).Return(activeClient(1), nil)
		repo.On("CreateDebt", ctx, mock.MatchedBy(func(d *Debt) bool {
			return d.PaymentTermsDays == 30
		})).Return(&Debt{ID: 8, Status: StatusPending, PaymentTermsDays: 30}, nil)

		_, err := svc.CreateDebt(ctx, 1, decimal.NewFromInt(1000), decimal.Zero, date(2024, time.February, 1), 0, PriorityLow)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	now := date(2024, time.January, 15)

	openDebt := func() *Debt {
		d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
		d.ID = 10
		d.Status = StatusOverdue
		d.Version = 3
		return d
	}

	t.Run("applies a valid payment and transitions status", func(t *testing.T) {
		repo := new(MockRepository)
		pub := new(MockPublisher)
		svc := newServiceUnderTest(repo, nil, pub, now)

		d := openDebt()
		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(10)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(10)).Return([]Payment{}, nil)
		repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.AnythingOfType("*debt.Payment")).Return(nil)
		repo.On("UpdateDebtInTx", ctx, mock.Anything, d, int64(3)).Return(nil)
		repo.On("CommitTx", ctx, mock.Anything).Return(nil)
		pub.On("PublishDebtStatusChanged", ctx, mock.Anything).Return(nil).Maybe()

		result, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(1_000_000), now, "alice", "TRANSFER")
		require.NoError(t, err)
		assert.True(t, result.RemainingAmount.IsZero())
		assert.Equal(t, StatusPaid, result.Status)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a non-positive amount without touching the store", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		_, err := svc.RecordPayment(ctx, 10, decimal.Zero, now, "alice", "")
		assert.Error(t, err)
		var vErr *apperrors.ValidationError
		assert.ErrorAs(t, err, &vErr)
		repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("rejects an overpayment and leaves state unchanged", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := openDebt()
		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(10)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(10)).Return([]Payment{
			{Amount: decimal.NewFromInt(900_000), PaymentDate: date(2024, time.January, 10)},
		}, nil)

		// Remaining is 100,000; 150,000 must be rejected, not capped.
		_, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(150_000), now, "alice", "")
		assert.ErrorIs(t, err, apperrors.ErrOverpayment)
		repo.AssertNotCalled(t, "InsertPaymentInTx", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CommitTx", mock.Anything, mock.Anything)
		repo.AssertCalled(t, "RollbackTx", ctx, mock.Anything)
	})

	t.Run("rejects payment on a paid debt", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := openDebt()
		d.Status = StatusPaid
		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(10)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(10)).Return([]Payment{
			{Amount: decimal.NewFromInt(1_000_000), PaymentDate: date(2024, time.January, 10)},
		}, nil)

		_, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(100), now, "alice", "")
		assert.ErrorIs(t, err, apperrors.ErrDebtAlreadyPaid)
	})

	t.Run("rejects payment on a cancelled debt", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := openDebt()
		d.Status = StatusCancelled
		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(10)).Return(d, nil)

		_, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(100), now, "alice", "")
		assert.ErrorIs(t, err, apperrors.ErrDebtCancelled)
		repo.AssertNotCalled(t, "GetPaymentsByDebtID", mock.Anything, mock.Anything)
	})

	t.Run("rejects a payment dated in the future", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		_, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(100), now.AddDate(0, 0, 5), "alice", "")
		assert.Error(t, err)
		repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("rejects a payment dated even an hour ahead", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		_, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(100), now.Add(time.Hour), "alice", "")
		assert.Error(t, err)
		var vErr *apperrors.ValidationError
		assert.ErrorAs(t, err, &vErr)
		repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("retries on version conflict and eventually succeeds", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := openDebt()
		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(10)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(10)).Return([]Payment{}, nil)
		repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.Anything).Return(nil)
		repo.On("UpdateDebtInTx", ctx, mock.Anything, mock.Anything, mock.Anything).Return(apperrors.ErrConflict).Twice()
		repo.On("UpdateDebtInTx", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		repo.On("CommitTx", ctx, mock.Anything).Return(nil)

		result, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(500_000), now, "alice", "")
		require.NoError(t, err)
		assert.Equal(t, StatusOverdue, result.Status)
		repo.AssertNumberOfCalls(t, "UpdateDebtInTx", 3)
	})

	t.Run("gives up after repeated version conflicts", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := openDebt()
		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(10)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(10)).Return([]Payment{}, nil)
		repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.Anything).Return(nil)
		repo.On("UpdateDebtInTx", ctx, mock.Anything, mock.Anything, mock.Anything).Return(apperrors.ErrConflict)

		_, err := svc.RecordPayment(ctx, 10, decimal.NewFromInt(500_000), now, "alice", "")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		repo.AssertNumberOfCalls(t, "UpdateDebtInTx", conflictRetryAttempts)
	})

	t.Run("returns not found for a missing debt", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(404)).Return(nil, pgx.ErrNoRows)

		_, err := svc.RecordPayment(ctx, 404, decimal.NewFromInt(100), now, "alice", "")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestRecordAdjustment(t *testing.T) {
	ctx := context.Background()
	now := date(2024, time.February, 1)

	t.Run("rejects a non-negative amount", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		_, err := svc.RecordAdjustment(ctx, 10, decimal.NewFromInt(100), now, "alice", "typo")
		assert.Error(t, err)
		repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("reopens a paid debt", func(t *testing.T) {
		repo := new(MockRepository)
		pub := new(MockPublisher)
		svc := newServiceUnderTest(repo, nil, pub, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.June, 1))
		d.ID = 20
		d.Status = StatusPaid
		d.Version = 5

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(20)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(20)).Return([]Payment{
			{Amount: decimal.NewFromInt(1_000_000), PaymentDate: date(2024, time.January, 10)},
		}, nil)
		repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.Anything).Return(nil)
		repo.On("UpdateDebtInTx", ctx, mock.Anything, d, int64(5)).Return(nil)
		repo.On("CommitTx", ctx, mock.Anything).Return(nil)
		pub.On("PublishDebtStatusChanged", ctx, mock.MatchedBy(func(evt event.DebtStatusChangedEvent) bool {
			return evt.OldStatus == string(StatusPaid) && evt.NewStatus == string(StatusPartial)
		})).Return(nil)

		result, err := svc.RecordAdjustment(ctx, 20, decimal.NewFromInt(-200_000), now, "alice", "mistaken payment")
		require.NoError(t, err)
		assert.True(t, result.RemainingAmount.Equal(decimal.NewFromInt(200_000)))
		assert.Equal(t, StatusPartial, result.Status)
		pub.AssertExpectations(t)
	})

	t.Run("rejects adjustment on a cancelled debt", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.June, 1))
		d.ID = 21
		d.Status = StatusCancelled

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(21)).Return(d, nil)

		_, err := svc.RecordAdjustment(ctx, 21, decimal.NewFromInt(-100), now, "alice", "reason")
		assert.ErrorIs(t, err, apperrors.ErrDebtCancelled)
	})
}

func TestCancelDebt(t *testing.T) {
	ctx := context.Background()
	now := date(2024, time.March, 1)

	t.Run("requires a reason", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		err := svc.CancelDebt(ctx, 10, "", "alice")
		assert.Error(t, err)
		repo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})

	t.Run("cancels an open debt and records the actor", func(t *testing.T) {
		repo := new(MockRepository)
		pub := new(MockPublisher)
		svc := newServiceUnderTest(repo, nil, pub, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
		d.ID = 30
		d.Status = StatusOverdue
		d.Version = 2

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(30)).Return(d, nil)
		repo.On("UpdateDebtInTx", ctx, mock.Anything, mock.MatchedBy(func(upd *Debt) bool {
			return upd.Status == StatusCancelled && upd.CancelledReason != nil && *upd.CancelledReason == "disputed invoice" &&
				upd.CancelledBy != nil && *upd.CancelledBy == "alice"
		}), int64(2)).Return(nil)
		repo.On("CommitTx", ctx, mock.Anything).Return(nil)
		pub.On("PublishDebtStatusChanged", ctx, mock.Anything).Return(nil)

		err := svc.CancelDebt(ctx, 30, "disputed invoice", "alice")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("refuses to cancel a paid debt", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
		d.ID = 31
		d.Status = StatusPaid

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(31)).Return(d, nil)

		err := svc.CancelDebt(ctx, 31, "any reason", "alice")
		assert.ErrorIs(t, err, apperrors.ErrDebtAlreadyPaid)
	})

	t.Run("refuses to cancel twice", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
		d.ID = 32
		d.Status = StatusCancelled

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(32)).Return(d, nil)

		err := svc.CancelDebt(ctx, 32, "again", "alice")
		assert.ErrorIs(t, err, apperrors.ErrDebtCancelled)
	})
}

func TestRefreshStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("persists a real transition", func(t *testing.T) {
		now := date(2024, time.January, 15)
		repo := new(MockRepository)
		pub := new(MockPublisher)
		svc := newServiceUnderTest(repo, nil, pub, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
		d.ID = 40
		d.Status = StatusPending
		d.Version = 1

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(40)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(40)).Return([]Payment{}, nil)
		repo.On("UpdateDebtInTx", ctx, mock.Anything, mock.MatchedBy(func(upd *Debt) bool {
			return upd.Status == StatusOverdue
		}), int64(1)).Return(nil)
		repo.On("CommitTx", ctx, mock.Anything).Return(nil)
		pub.On("PublishDebtStatusChanged", ctx, mock.Anything).Return(nil)

		changed, err := svc.RefreshStatus(ctx, 40, nil)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("skips the write when nothing changed", func(t *testing.T) {
		now := date(2023, time.December, 1)
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
		d.ID = 41
		d.Status = StatusPending

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(41)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(41)).Return([]Payment{}, nil)

		changed, err := svc.RefreshStatus(ctx, 41, nil)
		require.NoError(t, err)
		assert.False(t, changed)
		repo.AssertNotCalled(t, "UpdateDebtInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("leaves terminal debts alone", func(t *testing.T) {
		now := date(2025, time.January, 1)
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "2", date(2024, time.January, 1))
		d.ID = 42
		d.Status = StatusCancelled

		expectTx(repo)
		repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(42)).Return(d, nil)

		changed, err := svc.RefreshStatus(ctx, 42, nil)
		require.NoError(t, err)
		assert.False(t, changed)
		repo.AssertNotCalled(t, "GetPaymentsByDebtID", mock.Anything, mock.Anything)
	})
}

func TestGetDebtView(t *testing.T) {
	ctx := context.Background()
	now := date(2024, time.March, 1)

	t.Run("returns the derived view", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "2", date(2024, time.January, 1))
		d.ID = 50

		repo.On("GetDebtByID", ctx, int64(50)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(50)).Return([]Payment{}, nil)

		view, err := svc.GetDebtView(ctx, 50, nil)
		require.NoError(t, err)
		assert.True(t, view.AccruedInterest.Equal(decimal.NewFromInt(40_000)))
		assert.True(t, view.RemainingAmount.Equal(decimal.NewFromInt(1_040_000)))
		assert.Equal(t, StatusOverdue, view.Status)
		assert.Equal(t, Bucket31To60, view.AgingBucket)
		assert.Equal(t, now, view.AsOf)
	})

	t.Run("honours an explicit asOf", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		d := newTestDebt(1_000_000, "2", date(2024, time.January, 1))
		d.ID = 51

		repo.On("GetDebtByID", ctx, int64(51)).Return(d, nil)
		repo.On("GetPaymentsByDebtID", ctx, int64(51)).Return([]Payment{}, nil)

		asOf := date(2023, time.December, 1)
		view, err := svc.GetDebtView(ctx, 51, &asOf)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, view.Status)
		assert.Equal(t, asOf, view.AsOf)
	})

	t.Run("maps missing rows to not found", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newServiceUnderTest(repo, nil, nil, now)

		repo.On("GetDebtByID", ctx, int64(404)).Return(nil, pgx.ErrNoRows)

		_, err := svc.GetDebtView(ctx, 404, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestListOverdueDebts(t *testing.T) {
	ctx := context.Background()
	now := date(2024, time.February, 1)

	repo := new(MockRepository)
	svc := newServiceUnderTest(repo, nil, nil, now)

	overdue := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
	overdue.ID = 60
	current := newTestDebt(500_000, "0", date(2024, time.June, 1))
	current.ID = 61

	repo.On("ListOpenDebts", ctx).Return([]DebtWithPayments{
		{Debt: overdue, Payments: nil},
		{Debt: current, Payments: nil},
	}, nil)

	views, err := svc.ListOverdueDebts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(60), views[0].Debt.ID)
	assert.Equal(t, StatusOverdue, views[0].Status)
}

func TestPublishFailureDoesNotFailPayment(t *testing.T) {
	ctx := context.Background()
	now := date(2024, time.January, 15)

	repo := new(MockRepository)
	pub := new(MockPublisher)
	svc := newServiceUnderTest(repo, nil, pub, now)

	d := newTestDebt(1_000_000, "0", date(2024, time.January, 1))
	d.ID = 70
	d.Status = StatusOverdue
	d.Version = 1

	expectTx(repo)
	repo.On("GetDebtForUpdate", ctx, mock.Anything, int64(70)).Return(d, nil)
	repo.On("GetPaymentsByDebtID", ctx, int64(70)).Return([]Payment{}, nil)
	repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateDebtInTx", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("CommitTx", ctx, mock.Anything).Return(nil)
	pub.On("PublishDebtStatusChanged", ctx, mock.Anything).Return(errors.New("broker down"))

	result, err := svc.RecordPayment(ctx, 70, decimal.NewFromInt(1_000_000), now, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, result.Status)
}
