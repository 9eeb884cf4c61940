package debt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"debt-ledger/internal/domain/client"

	"github.com/shopspring/decimal"
)

type AmountTotals struct {
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

type GroupTotals struct {
	Count     int             `json:"count"`
	Remaining decimal.Decimal `json:"remaining"`
}

type AggregateStats struct {
	TotalClients  int                               `json:"totalClients"`
	ActiveClients int                               `json:"activeClients"`
	TotalDebts    int                               `json:"totalDebts"`
	OverdueCount  int                               `json:"overdueCount"`
	Amounts       AmountTotals                      `json:"totalAmount"`
	ByStatus      map[DebtStatus]int                `json:"byStatus"`
	ByClientType  map[client.ClientType]GroupTotals `json:"byClientType"`
	ByAgingBucket map[AgingBucket]GroupTotals       `json:"byAgingBucket"`
	AsOf          time.Time                         `json:"asOf"`
}

type StatsService interface {
	GetAggregateStats(ctx context.Context, asOf *time.Time) (*AggregateStats, error)
}

var _ StatsService = (*statsService)(nil)

// statsService is strictly read-only: it folds debts through the aging
// derivation at query time instead of trusting the persisted status, so the
// dashboard is never staler than the fold itself.
type statsService struct {
	debtRepo   Repository
	clientRepo client.ClientRepository
	policy     InterestPolicy
	logger     *slog.Logger
	now        func() time.Time
}

func NewStatsService(debtRepo Repository, clientRepo client.ClientRepository, policy InterestPolicy, logger *slog.Logger) StatsService {
	if debtRepo == nil || clientRepo == nil {
		panic("stats service repositories cannot be nil")
	}
	return &statsService{
		debtRepo:   debtRepo,
		clientRepo: clientRepo,
		policy:     policy,
		logger:     logger.With(slog.String("component", "statsService")),
		now:        time.Now,
	}
}

func (s *statsService) GetAggregateStats(ctx context.Context, asOf *time.Time) (*AggregateStats, error) {
	at := s.now()
	if asOf != nil && !asOf.IsZero() {
		at = *asOf
	}

	clients, err := s.clientRepo.FindAll(ctx, false)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list clients for stats", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	clientTypes := make(map[int64]client.ClientType, len(clients))
	stats := &AggregateStats{
		TotalClients:  len(clients),
		Amounts:       AmountTotals{Total: decimal.Zero, Paid: decimal.Zero, Remaining: decimal.Zero},
		ByStatus:      make(map[DebtStatus]int),
		ByClientType:  make(map[client.ClientType]GroupTotals),
		ByAgingBucket: make(map[AgingBucket]GroupTotals),
		AsOf:          at,
	}
	for _, c := range clients {
		clientTypes[c.ClientID] = c.Type
		if c.IsActive() {
			stats.ActiveClients++
		}
	}

	debts, err := s.debtRepo.ListAllDebts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list debts for stats", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}

	for _, dp := range debts {
		der := Derive(dp.Debt, dp.Payments, at, s.policy)

		stats.TotalDebts++
		stats.ByStatus[der.Status]++
		stats.Amounts.Paid = stats.Amounts.Paid.Add(der.TotalPaid)

		// Cancelled debts are excluded from the financial totals and aging:
		// their balance is no longer expected to be collected.
		if der.Status == StatusCancelled {
			continue
		}

		stats.Amounts.Total = stats.Amounts.Total.Add(dp.Debt.TotalAmount).Add(der.AccruedInterest)
		stats.Amounts.Remaining = stats.Amounts.Remaining.Add(der.RemainingAmount)

		if der.Status == StatusOverdue {
			stats.OverdueCount++
		}

		if t, ok := clientTypes[dp.Debt.ClientID]; ok {
			g := stats.ByClientType[t]
			g.Count++
			g.Remaining = g.Remaining.Add(der.RemainingAmount)
			stats.ByClientType[t] = g
		}

		b := stats.ByAgingBucket[der.AgingBucket]
		b.Count++
		b.Remaining = b.Remaining.Add(der.RemainingAmount)
		stats.ByAgingBucket[der.AgingBucket] = b
	}

	return stats, nil
}
