package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"debt-ledger/internal/domain/debt"
	"debt-ledger/internal/domain/reminder"
	"debt-ledger/internal/event"
	"debt-ledger/internal/infrastructure/monitoring"
)

type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDuplicate Outcome = "skipped_duplicate"
	OutcomeSendError Outcome = "publish_failed"
	OutcomeError     Outcome = "error"
)

// DebtOutcome is one entry of the per-debt result list a tick reports. One
// failing reminder never fails the tick as a whole.
type DebtOutcome struct {
	DebtID  int64
	Kind    event.ReminderKind
	Outcome Outcome
	Err     error
}

// ReminderJob is the daily notification tick: it sweeps open debts, lets the
// lifecycle controller persist any status transitions, then claims one
// reminder record per qualifying debt per day and emits reminder intents for
// the records it claimed.
type ReminderJob struct {
	debtRepo      debt.Repository
	debtService   debt.DebtService
	reminderRepo  reminder.Repository
	pub           event.EventPublisher
	policy        debt.InterestPolicy
	lookAheadDays int
	logger        *slog.Logger
	now           func() time.Time

	// runMu makes ticks non-reentrant: a tick that is still running blocks
	// the next one instead of racing it.
	runMu sync.Mutex
}

func NewReminderJob(
	debtRepo debt.Repository,
	debtService debt.DebtService,
	reminderRepo reminder.Repository,
	pub event.EventPublisher,
	policy debt.InterestPolicy,
	lookAheadDays int,
	logger *slog.Logger,
) *ReminderJob {
	if debtRepo == nil || debtService == nil || reminderRepo == nil || logger == nil {
		panic("ReminderJob dependencies cannot be nil")
	}
	if lookAheadDays < 0 {
		lookAheadDays = 0
	}
	return &ReminderJob{
		debtRepo:      debtRepo,
		debtService:   debtService,
		reminderRepo:  reminderRepo,
		pub:           pub,
		policy:        policy,
		lookAheadDays: lookAheadDays,
		logger:        logger.With("job", "DebtReminder"),
		now:           time.Now,
	}
}

// WithClock pins the job clock, used by tests to control "today".
func (j *ReminderJob) WithClock(now func() time.Time) *ReminderJob {
	j.now = now
	return j
}

func (j *ReminderJob) Run(ctx context.Context) ([]DebtOutcome, error) {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	startTime := j.now()
	today := time.Date(startTime.Year(), startTime.Month(), startTime.Day(), 0, 0, 0, 0, time.UTC)
	j.logger.InfoContext(ctx, "Starting daily debt reminder job.", slog.Time("today", today))

	open, err := j.debtRepo.ListOpenDebts(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to list open debts, aborting tick.", slog.Any("error", err))
		return nil, fmt.Errorf("cannot run reminder job, failed to list open debts: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched open debts.", slog.Int("count", len(open)))

	if len(open) == 0 {
		j.logger.InfoContext(ctx, "No open debts to process.", slog.Duration("duration", time.Since(startTime)))
		return nil, nil
	}

	// The due-soon set is windowed at the store, not filtered here.
	upcoming, err := j.debtRepo.ListDebtsDueWithin(ctx, today, j.lookAheadDays)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to list debts due soon, aborting tick.", slog.Any("error", err))
		return nil, fmt.Errorf("cannot run reminder job, failed to list debts due soon: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched debts due soon.", slog.Int("count", len(upcoming)), slog.Int("look_ahead_days", j.lookAheadDays))

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make([]DebtOutcome, 0, len(open))
	appendOutcome := func(o DebtOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	// First sweep refreshes every open debt and reminds the overdue ones, so
	// any pending -> overdue transition is persisted before the sweep below
	// looks at the same debts.
	for _, dp := range open {
		wg.Add(1)
		go func(dp debt.DebtWithPayments) {
			defer wg.Done()
			if o, qualified := j.processOverdueDebt(ctx, dp, today); qualified {
				appendOutcome(o)
			}
		}(dp)
	}
	wg.Wait()

	for _, dp := range upcoming {
		wg.Add(1)
		go func(dp debt.DebtWithPayments) {
			defer wg.Done()
			if o, qualified := j.processUpcomingDebt(ctx, dp, today); qualified {
				appendOutcome(o)
			}
		}(dp)
	}
	wg.Wait()

	sent, duplicates, failures := 0, 0, 0
	for _, o := range outcomes {
		switch o.Outcome {
		case OutcomeSent:
			sent++
		case OutcomeDuplicate:
			duplicates++
		default:
			failures++
		}
	}

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("open_debts", len(open)),
		slog.Int("qualifying", len(outcomes)),
		slog.Int("reminders_sent", sent),
		slog.Int("duplicates_skipped", duplicates),
		slog.Int("failures", failures),
	)
	if failures > 0 {
		summaryLog.WarnContext(ctx, "Debt reminder job finished with errors.")
	} else {
		summaryLog.InfoContext(ctx, "Debt reminder job finished successfully.")
	}

	return outcomes, nil
}

// processOverdueDebt refreshes the persisted status of one open debt, then
// reminds it if it derives as overdue. The second return value is false when
// the debt simply does not qualify.
func (j *ReminderJob) processOverdueDebt(ctx context.Context, dp debt.DebtWithPayments, today time.Time) (DebtOutcome, bool) {
	logCtx := j.logger.With(slog.Int64("debtID", dp.Debt.ID))

	// Time passing is a lifecycle trigger: let the controller persist
	// pending -> overdue (and friends) before deciding on reminders.
	if _, err := j.debtService.RefreshStatus(ctx, dp.Debt.ID, &today); err != nil {
		logCtx.ErrorContext(ctx, "Failed to refresh debt status", slog.Any("error", err))
		return DebtOutcome{DebtID: dp.Debt.ID, Outcome: OutcomeError, Err: err}, true
	}

	der := debt.Derive(dp.Debt, dp.Payments, today, j.policy)
	if der.Status != debt.StatusOverdue {
		return DebtOutcome{}, false
	}
	return j.claimAndEmit(ctx, dp, der, event.ReminderOverdue, today), true
}

// processUpcomingDebt reminds a debt the windowed query returned, unless its
// payment history already settles it. Its status was refreshed by the open
// sweep that precedes this one.
func (j *ReminderJob) processUpcomingDebt(ctx context.Context, dp debt.DebtWithPayments, today time.Time) (DebtOutcome, bool) {
	der := debt.Derive(dp.Debt, dp.Payments, today, j.policy)
	if !der.RemainingAmount.IsPositive() || der.Status.Terminal() {
		return DebtOutcome{}, false
	}
	return j.claimAndEmit(ctx, dp, der, event.ReminderUpcoming, today), true
}

func (j *ReminderJob) claimAndEmit(ctx context.Context, dp debt.DebtWithPayments, der debt.Derivation, kind event.ReminderKind, today time.Time) DebtOutcome {
	logCtx := j.logger.With(slog.Int64("debtID", dp.Debt.ID))

	created, err := j.reminderRepo.CreateIfAbsent(ctx, &reminder.Record{
		DebtID:  dp.Debt.ID,
		Date:    today,
		Channel: reminder.ChannelEmail,
		SentAt:  j.now(),
	})
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to claim reminder record", slog.Any("error", err))
		monitoring.RecordReminder(string(kind), "error")
		return DebtOutcome{DebtID: dp.Debt.ID, Kind: kind, Outcome: OutcomeError, Err: err}
	}
	if !created {
		logCtx.DebugContext(ctx, "Reminder already sent today, skipping.", slog.String("kind", string(kind)))
		monitoring.RecordReminder(string(kind), "duplicate")
		return DebtOutcome{DebtID: dp.Debt.ID, Kind: kind, Outcome: OutcomeDuplicate}
	}

	intent := event.ReminderIntent{
		DebtID:          dp.Debt.ID,
		DebtNumber:      dp.Debt.DebtNumber,
		ClientID:        dp.Debt.ClientID,
		Kind:            kind,
		DueDate:         dp.Debt.DueDate,
		RemainingAmount: der.RemainingAmount.String(),
		Timestamp:       j.now(),
	}
	if j.pub != nil {
		// The record stays even when the send fails: at-most-once delivery
		// tracking, no re-send storms on transient transport errors.
		if err := j.pub.PublishReminderIntent(ctx, intent); err != nil {
			logCtx.ErrorContext(ctx, "Failed to publish reminder intent", slog.Any("error", err))
			monitoring.RecordReminder(string(kind), "publish_failed")
			return DebtOutcome{DebtID: dp.Debt.ID, Kind: kind, Outcome: OutcomeSendError, Err: err}
		}
	}

	logCtx.InfoContext(ctx, "Reminder intent emitted.", slog.String("kind", string(kind)))
	monitoring.RecordReminder(string(kind), "sent")
	return DebtOutcome{DebtID: dp.Debt.ID, Kind: kind, Outcome: OutcomeSent}
}
