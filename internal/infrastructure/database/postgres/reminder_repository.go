package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"debt-ledger/internal/domain/reminder"
	"debt-ledger/internal/infrastructure/monitoring"
	"debt-ledger/internal/pkg/apperrors"
)

type ReminderRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ reminder.Repository = (*ReminderRepository)(nil)

func NewReminderRepository(db DBPool, logger *slog.Logger) *ReminderRepository {
	return &ReminderRepository{db: db, logger: logger.With("component", "ReminderRepository")}
}

// CreateIfAbsent claims the (debt_id, reminder_date) key with a single
// conditional insert. The primary key plus ON CONFLICT DO NOTHING makes the
// claim atomic under concurrent ticks; zero rows affected means another tick
// already holds the key.
func (r *ReminderRepository) CreateIfAbsent(ctx context.Context, rec *reminder.Record) (bool, error) {
	insertSQL := `
        INSERT INTO reminders (debt_id, reminder_date, channel, sent_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (debt_id, reminder_date) DO NOTHING`

	status := "success"
	startTime := time.Now()
	cmdTag, err := r.db.Exec(ctx, insertSQL, rec.DebtID, rec.Date, rec.Channel, rec.SentAt)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("CreateReminderIfAbsent", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert reminder record", "debt_id", rec.DebtID, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}
