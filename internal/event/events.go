package event

import (
	"context"
	"time"
)

type ReminderKind string

const (
	ReminderUpcoming ReminderKind = "upcoming"
	ReminderOverdue  ReminderKind = "overdue"
)

// DebtStatusChangedEvent is emitted only on actual persisted transitions, so
// consumers never see refresh noise.
type DebtStatusChangedEvent struct {
	DebtID     int64     `json:"debtId"`
	DebtNumber string    `json:"debtNumber"`
	ClientID   int64     `json:"clientId"`
	OldStatus  string    `json:"oldStatus"`
	NewStatus  string    `json:"newStatus"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReminderIntent instructs the external notification collaborator to remind
// about one debt. Amounts travel as strings to keep decimal precision across
// the wire.
type ReminderIntent struct {
	DebtID          int64        `json:"debtId"`
	DebtNumber      string       `json:"debtNumber"`
	ClientID        int64        `json:"clientId"`
	Kind            ReminderKind `json:"kind"`
	DueDate         time.Time    `json:"dueDate"`
	RemainingAmount string       `json:"remainingAmount"`
	Timestamp       time.Time    `json:"timestamp"`
}

type EventPublisher interface {
	PublishDebtStatusChanged(ctx context.Context, event DebtStatusChangedEvent) error
	PublishReminderIntent(ctx context.Context, intent ReminderIntent) error
}
