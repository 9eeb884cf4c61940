package reminder

import (
	"context"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelPush  Channel = "PUSH"
)

// Record marks that a reminder was claimed for a debt on a calendar date.
// The (DebtID, Date) pair is the idempotency key: at most one reminder per
// debt per day, including across overlapping or restarted ticks. Records are
// never mutated.
type Record struct {
	DebtID  int64
	Date    time.Time
	Channel Channel
	SentAt  time.Time
}

type Repository interface {
	// CreateIfAbsent claims the (debtID, date) key atomically at the store
	// (insert-if-absent, not read-then-write). It returns true when this call
	// created the record and false when the key already existed.
	CreateIfAbsent(ctx context.Context, rec *Record) (bool, error)
}
