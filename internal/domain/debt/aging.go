package debt

import (
	"time"

	"github.com/shopspring/decimal"
)

type AgingBucket string

const (
	BucketCurrent AgingBucket = "CURRENT"
	Bucket1To30   AgingBucket = "1-30"
	Bucket31To60  AgingBucket = "31-60"
	Bucket61To90  AgingBucket = "61-90"
	BucketOver90  AgingBucket = "OVER_90"
)

func BucketFor(daysOverdue int) AgingBucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

type InterestBasis string

const (
	// BasisOutstanding accrues interest on the principal net of payments.
	BasisOutstanding InterestBasis = "outstanding"
	// BasisPrincipal accrues interest on the full original amount.
	BasisPrincipal InterestBasis = "principal"
)

// InterestPolicy is deliberately configurable: the product has not settled
// whether interest accrues on the outstanding principal or on the original
// amount, nor the rounding rule.
type InterestPolicy struct {
	Basis         InterestBasis
	RoundingScale int32
}

func DefaultInterestPolicy() InterestPolicy {
	return InterestPolicy{Basis: BasisOutstanding, RoundingScale: 2}
}

func NewInterestPolicy(basis string, roundingScale int32) InterestPolicy {
	p := DefaultInterestPolicy()
	if InterestBasis(basis) == BasisPrincipal {
		p.Basis = BasisPrincipal
	}
	if roundingScale >= 0 {
		p.RoundingScale = roundingScale
	}
	return p
}

// Derivation is the computed view of a debt at a point in time. The
// conservation invariant always holds:
//
//	RemainingAmount + TotalPaid == TotalAmount + AccruedInterest
//
// (before the non-negativity clamp on RemainingAmount).
type Derivation struct {
	RemainingAmount decimal.Decimal
	AccruedInterest decimal.Decimal
	TotalPaid       decimal.Decimal
	Status          DebtStatus
	DaysOverdue     int
	AgingBucket     AgingBucket
}

// Derive computes the balance, accrued interest, lifecycle status and aging
// bucket of a debt from its payment history at asOf. It is a pure function:
// no clock reads, no side effects, safe for concurrent use.
func Derive(d *Debt, payments []Payment, asOf time.Time, policy InterestPolicy) Derivation {
	totalPaid := sumPayments(payments, asOf)

	// Terminal statuses are frozen: interest stops, nothing ages.
	if d.Status.Terminal() {
		remaining := decimal.Zero
		if d.Status == StatusCancelled {
			remaining = d.TotalAmount.Sub(totalPaid)
			if remaining.IsNegative() {
				remaining = decimal.Zero
			}
		}
		return Derivation{
			RemainingAmount: remaining,
			AccruedInterest: decimal.Zero,
			TotalPaid:       totalPaid,
			Status:          d.Status,
			DaysOverdue:     0,
			AgingBucket:     BucketCurrent,
		}
	}

	principalOutstanding := d.TotalAmount.Sub(totalPaid)
	if principalOutstanding.IsNegative() {
		principalOutstanding = decimal.Zero
	}

	interest := accruedInterest(d, principalOutstanding, asOf, policy)

	remaining := d.TotalAmount.Add(interest).Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	daysOverdue := 0
	if remaining.IsPositive() {
		daysOverdue = wholeDaysSince(d.DueDate, asOf)
	}

	var status DebtStatus
	switch {
	case remaining.IsZero():
		status = StatusPaid
	case daysOverdue > 0:
		status = StatusOverdue
	case totalPaid.IsPositive():
		status = StatusPartial
	default:
		status = StatusPending
	}

	return Derivation{
		RemainingAmount: remaining,
		AccruedInterest: interest,
		TotalPaid:       totalPaid,
		Status:          status,
		DaysOverdue:     daysOverdue,
		AgingBucket:     BucketFor(daysOverdue),
	}
}

func sumPayments(payments []Payment, asOf time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.PaymentDate.After(asOf) {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

// accruedInterest applies simple monthly interest for each whole calendar
// month elapsed since the due date. Nothing accrues before the due date or on
// a zero rate.
func accruedInterest(d *Debt, principalOutstanding decimal.Decimal, asOf time.Time, policy InterestPolicy) decimal.Decimal {
	if !d.InterestRate.IsPositive() {
		return decimal.Zero
	}
	months := wholeMonthsSince(d.DueDate, asOf)
	if months <= 0 {
		return decimal.Zero
	}

	base := principalOutstanding
	if policy.Basis == BasisPrincipal {
		base = d.TotalAmount
	}
	if !base.IsPositive() {
		return decimal.Zero
	}

	hundred := decimal.NewFromInt(100)
	return base.Mul(d.InterestRate).Div(hundred).
		Mul(decimal.NewFromInt(int64(months))).
		Round(policy.RoundingScale)
}

// wholeDaysSince counts complete calendar days from 'from' to 'to', never
// negative. Times of day are ignored.
func wholeDaysSince(from, to time.Time) int {
	f := civilDate(from)
	t := civilDate(to)
	days := int(t.Sub(f).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// wholeMonthsSince counts complete calendar months from 'from' to 'to',
// floored: 2024-01-01 → 2024-03-01 is 2 months, 2024-01-31 → 2024-02-28 is 0.
func wholeMonthsSince(from, to time.Time) int {
	f := civilDate(from)
	t := civilDate(to)
	if t.Before(f) {
		return 0
	}
	months := (t.Year()-f.Year())*12 + int(t.Month()) - int(f.Month())
	if t.Day() < f.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
