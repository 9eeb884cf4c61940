package dto

import (
	"fmt"
	"time"

	"debt-ledger/internal/domain/debt"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type CreateDebtRequest struct {
	ClientID         int64  `json:"clientId"`
	TotalAmount      string `json:"totalAmount"`
	InterestRate     string `json:"interestRate"`
	DueDate          string `json:"dueDate"`
	PaymentTermsDays int    `json:"paymentTermsDays,omitempty"`
	Priority         string `json:"priority,omitempty"`
}

func (r *CreateDebtRequest) Validate() error {
	if r.ClientID <= 0 {
		return fmt.Errorf("clientId is required")
	}
	amount, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return fmt.Errorf("invalid totalAmount: %w", err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("totalAmount must be positive")
	}
	if r.InterestRate != "" {
		rate, err := decimal.NewFromString(r.InterestRate)
		if err != nil {
			return fmt.Errorf("invalid interestRate: %w", err)
		}
		if rate.IsNegative() {
			return fmt.Errorf("interestRate cannot be negative")
		}
	}
	if _, err := time.Parse(dateLayout, r.DueDate); err != nil {
		return fmt.Errorf("invalid dueDate, expected YYYY-MM-DD: %w", err)
	}
	if r.Priority != "" && !debt.Priority(r.Priority).Valid() {
		return fmt.Errorf("priority must be one of LOW, MEDIUM, HIGH, URGENT")
	}
	return nil
}

func (r *CreateDebtRequest) TotalAmountDecimal() decimal.Decimal {
	amount, _ := decimal.NewFromString(r.TotalAmount)
	return amount
}

func (r *CreateDebtRequest) InterestRateDecimal() decimal.Decimal {
	if r.InterestRate == "" {
		return decimal.Zero
	}
	rate, _ := decimal.NewFromString(r.InterestRate)
	return rate
}

func (r *CreateDebtRequest) DueDateTime() time.Time {
	t, _ := time.Parse(dateLayout, r.DueDate)
	return t
}

type RecordPaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentDate string `json:"paymentDate,omitempty"`
	Method      string `json:"method,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if r.PaymentDate != "" {
		if _, err := time.Parse(dateLayout, r.PaymentDate); err != nil {
			return fmt.Errorf("invalid paymentDate, expected YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

func (r *RecordPaymentRequest) AmountDecimal() decimal.Decimal {
	amount, _ := decimal.NewFromString(r.Amount)
	return amount
}

func (r *RecordPaymentRequest) PaymentDateTime() time.Time {
	if r.PaymentDate == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, r.PaymentDate)
	return t
}

type RecordAdjustmentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date,omitempty"`
	Reason string `json:"reason"`
}

func (r *RecordAdjustmentRequest) Validate() error {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsNegative() {
		return fmt.Errorf("amount must be negative for an adjustment")
	}
	if r.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	if r.Date != "" {
		if _, err := time.Parse(dateLayout, r.Date); err != nil {
			return fmt.Errorf("invalid date, expected YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

func (r *RecordAdjustmentRequest) AmountDecimal() decimal.Decimal {
	amount, _ := decimal.NewFromString(r.Amount)
	return amount
}

func (r *RecordAdjustmentRequest) DateTime() time.Time {
	if r.Date == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, r.Date)
	return t
}

type CancelDebtRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelDebtRequest) Validate() error {
	if r.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	return nil
}

type DebtResponse struct {
	ID               int64  `json:"id"`
	DebtNumber       string `json:"debtNumber"`
	ClientID         int64  `json:"clientId"`
	TotalAmount      string `json:"totalAmount"`
	InterestRate     string `json:"interestRate"`
	DueDate          string `json:"dueDate"`
	PaymentTermsDays int    `json:"paymentTermsDays"`
	Priority         string `json:"priority"`
	Status           string `json:"status"`
	CancelledReason  string `json:"cancelledReason,omitempty"`
	CancelledBy      string `json:"cancelledBy,omitempty"`
	CreatedAt        string `json:"createdAt"`
}

func NewDebtResponse(d *debt.Debt) DebtResponse {
	resp := DebtResponse{
		ID:               d.ID,
		DebtNumber:       d.DebtNumber,
		ClientID:         d.ClientID,
		TotalAmount:      d.TotalAmount.StringFixed(2),
		InterestRate:     d.InterestRate.String(),
		DueDate:          d.DueDate.Format(dateLayout),
		PaymentTermsDays: d.PaymentTermsDays,
		Priority:         string(d.Priority),
		Status:           string(d.Status),
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
	}
	if d.CancelledReason != nil {
		resp.CancelledReason = *d.CancelledReason
	}
	if d.CancelledBy != nil {
		resp.CancelledBy = *d.CancelledBy
	}
	return resp
}

type PaymentResponse struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"paymentDate"`
	Method      string `json:"method,omitempty"`
	RecordedBy  string `json:"recordedBy,omitempty"`
}

func NewPaymentResponse(p debt.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		Amount:      p.Amount.StringFixed(2),
		PaymentDate: p.PaymentDate.Format(dateLayout),
		Method:      p.Method,
		RecordedBy:  p.RecordedBy,
	}
}

type DebtViewResponse struct {
	Debt            DebtResponse `json:"debt"`
	RemainingAmount string       `json:"remainingAmount"`
	AccruedInterest string       `json:"accruedInterest"`
	TotalPaid       string       `json:"totalPaid"`
	Status          string       `json:"status"`
	DaysOverdue     int          `json:"daysOverdue"`
	AgingBucket     string       `json:"agingBucket"`
	AsOf            string       `json:"asOf"`
}

func NewDebtViewResponse(v *debt.DebtView) DebtViewResponse {
	return DebtViewResponse{
		Debt:            NewDebtResponse(v.Debt),
		RemainingAmount: v.RemainingAmount.StringFixed(2),
		AccruedInterest: v.AccruedInterest.StringFixed(2),
		TotalPaid:       v.TotalPaid.StringFixed(2),
		Status:          string(v.Status),
		DaysOverdue:     v.DaysOverdue,
		AgingBucket:     string(v.AgingBucket),
		AsOf:            v.AsOf.Format(time.RFC3339),
	}
}

type PaymentResultResponse struct {
	DebtID          int64  `json:"debtId"`
	RemainingAmount string `json:"remainingAmount"`
	Status          string `json:"status"`
}

func NewPaymentResultResponse(r *debt.PaymentResult) PaymentResultResponse {
	return PaymentResultResponse{
		DebtID:          r.DebtID,
		RemainingAmount: r.RemainingAmount.StringFixed(2),
		Status:          string(r.Status),
	}
}
