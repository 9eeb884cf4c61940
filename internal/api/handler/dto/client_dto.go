package dto

import (
	"fmt"

	"debt-ledger/internal/domain/client"

	"github.com/shopspring/decimal"
)

type CreateClientRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Type             string `json:"type"`
	CreditLimit      string `json:"creditLimit"`
	PaymentTermsDays int    `json:"paymentTermsDays"`
}

func (r *CreateClientRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !client.ClientType(r.Type).Valid() {
		return fmt.Errorf("type must be one of INDIVIDUAL, COMPANY, GOVERNMENT")
	}
	if r.CreditLimit != "" {
		limit, err := decimal.NewFromString(r.CreditLimit)
		if err != nil {
			return fmt.Errorf("invalid creditLimit: %w", err)
		}
		if limit.IsNegative() {
			return fmt.Errorf("creditLimit cannot be negative")
		}
	}
	if r.PaymentTermsDays <= 0 {
		return fmt.Errorf("paymentTermsDays must be positive")
	}
	return nil
}

func (r *CreateClientRequest) CreditLimitDecimal() decimal.Decimal {
	if r.CreditLimit == "" {
		return decimal.Zero
	}
	limit, _ := decimal.NewFromString(r.CreditLimit)
	return limit
}

type UpdateClientStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateClientStatusRequest) Validate() error {
	if !client.ClientStatus(r.Status).Valid() {
		return fmt.Errorf("status must be one of ACTIVE, INACTIVE, BLOCKED")
	}
	return nil
}

type ClientResponse struct {
	ClientID         int64  `json:"clientId"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Type             string `json:"type"`
	CreditLimit      string `json:"creditLimit"`
	PaymentTermsDays int    `json:"paymentTermsDays"`
	Status           string `json:"status"`
}

func NewClientResponse(c *client.Client) ClientResponse {
	return ClientResponse{
		ClientID:         c.ClientID,
		Name:             c.Name,
		Email:            c.Email,
		Type:             string(c.Type),
		CreditLimit:      c.CreditLimit.StringFixed(2),
		PaymentTermsDays: c.PaymentTermsDays,
		Status:           string(c.Status),
	}
}
