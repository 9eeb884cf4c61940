package client

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClientType string

const (
	TypeIndividual ClientType = "INDIVIDUAL"
	TypeCompany    ClientType = "COMPANY"
	TypeGovernment ClientType = "GOVERNMENT"
)

func (t ClientType) Valid() bool {
	switch t {
	case TypeIndividual, TypeCompany, TypeGovernment:
		return true
	}
	return false
}

type ClientStatus string

const (
	StatusActive   ClientStatus = "ACTIVE"
	StatusInactive ClientStatus = "INACTIVE"
	StatusBlocked  ClientStatus = "BLOCKED"
)

func (s ClientStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBlocked:
		return true
	}
	return false
}

// Client is a debtor the organization tracks obligations for. TotalDebt and
// TotalPaid are never stored here; the stats aggregator derives them from the
// client's debts on demand.
type Client struct {
	ClientID         int64           `json:"clientId"`
	Name             string          `json:"name"`
	Email            string          `json:"email,omitempty"`
	Type             ClientType      `json:"type"`
	CreditLimit      decimal.Decimal `json:"creditLimit"`
	PaymentTermsDays int             `json:"paymentTermsDays"`
	Status           ClientStatus    `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func NewClient(name, email string, clientType ClientType, creditLimit decimal.Decimal, paymentTermsDays int) *Client {
	now := time.Now()
	return &Client{
		Name:             name,
		Email:            email,
		Type:             clientType,
		CreditLimit:      creditLimit,
		PaymentTermsDays: paymentTermsDays,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (c *Client) IsActive() bool {
	return c.Status == StatusActive
}

func (c *Client) SetStatus(status ClientStatus) {
	if c.Status != status {
		c.Status = status
		c.UpdatedAt = time.Now()
	}
}
