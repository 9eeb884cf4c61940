package client

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("client not found")

	ErrHasOpenDebts = errors.New("client still has open debts")
)

type ClientRepository interface {
	Save(ctx context.Context, client *Client) error

	FindByID(ctx context.Context, clientID int64) (*Client, error)

	FindAll(ctx context.Context, activeOnly bool) ([]*Client, error)

	SetStatus(ctx context.Context, clientID int64, status ClientStatus) error

	// CountOpenDebts counts the client's debts that are not in a terminal
	// state. Used to enforce the referential invariant on deletion.
	CountOpenDebts(ctx context.Context, clientID int64) (int, error)

	Delete(ctx context.Context, clientID int64) error
}
