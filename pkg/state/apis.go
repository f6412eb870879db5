package state

import (
	"context"

	"bank-client/pkg/models"
)

// The controllers depend on these subsets of the actions package so tests
// can substitute hand-written fakes.

type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Register(ctx context.Context, name, email, password string) (*models.Session, error)
	CheckStatus(ctx context.Context) (*models.Session, error)
}

type AccountAPI interface {
	Get(ctx context.Context) (*models.Account, error)
}

type TransferAPI interface {
	List(ctx context.Context) ([]models.Transfer, error)
	Create(ctx context.Context, req models.TransferRequest) (*models.Transfer, error)
}

type RecipientAPI interface {
	Search(ctx context.Context, accountNumber string) (*models.AccountMatch, error)
	Create(ctx context.Context, match models.AccountMatch) (*models.Recipient, error)
	List(ctx context.Context) ([]models.Recipient, error)
	Update(ctx context.Context, id models.ID, update models.RecipientUpdate) (*models.Recipient, error)
	Delete(ctx context.Context, id models.ID) error
}

type CardAPI interface {
	List(ctx context.Context) ([]models.Card, error)
	Get(ctx context.Context, id models.ID) (*models.Card, error)
}

type NotificationAPI interface {
	List(ctx context.Context) ([]models.Notification, error)
	MarkRead(ctx context.Context, id models.ID) error
}

// Dispatcher delivers local notifications outside the process.
// Dispatch must not block.
type Dispatcher interface {
	Dispatch(n models.Notification) bool
}
