package actions

import (
	"context"
	"net/http"

	"bank-client/pkg/models"
)

// Accounts wraps GET /cuenta/info.
type Accounts struct {
	client Doer
}

// NewAccounts returns the account module over client.
func NewAccounts(client Doer) *Accounts {
	return &Accounts{client: client}
}

// Get returns the authenticated user's account snapshot.
func (a *Accounts) Get(ctx context.Context) (*models.Account, error) {
	var wire models.AccountWire
	result, err := a.client.Do(ctx, OpAccountGet, http.MethodGet, "/cuenta/info", nil, &wire)
	if err != nil {
		return nil, err
	}
	if !result.HasData {
		return nil, malformed(OpAccountGet, errNoData)
	}
	account, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpAccountGet, err)
	}
	return account, nil
}
