package state

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AccountController owns the account section.
type AccountController struct {
	section
	api AccountAPI
	now func() time.Time
}

// NewAccountController returns an account controller.
func NewAccountController(store *Store, api AccountAPI) *AccountController {
	return &AccountController{
		section: newSection(store, DomainAccount),
		api:     api,
		now:     time.Now,
	}
}

// Refresh fetches the account. A failure keeps the previous account and
// sets the section error.
func (c *AccountController) Refresh(ctx context.Context, scope *Scope) error {
	ticket := c.store.Begin(DomainAccount, scope)

	account, err := c.api.Get(ctx)
	if err != nil {
		msg := c.failure(ctx, "account.get", err)
		c.store.Complete(ticket, func(s *Snapshot) {
			s.Account.Error = msg
		})
		return err
	}

	applied := c.store.Complete(ticket, func(s *Snapshot) {
		s.Account.Account = account
		s.Account.Error = ""
		s.Account.UpdatedAt = c.now()
	})
	if applied {
		c.logger.Debug("Account refreshed", zap.String("account", account.Number))
	}
	return nil
}
