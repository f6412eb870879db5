package state

import (
	"context"
	"math"
	"time"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const opTransferCreate = "transfers.create"

// minDestinationDigits is the shortest destination account accepted locally.
const minDestinationDigits = 10

// PendingTransferPrefix marks the ID of an optimistic transfer.
const PendingTransferPrefix = "pending-"

// TransferController owns the transfers section and the pending debit of the
// account section.
type TransferController struct {
	section
	api      TransferAPI
	accounts *AccountController
	max      float64
	now      func() time.Time
}

// TransferOption configures a TransferController.
type TransferOption func(*TransferController)

// WithMaxTransferAmount rejects transfers above max locally. Zero disables the check.
func WithMaxTransferAmount(max float64) TransferOption {
	return func(c *TransferController) {
		c.max = max
	}
}

// NewTransferController returns a transfer controller. accounts is refreshed
// after every confirmed transfer.
func NewTransferController(store *Store, api TransferAPI, accounts *AccountController, opts ...TransferOption) *TransferController {
	c := &TransferController{
		section:  newSection(store, DomainTransfers),
		api:      api,
		accounts: accounts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh fetches the movement history. Unconfirmed entries stay at the head.
func (c *TransferController) Refresh(ctx context.Context, scope *Scope) error {
	ticket := c.store.Begin(DomainTransfers, scope)

	list, err := c.api.List(ctx)
	if err != nil {
		msg := c.failure(ctx, "transfers.list", err)
		c.store.Complete(ticket, func(s *Snapshot) {
			s.Transfers.Error = msg
		})
		return err
	}

	c.store.Complete(ticket, func(s *Snapshot) {
		next := s.Transfers.Pending()
		next = append(next, list...)
		s.Transfers.Transfers = next
		s.Transfers.Error = ""
	})
	return nil
}

// Send validates the transfer against the last known state, shows it as
// pending, and submits it. On success the confirmed record replaces the
// pending entry and the account is refetched once.
func (c *TransferController) Send(ctx context.Context, destination string, amount float64, description string) (*models.Transfer, error) {
	req := models.TransferRequest{
		DestinationAccount: models.CleanAccountNumber(destination),
		Amount:             amount,
		Description:        description,
	}

	pending := models.Transfer{
		ID:                  models.ID(PendingTransferPrefix + uuid.NewString()),
		Timestamp:           c.now(),
		Direction:           models.DirectionSent,
		CounterpartyAccount: req.DestinationAccount,
		Amount:              amount,
		Description:         description,
		Pending:             true,
	}

	var gen uint64
	err := c.store.UpdateIf(func(s *Snapshot) error {
		if err := c.validate(*s, req); err != nil {
			return err
		}
		gen = s.Generation
		s.Transfers.Transfers = prependTransfer(s.Transfers.Transfers, pending)
		s.Transfers.Submitting = true
		s.Transfers.Error = ""
		s.Account.PendingDebit += amount
		return nil
	})
	if err != nil {
		c.logger.Info("Transfer rejected locally", zap.String("category", bankerr.Classify(err)))
		c.store.Update(func(s *Snapshot) {
			s.Transfers.Error = bankerr.UserMessage(err)
		})
		return nil, err
	}

	ctx = WithGeneration(ctx, gen)
	confirmed, err := c.api.Create(ctx, req)
	if err != nil {
		msg := c.failure(ctx, opTransferCreate, err)
		c.store.UpdateInGeneration(gen, func(s *Snapshot) {
			s.Transfers.Transfers = removeTransfer(s.Transfers.Transfers, pending.ID)
			s.Transfers.Submitting = len(s.Transfers.Pending()) > 0
			s.Transfers.Error = msg
			s.Account.PendingDebit = settle(s.Account.PendingDebit, amount)
		})
		return nil, err
	}

	record := *confirmed
	if record.ID == "" {
		record.ID = pending.ID
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = pending.Timestamp
	}
	record.Pending = false

	if !c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		list := removeTransfer(s.Transfers.Transfers, pending.ID)
		list = removeTransfer(list, record.ID)
		s.Transfers.Transfers = prependTransfer(list, record)
		s.Transfers.Submitting = len(s.Transfers.Pending()) > 0
		s.Account.PendingDebit = settle(s.Account.PendingDebit, amount)
	}) {
		return &record, nil
	}

	c.logger.Info("Transfer confirmed", zap.String("id", record.ID.String()))
	if c.accounts != nil {
		if err := c.accounts.Refresh(ctx, nil); err != nil {
			c.logger.Warn("Account refresh after transfer failed", zap.Error(err))
		}
	}
	return &record, nil
}

// validate checks the transfer against the snapshot. It runs under the store
// lock so concurrent sends see each other's pending debit. The balance is
// checked before the per-transfer limit, so an amount over both reports
// insufficient funds.
func (c *TransferController) validate(s Snapshot, req models.TransferRequest) error {
	if s.Session.Status != StatusAuthenticated {
		return bankerr.New(opTransferCreate, bankerr.ErrNotAuthenticated, "")
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return bankerr.New(opTransferCreate, bankerr.ErrValidation, "Enter an amount greater than zero.")
	}
	if req.DestinationAccount == "" {
		return bankerr.New(opTransferCreate, bankerr.ErrValidation, "Enter the destination account.")
	}
	if len(req.DestinationAccount) < minDestinationDigits {
		return bankerr.New(opTransferCreate, bankerr.ErrValidation, "The destination account number is too short.")
	}

	account := s.Account.Account
	if account == nil {
		return bankerr.New(opTransferCreate, bankerr.ErrValidation, "Your balance has not been loaded yet.")
	}
	if req.DestinationAccount == models.CleanAccountNumber(account.Number) {
		return bankerr.New(opTransferCreate, bankerr.ErrValidation, "You cannot transfer to your own account.")
	}
	if req.Amount > s.Account.Available() {
		return bankerr.New(opTransferCreate, bankerr.ErrInsufficientFunds, "")
	}
	if c.max > 0 && req.Amount > c.max {
		return bankerr.New(opTransferCreate, bankerr.ErrValidation, "The amount exceeds the per-transfer limit.")
	}
	return nil
}

// settle lowers the pending debit, absorbing float rounding.
func settle(debit, amount float64) float64 {
	debit -= amount
	if debit < 1e-9 {
		return 0
	}
	return debit
}

func prependTransfer(list []models.Transfer, t models.Transfer) []models.Transfer {
	out := make([]models.Transfer, 0, len(list)+1)
	out = append(out, t)
	return append(out, list...)
}

func removeTransfer(list []models.Transfer, id models.ID) []models.Transfer {
	out := make([]models.Transfer, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
