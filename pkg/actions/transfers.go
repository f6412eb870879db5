package actions

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/models"
)

// Transfers wraps the /transferencias endpoints.
type Transfers struct {
	client   Doer
	notifier Notifier
	logger   *logging.Logger
}

// NewTransfers returns the transfers module over client. notifier
// receives the outcome of every submitted transfer.
func NewTransfers(client Doer, notifier Notifier) *Transfers {
	return &Transfers{
		client:   client,
		notifier: notifier,
		logger:   logging.L().Component("actions", "transfers"),
	}
}

// List returns the movement history, newest first.
func (t *Transfers) List(ctx context.Context) ([]models.Transfer, error) {
	var wire []models.TransferWire
	if _, err := t.client.Do(ctx, OpTransferList, http.MethodGet, "/transferencias", nil, &wire); err != nil {
		return nil, err
	}
	list := convertList(t.logger, OpTransferList, wire, models.TransferWire.ToModel)
	models.SortNewestFirst(list)
	return list, nil
}

// Create submits a transfer and returns the confirmed record. When the
// backend echoes a partial record the missing fields come from req.
// A success or error notification is emitted either way.
func (t *Transfers) Create(ctx context.Context, req models.TransferRequest) (*models.Transfer, error) {
	req.DestinationAccount = models.CleanAccountNumber(req.DestinationAccount)
	req.Description = strings.TrimSpace(req.Description)

	transfer, err := t.create(ctx, req)
	if err != nil {
		t.notifier.Notify(ctx, models.NotificationError, "Transfer failed", bankerr.UserMessage(err), nil)
		return nil, err
	}

	t.notifier.Notify(ctx, models.NotificationSuccess, "Transfer sent",
		fmt.Sprintf("You sent %s to account %s", formatAmount(req.Amount), req.DestinationAccount),
		&models.NotificationAction{Kind: models.ActionTransfer, Ref: transfer.ID.String()},
	)
	return transfer, nil
}

func (t *Transfers) create(ctx context.Context, req models.TransferRequest) (*models.Transfer, error) {
	var wire models.TransferWire
	result, err := t.client.Do(ctx, OpTransferCreate, http.MethodPost, "/transferencias", req, &wire)
	if err != nil {
		return nil, bankerr.Refine(err, bankerr.ErrNotFound, bankerr.ErrAccountNotFound)
	}

	if !result.HasData {
		return &models.Transfer{
			Direction:           models.DirectionSent,
			CounterpartyAccount: req.DestinationAccount,
			Amount:              req.Amount,
			Description:         req.Description,
		}, nil
	}

	if wire.Monto == nil {
		amount := models.Amount(req.Amount)
		wire.Monto = &amount
	}
	if wire.CuentaDestino == "" {
		wire.CuentaDestino = req.DestinationAccount
	}
	if wire.Descripcion == "" {
		wire.Descripcion = req.Description
	}

	transfer, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpTransferCreate, err)
	}
	return &transfer, nil
}
