package actions

import (
	"context"
	"net/http"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/models"

	"github.com/google/uuid"
)

// PendingIDPrefix marks recipients created without a backend record.
const PendingIDPrefix = "pending-"

// minAccountDigits is the shortest account number the backend accepts.
const minAccountDigits = 10

// Recipients wraps the /beneficiarios endpoints.
type Recipients struct {
	client   Doer
	notifier Notifier
	logger   *logging.Logger
}

// NewRecipients returns the recipients module over client. notifier
// receives the create outcome.
func NewRecipients(client Doer, notifier Notifier) *Recipients {
	return &Recipients{
		client:   client,
		notifier: notifier,
		logger:   logging.L().Component("actions", "recipients"),
	}
}

type searchRequest struct {
	NumeroCuenta string `json:"numero_cuenta"`
}

// Search resolves an account number to its holder. Nothing is persisted.
func (r *Recipients) Search(ctx context.Context, accountNumber string) (*models.AccountMatch, error) {
	number := models.CleanAccountNumber(accountNumber)
	if len(number) < minAccountDigits || !isDigits(number) {
		return nil, invalid(OpRecipientSearch, "Enter a valid account number.")
	}

	var wire models.AccountMatchWire
	result, err := r.client.Do(ctx, OpRecipientSearch, http.MethodPost, "/beneficiarios/search", searchRequest{NumeroCuenta: number}, &wire)
	if err != nil {
		return nil, bankerr.Refine(err, bankerr.ErrNotFound, bankerr.ErrAccountNotFound)
	}
	if !result.HasData {
		return nil, bankerr.New(OpRecipientSearch, bankerr.ErrAccountNotFound, result.Message)
	}

	match, err := wire.ToModel(number)
	if err != nil {
		return nil, malformed(OpRecipientSearch, err)
	}
	return match, nil
}

// Create saves a searched account as a recipient. It is not idempotent:
// creating the same candidate twice sends two requests. When the backend
// confirms without returning the record, the recipient is built from the
// candidate under a pending- ID until the next List.
func (r *Recipients) Create(ctx context.Context, match models.AccountMatch) (*models.Recipient, error) {
	recipient, err := r.create(ctx, match)
	if err != nil {
		r.notifier.Notify(ctx, models.NotificationError, "Recipient not saved", bankerr.UserMessage(err), nil)
		return nil, err
	}

	r.notifier.Notify(ctx, models.NotificationSuccess, "Recipient saved",
		recipient.Name+" was added to your recipients",
		&models.NotificationAction{Kind: models.ActionRecipient, Ref: recipient.ID.String()},
	)
	return recipient, nil
}

func (r *Recipients) create(ctx context.Context, match models.AccountMatch) (*models.Recipient, error) {
	if match.Name == "" || match.AccountNumber == "" {
		return nil, invalid(OpRecipientCreate, "Search for the account before saving it.")
	}

	var wire models.RecipientWire
	result, err := r.client.Do(ctx, OpRecipientCreate, http.MethodPost, "/beneficiarios/add", models.NewRecipientFromMatch(match), &wire)
	if err != nil {
		return nil, err
	}

	if result.HasData && wire.ID != "" {
		if recipient, err := wire.ToModel(); err == nil {
			return &recipient, nil
		}
	}

	return &models.Recipient{
		ID:            models.ID(PendingIDPrefix + uuid.NewString()),
		Name:          match.Name,
		AccountNumber: match.AccountNumber,
		AccountType:   match.AccountType,
		Bank:          match.Bank,
	}, nil
}

// List returns the saved recipients.
func (r *Recipients) List(ctx context.Context) ([]models.Recipient, error) {
	var wire []models.RecipientWire
	if _, err := r.client.Do(ctx, OpRecipientList, http.MethodGet, "/beneficiarios/list", nil, &wire); err != nil {
		return nil, err
	}
	return convertList(r.logger, OpRecipientList, wire, models.RecipientWire.ToModel), nil
}

// Update changes the editable fields of a recipient. The returned record is
// nil when the backend does not echo it.
func (r *Recipients) Update(ctx context.Context, id models.ID, update models.RecipientUpdate) (*models.Recipient, error) {
	if id == "" || update.IsEmpty() {
		return nil, invalid(OpRecipientUpdate, "Nothing to update.")
	}

	var wire models.RecipientWire
	result, err := r.client.Do(ctx, OpRecipientUpdate, http.MethodPut, pathID("/beneficiarios/update/", id, ""), update, &wire)
	if err != nil {
		return nil, err
	}
	if !result.HasData || wire.NumeroCuenta == "" {
		return nil, nil
	}
	recipient, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpRecipientUpdate, err)
	}
	return &recipient, nil
}

// Delete removes a recipient.
func (r *Recipients) Delete(ctx context.Context, id models.ID) error {
	if id == "" {
		return invalid(OpRecipientDelete, "Recipient id is required.")
	}
	_, err := r.client.Do(ctx, OpRecipientDelete, http.MethodDelete, pathID("/beneficiarios/delete/", id, ""), nil, nil)
	return err
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
