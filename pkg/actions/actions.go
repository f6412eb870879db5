// Package actions wraps the backend REST endpoints, one type per domain.
// Every method returns strict models or an error wrapping a bankerr category.
package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"bank-client/pkg/apiclient"
	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/models"

	"go.uber.org/zap"
)

// Operation names, used as metrics endpoint labels and in errors.
const (
	OpLogin            = "auth.login"
	OpRegister         = "auth.register"
	OpCheckStatus      = "auth.check_status"
	OpAccountGet       = "account.get"
	OpTransferCreate   = "transfers.create"
	OpTransferList     = "transfers.list"
	OpRecipientSearch  = "recipients.search"
	OpRecipientCreate  = "recipients.create"
	OpRecipientList    = "recipients.list"
	OpRecipientUpdate  = "recipients.update"
	OpRecipientDelete  = "recipients.delete"
	OpCardList         = "cards.list"
	OpCardGet          = "cards.get"
	OpNotificationList = "notifications.list"
	OpNotificationRead = "notifications.mark_read"
)

// Doer is the subset of apiclient.Client the actions use.
type Doer interface {
	Do(ctx context.Context, op, method, path string, body, out any) (apiclient.Result, error)
}

// Notifier receives the client-only notifications actions generate on
// success or failure of user-initiated writes. ctx is the context of the
// request the notification reports on.
type Notifier interface {
	Notify(ctx context.Context, typ models.NotificationType, title, message string, action *models.NotificationAction)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.NotificationType, string, string, *models.NotificationAction) {}

// Actions groups the domain modules over one client.
type Actions struct {
	Auth          *Auth
	Accounts      *Accounts
	Transfers     *Transfers
	Recipients    *Recipients
	Cards         *Cards
	Notifications *Notifications
}

// New builds every domain module over client. notifier may be nil.
func New(client Doer, notifier Notifier) *Actions {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Actions{
		Auth:          NewAuth(client),
		Accounts:      NewAccounts(client),
		Transfers:     NewTransfers(client, notifier),
		Recipients:    NewRecipients(client, notifier),
		Cards:         NewCards(client),
		Notifications: NewNotifications(client),
	}
}

var errNoData = errors.New("response carries no data")

func malformed(op string, err error) error {
	return bankerr.New(op, bankerr.ErrMalformedResponse, err.Error())
}

func invalid(op, message string) error {
	return bankerr.New(op, bankerr.ErrValidation, message)
}

func pathID(prefix string, id models.ID, suffix string) string {
	return prefix + url.PathEscape(string(id)) + suffix
}

// convertList maps wire entries to models, dropping entries with an
// unexpected shape.
func convertList[W any, M any](logger *logging.Logger, op string, wire []W, convert func(W) (M, error)) []M {
	out := make([]M, 0, len(wire))
	for i, w := range wire {
		m, err := convert(w)
		if err != nil {
			logger.Warn("dropping malformed entry",
				zap.String("op", op),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, m)
	}
	return out
}

func formatAmount(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
