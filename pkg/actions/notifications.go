package actions

import (
	"context"
	"net/http"

	"bank-client/pkg/logging"
	"bank-client/pkg/models"
)

// Notifications wraps the /notificaciones endpoints.
type Notifications struct {
	client Doer
	logger *logging.Logger
}

// NewNotifications returns the notifications module over client.
func NewNotifications(client Doer) *Notifications {
	return &Notifications{client: client, logger: logging.L().Component("actions", "notifications")}
}

// List returns the backend-persisted notifications, newest first.
func (n *Notifications) List(ctx context.Context) ([]models.Notification, error) {
	var wire []models.NotificationWire
	if _, err := n.client.Do(ctx, OpNotificationList, http.MethodGet, "/notificaciones", nil, &wire); err != nil {
		return nil, err
	}
	list := convertList(n.logger, OpNotificationList, wire, models.NotificationWire.ToModel)
	models.SortNotificationsNewestFirst(list)
	return list, nil
}

// MarkRead marks a backend notification as read.
func (n *Notifications) MarkRead(ctx context.Context, id models.ID) error {
	if id == "" {
		return invalid(OpNotificationRead, "Notification id is required.")
	}
	_, err := n.client.Do(ctx, OpNotificationRead, http.MethodPatch, pathID("/notificaciones/", id, "/leer"), nil, nil)
	return err
}
