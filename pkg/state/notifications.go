package state

import (
	"context"
	"time"

	"bank-client/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationController owns the notifications section. It also receives
// the local notifications generated by actions.
type NotificationController struct {
	section
	api        NotificationAPI
	dispatcher Dispatcher
	now        func() time.Time
}

// NewNotificationController returns a notification controller. dispatcher
// may be nil.
func NewNotificationController(store *Store, api NotificationAPI, dispatcher Dispatcher) *NotificationController {
	return &NotificationController{
		section:    newSection(store, DomainNotifications),
		api:        api,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// AddLocal records a client-only notification at the head of the list and
// hands it to the dispatcher. It is never sent to the backend.
func (c *NotificationController) AddLocal(typ models.NotificationType, title, message string, action *models.NotificationAction) models.Notification {
	n := c.newLocal(typ, title, message, action)
	c.store.Update(func(s *Snapshot) {
		prependNotification(s, n)
	})
	c.dispatch(n)
	return n
}

// Notify is AddLocal for a notification reporting on a request. When ctx
// carries a session generation the notification is dropped if that session
// has ended, so a late response never reaches the next user's list.
func (c *NotificationController) Notify(ctx context.Context, typ models.NotificationType, title, message string, action *models.NotificationAction) {
	gen, ok := GenerationFrom(ctx)
	if !ok {
		c.AddLocal(typ, title, message, action)
		return
	}

	n := c.newLocal(typ, title, message, action)
	if !c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		prependNotification(s, n)
	}) {
		c.logger.Debug("Dropping notification of an ended session", zap.String("title", title))
		return
	}
	c.dispatch(n)
}

func (c *NotificationController) newLocal(typ models.NotificationType, title, message string, action *models.NotificationAction) models.Notification {
	if !typ.Valid() {
		typ = models.NotificationInfo
	}
	return models.Notification{
		ID:        models.ID(models.LocalIDPrefix + uuid.NewString()),
		Type:      typ,
		Title:     title,
		Message:   message,
		Timestamp: c.now(),
		Source:    models.SourceLocal,
		Action:    action,
	}
}

func (c *NotificationController) dispatch(n models.Notification) {
	if c.dispatcher != nil && !c.dispatcher.Dispatch(n) {
		c.logger.Debug("Notification not dispatched", zap.String("id", n.ID.String()))
	}
}

func prependNotification(s *Snapshot, n models.Notification) {
	next := make([]models.Notification, 0, len(s.Notifications.Notifications)+1)
	next = append(next, n)
	s.Notifications.Notifications = append(next, s.Notifications.Notifications...)
}

// Sync replaces every remote notification with the backend list. Local
// notifications are kept. The result is ordered newest first.
func (c *NotificationController) Sync(ctx context.Context, scope *Scope) error {
	ticket := c.store.Begin(DomainNotifications, scope)

	remote, err := c.api.List(ctx)
	if err != nil {
		msg := c.failure(ctx, "notifications.list", err)
		c.store.Complete(ticket, func(s *Snapshot) {
			s.Notifications.Error = msg
		})
		return err
	}

	c.store.Complete(ticket, func(s *Snapshot) {
		next := make([]models.Notification, 0, len(s.Notifications.Notifications)+len(remote))
		for _, n := range s.Notifications.Notifications {
			if n.Source == models.SourceLocal {
				next = append(next, n)
			}
		}
		next = append(next, remote...)
		models.SortNotificationsNewestFirst(next)
		s.Notifications.Notifications = next
		s.Notifications.Error = ""
	})
	return nil
}

// MarkRead marks one notification read locally.
func (c *NotificationController) MarkRead(id models.ID) {
	c.store.Update(func(s *Snapshot) {
		s.Notifications.Notifications = mapNotifications(s.Notifications.Notifications, func(n models.Notification) models.Notification {
			if n.ID == id {
				n.Read = true
			}
			return n
		})
	})
}

// MarkReadRemote marks a backend notification read on the backend, then
// locally. Local notifications skip the call.
func (c *NotificationController) MarkReadRemote(ctx context.Context, id models.ID) error {
	if models.IsLocalID(id) {
		c.MarkRead(id)
		return nil
	}

	gen := c.store.Generation()
	if err := c.api.MarkRead(ctx, id); err != nil {
		msg := c.failure(ctx, "notifications.mark_read", err)
		c.store.UpdateInGeneration(gen, func(s *Snapshot) {
			s.Notifications.Error = msg
		})
		return err
	}

	c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		s.Notifications.Notifications = mapNotifications(s.Notifications.Notifications, func(n models.Notification) models.Notification {
			if n.ID == id {
				n.Read = true
			}
			return n
		})
	})
	return nil
}

// MarkAllRead marks every notification read locally.
func (c *NotificationController) MarkAllRead() {
	c.store.Update(func(s *Snapshot) {
		s.Notifications.Notifications = mapNotifications(s.Notifications.Notifications, func(n models.Notification) models.Notification {
			n.Read = true
			return n
		})
	})
}

// Delete removes one notification locally.
func (c *NotificationController) Delete(id models.ID) {
	c.store.Update(func(s *Snapshot) {
		next := make([]models.Notification, 0, len(s.Notifications.Notifications))
		for _, n := range s.Notifications.Notifications {
			if n.ID != id {
				next = append(next, n)
			}
		}
		s.Notifications.Notifications = next
	})
}

// Clear removes every notification locally.
func (c *NotificationController) Clear() {
	c.store.Update(func(s *Snapshot) {
		s.Notifications.Notifications = nil
	})
}

// UnreadCount returns the number of unread notifications.
func (c *NotificationController) UnreadCount() int {
	return c.store.Snapshot().Notifications.UnreadCount()
}

// ByType returns the notifications of one severity.
func (c *NotificationController) ByType(typ models.NotificationType) []models.Notification {
	return c.store.Snapshot().Notifications.ByType(typ)
}

func mapNotifications(list []models.Notification, fn func(models.Notification) models.Notification) []models.Notification {
	if len(list) == 0 {
		return list
	}
	out := make([]models.Notification, len(list))
	for i, n := range list {
		out[i] = fn(n)
	}
	return out
}
