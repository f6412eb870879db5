package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NotificationType is the severity shown to the user.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Valid reports whether t is one of the known severities.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSuccess, NotificationError, NotificationWarning, NotificationInfo:
		return true
	}
	return false
}

// NotificationSource tells client-generated entries from backend ones.
type NotificationSource string

const (
	SourceLocal  NotificationSource = "local"
	SourceRemote NotificationSource = "remote"
)

// LocalIDPrefix marks IDs generated on the client.
const LocalIDPrefix = "local-"

// IsLocalID reports whether id was generated on the client.
func IsLocalID(id ID) bool {
	return strings.HasPrefix(string(id), LocalIDPrefix)
}

// Action kinds attached to notifications.
const (
	ActionTransfer  = "transferencia"
	ActionLogin     = "login"
	ActionRegister  = "register"
	ActionRecipient = "destinatario"
)

// NotificationAction links a notification to the entity that caused it.
type NotificationAction struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref,omitempty"`
}

// Notification is a user-visible message, either generated locally or synced.
type Notification struct {
	ID        ID                  `json:"id"`
	Type      NotificationType    `json:"type"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	Read      bool                `json:"read"`
	Source    NotificationSource  `json:"source"`
	Action    *NotificationAction `json:"action,omitempty"`
}

// NotificationWire is the backend notification shape. Spanish and English
// field names are both accepted.
type NotificationWire struct {
	ID        ID     `json:"id"`
	Tipo      string `json:"tipo"`
	Type      string `json:"type"`
	Titulo    string `json:"titulo"`
	Title     string `json:"title"`
	Mensaje   string `json:"mensaje"`
	Message   string `json:"message"`
	Leida     *bool  `json:"leida"`
	Read      *bool  `json:"read"`
	Fecha     string `json:"fecha"`
	CreatedAt string `json:"created_at"`
	Timestamp string `json:"timestamp"`
}

// ToModel validates and converts the wire notification.
func (w NotificationWire) ToModel() (Notification, error) {
	if w.ID == "" {
		return Notification{}, fmt.Errorf("notification: missing id")
	}

	typ := NotificationType(strings.ToLower(firstNonEmpty(w.Tipo, w.Type)))
	if typ == "" {
		typ = NotificationInfo
	}
	if !typ.Valid() {
		return Notification{}, fmt.Errorf("notification %s: unknown type %q", w.ID, typ)
	}

	n := Notification{
		ID:      w.ID,
		Type:    typ,
		Title:   firstNonEmpty(w.Titulo, w.Title),
		Message: firstNonEmpty(w.Mensaje, w.Message),
		Source:  SourceRemote,
	}
	switch {
	case w.Leida != nil:
		n.Read = *w.Leida
	case w.Read != nil:
		n.Read = *w.Read
	}

	if stamp := firstNonEmpty(w.Fecha, w.CreatedAt, w.Timestamp); stamp != "" {
		ts, err := ParseTime(stamp)
		if err != nil {
			return Notification{}, fmt.Errorf("notification %s: %w", w.ID, err)
		}
		n.Timestamp = ts
	}
	return n, nil
}

// SortNotificationsNewestFirst orders notifications by timestamp, newest first.
func SortNotificationsNewestFirst(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}

// CountUnread returns the number of entries not yet read.
func CountUnread(list []Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
