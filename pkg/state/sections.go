package state

import (
	"time"

	"bank-client/pkg/models"
)

// SessionStatus is the authentication state of the client.
type SessionStatus string

const (
	StatusChecking        SessionStatus = "checking"
	StatusAuthenticated   SessionStatus = "authenticated"
	StatusUnauthenticated SessionStatus = "unauthenticated"
)

// Domain names a section of the store.
type Domain string

const (
	DomainSession       Domain = "session"
	DomainAccount       Domain = "account"
	DomainTransfers     Domain = "transfers"
	DomainRecipients    Domain = "recipients"
	DomainCards         Domain = "cards"
	DomainNotifications Domain = "notifications"
)

// Domains lists every section.
var Domains = []Domain{
	DomainSession,
	DomainAccount,
	DomainTransfers,
	DomainRecipients,
	DomainCards,
	DomainNotifications,
}

// Sections are replaced, never mutated in place, so a published Snapshot can
// be read without locking. Controllers build new slices for every change.

type SessionState struct {
	Status  SessionStatus `json:"status"`
	User    *models.User  `json:"user,omitempty"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

type AccountState struct {
	Account *models.Account `json:"account,omitempty"`

	// PendingDebit is the sum of unconfirmed outgoing transfers.
	PendingDebit float64   `json:"pending_debit"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	Loading      bool      `json:"loading"`
	Error        string    `json:"error,omitempty"`
}

// Available is the confirmed balance minus unconfirmed outgoing transfers.
// Zero when no account has been loaded.
func (a AccountState) Available() float64 {
	if a.Account == nil {
		return 0
	}
	return a.Account.Balance - a.PendingDebit
}

type TransferState struct {
	Transfers  []models.Transfer `json:"transfers"`
	Submitting bool              `json:"submitting"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
}

// Pending returns the unconfirmed entries.
func (t TransferState) Pending() []models.Transfer {
	var out []models.Transfer
	for _, tr := range t.Transfers {
		if tr.Pending {
			out = append(out, tr)
		}
	}
	return out
}

type RecipientState struct {
	Recipients []models.Recipient `json:"recipients"`

	// Candidate is the result of the last search. It is not a saved recipient.
	Candidate *models.AccountMatch `json:"candidate,omitempty"`
	Searching bool                 `json:"searching"`
	Loading   bool                 `json:"loading"`
	Error     string               `json:"error,omitempty"`
}

type CardState struct {
	Cards    []models.Card `json:"cards"`
	Selected *models.Card  `json:"selected,omitempty"`
	Loading  bool          `json:"loading"`
	Error    string        `json:"error,omitempty"`
}

type NotificationState struct {
	Notifications []models.Notification `json:"notifications"`
	Loading       bool                  `json:"loading"`
	Error         string                `json:"error,omitempty"`
}

// UnreadCount is derived from the list on every call.
func (n NotificationState) UnreadCount() int {
	return models.CountUnread(n.Notifications)
}

// ByType returns the notifications of one severity.
func (n NotificationState) ByType(typ models.NotificationType) []models.Notification {
	var out []models.Notification
	for _, item := range n.Notifications {
		if item.Type == typ {
			out = append(out, item)
		}
	}
	return out
}

// Snapshot is an immutable view of every section.
type Snapshot struct {
	// Version increases with every published change.
	Version uint64 `json:"version"`

	// Generation increases with every login and logout.
	Generation uint64 `json:"generation"`

	Session       SessionState      `json:"session"`
	Account       AccountState      `json:"account"`
	Transfers     TransferState     `json:"transfers"`
	Recipients    RecipientState    `json:"recipients"`
	Cards         CardState         `json:"cards"`
	Notifications NotificationState `json:"notifications"`
}

// Redacted returns a copy safe to expose outside the process: card numbers
// masked and CVVs dropped.
func (s Snapshot) Redacted() Snapshot {
	if len(s.Cards.Cards) > 0 {
		cards := make([]models.Card, len(s.Cards.Cards))
		for i, c := range s.Cards.Cards {
			cards[i] = c.Redacted()
		}
		s.Cards.Cards = cards
	}
	if s.Cards.Selected != nil {
		sel := s.Cards.Selected.Redacted()
		s.Cards.Selected = &sel
	}
	return s
}

// setLoading sets the loading flag of domain.
func (s *Snapshot) setLoading(domain Domain, loading bool) {
	switch domain {
	case DomainSession:
		s.Session.Loading = loading
	case DomainAccount:
		s.Account.Loading = loading
	case DomainTransfers:
		s.Transfers.Loading = loading
	case DomainRecipients:
		s.Recipients.Loading = loading
	case DomainCards:
		s.Cards.Loading = loading
	case DomainNotifications:
		s.Notifications.Loading = loading
	}
}

// clearDomainData resets every section except the session.
func (s *Snapshot) clearDomainData() {
	s.Account = AccountState{}
	s.Transfers = TransferState{}
	s.Recipients = RecipientState{}
	s.Cards = CardState{}
	s.Notifications = NotificationState{}
}
