package fakebackend

import (
	"fmt"
	"strings"
)

// UserFixture describes a seeded user.
type UserFixture struct {
	ID            int
	Name          string
	Email         string
	AccountNumber string
}

// AddUser registers a user with a savings account holding balance.
func (s *Server) AddUser(name, email, password string, balance float64) UserFixture {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, a := s.createUser(name, email, password, balance)
	return UserFixture{ID: u.ID, Name: u.Name, Email: u.Email, AccountNumber: a.Number}
}

// AddCard gives the user registered under email a card.
func (s *Server) AddCard(email, number, cardType, brand string, balance float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[strings.ToLower(email)]
	if u == nil {
		return 0
	}
	c := card{
		ID:      s.id(),
		UserID:  u.ID,
		Number:  number,
		Expiry:  "12/29",
		CVV:     "123",
		Holder:  u.Name,
		Type:    cardType,
		Brand:   brand,
		Balance: balance,
		Created: s.now(),
	}
	s.cards = append(s.cards, c)
	return c.ID
}

// AddNotification stores a backend notification for the user registered under email.
func (s *Server) AddNotification(email, typ, title, message string, read bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[strings.ToLower(email)]
	if u == nil {
		return 0
	}
	return s.notify(u.ID, typ, title, message, read)
}

// Balance returns the balance of the account numbered number.
func (s *Server) Balance(number string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accountByNumber(number); a != nil {
		return a.Balance
	}
	return 0
}

// RecipientCount returns how many recipients the user registered under email has.
func (s *Server) RecipientCount(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[strings.ToLower(email)]
	if u == nil {
		return 0
	}
	n := 0
	for _, r := range s.recipients {
		if r.UserID == u.ID {
			n++
		}
	}
	return n
}

// Caller holds mu for every helper below.

func (s *Server) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) createUser(name, email, password string, balance float64) (*user, *account) {
	u := &user{ID: s.id(), Name: name, Email: strings.ToLower(email), Password: password}
	s.users[u.Email] = u

	a := &account{
		ID:      s.id(),
		UserID:  u.ID,
		Number:  fmt.Sprintf("6185%012d", u.ID),
		Balance: balance,
		Type:    "AHORROS",
	}
	s.accounts[u.ID] = a
	return u, a
}

func (s *Server) userByID(id int) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Server) accountByNumber(number string) *account {
	for _, a := range s.accounts {
		if a.Number == number {
			return a
		}
	}
	return nil
}

func (s *Server) notify(userID int, typ, title, message string, read bool) int {
	n := notification{
		ID:      s.id(),
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Read:    read,
		At:      s.now(),
	}
	s.notifications = append(s.notifications, n)
	return n.ID
}
