package models

import (
	"fmt"
	"strings"
)

// User is the authenticated identity.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is a bearer token plus the identity it belongs to.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserWire is the backend user shape. The backend uses "nombre"; some
// endpoints answer with "name".
type UserWire struct {
	ID     ID     `json:"id"`
	Nombre string `json:"nombre"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// ToModel converts the wire user.
func (w UserWire) ToModel() User {
	name := w.Nombre
	if name == "" {
		name = w.Name
	}
	return User{ID: w.ID, Name: name, Email: w.Email}
}

// AuthResponseWire is the body of login, register and check-status.
type AuthResponseWire struct {
	Token string    `json:"token"`
	User  *UserWire `json:"user"`
}

// ToModel validates and converts an auth response. A response without a token
// or without a user id cannot start a session.
func (w AuthResponseWire) ToModel() (*Session, error) {
	if strings.TrimSpace(w.Token) == "" {
		return nil, fmt.Errorf("auth response: missing token")
	}
	if w.User == nil || w.User.ID == "" {
		return nil, fmt.Errorf("auth response: missing user id")
	}
	return &Session{Token: w.Token, User: w.User.ToModel()}, nil
}
