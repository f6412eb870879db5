package models

import "fmt"

// Account is the balance snapshot of the authenticated user's account.
type Account struct {
	ID      ID      `json:"id"`
	Number  string  `json:"number"`
	Balance float64 `json:"balance"`
	Type    string  `json:"type"`
	UserID  ID      `json:"user_id,omitempty"`
}

// AccountWire is the backend account shape (GET /cuenta/info).
type AccountWire struct {
	ID           ID      `json:"id"`
	NumeroCuenta string  `json:"numero_cuenta"`
	Saldo        *Amount `json:"saldo"`
	TipoCuenta   string  `json:"tipo_cuenta"`
	UsuarioID    ID      `json:"usuario_id"`
}

// ToModel validates and converts the wire account.
func (w AccountWire) ToModel() (*Account, error) {
	if w.NumeroCuenta == "" {
		return nil, fmt.Errorf("account: missing numero_cuenta")
	}
	if w.Saldo == nil {
		return nil, fmt.Errorf("account: missing saldo")
	}
	return &Account{
		ID:      w.ID,
		Number:  w.NumeroCuenta,
		Balance: float64(*w.Saldo),
		Type:    w.TipoCuenta,
		UserID:  w.UsuarioID,
	}, nil
}
