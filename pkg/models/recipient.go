package models

import (
	"fmt"
	"strings"
)

// DefaultBank labels accounts the backend returns without a bank name.
const DefaultBank = "Banco Riku"

// Recipient is a saved destination account.
type Recipient struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type,omitempty"`
	Bank          string `json:"bank,omitempty"`
}

// AccountMatch is the identity the backend resolved for a searched account number.
// Nothing is persisted until it is turned into a Recipient.
type AccountMatch struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type,omitempty"`
	Bank          string `json:"bank,omitempty"`
	UserID        ID     `json:"user_id,omitempty"`
}

// RecipientUpdate holds the editable recipient fields. Nil fields are left unchanged.
type RecipientUpdate struct {
	Name          *string `json:"nombre,omitempty"`
	AccountNumber *string `json:"numero_cuenta,omitempty"`
	AccountType   *string `json:"tipo_cuenta,omitempty"`
	Bank          *string `json:"banco_destino,omitempty"`
}

// Apply returns r with the non-nil fields of u applied.
func (u RecipientUpdate) Apply(r Recipient) Recipient {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.AccountNumber != nil {
		r.AccountNumber = *u.AccountNumber
	}
	if u.AccountType != nil {
		r.AccountType = *u.AccountType
	}
	if u.Bank != nil {
		r.Bank = *u.Bank
	}
	return r
}

// IsEmpty reports whether no field is set.
func (u RecipientUpdate) IsEmpty() bool {
	return u.Name == nil && u.AccountNumber == nil && u.AccountType == nil && u.Bank == nil
}

// RecipientWire is the backend beneficiary shape.
type RecipientWire struct {
	ID           ID     `json:"id"`
	Nombre       string `json:"nombre"`
	NumeroCuenta string `json:"numero_cuenta"`
	TipoCuenta   string `json:"tipo_cuenta"`
	BancoDestino string `json:"banco_destino"`
	NombreCuenta string `json:"nombre_cuenta"`
}

// ToModel validates and converts the wire beneficiary.
func (w RecipientWire) ToModel() (Recipient, error) {
	if w.NumeroCuenta == "" {
		return Recipient{}, fmt.Errorf("recipient %s: missing numero_cuenta", w.ID)
	}
	name := w.Nombre
	if name == "" {
		name = w.NombreCuenta
	}
	return Recipient{
		ID:            w.ID,
		Name:          name,
		AccountNumber: w.NumeroCuenta,
		AccountType:   w.TipoCuenta,
		Bank:          w.BancoDestino,
	}, nil
}

// NewRecipientWire is the payload of POST /beneficiarios/add.
type NewRecipientWire struct {
	Nombre       string `json:"nombre"`
	NumeroCuenta string `json:"numero_cuenta"`
	TipoCuenta   string `json:"tipo_cuenta"`
	BancoDestino string `json:"banco_destino"`
	NombreCuenta string `json:"nombre_cuenta"`
}

// NewRecipientFromMatch builds the creation payload from a confirmed search result.
func NewRecipientFromMatch(m AccountMatch) NewRecipientWire {
	return NewRecipientWire{
		Nombre:       m.Name,
		NumeroCuenta: m.AccountNumber,
		TipoCuenta:   m.AccountType,
		BancoDestino: m.Bank,
		NombreCuenta: m.Name,
	}
}

// AccountMatchWire is the data of POST /beneficiarios/search.
type AccountMatchWire struct {
	Nombre       string `json:"nombre"`
	TipoCuenta   string `json:"tipo_cuenta"`
	Banco        string `json:"banco"`
	NumeroCuenta string `json:"numero_cuenta"`
	UsuarioID    ID     `json:"usuario_id"`
}

// ToModel validates and converts the search result. The searched number is
// used when the backend does not echo it back.
func (w AccountMatchWire) ToModel(searched string) (*AccountMatch, error) {
	if w.Nombre == "" {
		return nil, fmt.Errorf("account search: missing nombre")
	}
	number := w.NumeroCuenta
	if number == "" {
		number = searched
	}
	bank := w.Banco
	if bank == "" {
		bank = DefaultBank
	}
	return &AccountMatch{
		Name:          w.Nombre,
		AccountNumber: number,
		AccountType:   w.TipoCuenta,
		Bank:          bank,
		UserID:        w.UsuarioID,
	}, nil
}

// CleanAccountNumber strips the spaces and dashes users type between digit groups.
func CleanAccountNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(strings.TrimSpace(s))
}
