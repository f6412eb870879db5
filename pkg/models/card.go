package models

import (
	"fmt"
	"strings"
)

// CardType distinguishes debit from credit cards.
type CardType string

const (
	CardDebit  CardType = "debit"
	CardCredit CardType = "credit"
)

// Card is a payment card. Number and CVV are kept as received; render them
// through Masked and never log them.
type Card struct {
	ID      ID       `json:"id"`
	Number  string   `json:"number"`
	Holder  string   `json:"holder"`
	CVV     string   `json:"-"`
	Expiry  string   `json:"expiry"`
	Type    CardType `json:"type"`
	Brand   string   `json:"brand,omitempty"`
	Balance float64  `json:"balance"`
}

// Masked renders the card number with only the last four digits visible.
func (c Card) Masked() string {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
	if len(digits) <= 4 {
		return digits
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// Redacted returns a copy safe to expose outside the process.
func (c Card) Redacted() Card {
	c.Number = c.Masked()
	c.CVV = ""
	return c
}

// CardWire is the backend card shape.
type CardWire struct {
	ID               ID      `json:"id"`
	NumeroTarjeta    string  `json:"numero_tarjeta"`
	FechaVencimiento string  `json:"fecha_vencimiento"`
	CVV              string  `json:"cvv"`
	NombreTitular    string  `json:"nombre_titular"`
	TipoTarjeta      string  `json:"tipo_tarjeta"`
	MarcaTarjeta     string  `json:"marca_tarjeta"`
	SaldoActual      *Amount `json:"saldo_actual"`
}

// ToModel validates and converts the wire card.
func (w CardWire) ToModel() (Card, error) {
	if w.NumeroTarjeta == "" {
		return Card{}, fmt.Errorf("card %s: missing numero_tarjeta", w.ID)
	}

	var typ CardType
	switch strings.ToUpper(w.TipoTarjeta) {
	case "DEBITO", "DEBIT", "":
		typ = CardDebit
	case "CREDITO", "CREDIT":
		typ = CardCredit
	default:
		return Card{}, fmt.Errorf("card %s: unknown tipo_tarjeta %q", w.ID, w.TipoTarjeta)
	}

	c := Card{
		ID:     w.ID,
		Number: w.NumeroTarjeta,
		Holder: w.NombreTitular,
		CVV:    w.CVV,
		Expiry: w.FechaVencimiento,
		Type:   typ,
		Brand:  w.MarcaTarjeta,
	}
	if w.SaldoActual != nil {
		c.Balance = float64(*w.SaldoActual)
	}
	return c, nil
}
