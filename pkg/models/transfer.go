package models

import (
	"fmt"
	"sort"
	"time"
)

// Direction of a movement relative to the authenticated user.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Backend transaction types.
const (
	wireTransferSent     = "TRANSFERENCIA_ENVIADA"
	wireTransferReceived = "TRANSFERENCIA_RECIBIDA"
)

// Transfer is a single movement. Pending is true only for an optimistic entry
// the backend has not confirmed yet.
type Transfer struct {
	ID                  ID        `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Direction           Direction `json:"direction"`
	CounterpartyName    string    `json:"counterparty_name,omitempty"`
	CounterpartyAccount string    `json:"counterparty_account,omitempty"`
	Amount              float64   `json:"amount"`
	Description         string    `json:"description,omitempty"`
	Pending             bool      `json:"pending,omitempty"`
}

// TransferRequest is the payload of POST /transferencias.
type TransferRequest struct {
	DestinationAccount string  `json:"cuenta_destino"`
	Amount             float64 `json:"monto"`
	Description        string  `json:"descripcion,omitempty"`
}

// TransferWire is the backend movement shape.
type TransferWire struct {
	ID                 ID      `json:"id"`
	Fecha              string  `json:"fecha"`
	CreatedAt          string  `json:"created_at"`
	TipoTransaccion    string  `json:"tipo_transaccion"`
	Monto              *Amount `json:"monto"`
	Descripcion        string  `json:"descripcion"`
	CuentaDestino      string  `json:"cuenta_destino"`
	NumeroCuenta       string  `json:"numero_cuenta"`
	NombreDestinatario string  `json:"nombre_destinatario"`
	NombreRemitente    string  `json:"nombre_remitente"`
}

// ToModel validates and converts the wire movement.
func (w TransferWire) ToModel() (Transfer, error) {
	if w.Monto == nil {
		return Transfer{}, fmt.Errorf("transfer %s: missing monto", w.ID)
	}

	t := Transfer{
		ID:          w.ID,
		Amount:      float64(*w.Monto),
		Description: w.Descripcion,
	}

	switch w.TipoTransaccion {
	case wireTransferReceived:
		t.Direction = DirectionReceived
		t.CounterpartyName = w.NombreRemitente
		t.CounterpartyAccount = w.NumeroCuenta
	case wireTransferSent, "":
		t.Direction = DirectionSent
		t.CounterpartyName = w.NombreDestinatario
		t.CounterpartyAccount = w.CuentaDestino
	default:
		return Transfer{}, fmt.Errorf("transfer %s: unknown tipo_transaccion %q", w.ID, w.TipoTransaccion)
	}

	stamp := w.Fecha
	if stamp == "" {
		stamp = w.CreatedAt
	}
	if stamp != "" {
		ts, err := ParseTime(stamp)
		if err != nil {
			return Transfer{}, fmt.Errorf("transfer %s: %w", w.ID, err)
		}
		t.Timestamp = ts
	}

	return t, nil
}

// SortNewestFirst orders movements by timestamp, newest first.
// Entries with equal timestamps keep their relative order.
func SortNewestFirst(transfers []Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].Timestamp.After(transfers[j].Timestamp)
	})
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the backend is known to send.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
