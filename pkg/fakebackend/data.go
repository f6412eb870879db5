package fakebackend

import "time"

type user struct {
	ID       int
	Name     string
	Email    string
	Password string
}

type account struct {
	ID      int
	UserID  int
	Number  string
	Balance float64
	Type    string
}

type movement struct {
	ID          int
	FromUser    int
	ToUser      int
	FromNumber  string
	ToNumber    string
	Amount      float64
	Description string
	At          time.Time
}

type recipient struct {
	ID          int
	UserID      int
	Name        string
	Number      string
	AccountType string
	Bank        string
}

type card struct {
	ID      int
	UserID  int
	Number  string
	Expiry  string
	CVV     string
	Holder  string
	Type    string
	Brand   string
	Balance float64
	Created time.Time
}

type notification struct {
	ID      int
	UserID  int
	Type    string
	Title   string
	Message string
	Read    bool
	At      time.Time
}

// Wire shapes, matching the production backend field names.

type userJSON struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type authJSON struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

type accountJSON struct {
	ID           int     `json:"id"`
	NumeroCuenta string  `json:"numero_cuenta"`
	Saldo        float64 `json:"saldo"`
	TipoCuenta   string  `json:"tipo_cuenta"`
	UsuarioID    int     `json:"usuario_id"`
}

type movementJSON struct {
	ID                 int     `json:"id"`
	Fecha              string  `json:"fecha"`
	TipoTransaccion    string  `json:"tipo_transaccion"`
	Monto              float64 `json:"monto"`
	Descripcion        string  `json:"descripcion,omitempty"`
	CuentaDestino      string  `json:"cuenta_destino,omitempty"`
	NumeroCuenta       string  `json:"numero_cuenta,omitempty"`
	NombreDestinatario string  `json:"nombre_destinatario,omitempty"`
	NombreRemitente    string  `json:"nombre_remitente,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

type recipientJSON struct {
	ID           int    `json:"id"`
	Nombre       string `json:"nombre"`
	NumeroCuenta string `json:"numero_cuenta"`
	TipoCuenta   string `json:"tipo_cuenta"`
	BancoDestino string `json:"banco_destino"`
	NombreCuenta string `json:"nombre_cuenta"`
}

type cardJSON struct {
	ID               int     `json:"id"`
	NumeroTarjeta    string  `json:"numero_tarjeta"`
	FechaVencimiento string  `json:"fecha_vencimiento"`
	CVV              string  `json:"cvv"`
	NombreTitular    string  `json:"nombre_titular"`
	TipoTarjeta      string  `json:"tipo_tarjeta"`
	MarcaTarjeta     string  `json:"marca_tarjeta"`
	SaldoActual      float64 `json:"saldo_actual"`
	CreatedAt        string  `json:"created_at"`
}

type notificationJSON struct {
	ID      int    `json:"id"`
	Tipo    string `json:"tipo"`
	Titulo  string `json:"titulo"`
	Mensaje string `json:"mensaje"`
	Leida   bool   `json:"leida"`
	Fecha   string `json:"fecha"`
}

func (u user) json() userJSON {
	return userJSON{ID: u.ID, Nombre: u.Name, Name: u.Name, Email: u.Email}
}

func (a account) json() accountJSON {
	return accountJSON{ID: a.ID, NumeroCuenta: a.Number, Saldo: a.Balance, TipoCuenta: a.Type, UsuarioID: a.UserID}
}

func (r recipient) json() recipientJSON {
	return recipientJSON{
		ID:           r.ID,
		Nombre:       r.Name,
		NumeroCuenta: r.Number,
		TipoCuenta:   r.AccountType,
		BancoDestino: r.Bank,
		NombreCuenta: r.Name,
	}
}

func (c card) json() cardJSON {
	return cardJSON{
		ID:               c.ID,
		NumeroTarjeta:    c.Number,
		FechaVencimiento: c.Expiry,
		CVV:              c.CVV,
		NombreTitular:    c.Holder,
		TipoTarjeta:      c.Type,
		MarcaTarjeta:     c.Brand,
		SaldoActual:      c.Balance,
		CreatedAt:        c.Created.Format(time.RFC3339),
	}
}

func (n notification) json() notificationJSON {
	return notificationJSON{
		ID:      n.ID,
		Tipo:    n.Type,
		Titulo:  n.Title,
		Mensaje: n.Message,
		Leida:   n.Read,
		Fecha:   n.At.Format(time.RFC3339Nano),
	}
}
