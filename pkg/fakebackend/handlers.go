package fakebackend

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email y contraseña son requeridos")
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Email)]
	now := s.now()
	s.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	s.writeAuth(w, http.StatusOK, u, now)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nombre   string `json:"nombre"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo inválido")
		return
	}
	if req.Nombre == "" || !strings.Contains(req.Email, "@") || len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "La contraseña debe tener al menos 6 caracteres")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[strings.ToLower(req.Email)]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "El usuario ya existe")
		return
	}
	u, _ := s.createUser(req.Nombre, req.Email, req.Password, 0)
	now := s.now()
	s.mu.Unlock()

	s.writeAuth(w, http.StatusCreated, u, now)
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.userByID(currentUserID(r))
	now := s.now()
	s.mu.Unlock()

	s.writeAuth(w, http.StatusOK, u, now)
}

// writeAuth answers with a bare {token, user} body, as the auth endpoints do.
func (s *Server) writeAuth(w http.ResponseWriter, status int, u *user, now time.Time) {
	token, err := s.signToken(u.ID, now, s.opts.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo generar el token")
		return
	}
	writeJSON(w, status, authJSON{Token: token, User: u.json()})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	a, ok := s.accounts[currentUserID(r)]
	var body accountJSON
	if ok {
		body = a.json()
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Cuenta no encontrada")
		return
	}
	s.respond(w, http.StatusOK, body)
}

func (s *Server) handleTransferCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CuentaDestino string  `json:"cuenta_destino"`
		Monto         float64 `json:"monto"`
		Descripcion   string  `json:"descripcion"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo inválido")
		return
	}
	if req.Monto <= 0 {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a 0")
		return
	}

	userID := currentUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.accounts[userID]
	to := s.accountByNumber(req.CuentaDestino)
	switch {
	case from == nil:
		writeError(w, http.StatusNotFound, "Cuenta no encontrada")
		return
	case to == nil:
		writeError(w, http.StatusNotFound, "Cuenta destino no existe")
		return
	case to.ID == from.ID:
		writeError(w, http.StatusBadRequest, "No puedes transferir a tu propia cuenta")
		return
	case from.Balance < req.Monto:
		writeError(w, http.StatusBadRequest, "Saldo insuficiente")
		return
	}

	from.Balance -= req.Monto
	to.Balance += req.Monto

	m := movement{
		ID:          s.id(),
		FromUser:    from.UserID,
		ToUser:      to.UserID,
		FromNumber:  from.Number,
		ToNumber:    to.Number,
		Amount:      req.Monto,
		Description: req.Descripcion,
		At:          s.now(),
	}
	s.movements = append(s.movements, m)

	sender := s.userByID(from.UserID)
	s.notify(to.UserID, "info", "Transferencia recibida",
		fmt.Sprintf("Recibiste $%.2f de %s", req.Monto, sender.Name), false)

	s.respond(w, http.StatusCreated, s.movementJSON(m, userID))
}

func (s *Server) handleTransferList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	s.mu.Lock()
	list := make([]movementJSON, 0)
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if m.FromUser == userID || m.ToUser == userID {
			list = append(list, s.movementJSON(m, userID))
		}
	}
	s.mu.Unlock()

	s.respond(w, http.StatusOK, list)
}

// movementJSON renders m from the point of view of userID. Caller holds mu.
func (s *Server) movementJSON(m movement, userID int) movementJSON {
	out := movementJSON{
		ID:          m.ID,
		Fecha:       m.At.Format(time.RFC3339Nano),
		Monto:       m.Amount,
		Descripcion: m.Description,
		CreatedAt:   m.At.Format(time.RFC3339Nano),
	}
	if m.FromUser == userID {
		out.TipoTransaccion = "TRANSFERENCIA_ENVIADA"
		out.CuentaDestino = m.ToNumber
		if u := s.userByID(m.ToUser); u != nil {
			out.NombreDestinatario = u.Name
		}
	} else {
		out.TipoTransaccion = "TRANSFERENCIA_RECIBIDA"
		out.NumeroCuenta = m.FromNumber
		if u := s.userByID(m.FromUser); u != nil {
			out.NombreRemitente = u.Name
		}
	}
	return out
}

func (s *Server) handleRecipientSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NumeroCuenta string `json:"numero_cuenta"`
	}
	if err := decodeBody(r, &req); err != nil || req.NumeroCuenta == "" {
		writeError(w, http.StatusBadRequest, "Número de cuenta requerido")
		return
	}

	s.mu.Lock()
	a := s.accountByNumber(req.NumeroCuenta)
	var body map[string]interface{}
	if a != nil {
		u := s.userByID(a.UserID)
		body = map[string]interface{}{
			"nombre":        u.Name,
			"tipo_cuenta":   a.Type,
			"numero_cuenta": a.Number,
			"usuario_id":    u.ID,
		}
	}
	s.mu.Unlock()

	if body == nil {
		writeError(w, http.StatusNotFound, "Cuenta no encontrada")
		return
	}
	s.respond(w, http.StatusOK, body)
}

func (s *Server) handleRecipientAdd(w http.ResponseWriter, r *http.Request) {
	var req recipientJSON
	if err := decodeBody(r, &req); err != nil || req.NumeroCuenta == "" || req.Nombre == "" {
		writeError(w, http.StatusBadRequest, "Datos del beneficiario incompletos")
		return
	}

	s.mu.Lock()
	rec := recipient{
		ID:          s.id(),
		UserID:      currentUserID(r),
		Name:        req.Nombre,
		Number:      req.NumeroCuenta,
		AccountType: req.TipoCuenta,
		Bank:        req.BancoDestino,
	}
	s.recipients = append(s.recipients, rec)
	s.mu.Unlock()

	if s.opts.OmitRecipientRecord {
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"message": "Beneficiario agregado",
		})
		return
	}
	s.respond(w, http.StatusCreated, rec.json())
}

func (s *Server) handleRecipientList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	s.mu.Lock()
	list := make([]recipientJSON, 0)
	for _, rec := range s.recipients {
		if rec.UserID == userID {
			list = append(list, rec.json())
		}
	}
	s.mu.Unlock()

	s.respond(w, http.StatusOK, list)
}

func (s *Server) handleRecipientUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r)
	if !ok {
		return
	}
	var req struct {
		Nombre       *string `json:"nombre"`
		NumeroCuenta *string `json:"numero_cuenta"`
		TipoCuenta   *string `json:"tipo_cuenta"`
		BancoDestino *string `json:"banco_destino"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo inválido")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recipients {
		rec := &s.recipients[i]
		if rec.ID != id || rec.UserID != currentUserID(r) {
			continue
		}
		if req.Nombre != nil {
			rec.Name = *req.Nombre
		}
		if req.NumeroCuenta != nil {
			rec.Number = *req.NumeroCuenta
		}
		if req.TipoCuenta != nil {
			rec.AccountType = *req.TipoCuenta
		}
		if req.BancoDestino != nil {
			rec.Bank = *req.BancoDestino
		}
		s.respond(w, http.StatusOK, rec.json())
		return
	}
	writeError(w, http.StatusNotFound, "Beneficiario no encontrado")
}

func (s *Server) handleRecipientDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.recipients {
		if rec.ID == id && rec.UserID == currentUserID(r) {
			s.recipients = append(s.recipients[:i], s.recipients[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Beneficiario eliminado"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Beneficiario no encontrado")
}

func (s *Server) handleCardList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	s.mu.Lock()
	list := make([]cardJSON, 0)
	for _, c := range s.cards {
		if c.UserID == userID {
			list = append(list, c.json())
		}
	}
	s.mu.Unlock()

	s.respond(w, http.StatusOK, list)
}

func (s *Server) handleCardGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cards {
		if c.ID == id && c.UserID == currentUserID(r) {
			s.respond(w, http.StatusOK, c.json())
			return
		}
	}
	writeError(w, http.StatusNotFound, "Tarjeta no encontrada")
}

func (s *Server) handleNotificationList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	s.mu.Lock()
	var own []notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			own = append(own, n)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(own, func(i, j int) bool { return own[i].At.After(own[j].At) })
	list := make([]notificationJSON, 0, len(own))
	for _, n := range own {
		list = append(list, n.json())
	}
	s.respond(w, http.StatusOK, list)
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID == id && n.UserID == currentUserID(r) {
			n.Read = true
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notificación no encontrada")
}

func pathInt(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Identificador inválido")
		return 0, false
	}
	return id, true
}
