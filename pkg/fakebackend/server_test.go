package fakebackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, s *Server, email, password string) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected login 200, got %d: %s", w.Code, w.Body.String())
	}
	var body authJSON
	json.NewDecoder(w.Body).Decode(&body)
	return body.Token
}

func TestServer_LoginAndAccount(t *testing.T) {
	s := New(Options{})
	ana := s.AddUser("Ana", "user@bank.test", "Passw0rd", 10000)

	if w := do(t, s, http.MethodPost, "/auth/login", "", `{"email":"user@bank.test","password":"nope"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad password, got %d", w.Code)
	}

	token := login(t, s, "user@bank.test", "Passw0rd")

	if w := do(t, s, http.MethodGet, "/cuenta/info", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	w := do(t, s, http.MethodGet, "/cuenta/info", token, "")
	var body struct {
		Success bool        `json:"success"`
		Data    accountJSON `json:"data"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if !body.Success || body.Data.NumeroCuenta != ana.AccountNumber || body.Data.Saldo != 10000 {
		t.Errorf("Unexpected account body: %+v", body)
	}
	if s.Calls(RouteAccount) != 2 {
		t.Errorf("Expected 2 account calls, got %d", s.Calls(RouteAccount))
	}
}

func TestServer_Transfer(t *testing.T) {
	s := New(Options{})
	ana := s.AddUser("Ana", "ana@bank.test", "pw", 1000)
	juan := s.AddUser("Juan Pérez", "juan@bank.test", "pw", 0)
	token := login(t, s, "ana@bank.test", "pw")

	w := do(t, s, http.MethodPost, "/transferencias", token, `{"cuenta_destino":"`+juan.AccountNumber+`","monto":5000}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Saldo insuficiente") {
		t.Errorf("Expected insufficient funds, got %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodPost, "/transferencias", token, `{"cuenta_destino":"0000000000","monto":5}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown destination, got %d", w.Code)
	}

	w = do(t, s, http.MethodPost, "/transferencias", token, `{"cuenta_destino":"`+juan.AccountNumber+`","monto":250}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d %s", w.Code, w.Body.String())
	}
	if s.Balance(ana.AccountNumber) != 750 || s.Balance(juan.AccountNumber) != 250 {
		t.Errorf("Unexpected balances %v / %v", s.Balance(ana.AccountNumber), s.Balance(juan.AccountNumber))
	}

	juanToken := login(t, s, "juan@bank.test", "pw")
	w = do(t, s, http.MethodGet, "/transferencias", juanToken, "")
	if !strings.Contains(w.Body.String(), "TRANSFERENCIA_RECIBIDA") || !strings.Contains(w.Body.String(), `"nombre_remitente":"Ana"`) {
		t.Errorf("Expected received movement for Juan, got %s", w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/notificaciones", juanToken, "")
	if !strings.Contains(w.Body.String(), "Transferencia recibida") {
		t.Errorf("Expected notification for Juan, got %s", w.Body.String())
	}
}

func TestServer_FailNextAndBare(t *testing.T) {
	s := New(Options{BareResponses: true})
	s.AddUser("Ana", "ana@bank.test", "pw", 1)
	token := login(t, s, "ana@bank.test", "pw")

	s.FailNext(RouteAccount, http.StatusInternalServerError, "boom")
	if w := do(t, s, http.MethodGet, "/cuenta/info", token, ""); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected injected 500, got %d", w.Code)
	}

	w := do(t, s, http.MethodGet, "/cuenta/info", token, "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "success") {
		t.Errorf("Expected bare 200 body, got %d %s", w.Code, w.Body.String())
	}
}

func TestServer_ExpiredToken(t *testing.T) {
	s := New(Options{})
	s.AddUser("Ana", "ana@bank.test", "pw", 1)

	token, err := s.IssueToken("ana@bank.test", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if w := do(t, s, http.MethodGet, "/auth/check-status", token, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired token, got %d", w.Code)
	}
}

func TestServer_Recipients(t *testing.T) {
	s := New(Options{OmitRecipientRecord: true})
	s.AddUser("Ana", "ana@bank.test", "pw", 1)
	juan := s.AddUser("Juan Pérez", "juan@bank.test", "pw", 0)
	token := login(t, s, "ana@bank.test", "pw")

	w := do(t, s, http.MethodPost, "/beneficiarios/search", token, `{"numero_cuenta":"`+juan.AccountNumber+`"}`)
	if !strings.Contains(w.Body.String(), "Juan Pérez") {
		t.Fatalf("Expected Juan in search result, got %s", w.Body.String())
	}

	w = do(t, s, http.MethodPost, "/beneficiarios/add", token, `{"nombre":"Juan Pérez","numero_cuenta":"`+juan.AccountNumber+`"}`)
	if w.Code != http.StatusCreated || strings.Contains(w.Body.String(), "data") {
		t.Errorf("Expected record-less 201, got %d %s", w.Code, w.Body.String())
	}
	if s.RecipientCount("ana@bank.test") != 1 {
		t.Errorf("Expected one recipient, got %d", s.RecipientCount("ana@bank.test"))
	}
}
