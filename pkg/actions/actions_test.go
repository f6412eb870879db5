package actions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"bank-client/pkg/apiclient"
	"bank-client/pkg/bankerr"
	"bank-client/pkg/fakebackend"
	"bank-client/pkg/models"
	"bank-client/pkg/tokenstore"
)

type recordingNotifier struct {
	mu    sync.Mutex
	added []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, typ models.NotificationType, title, message string, action *models.NotificationAction) {
	n := models.Notification{Type: typ, Title: title, Message: message, Action: action, Source: models.SourceLocal}
	r.mu.Lock()
	r.added = append(r.added, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) last() models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.added) == 0 {
		return models.Notification{}
	}
	return r.added[len(r.added)-1]
}

type fixture struct {
	backend  *fakebackend.Server
	store    *tokenstore.MemoryStore
	actions  *Actions
	notifier *recordingNotifier
	ana      fakebackend.UserFixture
	juan     fakebackend.UserFixture
}

func setup(t *testing.T, opts fakebackend.Options) *fixture {
	t.Helper()
	backend := fakebackend.New(opts)
	server := httptest.NewServer(http.StripPrefix("/api", backend))
	t.Cleanup(server.Close)

	store := tokenstore.NewMemoryStore()
	client, err := apiclient.New(apiclient.DefaultConfig(server.URL+"/api"), store)
	if err != nil {
		t.Fatalf("apiclient.New failed: %v", err)
	}

	notifier := &recordingNotifier{}
	return &fixture{
		backend:  backend,
		store:    store,
		actions:  New(client, notifier),
		notifier: notifier,
		ana:      backend.AddUser("Ana", "user@bank.test", "Passw0rd", 10000),
		juan:     backend.AddUser("Juan Pérez", "juan@bank.test", "Passw0rd", 0),
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	session, err := f.actions.Auth.Login(ctx, "user@bank.test", "Passw0rd")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	tokenstore.SetToken(ctx, f.store, session.Token)
}

func TestAuth_Login(t *testing.T) {
	f := setup(t, fakebackend.Options{})

	session, err := f.actions.Auth.Login(context.Background(), "user@bank.test", "Passw0rd")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.User.Name != "Ana" || session.Token == "" {
		t.Errorf("Unexpected session: %+v", session)
	}
	if f.store.Len() != 0 {
		t.Error("Login action must not persist the token")
	}
}

func TestAuth_LoginInvalidCredentials(t *testing.T) {
	f := setup(t, fakebackend.Options{})

	_, err := f.actions.Auth.Login(context.Background(), "user@bank.test", "wrong")
	if !IsInvalidCredentials(err) {
		t.Fatalf("Expected invalid credentials, got %v", err)
	}
	if got := bankerr.UserMessage(err); got != "Invalid email or password." {
		t.Errorf("Unexpected user message %q", got)
	}
}

func TestAuth_LoginRequiresFields(t *testing.T) {
	f := setup(t, fakebackend.Options{})

	_, err := f.actions.Auth.Login(context.Background(), "", "x")
	if !errors.Is(err, bankerr.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if f.backend.Calls(fakebackend.RouteLogin) != 0 {
		t.Error("Expected no backend call")
	}
}

func TestAuth_Register(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	ctx := context.Background()

	session, err := f.actions.Auth.Register(ctx, "Luis", "  Luis@Bank.TEST ", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if session.User.Email != "luis@bank.test" {
		t.Errorf("Expected lowercased email, got %q", session.User.Email)
	}

	_, err = f.actions.Auth.Register(ctx, "Luis", "luis@bank.test", "secret1")
	if !errors.Is(err, bankerr.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate, got %v", err)
	}

	_, err = f.actions.Auth.Register(ctx, "Eva", "eva@bank.test", "123")
	if !errors.Is(err, bankerr.ErrValidation) {
		t.Errorf("Expected ErrValidation for short password, got %v", err)
	}
}

func TestAuth_CheckStatus(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	ctx := context.Background()

	if _, err := f.actions.Auth.CheckStatus(ctx); !bankerr.IsUnauthorized(err) {
		t.Errorf("Expected unauthorized without token, got %v", err)
	}

	f.login(t)
	session, err := f.actions.Auth.CheckStatus(ctx)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if session.User.Email != "user@bank.test" {
		t.Errorf("Unexpected user %+v", session.User)
	}
}

func TestAccounts_Get(t *testing.T) {
	for _, bare := range []bool{false, true} {
		f := setup(t, fakebackend.Options{BareResponses: bare})
		f.login(t)

		account, err := f.actions.Accounts.Get(context.Background())
		if err != nil {
			t.Fatalf("Get failed (bare=%v): %v", bare, err)
		}
		if account.Balance != 10000 || account.Number != f.ana.AccountNumber {
			t.Errorf("Unexpected account (bare=%v): %+v", bare, account)
		}
	}
}

func TestTransfers_CreateAndList(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	f.login(t)
	ctx := context.Background()

	transfer, err := f.actions.Transfers.Create(ctx, models.TransferRequest{
		DestinationAccount: f.juan.AccountNumber,
		Amount:             250,
		Description:        "almuerzo",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if transfer.Pending || transfer.Amount != 250 || transfer.CounterpartyName != "Juan Pérez" {
		t.Errorf("Unexpected transfer: %+v", transfer)
	}
	if n := f.notifier.last(); n.Type != models.NotificationSuccess || n.Action == nil || n.Action.Kind != models.ActionTransfer {
		t.Errorf("Expected success notification, got %+v", n)
	}

	list, err := f.actions.Transfers.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != transfer.ID {
		t.Errorf("Expected the created transfer listed, got %+v", list)
	}
}

func TestTransfers_CreateFailures(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	f.login(t)
	ctx := context.Background()

	_, err := f.actions.Transfers.Create(ctx, models.TransferRequest{DestinationAccount: "9999999999", Amount: 5})
	if !errors.Is(err, bankerr.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
	if n := f.notifier.last(); n.Type != models.NotificationError {
		t.Errorf("Expected error notification, got %+v", n)
	}

	_, err = f.actions.Transfers.Create(ctx, models.TransferRequest{DestinationAccount: f.juan.AccountNumber, Amount: 20000})
	if !errors.Is(err, bankerr.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if !strings.Contains(f.notifier.last().Message, "Insufficient") {
		t.Errorf("Expected insufficient funds message, got %q", f.notifier.last().Message)
	}
}

func TestRecipients_SearchAndCreate(t *testing.T) {
	f := setup(t, fakebackend.Options{OmitRecipientRecord: true})
	f.login(t)
	ctx := context.Background()

	dashed := f.juan.AccountNumber[:4] + "-" + f.juan.AccountNumber[4:8] + "-" + f.juan.AccountNumber[8:12] + "-" + f.juan.AccountNumber[12:]
	match, err := f.actions.Recipients.Search(ctx, dashed)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if match.Name != "Juan Pérez" || match.Bank != models.DefaultBank {
		t.Errorf("Unexpected match: %+v", match)
	}
	if f.backend.RecipientCount("user@bank.test") != 0 {
		t.Error("Search must not persist anything")
	}

	recipient, err := f.actions.Recipients.Create(ctx, *match)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(recipient.ID.String(), PendingIDPrefix) {
		t.Errorf("Expected pending id, got %q", recipient.ID)
	}
	if recipient.Name != "Juan Pérez" {
		t.Errorf("Expected recipient named Juan Pérez, got %q", recipient.Name)
	}

	list, err := f.actions.Recipients.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || strings.HasPrefix(list[0].ID.String(), PendingIDPrefix) {
		t.Errorf("Expected one confirmed recipient, got %+v", list)
	}
}

func TestRecipients_SearchNotFound(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	f.login(t)

	_, err := f.actions.Recipients.Search(context.Background(), "1234567890")
	if !errors.Is(err, bankerr.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}

	_, err = f.actions.Recipients.Search(context.Background(), "12-34")
	if !errors.Is(err, bankerr.ErrValidation) {
		t.Errorf("Expected ErrValidation for short number, got %v", err)
	}
}

func TestRecipients_UpdateAndDelete(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	f.login(t)
	ctx := context.Background()

	match, _ := f.actions.Recipients.Search(ctx, f.juan.AccountNumber)
	created, err := f.actions.Recipients.Create(ctx, *match)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	name := "Juanito"
	updated, err := f.actions.Recipients.Update(ctx, created.ID, models.RecipientUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated == nil || updated.Name != "Juanito" {
		t.Errorf("Expected updated record, got %+v", updated)
	}

	if err := f.actions.Recipients.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := f.actions.Recipients.Delete(ctx, created.ID); !errors.Is(err, bankerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCards(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	id := f.backend.AddCard("user@bank.test", "4111111111111234", "DEBITO", "VISA", 500)
	f.login(t)
	ctx := context.Background()

	cards, err := f.actions.Cards.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cards) != 1 || cards[0].Masked() != "**** **** **** 1234" {
		t.Errorf("Unexpected cards: %+v", cards)
	}

	card, err := f.actions.Cards.Get(ctx, models.ID(strconv.Itoa(id)))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if card.Type != models.CardDebit {
		t.Errorf("Expected debit card, got %s", card.Type)
	}

	if _, err := f.actions.Cards.Get(ctx, "99999"); !errors.Is(err, bankerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	f := setup(t, fakebackend.Options{})
	f.backend.AddNotification("user@bank.test", "info", "Bienvenida", "Hola Ana", true)
	id := f.backend.AddNotification("user@bank.test", "success", "Bono", "Recibiste un bono", false)
	f.login(t)
	ctx := context.Background()

	list, err := f.actions.Notifications.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || models.CountUnread(list) != 1 {
		t.Fatalf("Expected 2 notifications with 1 unread, got %+v", list)
	}

	if err := f.actions.Notifications.MarkRead(ctx, models.ID(strconv.Itoa(id))); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	list, _ = f.actions.Notifications.List(ctx)
	if models.CountUnread(list) != 0 {
		t.Errorf("Expected all read after MarkRead, got %+v", list)
	}
}
