package state

import (
	"errors"
	"testing"

	"bank-client/pkg/metrics/memory"
	"bank-client/pkg/models"
)

func TestStore_InitialState(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()
	if snap.Session.Status != StatusChecking {
		t.Errorf("Expected status checking, got %s", snap.Session.Status)
	}
	if snap.Account.Account != nil || len(snap.Transfers.Transfers) != 0 {
		t.Errorf("Expected empty sections, got %+v", snap)
	}
}

func TestStore_CompleteAppliesInOrder(t *testing.T) {
	s := NewStore()
	ticket := s.Begin(DomainAccount, nil)
	if !s.Snapshot().Account.Loading {
		t.Error("Expected account section to be loading")
	}

	applied := s.Complete(ticket, func(snap *Snapshot) {
		snap.Account.Account = &models.Account{Number: "1", Balance: 10}
	})
	if !applied {
		t.Fatal("Expected response to be applied")
	}
	snap := s.Snapshot()
	if snap.Account.Loading {
		t.Error("Expected loading to be cleared")
	}
	if snap.Account.Account == nil || snap.Account.Account.Balance != 10 {
		t.Errorf("Expected balance 10, got %+v", snap.Account.Account)
	}
}

func TestStore_DiscardsOlderResponse(t *testing.T) {
	collector := memory.NewMemoryCollector()
	s := NewStore(WithMetrics(collector))

	older := s.Begin(DomainAccount, nil)
	newer := s.Begin(DomainAccount, nil)

	s.Complete(newer, func(snap *Snapshot) {
		snap.Account.Account = &models.Account{Balance: 2}
	})
	if s.Snapshot().Account.Loading != true {
		t.Error("Expected loading while the older request is in flight")
	}

	applied := s.Complete(older, func(snap *Snapshot) {
		snap.Account.Account = &models.Account{Balance: 1}
	})
	if applied {
		t.Error("Expected older response to be discarded")
	}
	if got := s.Snapshot().Account.Account.Balance; got != 2 {
		t.Errorf("Expected newer balance 2, got %v", got)
	}
	if s.Snapshot().Account.Loading {
		t.Error("Expected loading to be cleared once both requests finished")
	}
	if got := collector.StaleResponses(string(DomainAccount)); got != 1 {
		t.Errorf("Expected 1 stale response, got %d", got)
	}
}

func TestStore_OlderResponseFirstIsApplied(t *testing.T) {
	s := NewStore()
	older := s.Begin(DomainTransfers, nil)
	newer := s.Begin(DomainTransfers, nil)

	if !s.Complete(older, func(snap *Snapshot) {}) {
		t.Error("Expected older response to apply while nothing newer was applied")
	}
	if !s.Complete(newer, func(snap *Snapshot) {}) {
		t.Error("Expected newer response to apply")
	}
}

func TestStore_DiscardsAfterScopeClose(t *testing.T) {
	s := NewStore()
	scope := NewScope("transfers-screen")
	ticket := s.Begin(DomainTransfers, scope)
	scope.Close()

	ran := false
	if s.Complete(ticket, func(*Snapshot) { ran = true }) {
		t.Error("Expected response to be discarded after scope close")
	}
	if ran {
		t.Error("Expected apply function not to run")
	}
	if s.Snapshot().Transfers.Loading {
		t.Error("Expected loading to be cleared")
	}
}

func TestStore_DiscardsAcrossSessions(t *testing.T) {
	s := NewStore()
	ticket := s.Begin(DomainAccount, nil)

	s.NewSession(func(snap *Snapshot) {
		snap.Session.Status = StatusUnauthenticated
	})

	if s.Complete(ticket, func(snap *Snapshot) {
		snap.Account.Account = &models.Account{Balance: 99}
	}) {
		t.Error("Expected response from the previous session to be discarded")
	}
	if s.Snapshot().Account.Account != nil {
		t.Error("Expected account to stay empty")
	}
}

func TestStore_NewSessionIsOneTransition(t *testing.T) {
	s := NewStore()
	s.Update(func(snap *Snapshot) {
		snap.Session.Status = StatusAuthenticated
		snap.Account.Account = &models.Account{Balance: 5}
		snap.Transfers.Transfers = []models.Transfer{{ID: "1"}}
		snap.Notifications.Notifications = []models.Notification{{ID: "n1"}}
	})

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	before := <-ch

	s.NewSession(func(snap *Snapshot) {
		snap.Session = SessionState{Status: StatusUnauthenticated}
	})

	after := <-ch
	if after.Version != before.Version+1 {
		t.Errorf("Expected exactly one published change, got versions %d -> %d", before.Version, after.Version)
	}
	if after.Session.Status != StatusUnauthenticated {
		t.Errorf("Expected unauthenticated, got %s", after.Session.Status)
	}
	if after.Account.Account != nil || after.Transfers.Transfers != nil || after.Notifications.Notifications != nil {
		t.Errorf("Expected every domain section cleared, got %+v", after)
	}
	if after.Generation != before.Generation+1 {
		t.Errorf("Expected generation bump, got %d -> %d", before.Generation, after.Generation)
	}
}

func TestStore_SubscribeLatestWins(t *testing.T) {
	s := NewStore()
	ch, unsubscribe := s.Subscribe()

	for i := 0; i < 10; i++ {
		s.Update(func(snap *Snapshot) {
			snap.Cards.Error = "update"
		})
	}

	latest := <-ch
	if latest.Version != s.Snapshot().Version {
		t.Errorf("Expected newest version %d, got %d", s.Snapshot().Version, latest.Version)
	}
	select {
	case extra := <-ch:
		t.Errorf("Expected no queued snapshot, got version %d", extra.Version)
	default:
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed")
	}
}

func TestStore_UpdateIfRejects(t *testing.T) {
	s := NewStore()
	version := s.Snapshot().Version
	errBoom := errors.New("boom")

	err := s.UpdateIf(func(snap *Snapshot) error {
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if s.Snapshot().Version != version {
		t.Error("Expected no published change")
	}
}

func TestStore_UpdateInGeneration(t *testing.T) {
	s := NewStore()
	gen := s.Generation()
	s.NewSession(func(*Snapshot) {})

	if s.UpdateInGeneration(gen, func(snap *Snapshot) {
		snap.Recipients.Error = "late"
	}) {
		t.Error("Expected update from the old generation to be rejected")
	}
	if s.Snapshot().Recipients.Error != "" {
		t.Error("Expected recipients section unchanged")
	}
}

func TestSnapshot_Redacted(t *testing.T) {
	card := models.Card{ID: "1", Number: "4111111111111234", CVV: "999"}
	snap := Snapshot{Cards: CardState{Cards: []models.Card{card}, Selected: &card}}

	red := snap.Redacted()
	if red.Cards.Cards[0].Number != "**** **** **** 1234" || red.Cards.Cards[0].CVV != "" {
		t.Errorf("Expected redacted card, got %+v", red.Cards.Cards[0])
	}
	if red.Cards.Selected.CVV != "" {
		t.Error("Expected selected card CVV dropped")
	}
	if snap.Cards.Cards[0].CVV != "999" {
		t.Error("Expected original snapshot untouched")
	}
}

func TestAccountState_Available(t *testing.T) {
	a := AccountState{Account: &models.Account{Balance: 100}, PendingDebit: 30}
	if got := a.Available(); got != 70 {
		t.Errorf("Expected 70, got %v", got)
	}
	if got := (AccountState{}).Available(); got != 0 {
		t.Errorf("Expected 0 without account, got %v", got)
	}
}
