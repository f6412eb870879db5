package state

import (
	"context"

	"bank-client/pkg/models"
)

// domainCardDetail sequences detail fetches apart from list refreshes.
const domainCardDetail Domain = "cards.detail"

// CardController owns the cards section. Cards are read-only.
type CardController struct {
	section
	api CardAPI
}

// NewCardController returns a card controller.
func NewCardController(store *Store, api CardAPI) *CardController {
	return &CardController{
		section: newSection(store, DomainCards),
		api:     api,
	}
}

// Refresh fetches the card list.
func (c *CardController) Refresh(ctx context.Context, scope *Scope) error {
	ticket := c.store.Begin(DomainCards, scope)

	list, err := c.api.List(ctx)
	if err != nil {
		msg := c.failure(ctx, "cards.list", err)
		c.store.Complete(ticket, func(s *Snapshot) {
			s.Cards.Error = msg
		})
		return err
	}

	c.store.Complete(ticket, func(s *Snapshot) {
		s.Cards.Cards = list
		s.Cards.Error = ""
		if s.Cards.Selected != nil && !containsCard(list, s.Cards.Selected.ID) {
			s.Cards.Selected = nil
		}
	})
	return nil
}

// Select fetches the detail of one card and makes it the selected card.
func (c *CardController) Select(ctx context.Context, scope *Scope, id models.ID) (*models.Card, error) {
	ticket := c.store.Begin(domainCardDetail, scope)

	card, err := c.api.Get(ctx, id)
	if err != nil {
		msg := c.failure(ctx, "cards.get", err)
		c.store.Complete(ticket, func(s *Snapshot) {
			s.Cards.Error = msg
		})
		return nil, err
	}

	c.store.Complete(ticket, func(s *Snapshot) {
		s.Cards.Selected = card
		s.Cards.Error = ""
	})
	return card, nil
}

func containsCard(list []models.Card, id models.ID) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
