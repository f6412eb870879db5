package actions

import (
	"context"
	"net/http"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/models"
)

// Cards wraps the read-only /tarjetas endpoints.
type Cards struct {
	client Doer
	logger *logging.Logger
}

// NewCards returns the cards module over client.
func NewCards(client Doer) *Cards {
	return &Cards{client: client, logger: logging.L().Component("actions", "cards")}
}

// List returns the cards of the authenticated user.
func (c *Cards) List(ctx context.Context) ([]models.Card, error) {
	var wire []models.CardWire
	if _, err := c.client.Do(ctx, OpCardList, http.MethodGet, "/tarjetas", nil, &wire); err != nil {
		return nil, err
	}
	return convertList(c.logger, OpCardList, wire, models.CardWire.ToModel), nil
}

// Get returns one card with its full details.
func (c *Cards) Get(ctx context.Context, id models.ID) (*models.Card, error) {
	if id == "" {
		return nil, invalid(OpCardGet, "Card id is required.")
	}

	var wire models.CardWire
	result, err := c.client.Do(ctx, OpCardGet, http.MethodGet, pathID("/tarjetas/", id, ""), nil, &wire)
	if err != nil {
		return nil, err
	}
	if !result.HasData {
		return nil, bankerr.New(OpCardGet, bankerr.ErrNotFound, result.Message)
	}
	card, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpCardGet, err)
	}
	return &card, nil
}
