package state

import (
	"context"
	"strings"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/models"

	"go.uber.org/zap"
)

// pendingRecipientPrefix matches the IDs given to recipients the backend
// confirmed without returning a record.
const pendingRecipientPrefix = "pending-"

// RecipientController owns the recipients section.
type RecipientController struct {
	section
	api RecipientAPI
}

// NewRecipientController returns a recipient controller.
func NewRecipientController(store *Store, api RecipientAPI) *RecipientController {
	return &RecipientController{
		section: newSection(store, DomainRecipients),
		api:     api,
	}
}

// Refresh fetches the saved recipients.
func (c *RecipientController) Refresh(ctx context.Context, scope *Scope) error {
	ticket := c.store.Begin(DomainRecipients, scope)

	list, err := c.api.List(ctx)
	if err != nil {
		msg := c.failure(ctx, "recipients.list", err)
		c.store.Complete(ticket, func(s *Snapshot) {
			s.Recipients.Error = msg
		})
		return err
	}

	c.store.Complete(ticket, func(s *Snapshot) {
		s.Recipients.Recipients = list
		s.Recipients.Error = ""
	})
	return nil
}

// Search resolves accountNumber and keeps the result as the candidate.
// Nothing is saved.
func (c *RecipientController) Search(ctx context.Context, accountNumber string) (*models.AccountMatch, error) {
	gen := c.store.Generation()
	c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		s.Recipients.Candidate = nil
		s.Recipients.Searching = true
		s.Recipients.Error = ""
	})

	match, err := c.api.Search(ctx, accountNumber)
	if err != nil {
		msg := c.failure(ctx, "recipients.search", err)
		c.store.UpdateInGeneration(gen, func(s *Snapshot) {
			s.Recipients.Searching = false
			s.Recipients.Error = msg
		})
		return nil, err
	}

	c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		s.Recipients.Searching = false
		s.Recipients.Candidate = match
	})
	return match, nil
}

// Create saves match and appends it to the list. Saving the same account
// twice creates two recipients.
func (c *RecipientController) Create(ctx context.Context, match models.AccountMatch) (*models.Recipient, error) {
	gen := c.store.Generation()
	ctx = WithGeneration(ctx, gen)

	recipient, err := c.api.Create(ctx, match)
	if err != nil {
		msg := c.failure(ctx, "recipients.create", err)
		c.store.UpdateInGeneration(gen, func(s *Snapshot) {
			s.Recipients.Error = msg
		})
		return nil, err
	}

	c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		next := make([]models.Recipient, 0, len(s.Recipients.Recipients)+1)
		next = append(next, s.Recipients.Recipients...)
		s.Recipients.Recipients = append(next, *recipient)
		s.Recipients.Candidate = nil
		s.Recipients.Error = ""
	})
	c.logger.Info("Recipient saved", zap.String("id", recipient.ID.String()))
	return recipient, nil
}

// Update edits a recipient. When the backend does not echo the record the
// change is applied to the local copy.
func (c *RecipientController) Update(ctx context.Context, id models.ID, update models.RecipientUpdate) (*models.Recipient, error) {
	if isPendingRecipient(id) {
		return nil, bankerr.New("recipients.update", bankerr.ErrValidation, "This recipient is still being saved. Refresh and try again.")
	}
	gen := c.store.Generation()

	updated, err := c.api.Update(ctx, id, update)
	if err != nil {
		msg := c.failure(ctx, "recipients.update", err)
		c.store.UpdateInGeneration(gen, func(s *Snapshot) {
			s.Recipients.Error = msg
		})
		return nil, err
	}

	var result *models.Recipient
	c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		next := make([]models.Recipient, len(s.Recipients.Recipients))
		copy(next, s.Recipients.Recipients)
		for i, r := range next {
			if r.ID != id {
				continue
			}
			if updated != nil {
				next[i] = *updated
			} else {
				next[i] = update.Apply(r)
			}
			found := next[i]
			result = &found
		}
		s.Recipients.Recipients = next
		s.Recipients.Error = ""
	})
	if result == nil && updated != nil {
		result = updated
	}
	return result, nil
}

// Delete removes a recipient on the backend and locally.
func (c *RecipientController) Delete(ctx context.Context, id models.ID) error {
	if isPendingRecipient(id) {
		return bankerr.New("recipients.delete", bankerr.ErrValidation, "This recipient is still being saved. Refresh and try again.")
	}
	gen := c.store.Generation()

	if err := c.api.Delete(ctx, id); err != nil {
		msg := c.failure(ctx, "recipients.delete", err)
		c.store.UpdateInGeneration(gen, func(s *Snapshot) {
			s.Recipients.Error = msg
		})
		return err
	}

	c.store.UpdateInGeneration(gen, func(s *Snapshot) {
		next := make([]models.Recipient, 0, len(s.Recipients.Recipients))
		for _, r := range s.Recipients.Recipients {
			if r.ID != id {
				next = append(next, r)
			}
		}
		s.Recipients.Recipients = next
		s.Recipients.Error = ""
	})
	return nil
}

func isPendingRecipient(id models.ID) bool {
	return strings.HasPrefix(string(id), pendingRecipientPrefix)
}
