package state

import (
	"context"
	"sync"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"

	"go.uber.org/zap"
)

// section is embedded by every data controller.
type section struct {
	store  *Store
	domain Domain
	logger *logging.Logger

	mu        sync.RWMutex
	onExpired func(ctx context.Context)
}

func newSection(store *Store, domain Domain) section {
	return section{
		store:  store,
		domain: domain,
		logger: logging.L().Component("state", string(domain)),
	}
}

// OnSessionExpired registers fn to run when a request of this section is
// rejected as unauthorized.
func (s *section) OnSessionExpired(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// failure logs err, fires the expiry hook on unauthorized errors and returns
// the text stored in the section error.
func (s *section) failure(ctx context.Context, op string, err error) string {
	s.logger.Warn("Request failed",
		zap.String("op", op),
		zap.String("category", bankerr.Classify(err)),
		zap.Error(err),
	)
	if bankerr.IsUnauthorized(err) {
		s.mu.RLock()
		fn := s.onExpired
		s.mu.RUnlock()
		if fn != nil {
			fn(ctx)
		}
	}
	return bankerr.UserMessage(err)
}
