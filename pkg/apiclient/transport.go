package apiclient

import (
	"net/http"

	"bank-client/pkg/logging"
	"bank-client/pkg/tokenstore"

	"go.uber.org/zap"
)

// BearerTransport attaches the persisted session token to every request.
// The token is read from the store on each request, so a login or logout
// takes effect on the next call without rebuilding the client.
type BearerTransport struct {
	Base   http.RoundTripper
	Store  tokenstore.Store
	Logger *logging.Logger
}

// RoundTrip attaches the stored token, when there is one, to a copy of req.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Store == nil || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	token, err := tokenstore.GetToken(req.Context(), t.Store)
	if err != nil && t.Logger != nil {
		t.Logger.Warn("failed to read session token", zap.String("store", t.Store.Name()), zap.Error(err))
	}
	if token == "" {
		return base.RoundTrip(req)
	}

	if t.Logger != nil {
		t.Logger.Debug("attaching bearer token",
			zap.String("path", req.URL.Path),
			logging.Token(token),
		)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
