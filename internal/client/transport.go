package client

import (
	"net/http"

	"go.uber.org/zap"
)

// Transport attaches the session's bearer token to every outgoing request.
// When no token can be obtained the request goes out without one and the
// server answers UNAUTHENTICATED.
type Transport struct {
	Base    http.RoundTripper
	Session *Session
	Log     *zap.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if !t.Session.Authenticated() {
		return base.RoundTrip(req)
	}

	token, err := t.Session.Token()
	if err != nil {
		if t.Log != nil {
			t.Log.Warn("could not obtain access token, sending request unauthenticated", zap.Error(err))
		}
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(out)
}
