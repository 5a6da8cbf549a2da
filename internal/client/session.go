// Package client talks to the book API on behalf of an authenticated caller.
package client

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned by Session.Token for an anonymous session.
var ErrNotAuthenticated = errors.New("session is not authenticated")

const defaultRefreshSkew = 60 * time.Second

// StaticToken is a token source that always returns the same bearer token.
type StaticToken string

func (s StaticToken) Token() (*oauth2.Token, error) {
	if s == "" {
		return nil, errors.New("static token is empty")
	}
	return &oauth2.Token{AccessToken: string(s), TokenType: "Bearer"}, nil
}

// Session holds the caller's current access token and renews it shortly
// before it expires. Concurrent callers share one renewal.
type Session struct {
	base oauth2.TokenSource
	skew time.Duration

	mu  sync.Mutex
	src oauth2.TokenSource
}

type SessionOption func(*Session)

// WithRefreshSkew sets how long before expiry a token is renewed.
func WithRefreshSkew(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.skew = d
		}
	}
}

// NewSession creates a session over base, which must not cache tokens itself.
// A nil base yields an anonymous session.
func NewSession(base oauth2.TokenSource, opts ...SessionOption) *Session {
	s := &Session{base: base, skew: defaultRefreshSkew}
	for _, opt := range opts {
		opt(s)
	}
	if base != nil {
		s.src = oauth2.ReuseTokenSourceWithExpiry(nil, base, s.skew)
	}
	return s
}

// Authenticated reports whether the session can produce tokens.
func (s *Session) Authenticated() bool {
	return s != nil && s.base != nil
}

// Token returns a usable access token, refreshing it when needed.
func (s *Session) Token() (string, error) {
	if !s.Authenticated() {
		return "", ErrNotAuthenticated
	}
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()

	t, err := src.Token()
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (s *Session) Invalidate() {
	if !s.Authenticated() {
		return
	}
	s.mu.Lock()
	s.src = oauth2.ReuseTokenSourceWithExpiry(nil, s.base, s.skew)
	s.mu.Unlock()
}
