package auth_test

import (
	"context"
	"errors"
	"testing"

	"bookdash/internal/auth"
	"bookdash/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingVerifier struct {
	calls int
	id    auth.Identity
	err   error
}

func (v *countingVerifier) Verify(_ context.Context, _ string) (auth.Identity, error) {
	v.calls++
	return v.id, v.err
}

func TestGuard_MissingHeaderSkipsVerifier(t *testing.T) {
	headers := []string{"", "Basic dXNlcjpwYXNz", "Bearer ", "token-without-scheme"}
	for _, h := range headers {
		v := &countingVerifier{}
		g := auth.NewGuard(v, nil, nil)

		_, _, err := g.Authorize(auth.WithAuthorization(context.Background(), h))

		assert.ErrorIs(t, err, auth.ErrUnauthenticated, h)
		assert.Zero(t, v.calls, h)
	}
}

func TestGuard_NoHeaderInContext(t *testing.T) {
	v := &countingVerifier{}
	g := auth.NewGuard(v, nil, nil)

	_, _, err := g.Authorize(context.Background())

	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Zero(t, v.calls)
}

func TestGuard_AttachesIdentity(t *testing.T) {
	want := auth.Identity{Subject: "auth0|abc"}
	v := &countingVerifier{id: want}
	g := auth.NewGuard(v, nil, nil)

	ctx, id, err := g.Authorize(auth.WithAuthorization(context.Background(), "Bearer a.b.c"))

	require.NoError(t, err)
	assert.Equal(t, want, id)
	got, ok := auth.IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, v.calls)
}

func TestGuard_RejectionHidesReason(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := &recordingMetrics{}
	v := &countingVerifier{err: &auth.VerificationError{Kind: auth.FailureExpired, Err: errors.New("token is expired")}}
	g := auth.NewGuard(v, zap.New(core), m)
	token := "header.payload.signature"

	ctx := auth.WithAuthorization(context.Background(), "Bearer "+token)
	out, _, err := g.Authorize(ctx)

	assert.Equal(t, auth.ErrUnauthenticated, err)
	_, ok := auth.IdentityFrom(out)
	assert.False(t, ok)
	assert.Equal(t, []string{"expired"}, m.failures)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "expired", fields["reason"])
	assert.Equal(t, auth.Fingerprint(token), fields["token_fp"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, token)
		}
	}
}

func TestGuard_EndToEnd(t *testing.T) {
	v, iss := newTestVerifier(t)
	g := auth.NewGuard(v, nil, nil)

	_, id, err := g.Authorize(auth.WithAuthorization(context.Background(), "Bearer "+iss.ValidToken(t)))
	require.NoError(t, err)
	assert.Equal(t, testutil.TestSubject, id.Subject)

	_, _, err = g.Authorize(auth.WithAuthorization(context.Background(), "Bearer "+iss.ExpiredToken(t)))
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}
