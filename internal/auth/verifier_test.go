package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"bookdash/internal/auth"
	"bookdash/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T) (*auth.Verifier, *testutil.Issuer) {
	t.Helper()
	iss := testutil.NewIssuer(t)
	keys := auth.NewKeySet(iss.JWKSURL())
	v := auth.NewVerifier(auth.VerifierConfig{
		Issuer:   testutil.TestIssuer,
		Audience: testutil.TestAudience,
		Leeway:   30 * time.Second,
	}, keys)
	return v, iss
}

func failureKind(t *testing.T, err error) auth.FailureKind {
	t.Helper()
	var verr *auth.VerificationError
	require.True(t, errors.As(err, &verr), "expected VerificationError, got %v", err)
	return verr.Kind
}

func TestVerify_ValidToken(t *testing.T) {
	v, iss := newTestVerifier(t)

	id, err := v.Verify(context.Background(), iss.ValidToken(t))

	require.NoError(t, err)
	assert.Equal(t, testutil.TestSubject, id.Subject)
	assert.Equal(t, testutil.TestIssuer, id.Issuer)
	assert.Equal(t, []string{testutil.TestAudience}, id.Audience)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 5*time.Second)
	assert.Equal(t, testutil.TestSubject, id.Claims["sub"])
}

func TestVerify_AudienceList(t *testing.T) {
	v, iss := newTestVerifier(t)
	c := testutil.Claims()
	c["aud"] = []string{"https://other.example", testutil.TestAudience}

	id, err := v.Verify(context.Background(), iss.Token(t, c))

	require.NoError(t, err)
	assert.Contains(t, id.Audience, testutil.TestAudience)
}

func TestVerify_Rejections(t *testing.T) {
	v, iss := newTestVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
		want  auth.FailureKind
	}{
		{
			name:  "garbage",
			token: func() string { return "not-a-jwt" },
			want:  auth.FailureMalformed,
		},
		{
			name:  "missing kid",
			token: func() string { return testutil.SignToken(t, iss.Key, "", testutil.Claims()) },
			want:  auth.FailureMalformed,
		},
		{
			name: "missing sub",
			token: func() string {
				c := testutil.Claims()
				delete(c, "sub")
				return iss.Token(t, c)
			},
			want: auth.FailureMalformed,
		},
		{
			name: "missing exp",
			token: func() string {
				c := testutil.Claims()
				delete(c, "exp")
				return iss.Token(t, c)
			},
			want: auth.FailureMalformed,
		},
		{
			name:  "signed by another key",
			token: func() string { return testutil.SignToken(t, otherKey, iss.Kid, testutil.Claims()) },
			want:  auth.FailureSignatureInvalid,
		},
		{
			name: "hs256",
			token: func() string {
				tok := jwt.NewWithClaims(jwt.SigningMethodHS256, testutil.Claims())
				tok.Header["kid"] = iss.Kid
				s, err := tok.SignedString([]byte("shared-secret"))
				require.NoError(t, err)
				return s
			},
			want: auth.FailureSignatureInvalid,
		},
		{
			name: "tampered payload",
			token: func() string {
				parts := strings.Split(iss.ValidToken(t), ".")
				other := strings.Split(iss.Token(t, jwt.MapClaims{
					"sub": "auth0|intruder", "iss": testutil.TestIssuer, "aud": testutil.TestAudience,
					"exp": time.Now().Add(time.Hour).Unix(),
				}), ".")
				return parts[0] + "." + other[1] + "." + parts[2]
			},
			want: auth.FailureSignatureInvalid,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := testutil.Claims()
				c["iss"] = "https://evil.example/"
				return iss.Token(t, c)
			},
			want: auth.FailureWrongIssuer,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := testutil.Claims()
				c["aud"] = "https://other.example"
				return iss.Token(t, c)
			},
			want: auth.FailureWrongAudience,
		},
		{
			name:  "expired",
			token: func() string { return iss.ExpiredToken(t) },
			want:  auth.FailureExpired,
		},
		{
			name: "not yet valid",
			token: func() string {
				c := testutil.Claims()
				c["nbf"] = time.Now().Add(10 * time.Minute).Unix()
				return iss.Token(t, c)
			},
			want: auth.FailureExpired,
		},
		{
			name:  "unknown kid",
			token: func() string { return testutil.SignToken(t, iss.Key, "rotated-away", testutil.Claims()) },
			want:  auth.FailureKeyUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token())
			require.Error(t, err)
			assert.Equal(t, tt.want, failureKind(t, err))
		})
	}
}

func TestVerify_ExpiryWithinLeeway(t *testing.T) {
	v, iss := newTestVerifier(t)
	c := testutil.Claims()
	c["exp"] = time.Now().Add(-10 * time.Second).Unix()

	_, err := v.Verify(context.Background(), iss.Token(t, c))

	assert.NoError(t, err)
}

func TestVerify_JWKSDown(t *testing.T) {
	v, iss := newTestVerifier(t)
	iss.SetFailing(true)

	_, err := v.Verify(context.Background(), iss.ValidToken(t))

	require.Error(t, err)
	assert.Equal(t, auth.FailureKeyUnavailable, failureKind(t, err))
	assert.ErrorIs(t, err, auth.ErrKeyUnavailable)
}

func TestFingerprint(t *testing.T) {
	fp := auth.Fingerprint("some.jwt.token")

	assert.Len(t, fp, 12)
	assert.Equal(t, fp, auth.Fingerprint("some.jwt.token"))
	assert.NotEqual(t, fp, auth.Fingerprint("other.jwt.token"))
	assert.NotContains(t, "some.jwt.token", fp)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, tt := range tests {
		got, ok := auth.BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
