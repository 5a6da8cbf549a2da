package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"bookdash/internal/auth"
	"bookdash/internal/book"
	"bookdash/internal/server"
	"bookdash/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCredentials_TokenSource(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"issued","token_type":"Bearer","expires_in":86400}`))
	}))
	defer srv.Close()

	cc := &ClientCredentials{
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "cli",
		ClientSecret: "s3cret",
		Audience:     testutil.TestAudience,
	}
	tok, err := cc.TokenSource(context.Background()).Token()

	require.NoError(t, err)
	assert.Equal(t, "issued", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), tok.Expiry, time.Minute)
	assert.Equal(t, "client_credentials", form.Get("grant_type"))
	assert.Equal(t, "cli", form.Get("client_id"))
	assert.Equal(t, "s3cret", form.Get("client_secret"))
	assert.Equal(t, testutil.TestAudience, form.Get("audience"))
}

func TestClientCredentials_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"access_denied","error_description":"Unauthorized"}`))
	}))
	defer srv.Close()

	cc := &ClientCredentials{TokenURL: srv.URL}
	_, err := cc.TokenSource(context.Background()).Token()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

// newAPI runs the real router behind httptest and returns its /graphql URL.
func newAPI(t *testing.T) (string, *testutil.Issuer) {
	t.Helper()
	iss := testutil.NewIssuer(t)
	verifier := auth.NewVerifier(auth.VerifierConfig{
		Issuer:   testutil.TestIssuer,
		Audience: testutil.TestAudience,
		Leeway:   30 * time.Second,
	}, auth.NewKeySet(iss.JWKSURL()))

	router := server.NewRouter(server.RouterDeps{
		Guard:          auth.NewGuard(verifier, nil, nil),
		Books:          book.NewService(book.NewMemoryRepo()),
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 5 * time.Second,
	})
	t.Cleanup(router.Close)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL + "/graphql", iss
}

func TestClient_CRUD(t *testing.T) {
	endpoint, iss := newAPI(t)
	c := New(endpoint, NewSession(StaticToken(iss.ValidToken(t))), nil)
	ctx := context.Background()

	created, err := c.CreateBook(ctx, "Dune", "Sci-fi")
	require.NoError(t, err)
	assert.Equal(t, "Dune", created.Name)

	updated, err := c.UpdateBook(ctx, created.ID, "Dune Messiah", "Sequel")
	require.NoError(t, err)
	assert.Equal(t, Book{ID: created.ID, Name: "Dune Messiah", Description: "Sequel"}, updated)

	books, err := c.Books(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Book{updated}, books)

	deleted, err := c.DeleteBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, deleted)

	_, err = c.DeleteBook(ctx, created.ID)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestClient_ValidationError(t *testing.T) {
	endpoint, iss := newAPI(t)
	c := New(endpoint, NewSession(StaticToken(iss.ValidToken(t))), nil)

	_, err := c.CreateBook(context.Background(), "  ", "")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "BAD_USER_INPUT", apiErr.Code)
	assert.Equal(t, "name", apiErr.Field)
	assert.Equal(t, "name is required", apiErr.Message)
}

func TestClient_Anonymous(t *testing.T) {
	endpoint, _ := newAPI(t)
	c := New(endpoint, NewSession(nil), nil)

	_, err := c.Books(context.Background())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAUTHENTICATED", apiErr.Code)
	assert.Equal(t, "Unauthorized", apiErr.Message)
}

func TestClient_ExpiredToken(t *testing.T) {
	endpoint, iss := newAPI(t)
	c := New(endpoint, NewSession(StaticToken(iss.ExpiredToken(t))), nil)

	_, err := c.Books(context.Background())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAUTHENTICATED", apiErr.Code)
}

func TestClient_RenewsRejectedToken(t *testing.T) {
	endpoint, iss := newAPI(t)
	tokens := []string{iss.ExpiredToken(t), iss.ValidToken(t)}
	var issued atomic.Int32
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(issued.Add(1)) - 1
		if n >= len(tokens) {
			n = len(tokens) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": tokens[n],
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer idp.Close()

	cc := &ClientCredentials{TokenURL: idp.URL, ClientID: "cli", ClientSecret: "s3cret"}
	c := New(endpoint, NewSession(cc.TokenSource(context.Background())), nil)

	books, err := c.Books(context.Background())

	require.NoError(t, err)
	assert.Empty(t, books)
	assert.EqualValues(t, 2, issued.Load(), "the rejected token is replaced once")
}
