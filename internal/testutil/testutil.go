package testutil

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TestIssuer   = "https://bookdash.test.auth0.com/"
	TestAudience = "https://api.bookdash.test"
	TestSubject  = "auth0|test-user-123"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

// SigningKey returns a process-wide RSA key. Generating one per test is slow.
func SigningKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

// Issuer mints RS256 tokens and serves the matching JWKS over httptest.
type Issuer struct {
	Key *rsa.PrivateKey
	Kid string

	server *httptest.Server
	hits   atomic.Int64

	mu        sync.Mutex
	published map[string]*rsa.PublicKey
	failing   bool
}

// NewIssuer starts a JWKS server publishing one key under kid "test-key-1".
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	iss := &Issuer{Key: SigningKey(t), Kid: "test-key-1"}
	iss.published = map[string]*rsa.PublicKey{iss.Kid: &iss.Key.PublicKey}
	iss.server = httptest.NewServer(http.HandlerFunc(iss.serveJWKS))
	t.Cleanup(iss.server.Close)
	return iss
}

// JWKSURL is the address of the key set endpoint.
func (i *Issuer) JWKSURL() string { return i.server.URL + "/.well-known/jwks.json" }

// Fetches counts JWKS requests served so far.
func (i *Issuer) Fetches() int { return int(i.hits.Load()) }

// Publish adds a key to the served set.
func (i *Issuer) Publish(kid string, pub *rsa.PublicKey) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.published[kid] = pub
}

// SetFailing makes the JWKS endpoint answer 503.
func (i *Issuer) SetFailing(failing bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failing = failing
}

func (i *Issuer) serveJWKS(w http.ResponseWriter, r *http.Request) {
	i.hits.Add(1)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failing {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	keys := make([]map[string]string, 0, len(i.published))
	for kid, pub := range i.published {
		keys = append(keys, map[string]string{
			"kid": kid,
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"keys": keys})
}

// Claims returns a valid claim set for TestSubject that callers can tweak.
func Claims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": TestSubject,
		"iss": TestIssuer,
		"aud": TestAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

// Token signs claims with the issuer key.
func (i *Issuer) Token(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	return SignToken(t, i.Key, i.Kid, claims)
}

// ValidToken returns a token the default verifier setup accepts.
func (i *Issuer) ValidToken(t testing.TB) string {
	return i.Token(t, Claims())
}

// ExpiredToken returns a token that expired an hour ago.
func (i *Issuer) ExpiredToken(t testing.TB) string {
	c := Claims()
	c["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	c["exp"] = time.Now().Add(-time.Hour).Unix()
	return i.Token(t, c)
}

// SignToken signs claims with key under kid. An empty kid leaves the header out.
func SignToken(t testing.TB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// NewRequestWithAuth creates a new HTTP request with a bearer token
func NewRequestWithAuth(method, path string, body interface{}, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// GraphQLRequest builds a POST /graphql request.
func GraphQLRequest(query string, variables map[string]any, token string) *http.Request {
	body := map[string]any{"query": query}
	if variables != nil {
		body["variables"] = variables
	}
	return NewRequestWithAuth(http.MethodPost, "/graphql", body, token)
}

// RecordResponse records the HTTP response for testing
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

// RecordHTTPResponse records the HTTP response
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]interface{}
	if len(bodyBytes) > 0 {
		json.NewDecoder(bytes.NewReader(bodyBytes)).Decode(&bodyMap)
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   bodyMap,
	}
}
