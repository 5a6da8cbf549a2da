package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxJWKSBytes = 1 << 20

var errRefetchLimited = errors.New("unknown kid refetch rate limited")

// Metrics receives auth events. metrics.Collector implements it.
type Metrics interface {
	RecordVerificationFailure(kind string)
	RecordKeyFetch(ok bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordVerificationFailure(string) {}
func (nopMetrics) RecordKeyFetch(bool)              {}

// KeySet caches the identity provider's published RSA signing keys.
//
// A lookup fetches when the cache is older than its max age, or when the kid
// is unknown and the refetch limiter allows it. Callers that missed while a
// fetch was running, or before one finished, reuse that fetch instead of
// asking the limiter. A failed fetch keeps the last good set.
type KeySet struct {
	url     string
	client  *http.Client
	maxAge  time.Duration
	limiter *rate.Limiter
	log     *zap.Logger
	metrics Metrics
	now     func() time.Time

	group singleflight.Group
	store *jwkset.MemoryJWKSet
	kf    keyfunc.Keyfunc

	mu        sync.RWMutex
	gen       uint64
	count     int
	fetchedAt time.Time
}

type KeySetOption func(*KeySet)

func WithHTTPClient(c *http.Client) KeySetOption {
	return func(k *KeySet) { k.client = c }
}

func WithMaxAge(d time.Duration) KeySetOption {
	return func(k *KeySet) {
		if d > 0 {
			k.maxAge = d
		}
	}
}

// WithRefetchLimit bounds how often an unknown kid may force a refetch.
func WithRefetchLimit(every time.Duration, burst int) KeySetOption {
	return func(k *KeySet) { k.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

func WithKeySetLogger(l *zap.Logger) KeySetOption {
	return func(k *KeySet) {
		if l != nil {
			k.log = l
		}
	}
}

func WithKeySetMetrics(m Metrics) KeySetOption {
	return func(k *KeySet) {
		if m != nil {
			k.metrics = m
		}
	}
}

func NewKeySet(url string, opts ...KeySetOption) *KeySet {
	k := &KeySet{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		maxAge:  10 * time.Minute,
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
		log:     zap.NewNop(),
		metrics: nopMetrics{},
		now:     time.Now,
		store:   jwkset.NewMemoryStorage(),
	}
	for _, opt := range opts {
		opt(k)
	}
	// New only fails without a storage.
	k.kf, _ = keyfunc.New(keyfunc.Options{Storage: k.store})
	return k
}

// Keyfunc resolves the token's kid, refreshing the set when needed, and hands
// the lookup to keyfunc so the key's alg is checked against the header.
func (k *KeySet) Keyfunc(ctx context.Context) jwt.Keyfunc {
	lookup := k.kf.KeyfuncCtx(ctx)
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header[jwkset.HeaderKID].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: header has no kid", jwt.ErrTokenMalformed)
		}
		if _, err := k.resolve(ctx, kid); err != nil {
			return nil, err
		}
		key, err := lookup(t)
		switch {
		case errors.Is(err, jwkset.ErrKeyNotFound):
			return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
		case err != nil:
			return nil, fmt.Errorf("%w: %w", jwt.ErrTokenUnverifiable, err)
		}
		return key, nil
	}
}

// Key returns the public key for kid.
func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	jwk, err := k.resolve(ctx, kid)
	if err != nil {
		return nil, err
	}
	return jwk.Key(), nil
}

func (k *KeySet) resolve(ctx context.Context, kid string) (jwkset.JWK, error) {
	gen, stale := k.state()
	if stale {
		if err := k.refresh(ctx, gen, false); err != nil {
			if !k.loaded() {
				return jwkset.JWK{}, err
			}
			k.log.Warn("jwks refresh failed, keeping cached keys", zap.Error(err))
		}
		if jwk, err := k.store.KeyRead(ctx, kid); err == nil {
			return jwk, nil
		}
		return jwkset.JWK{}, fmt.Errorf("%w: unknown kid %q", ErrKeyUnavailable, kid)
	}

	if jwk, err := k.store.KeyRead(ctx, kid); err == nil {
		return jwk, nil
	}
	if err := k.refresh(ctx, gen, true); err != nil {
		return jwkset.JWK{}, err
	}
	if jwk, err := k.store.KeyRead(ctx, kid); err == nil {
		return jwk, nil
	}
	return jwkset.JWK{}, fmt.Errorf("%w: unknown kid %q", ErrKeyUnavailable, kid)
}

// state reports the fetch generation and staleness. The generation must be
// read before the store so a fetch finishing in between is noticed.
func (k *KeySet) state() (uint64, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.gen, k.count == 0 || k.now().Sub(k.fetchedAt) > k.maxAge
}

func (k *KeySet) loaded() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.count > 0
}

// refresh fetches the set unless a fetch has completed since generation seen.
// Only unknown kid refreshes are charged to the limiter.
func (k *KeySet) refresh(ctx context.Context, seen uint64, limited bool) error {
	_, err, _ := k.group.Do("jwks", func() (any, error) {
		k.mu.RLock()
		done := k.gen != seen
		k.mu.RUnlock()
		if done {
			return nil, nil
		}
		if limited && !k.limiter.Allow() {
			return nil, errRefetchLimited
		}

		keys, err := k.fetch(context.WithoutCancel(ctx))
		k.metrics.RecordKeyFetch(err == nil)
		if err == nil {
			err = k.store.KeyReplaceAll(ctx, keys)
		}

		k.mu.Lock()
		defer k.mu.Unlock()
		k.gen++
		if err != nil {
			// Cached keys stay in service until the next max age window.
			if k.count > 0 {
				k.fetchedAt = k.now()
			}
			return nil, err
		}
		k.count = len(keys)
		k.fetchedAt = k.now()
		k.log.Debug("jwks refreshed", zap.Int("keys", len(keys)))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return nil
}

func (k *KeySet) fetch(ctx context.Context) ([]jwkset.JWK, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var doc jwkset.JWKSMarshal
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make([]jwkset.JWK, 0, len(doc.Keys))
	for _, m := range doc.Keys {
		if m.KTY != jwkset.KtyRSA || m.KID == "" || (m.USE != "" && m.USE != jwkset.UseSig) {
			continue
		}
		jwk, err := jwkset.NewJWKFromMarshal(m, jwkset.JWKMarshalOptions{}, jwkset.JWKValidateOptions{})
		if err != nil {
			k.log.Warn("skipping unusable jwk", zap.String("kid", m.KID), zap.Error(err))
			continue
		}
		keys = append(keys, jwk)
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks has no usable rsa signing keys")
	}
	return keys, nil
}
