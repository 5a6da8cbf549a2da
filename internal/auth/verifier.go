package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FailureKind tags why a token was rejected.
type FailureKind string

const (
	FailureMalformed        FailureKind = "malformed"
	FailureSignatureInvalid FailureKind = "signature-invalid"
	FailureExpired          FailureKind = "expired"
	FailureWrongAudience    FailureKind = "wrong-audience"
	FailureWrongIssuer      FailureKind = "wrong-issuer"
	FailureKeyUnavailable   FailureKind = "key-unavailable"
)

// ErrKeyUnavailable is wrapped by every signing key lookup failure.
var ErrKeyUnavailable = errors.New("signing key unavailable")

// VerificationError is returned by Verifier.Verify.
type VerificationError struct {
	Kind FailureKind
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// KeyProvider hands out the jwt.Keyfunc used to pick a token's signing key.
// KeySet implements it.
type KeyProvider interface {
	Keyfunc(ctx context.Context) jwt.Keyfunc
}

// VerifierConfig holds the expectations a token must meet.
type VerifierConfig struct {
	Issuer     string
	Audience   string
	Leeway     time.Duration
	Algorithms []string
}

// Verifier validates signed JWT access tokens issued by the identity provider.
type Verifier struct {
	keys   KeyProvider
	parser *jwt.Parser
}

// NewVerifier builds a Verifier. RS256 is accepted when cfg.Algorithms is empty.
func NewVerifier(cfg VerifierConfig, keys KeyProvider) *Verifier {
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = []string{jwt.SigningMethodRS256.Alg()}
	}
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods(algs),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify checks signature, issuer, audience and validity window of token and
// returns the caller identity it carries.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, v.keys.Keyfunc(ctx))
	if err != nil {
		return Identity{}, &VerificationError{Kind: classify(err), Err: err}
	}
	return identityFrom(claims)
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrKeyUnavailable):
		return FailureKeyUnavailable
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return FailureMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return FailureSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return FailureWrongIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return FailureWrongAudience
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return FailureExpired
	default:
		return FailureMalformed
	}
}

func identityFrom(claims jwt.MapClaims) (Identity, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, &VerificationError{Kind: FailureMalformed, Err: errors.New("missing sub claim")}
	}
	aud, _ := claims.GetAudience()
	iss, _ := claims.GetIssuer()

	id := Identity{
		Subject:  sub,
		Audience: aud,
		Issuer:   iss,
		Claims:   map[string]any(claims),
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		id.IssuedAt = iat.Time
	}
	return id, nil
}

// Fingerprint returns a short, non-reversible label for a token, for logs.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
