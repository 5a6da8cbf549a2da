package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrUnauthenticated is the only error callers of the guard ever see.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenVerifier is implemented by *Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Guard turns the Authorization header of a request into an Identity.
type Guard struct {
	verifier TokenVerifier
	log      *zap.Logger
	metrics  Metrics
}

func NewGuard(v TokenVerifier, log *zap.Logger, m Metrics) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Guard{verifier: v, log: log, metrics: m}
}

// Authorize verifies the bearer token stored on ctx. On success it returns a
// context carrying the identity. A missing or non-bearer header is rejected
// without calling the verifier.
func (g *Guard) Authorize(ctx context.Context) (context.Context, Identity, error) {
	token, ok := BearerToken(AuthorizationFrom(ctx))
	if !ok {
		g.metrics.RecordVerificationFailure("missing")
		return ctx, Identity{}, ErrUnauthenticated
	}

	id, err := g.verifier.Verify(ctx, token)
	if err != nil {
		kind := FailureMalformed
		var verr *VerificationError
		if errors.As(err, &verr) {
			kind = verr.Kind
		}
		g.metrics.RecordVerificationFailure(string(kind))
		g.log.Warn("token rejected",
			zap.String("reason", string(kind)),
			zap.String("token_fp", Fingerprint(token)),
			zap.Error(err),
		)
		return ctx, Identity{}, ErrUnauthenticated
	}

	return ContextWithIdentity(ctx, id), id, nil
}
