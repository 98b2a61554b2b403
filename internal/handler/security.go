package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// APIKeyHeader carries the administrator API key.
const APIKeyHeader = "X-API-Key"

const adminScope = auth.ScopeAdmin

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key that authenticated the request.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	k, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return k, ok
}

// Security authenticates requests via HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and
// HMAC pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{apikeys: apikeys, pepper: pepper}
}

// Authenticate resolves the API key and checks the stored hash in constant
// time.
func (s *Security) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hash)
	if errors.Is(err, auth.ErrKeyNotFound) {
		return nil, errUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// RequireScope rejects requests without a valid API key holding scope.
func (s *Security) RequireScope(scope string) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !info.HasScope(scope) {
				writeError(w, r, errForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
			ctx = zctx.With(ctx, zap.String("api_key", info.Name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
