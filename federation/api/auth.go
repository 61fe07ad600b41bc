package api

import (
	"context"
	"net/http"
	"strings"

	pkgapi "github.com/fedmesh/fedmesh/pkg/api"
	"github.com/fedmesh/fedmesh/pkg/auth"
)

type ctxKey string

// NodeIDKey carries the authenticated node identity through the
// request context.
const NodeIDKey ctxKey = "node_id"

const apiKeyHeader = "X-API-Key"

// Authenticate verifies the request credential with the given manager
// before passing the request on. Bearer tokens and API keys are both
// accepted. A nil manager disables authentication.
func Authenticate(authm *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authm == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := extractCredential(r)
			if !ok {
				http.Error(w, "missing credentials", http.StatusUnauthorized)

				return
			}

			nodeID, err := authm.Verify(cred)
			if err != nil {
				pkgapi.EncodeError(r.Context(), err, w)

				return
			}

			ctx := context.WithValue(r.Context(), NodeIDKey, nodeID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractCredential(r *http.Request) (auth.Credential, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return auth.Credential{
			Scheme: auth.SchemeToken,
			Value:  strings.TrimPrefix(h, "Bearer "),
		}, true
	}
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return auth.Credential{
			Scheme: auth.SchemeAPIKey,
			Value:  key,
		}, true
	}

	return auth.Credential{}, false
}
