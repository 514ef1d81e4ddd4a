package httpx

import (
	"context"
	"net/http"

	"github.com/kibook/order-engine/internal/identity"
)

// IdentityResolver lets tests stand in for the real resolver.
type IdentityResolver interface {
	Resolve(r *http.Request) (identity.Identity, error)
}

type identityCtxKey struct{}

func withIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

func identityFrom(ctx context.Context) identity.Identity {
	id, _ := ctx.Value(identityCtxKey{}).(identity.Identity)
	return id
}

// requireIdentity resolves the actor once at the boundary and passes it down
// through the request context. Lower layers never re-derive identity from raw
// request parameters.
func requireIdentity(res IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := res.Resolve(r)
			if err != nil {
				writeError(w, r, identity.ErrIdentityRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}
