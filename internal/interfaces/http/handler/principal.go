package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// PrincipalHeader carries the authenticated admin id set by the auth gateway
const PrincipalHeader = "X-Principal-ID"

type principalKey struct{}

// RequirePrincipal rejects requests without a valid principal id and
// stores it on the request context
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(PrincipalHeader))
		if err != nil || id == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid "+PrincipalHeader)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, id)))
	})
}

// PrincipalFrom returns the principal stored by RequirePrincipal
func PrincipalFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(principalKey{}).(uuid.UUID)
	return id, ok
}
