package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const identityKey contextKey = "identity"

// Identity is the request-scoped actor. Authentication itself lives outside
// this service; the middleware only verifies the HMAC token it was handed
// and makes the subject available to handlers.
type Identity struct {
	SubjectID uuid.UUID
	Role      string // practitioner, patient, staff
}

type identityClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireIdentity enforces a Bearer token signed with the shared secret and
// stores the resulting Identity in the request context.
func RequireIdentity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := identityClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			subject, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "subject must be a UUID")
				return
			}

			ident := Identity{SubjectID: subject, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), identityKey, ident)))
		})
	}
}

// IdentityFromContext returns the request actor, if authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}
