package auth

import (
	"context"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/marketloop/api/internal/platform/httpx"
	"github.com/marketloop/api/internal/platform/requestctx"
)

// TokenVerifier abstracts ID token verification for middleware and tests.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

var _ TokenVerifier = (*FirebaseVerifier)(nil)

// Authenticator resolves identities from Authorization headers.
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator constructs an Authenticator over the given verifier.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified identity on the request context.
func (a *Authenticator) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity, ok := a.authenticate(ctx, w, r)
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// RequireRole behaves like RequireAuth and additionally rejects identities
// that carry none of the given roles.
func (a *Authenticator) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity, ok := a.authenticate(ctx, w, r)
			if !ok {
				return
			}

			if !identity.HasAnyRole(roles...) {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (Identity, bool) {
	if a == nil || a.verifier == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "authentication is not configured", http.StatusUnauthorized))
		return Identity{}, false
	}

	idToken, ok := bearerToken(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "missing bearer token", http.StatusUnauthorized))
		return Identity{}, false
	}

	token, err := a.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		requestctx.Logger(ctx).Debug("token verification failed")
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "invalid or expired token", http.StatusUnauthorized))
		return Identity{}, false
	}

	return identityFromToken(token), true
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func identityFromToken(token *firebaseauth.Token) Identity {
	identity := Identity{UID: token.UID}

	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}

	switch claim := token.Claims["roles"].(type) {
	case []any:
		for _, entry := range claim {
			if role, ok := entry.(string); ok && role != "" {
				identity.Roles = append(identity.Roles, role)
			}
		}
	case []string:
		identity.Roles = append(identity.Roles, claim...)
	case string:
		if claim != "" {
			identity.Roles = append(identity.Roles, claim)
		}
	}

	// Some projects mark admins with a single boolean claim instead of a role list.
	if admin, ok := token.Claims["admin"].(bool); ok && admin && !identity.HasRole(RoleAdmin) {
		identity.Roles = append(identity.Roles, RoleAdmin)
	}

	return identity
}
