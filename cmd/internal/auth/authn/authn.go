// Package authn attaches the caller's identity to HTTP requests.
//
// Authenticator is best-effort: it never rejects a request. Guard and
// RequireIdentity are the fail-closed consumers.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"haven/cmd/internal/auth/session"
)

const bearerPrefix = "Bearer "

// ErrUnauthenticated is returned by RequireIdentity when no identity is attached.
var ErrUnauthenticated = session.ErrUnauthenticated

// Resolver turns a raw access token into an identity.
type Resolver interface {
	Authenticate(ctx context.Context, token string) (session.Identity, error)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity attached to ctx, if any.
func IdentityFrom(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(session.Identity)
	return id, ok
}

// RequireIdentity is IdentityFrom for handlers that must have a caller.
// It never returns a zero identity with a nil error.
func RequireIdentity(ctx context.Context) (session.Identity, error) {
	id, ok := IdentityFrom(ctx)
	if !ok || id.SessionID == "" || id.UserID == "" {
		return session.Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// BearerToken extracts the token from an Authorization header value.
// The scheme is matched case-sensitively; an empty result means no token.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// Authenticator resolves bearer tokens and stores the identity in the
// request context. Requests without a usable token pass through untouched.
func Authenticator(resolver Resolver, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r.Header.Get("Authorization"))
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.Authenticate(r.Context(), tok)
			if err != nil {
				if errors.Is(err, session.ErrUnauthenticated) {
					log.DebugContext(r.Context(), "authn.token.reject", "path", r.URL.Path, "err", err)
				} else {
					log.ErrorContext(r.Context(), "authn.token.resolve.fail", "path", r.URL.Path, "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Guard lets a request through only when an identity is attached;
// otherwise reject handles it.
func Guard(reject http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireIdentity(r.Context()); err != nil {
				reject.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
