// Package identity adapts the external identity session provider. The
// provider authenticates users and assigns each one a stable issuer; this
// package only reads the resulting session from incoming requests.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNoSession is returned when a request carries no authenticated session.
var ErrNoSession = errors.New("no authenticated session")

// User is the authenticated user as reported by the session provider.
type User struct {
	Issuer string
	Email  string
}

// Provider resolves the session attached to a request.
type Provider interface {
	Session(r *http.Request) (User, error)
}

// Config holds the names of the identity headers set by the authenticating
// proxy in front of the service.
type Config struct {
	IssuerHeader string `env:"IDENTITY_ISSUER_HEADER" envDefault:"X-Auth-Issuer"`
	EmailHeader  string `env:"IDENTITY_EMAIL_HEADER" envDefault:"X-Auth-Email"`
}

// HeaderProvider trusts identity headers injected by a reverse proxy that
// has already completed the provider's login flow.
type HeaderProvider struct {
	issuerHeader string
	emailHeader  string
}

// NewHeaderProvider creates a HeaderProvider. Empty header names fall back to
// X-Auth-Issuer and X-Auth-Email.
func NewHeaderProvider(cfg Config) *HeaderProvider {
	if cfg.IssuerHeader == "" {
		cfg.IssuerHeader = "X-Auth-Issuer"
	}
	if cfg.EmailHeader == "" {
		cfg.EmailHeader = "X-Auth-Email"
	}
	return &HeaderProvider{
		issuerHeader: cfg.IssuerHeader,
		emailHeader:  cfg.EmailHeader,
	}
}

// Session returns the user named by the identity headers, or ErrNoSession
// when the issuer header is missing or blank.
func (p *HeaderProvider) Session(r *http.Request) (User, error) {
	issuer := strings.TrimSpace(r.Header.Get(p.issuerHeader))
	if issuer == "" {
		return User{}, ErrNoSession
	}
	return User{
		Issuer: issuer,
		Email:  strings.TrimSpace(r.Header.Get(p.emailHeader)),
	}, nil
}

// unexported, collision-proof context key
type userContextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok
}

// RequireSession redirects requests without a session to loginPath and
// attaches the session user to the context of the rest.
func RequireSession(provider Provider, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := provider.Session(r)
			if err != nil {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
