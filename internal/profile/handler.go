// Package profile serves the login-gated profile page showing the signed-in
// user's email, issuer and API key, with the key management widget embedded
// once a key is available.
package profile

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/SebastienMelki/keyportal/internal/identity"
	"github.com/SebastienMelki/keyportal/internal/observability"
)

// LoginPath is where requests without a session are sent.
const LoginPath = "/login"

// Config configures the profile view.
type Config struct {
	// WidgetURL is the key management app embedded under the profile. The
	// page answers the widget's parent-window queries, so it can read the
	// key from #api_key.
	WidgetURL string `env:"RETOOL_APP_URL"`

	// SignInURL, when set, is linked from the login page.
	SignInURL string `env:"IDENTITY_SIGNIN_URL"`
}

// TokenFetcher resolves the API token for a user.
type TokenFetcher interface {
	Fetch(ctx context.Context, user identity.User) (string, error)
}

// Handler serves the profile and login pages.
type Handler struct {
	cfg      Config
	fetcher  TokenFetcher
	renderer *renderer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewHandler creates a profile handler. metrics may be nil.
func NewHandler(cfg Config, fetcher TokenFetcher, metrics *observability.Metrics, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r, err := newRenderer()
	if err != nil {
		return nil, err
	}

	return &Handler{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: r,
		metrics:  metrics,
		logger:   logger.With("component", "profile"),
	}, nil
}

// RegisterRoutes mounts the pages on mux. /profile requires a session from
// provider.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, provider identity.Provider) {
	mux.Handle("GET /profile", identity.RequireSession(provider, LoginPath)(http.HandlerFunc(h.Profile)))
	mux.HandleFunc("GET "+LoginPath, h.Login)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/profile", http.StatusFound)
	})
}

type profileView struct {
	Email        string
	Issuer       string
	Token        string
	WidgetURL    string
	WidgetOrigin string
}

// widgetOrigin returns the scheme://host origin the widget posts from, or ""
// when rawURL is not an absolute URL.
func widgetOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Profile renders the signed-in user's details. A failed token fetch renders
// the page without a token or widget.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	token, err := h.fetcher.Fetch(r.Context(), user)
	if err != nil {
		h.logger.WarnContext(r.Context(), "token fetch failed",
			"issuer", user.Issuer,
			"error", err,
		)
		token = ""
	}

	h.recordRender(r.Context(), token != "")

	view := profileView{
		Email:        user.Email,
		Issuer:       user.Issuer,
		Token:        token,
		WidgetURL:    h.cfg.WidgetURL,
		WidgetOrigin: widgetOrigin(h.cfg.WidgetURL),
	}
	if err := h.renderer.render(w, "profile.html", pageData{Title: "Profile", Data: view}); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render profile", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

type loginView struct {
	SignInURL string
}

// Login renders the sign-in prompt.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Sign in", Data: loginView{SignInURL: h.cfg.SignInURL}}
	if err := h.renderer.render(w, "login.html", data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render login", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) recordRender(ctx context.Context, hasToken bool) {
	if h.metrics == nil {
		return
	}
	state := "absent"
	if hasToken {
		state = "present"
	}
	h.metrics.ProfileRenders.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("token", state)))
}
