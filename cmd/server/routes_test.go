package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/caarlos0/env/v10"

	"github.com/SebastienMelki/keyportal/internal/gateway"
)

// newDirectoryServer fakes the key-management API with one record per issuer.
func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issuer := r.URL.Query().Get("customAccountId")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{{
			"key":             "k-" + issuer,
			"customAccountId": issuer,
			"name":            "user",
			"projectId":       "proj",
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newPortal runs the full server with default limits. The profile view
// fetches tokens from the same server, as in a single-binary deployment.
func newPortal(t *testing.T) *httptest.Server {
	t.Helper()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse() error = %v", err)
	}
	if !cfg.Gateway.RateLimit.Enabled {
		t.Fatal("rate limiting should be enabled by default")
	}

	var root http.Handler
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root.ServeHTTP(w, r)
	}))
	t.Cleanup(portal.Close)

	cfg.APIKey.BaseURL = newDirectoryServer(t).URL
	cfg.APIKey.ProjectID = "proj"
	cfg.APIKey.AccessKey = "access"
	cfg.TokenFetch.Endpoint = portal.URL
	cfg.Profile.WidgetURL = "https://widget.example.com/app"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server, err := gateway.NewServer(cfg.Gateway, nil, logger)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := mountRoutes(cfg, server, nil, nil, logger); err != nil {
		t.Fatalf("mountRoutes() error = %v", err)
	}
	root = server.Handler()

	return portal
}

func loadProfile(t *testing.T, portal *httptest.Server, issuer, addr string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, portal.URL+"/profile", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Auth-Issuer", issuer)
	req.Header.Set("X-Auth-Email", issuer+"@example.com")
	req.Header.Set(gateway.ForwardedForHeader, addr)

	resp, err := portal.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /profile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /profile status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestProfile_EachUserHasOwnRateLimit(t *testing.T) {
	portal := newPortal(t)

	const users = 30
	for i := 0; i < users; i++ {
		issuer := fmt.Sprintf("user-%d", i)
		body := loadProfile(t, portal, issuer, fmt.Sprintf("203.0.113.%d", i+1))

		want := fmt.Sprintf(`<span id="api_key" class="hidden">k-%s</span>`, issuer)
		if !strings.Contains(body, want) {
			t.Fatalf("user %d: profile rendered without its key", i)
		}
	}
}

func TestProfile_SingleUserIsRateLimited(t *testing.T) {
	portal := newPortal(t)

	withKey := 0
	for i := 0; i < 30; i++ {
		if strings.Contains(loadProfile(t, portal, "user-1", "203.0.113.1"), `id="api_key"`) {
			withKey++
		}
	}
	if withKey == 0 || withKey >= 30 {
		t.Errorf("pages with key = %d, want between 1 and 29", withKey)
	}
}

func TestDefaultTokenTimeoutCoversLookupAndCreate(t *testing.T) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse() error = %v", err)
	}
	if cfg.TokenFetch.Timeout <= 2*cfg.APIKey.Timeout {
		t.Errorf("TOKEN_TIMEOUT %s does not cover two upstream calls of %s", cfg.TokenFetch.Timeout, cfg.APIKey.Timeout)
	}
}
