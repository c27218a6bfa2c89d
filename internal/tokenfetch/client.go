// Package tokenfetch retrieves a user's API token from the resolution
// endpoint on behalf of the profile view.
package tokenfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SebastienMelki/keyportal/internal/gateway"
	"github.com/SebastienMelki/keyportal/internal/identity"
)

// Errors returned by Fetch.
var (
	ErrInvalidUser = errors.New("tokenfetch: invalid user")
	ErrEmptyToken  = errors.New("tokenfetch: resolution returned no key")
)

const maxResponseBytes = 1 << 20

// ResolveError is a non-2xx answer from the resolution endpoint.
type ResolveError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ResolveError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tokenfetch: resolution failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tokenfetch: resolution failed (%d): %s", e.StatusCode, e.Message)
}

// Config configures where tokens are fetched from.
type Config struct {
	// Endpoint is the base URL serving POST /api/auth.
	Endpoint string `env:"TOKEN_ENDPOINT" envDefault:"http://localhost:8080"`

	// Timeout must cover a lookup and a create, each bounded by
	// AUTHAPI_TIMEOUT.
	Timeout time.Duration `env:"TOKEN_TIMEOUT" envDefault:"25s"`
}

// Client fetches tokens over HTTP.
type Client struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// New creates a token fetch client. A nil httpClient gets one bounded by
// cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		url:        strings.TrimRight(cfg.Endpoint, "/") + "/api/auth",
		logger:     logger.With("component", "tokenfetch"),
	}
}

type fetchRequest struct {
	Data fetchUser `json:"data"`
}

type fetchUser struct {
	Issuer string `json:"issuer"`
	Email  string `json:"email"`
}

type fetchResponse struct {
	Key   string `json:"key"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Fetch returns the API token bound to user. A user without an issuer is
// rejected before any network call. The client address and request ID
// stored in ctx by the gateway are passed on, so the endpoint rate limits
// and logs the request as the user's.
func (c *Client) Fetch(ctx context.Context, user identity.User) (string, error) {
	if strings.TrimSpace(user.Issuer) == "" {
		return "", ErrInvalidUser
	}

	body, err := json.Marshal(fetchRequest{Data: fetchUser{Issuer: user.Issuer, Email: user.Email}})
	if err != nil {
		return "", fmt.Errorf("tokenfetch: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("tokenfetch: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if addr := gateway.GetClientAddr(ctx); addr != "" {
		req.Header.Set(gateway.ForwardedForHeader, addr)
	}
	if id := gateway.GetRequestID(ctx); id != "" {
		req.Header.Set(gateway.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tokenfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("tokenfetch: failed to read response: %w", err)
	}

	var decoded fetchResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := &ResolveError{StatusCode: resp.StatusCode, Code: decoded.Code, Message: decoded.Error}
		if decodeErr != nil || rerr.Message == "" {
			rerr.Message = http.StatusText(resp.StatusCode)
		}
		return "", rerr
	}

	if decodeErr != nil {
		return "", fmt.Errorf("tokenfetch: failed to decode response: %w", decodeErr)
	}
	if decoded.Key == "" {
		return "", ErrEmptyToken
	}

	c.logger.DebugContext(ctx, "token fetched", "issuer", user.Issuer)
	return decoded.Key, nil
}
