// Package directory is the HTTP client for the external key-management
// service. It performs the two calls resolution needs: lookup by issuer and
// create.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SebastienMelki/keyportal/internal/apikey/internal/domain"
)

// DefaultTimeout bounds a single directory call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a directory response is read.
const maxResponseBytes = 1 << 20

// Config holds the key directory connection settings.
type Config struct {
	// BaseURL is the directory root, e.g. "https://keys.example.com".
	BaseURL string

	// ProjectID scopes every lookup and create.
	ProjectID string

	// AccessKey is sent in the x-api-key header.
	AccessKey string

	// Timeout bounds each call (default: 10s).
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Client talks to the key directory. Each call is a single request with no
// retry; it either returns a full result or an error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	projectID  string
	accessKey  string
	logger     *slog.Logger
}

// New creates a directory Client. If httpClient is nil a client with
// cfg.Timeout is created.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		projectID:  cfg.ProjectID,
		accessKey:  cfg.AccessKey,
		logger:     logger.With("component", "key-directory"),
	}
}

// createRequest is the JSON body for POST /api-keys.
type createRequest struct {
	CustomAccountID string `json:"customAccountId"`
	Name            string `json:"name"`
	ProjectID       string `json:"projectId"`
}

// Lookup returns the records bound to issuer in the configured project, in
// directory order. An empty slice means none exist. A 404 is returned as
// domain.ErrNotFound; callers decide what that means.
func (c *Client) Lookup(ctx context.Context, issuer string) ([]domain.Record, error) {
	q := url.Values{}
	q.Set("projectId", c.projectID)
	q.Set("customAccountId", issuer)
	endpoint := c.baseURL + "/api-keys/?" + q.Encode()

	var records []domain.Record
	if err := c.do(ctx, "lookup", http.MethodGet, endpoint, nil, &records); err != nil {
		return nil, err
	}

	c.logger.Debug("lookup complete", "issuer", issuer, "matches", len(records))
	return records, nil
}

// Create registers a new key for issuer, named after the percent-encoded
// email.
func (c *Client) Create(ctx context.Context, issuer, email string) (domain.Record, error) {
	body, err := json.Marshal(createRequest{
		CustomAccountID: issuer,
		Name:            domain.EncodeName(email),
		ProjectID:       c.projectID,
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to marshal create request: %w", err)
	}

	var record domain.Record
	if err := c.do(ctx, "create", http.MethodPost, c.baseURL+"/api-keys", body, &record); err != nil {
		return domain.Record{}, err
	}

	c.logger.Debug("key created", "issuer", issuer)
	return record, nil
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to create request: %w", domain.ErrTransport, op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.accessKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %w", domain.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %w", domain.ErrTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewStatusError(op, endpoint, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %w", domain.ErrUpstream, op, err)
	}

	return nil
}
