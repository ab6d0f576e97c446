// Package httpprovider talks to an online aircraft lookup service over HTTP
package httpprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// SettingsTTL is how long advised settings are trusted before asking again
const SettingsTTL = time.Hour

// Client implements lookup.Provider
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
	clock      func() time.Time

	settings       lookup.Settings
	settingsExpiry time.Time
	settingsMu     sync.Mutex
}

type lookupRequest struct {
	Icaos []transponder.Icao24 `json:"icaos"`
}

type lookupResponse struct {
	Found   []lookup.Outcome `json:"found"`
	Missing []lookup.Outcome `json:"missing"`
}

type settingsResponse struct {
	MaxBatchSize    int `json:"max_batch_size"`
	MinRetrySeconds int `json:"min_retry_seconds"`
	MaxRetrySeconds int `json:"max_retry_seconds"`
}

// NewClient creates a lookup client. apiKey may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     log.Named("lookup-cli"),
		clock:      time.Now,
	}
}

// Lookup asks the service about a batch of addresses
func (c *Client) Lookup(ctx context.Context, icaos []transponder.Icao24) (*lookup.Batch, error) {
	body, err := json.Marshal(lookupRequest{Icaos: icaos})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp lookupResponse
	if err := c.do(ctx, http.MethodPost, "/lookup", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}

	for i := range resp.Found {
		resp.Found[i].Found = true
	}
	for i := range resp.Missing {
		resp.Missing[i].Found = false
	}

	c.logger.Debug("Lookup response",
		logger.Int("requested", len(icaos)),
		logger.Int("found", len(resp.Found)),
		logger.Int("missing", len(resp.Missing)))

	return &lookup.Batch{Found: resp.Found, Missing: resp.Missing}, nil
}

// Settings returns the service's advised settings, fetching them at most
// once per SettingsTTL
func (c *Client) Settings(ctx context.Context) (lookup.Settings, error) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	now := c.clock()
	if now.Before(c.settingsExpiry) {
		return c.settings, nil
	}

	var resp settingsResponse
	if err := c.do(ctx, http.MethodGet, "/settings", nil, &resp); err != nil {
		return lookup.Settings{}, err
	}

	c.settings = lookup.Settings{
		MaxBatchSize:     resp.MaxBatchSize,
		MinRetryInterval: time.Duration(resp.MinRetrySeconds) * time.Second,
		MaxRetryInterval: time.Duration(resp.MaxRetrySeconds) * time.Second,
	}
	c.settingsExpiry = now.Add(SettingsTTL)

	c.logger.Info("Fetched lookup settings",
		logger.Int("max_batch_size", c.settings.MaxBatchSize),
		logger.Duration("min_retry_interval", c.settings.MinRetryInterval),
		logger.Duration("max_retry_interval", c.settings.MaxRetryInterval))

	return c.settings, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}
