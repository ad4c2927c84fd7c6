package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultAPIVersion = "60.0"
	createChunkSize   = 200
)

type Config struct {
	InstanceURL string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	// MaxTries bounds attempts for reads; creates are never retried.
	MaxTries        uint
	InitialInterval time.Duration
	HTTPClient      *http.Client
}

// Client talks to the platform's REST data and tooling APIs with a
// bearer token obtained elsewhere.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxTries   uint
	initial    time.Duration
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Body)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func New(cfg Config) (*Client, error) {
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("instance URL is required for the rest provider")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required for the rest provider")
	}
	if _, err := url.Parse(cfg.InstanceURL); err != nil {
		return nil, fmt.Errorf("invalid instance URL: %w", err)
	}

	version := strings.TrimPrefix(cfg.APIVersion, "v")
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 4
	}
	initial := cfg.InitialInterval
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.InstanceURL, "/") + "/services/data/v" + version,
		token:      cfg.AccessToken,
		httpClient: httpClient,
		maxTries:   maxTries,
		initial:    initial,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBytes, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(respBytes)}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// get retries transient failures (transport errors, 429 and 5xx) with
// exponential backoff.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.doRequest(ctx, http.MethodGet, path, nil, result)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	return err
}
