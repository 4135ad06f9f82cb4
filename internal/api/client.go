// Package api is a typed binding for the shop REST API: auth, catalog, cart,
// wishlist and orders. Every endpoint answers with the envelope
// {success, message, data}.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"storefront/internal/config"
)

const maxResponseBytes = 1 << 20

// Client calls the shop API on behalf of one shopper.
type Client struct {
	baseURL string
	http    *retryablehttp.Client

	mu    sync.RWMutex
	token string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient creates a shop API client. Only reads are retried; mutations go
// out once so a lost response can never add an item twice.
func NewClient(cfg config.APIConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = max(cfg.Retries, 0)
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = slog.Default()
	// hand back the last response instead of a generic "giving up" error so
	// the envelope can still be read
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: baseURL,
		http:    rc,
	}, nil
}

// SetToken sets the bearer token sent with every call. Empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL is the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request and decodes the envelope's data into out (when out is
// non-nil). Non-2xx statuses and success:false envelopes become *Error.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	var resp *http.Response
	if method == http.MethodGet {
		retryable, rerr := retryablehttp.FromRequest(req)
		if rerr != nil {
			return fmt.Errorf("build %s request: %w", op, rerr)
		}
		resp, err = c.http.Do(retryable)
	} else {
		resp, err = c.http.HTTPClient.Do(req)
	}
	if err != nil {
		return &Error{Op: op, Kind: KindTransient, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: KindTransient, Err: fmt.Errorf("read response: %w", err)}
	}

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if ok {
			return &Error{Op: op, StatusCode: resp.StatusCode, Kind: KindTransient, Err: fmt.Errorf("decode response: %w", err)}
		}
		// error pages from proxies and frameworks are rarely JSON
		message := strings.TrimSpace(string(raw))
		kind := classify(resp.StatusCode, message)
		if strings.HasPrefix(message, "<") {
			message = http.StatusText(resp.StatusCode)
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: kind, Message: message}
	}

	if !ok || !env.Success {
		kind := classify(resp.StatusCode, env.Message)
		slog.DebugContext(ctx, "shop api rejected request", "op", op, "status", resp.StatusCode, "kind", kind, "message", env.Message)
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: kind, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: KindTransient, Err: fmt.Errorf("decode %s data: %w", op, err)}
	}
	return nil
}
