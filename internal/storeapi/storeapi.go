// Package storeapi is the HTTP/WebSocket client for the external message
// store. It owns nothing but the wire protocol: JSON endpoints for
// registration and sends, a raw byte push to one-time upload URLs, and a
// live subscription stream per target context.
package storeapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Client handles all communication with the store.
type Client struct {
	BaseURL     string
	AccessToken string
	HttpClient  *http.Client
}

// New creates a store client. Requests carry the access token as the
// accessToken cookie and are instrumented with Prometheus metrics.
func New(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		HttpClient:  &http.Client{Transport: InstrumentTransport(http.DefaultTransport)},
	}
}

// do is the single helper for JSON API requests against the store.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AccessToken != "" {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: c.AccessToken})
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store unavailable: %w", err)
	}
	return resp, nil
}

// readError drains the response body into an error message.
func readError(action string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	if len(bodyBytes) == 0 {
		return fmt.Errorf("failed to %s: status %d", action, resp.StatusCode)
	}
	return fmt.Errorf("failed to %s: %s", action, string(bodyBytes))
}
