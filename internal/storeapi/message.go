package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// SendMessage issues the authoritative send. The store echoes the
// correlation token on the persisted record.
func (c *Client) SendMessage(ctx context.Context, req api.SendMessageRequest) (*domain.Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}

	resp, err := c.do(ctx, "POST", "/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, readError("send message", resp)
	}

	var out api.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse message response: %w", err)
	}
	return &out.Message, nil
}

// ListMessages fetches one newest-first page for the target context.
func (c *Client) ListMessages(ctx context.Context, target domain.TargetContext, cursor string, limit int) (*api.MessagePage, error) {
	q := url.Values{}
	q.Set("channel", target.Channel)
	if target.ParentMessage != "" {
		q.Set("parent", target.ParentMessage)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	resp, err := c.do(ctx, "GET", "/v1/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError("list messages", resp)
	}

	var page api.MessagePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to parse message page: %w", err)
	}
	return &page, nil
}

// CurrentUser returns the identity behind the access token.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	resp, err := c.do(ctx, "GET", "/v1/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError("get current user", resp)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	return &user, nil
}
