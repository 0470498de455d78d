package storeapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// Subscription is a live, newest-first feed of message records for one
// target context. Records arrive until Close is called or the connection
// drops; Err reports why the feed ended.
type Subscription struct {
	conn    *websocket.Conn
	records chan domain.Message

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// Records returns the channel of incoming message records. Closed when
// the subscription ends.
func (s *Subscription) Records() <-chan domain.Message {
	return s.records
}

// Err returns the terminal error of the feed, nil after a clean Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		_ = s.conn.Close()
	})
}

func (s *Subscription) run() {
	defer close(s.records)
	for {
		var record domain.Message
		if err := s.conn.ReadJSON(&record); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		s.records <- record
	}
}

// Subscribe opens the live message feed for a target context.
func (c *Client) Subscribe(ctx context.Context, target domain.TargetContext) (*Subscription, error) {
	wsUrl, err := liveUrl(c.BaseURL, target)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.AccessToken != "" {
		header.Set("Cookie", (&http.Cookie{Name: "accessToken", Value: c.AccessToken}).String())
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsUrl, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to subscribe (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &Subscription{conn: conn, records: make(chan domain.Message, 16)}
	go sub.run()
	return sub, nil
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}

func liveUrl(baseURL string, target domain.TargetContext) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid store base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/channels/" + target.Channel + "/live"
	if target.ParentMessage != "" {
		q := u.Query()
		q.Set("parent", target.ParentMessage)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
