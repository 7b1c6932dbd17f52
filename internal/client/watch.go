package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"medibook/internal/models"
)

// BookingEvent is a server push about a new appointment.
type BookingEvent struct {
	Type        string             `json:"type"`
	Appointment models.Appointment `json:"appointment"`
}

// Watch streams booking events for the signed-in user until ctx is done or
// the connection drops. fn runs on the reading goroutine.
func (s *Session) Watch(ctx context.Context, fn func(BookingEvent)) error {
	wsURL, err := s.api.websocketURL("/api/ws")
	if err != nil {
		return err
	}
	if token := s.AccessToken(); token != "" {
		q := wsURL.Query()
		q.Set("token", token)
		wsURL.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("client: watch: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var event BookingEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil
			}
			return fmt.Errorf("client: watch: %w", err)
		}
		fn(event)
	}
}

func (c *Client) websocketURL(path string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u, nil
}
