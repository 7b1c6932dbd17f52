// Package sessions persists refresh sessions so refresh tokens can be
// rotated and revoked server-side.
package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown, revoked or expired sessions.
var ErrNotFound = errors.New("sessions: session not found")

// Session is one issued refresh token, identified by its token id.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store keeps refresh sessions.
type Store interface {
	Save(ctx context.Context, session Session) error
	// Consume invalidates the session and returns it in one step, so a
	// session can be consumed only once. Unknown, revoked and expired
	// sessions yield ErrNotFound.
	Consume(ctx context.Context, id string) (*Session, error)
	// Revoke invalidates the session. Unknown ids are not an error.
	Revoke(ctx context.Context, id string) error
}
