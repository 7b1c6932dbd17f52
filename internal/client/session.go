package client

import (
	"context"
	"net/http"
	"sync"

	"medibook/internal/models"
)

type listeners[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
	order  []int
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]func(T){}
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.order = append(l.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
			for i, v := range l.order {
				if v == id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.order))
	for _, id := range l.order {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Session is the signed-in state of one client. It moves between
// unauthenticated and authenticated and mirrors every change to its Store.
type Session struct {
	api   *Client
	store Store

	mu    sync.RWMutex
	state State

	refreshMu sync.Mutex
	changes   listeners[*models.Identity]
}

// NewSession returns a session talking to baseURL. Saved state is restored
// from store; tokens are checked by the server on first use.
func NewSession(baseURL string, store Store, opts ...Option) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store}
	s.api = New(baseURL, opts...)
	s.api.auth = s

	if saved, err := store.Load(); err == nil && saved != nil && saved.User != nil {
		s.state = *saved
	} else if err != nil {
		store.Clear()
	}
	return s
}

// API returns the client bound to this session.
func (s *Session) API() *Client { return s.api }

// CurrentUser returns the signed-in identity, or nil.
func (s *Session) CurrentUser() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	user := *s.state.User
	return &user
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

// OnChange registers fn to be called with the new identity, or nil after
// sign-out, whenever the signed-in user changes.
func (s *Session) OnChange(fn func(*models.Identity)) (unsubscribe func()) {
	return s.changes.add(fn)
}

// Login signs in with username and password. On failure the session is
// left as it was and nothing is persisted.
func (s *Session) Login(ctx context.Context, username, password string) error {
	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.establish(resp)
}

// Signup registers and signs in a new account.
func (s *Session) Signup(ctx context.Context, username, password string, role models.Role) error {
	resp, err := s.api.Signup(ctx, username, password, role)
	if err != nil {
		return err
	}
	return s.establish(resp)
}

// Logout clears the session locally and then asks the server to revoke
// the refresh token. A failed revoke does not restore the session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.state.RefreshToken
	wasAuthenticated := s.state.User != nil
	s.state = State{}
	s.mu.Unlock()

	clearErr := s.store.Clear()
	if wasAuthenticated {
		s.changes.emit(nil)
	}
	if refreshToken != "" {
		s.api.RevokeRefreshToken(ctx, refreshToken)
	}
	return clearErr
}

// AccessToken returns the current bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// Refresh rotates the refresh token. A rejected refresh signs the user out.
func (s *Session) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	refreshToken := s.state.RefreshToken
	s.mu.RUnlock()
	if refreshToken == "" {
		return ErrNotAuthenticated
	}

	resp, err := s.api.RefreshTokens(ctx, refreshToken)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			s.mu.Lock()
			s.state = State{}
			s.mu.Unlock()
			s.store.Clear()
			s.changes.emit(nil)
		}
		return err
	}

	s.mu.Lock()
	s.state.AccessToken = resp.AccessToken
	s.state.RefreshToken = resp.RefreshToken
	state := s.state
	s.mu.Unlock()
	return s.store.Save(state)
}

func (s *Session) establish(resp *AuthResponse) error {
	identity := resp.Identity()
	state := State{User: &identity, AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := s.store.Save(state); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	user := identity
	s.changes.emit(&user)
	return nil
}
