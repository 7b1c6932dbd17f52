// Package client is a Go client for the medibook HTTP API. It holds the
// signed-in session, persists it between runs and exposes booking calls.
package client

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

	"medibook/internal/models"
)

// ErrNotAuthenticated is returned by calls that need a signed-in user.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("medibook api: %d %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// authenticator supplies and renews the bearer token for authenticated calls.
type authenticator interface {
	AccessToken() string
	Refresh(ctx context.Context) error
}

// AuthResponse is the body returned by signup, login and refresh.
type AuthResponse struct {
	ID           models.ID   `json:"_id"`
	Username     string      `json:"username"`
	Role         models.Role `json:"role"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Identity returns the identity part of the response.
func (r *AuthResponse) Identity() models.Identity {
	return models.Identity{ID: r.ID, Username: r.Username, Role: r.Role}
}

// CreateAppointmentRequest is the booking request body.
type CreateAppointmentRequest struct {
	DoctorID string `json:"doctorId"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Status   string `json:"status,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client performs HTTP calls against the API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       authenticator
}

// New returns an unauthenticated client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signup registers an account.
func (c *Client) Signup(ctx context.Context, username, password string, role models.Role) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"username": username, "password": password, "role": string(role)}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshTokens rotates a refresh token.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeRefreshToken invalidates a refresh token on the server.
func (c *Client) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.do(ctx, http.MethodPost, "/api/auth/logout", body, nil, false)
}

// ListDoctors returns the doctor directory.
func (c *Client) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	var out struct {
		Doctors []models.Doctor `json:"doctors"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/doctors", nil, &out, false); err != nil {
		return nil, err
	}
	return out.Doctors, nil
}

// ListAppointments returns a user's appointments with doctor summaries.
func (c *Client) ListAppointments(ctx context.Context, userID models.ID) ([]models.Appointment, error) {
	var out struct {
		Appointments []models.Appointment `json:"appointments"`
	}
	path := "/api/appointment?userId=" + url.QueryEscape(userID.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	if out.Appointments == nil {
		return nil, errors.New("client: invalid appointments payload")
	}
	return out.Appointments, nil
}

// CreateAppointment books an appointment and returns its id.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (models.ID, error) {
	var out struct {
		Success       bool      `json:"success"`
		AppointmentID models.ID `json:"appointmentId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/appointment", req, &out, true); err != nil {
		return "", err
	}
	return out.AppointmentID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var payload []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		payload = raw
	}

	resp, err := c.send(ctx, method, path, payload, authed)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && authed && c.auth != nil {
		resp.Body.Close()
		if err := c.auth.Refresh(ctx); err != nil {
			return &APIError{StatusCode: http.StatusUnauthorized, Message: "session expired"}
		}
		resp, err = c.send(ctx, method, path, payload, authed)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, authed bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.auth != nil {
		if token := c.auth.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Message != "":
			msg = body.Message
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
