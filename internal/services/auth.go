package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"medibook/internal/config"
	"medibook/internal/logging"
	"medibook/internal/metrics"
	"medibook/internal/models"
	"medibook/internal/repository"
	"medibook/internal/sessions"
	"medibook/internal/utils"
)

var authTracer = otel.Tracer("medibook.internal.services.auth")

// SignupInput is a registration request. Role defaults to user.
type SignupInput struct {
	Username string `validate:"required,min=3"`
	Password string `validate:"required,min=6"`
	Role     string
}

// AuthResult is returned by Signup, Login and Refresh.
type AuthResult struct {
	Identity models.Identity
	Tokens   *utils.TokenPair
}

// AuthService issues and rotates tokens for users and doctors.
type AuthService struct {
	users    repository.UserRepository
	doctors  repository.DoctorRepository
	sessions sessions.Store
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAuthService constructs an auth service. m may be nil.
func NewAuthService(users repository.UserRepository, doctors repository.DoctorRepository, store sessions.Store, cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) *AuthService {
	if users == nil || doctors == nil || store == nil || cfg == nil {
		panic("services: auth dependencies required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthService{
		users:    users,
		doctors:  doctors,
		sessions: store,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Signup creates a user account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	ctx, span := authTracer.Start(ctx, "auth.signup")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: username must be at least 3 characters and password at least 6", ErrValidation)
	}
	role := models.RoleUser
	if in.Role != "" {
		role = models.Role(strings.ToLower(strings.TrimSpace(in.Role)))
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
		}
	}

	// Doctors share the login namespace.
	if _, err := s.doctors.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("services: signup: %w", err)
	}

	user := models.User{
		Username:  in.Username,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("services: hash password: %w", err)
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("services: create user: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID, "role", user.Role)
	return s.issue(ctx, user.Identity())
}

// Login checks credentials against users first, then doctors.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	ctx, span := authTracer.Start(ctx, "auth.login")
	defer span.End()

	identity, err := s.authenticate(ctx, strings.TrimSpace(username), password)
	if err != nil {
		s.metrics.ObserveLogin(false)
		return nil, err
	}
	result, err := s.issue(ctx, identity)
	if err != nil {
		s.metrics.ObserveLogin(false)
		return nil, err
	}
	s.metrics.ObserveLogin(true)
	return result, nil
}

func (s *AuthService) authenticate(ctx context.Context, username, password string) (models.Identity, error) {
	if username == "" || password == "" {
		return models.Identity{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !user.CheckPassword(password) {
			return models.Identity{}, ErrInvalidCredentials
		}
		return user.Identity(), nil
	case !errors.Is(err, repository.ErrNotFound):
		return models.Identity{}, fmt.Errorf("services: find user: %w", err)
	}

	doctor, err := s.doctors.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !doctor.CheckPassword(password) {
			return models.Identity{}, ErrInvalidCredentials
		}
		return doctor.Identity(), nil
	case errors.Is(err, repository.ErrNotFound):
		return models.Identity{}, ErrInvalidCredentials
	default:
		return models.Identity{}, fmt.Errorf("services: find doctor: %w", err)
	}
}

// Refresh rotates a refresh token: the presented session is revoked and a
// new pair is issued for the same identity.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	ctx, span := authTracer.Start(ctx, "auth.refresh")
	defer span.End()

	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	session, err := s.sessions.Consume(ctx, claims.ID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("services: consume session: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}
	return s.issue(ctx, claims.Identity())
}

// Me re-reads a signed-in user account so deleted accounts stop resolving.
// Doctor accounts are seeded and returned as carried by the token.
func (s *AuthService) Me(ctx context.Context, identity models.Identity) (models.Identity, error) {
	if identity.Role != models.RoleUser {
		return identity, nil
	}
	user, err := s.users.FindByID(ctx, identity.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Identity{}, ErrInvalidToken
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("services: find user: %w", err)
	}
	return user.Identity(), nil
}

// Logout revokes the session behind a refresh token. Tokens that do not
// parse have nothing to revoke and are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("services: revoke session: %w", err)
	}
	s.logger.Info("session revoked", "user_id", claims.UserID)
	return nil
}

func (s *AuthService) issue(ctx context.Context, identity models.Identity) (*AuthResult, error) {
	tokens, err := utils.GenerateTokens(identity, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}
	session := sessions.Session{
		ID:        tokens.RefreshID,
		UserID:    identity.ID.String(),
		ExpiresAt: tokens.RefreshExpiresAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("services: save session: %w", err)
	}
	return &AuthResult{Identity: identity, Tokens: tokens}, nil
}
