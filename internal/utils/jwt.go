package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medibook/internal/config"
	"medibook/internal/models"
)

// Claims represents the JWT claims.
type Claims struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the session identity carried by the token.
func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: models.ID(c.UserID), Username: c.Username, Role: c.Role}
}

// TokenPair is the result of a successful login, signup or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshID        string
	RefreshExpiresAt time.Time
}

// GenerateTokens generates both access and refresh tokens for an identity.
// The refresh token carries a random id so it can be tracked server-side.
func GenerateTokens(identity models.Identity, cfg *config.Config) (*TokenPair, error) {
	now := time.Now()

	accessToken, err := signToken(identity, "", now, now.Add(cfg.AccessTokenTTL()), cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshID := uuid.NewString()
	refreshExpiresAt := now.Add(cfg.RefreshTokenTTL())
	refreshToken, err := signToken(identity, refreshID, now, refreshExpiresAt, cfg.JWTRefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshID:        refreshID,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func signToken(identity models.Identity, id string, issuedAt, expiresAt time.Time, secret string) (string, error) {
	claims := &Claims{
		UserID:   identity.ID.String(),
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Subject:   identity.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token.
func ValidateToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
