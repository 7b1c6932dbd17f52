package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"medibook/internal/config"
	"medibook/internal/logging"
	"medibook/internal/middleware"
	"medibook/internal/services"
	"medibook/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Auth   *services.AuthService
	Cfg    *config.Config
	Logger *logging.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *services.AuthService, cfg *config.Config, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{Auth: auth, Cfg: cfg, Logger: logger}
}

// SignupRequest represents the request body for user registration.
type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest represents the request body for token refresh and logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Signup handles user registration.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, err := h.Auth.Signup(c.Request.Context(), services.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.BadRequest(c, "Username must be at least 3 characters and password at least 6")
		return
	case errors.Is(err, services.ErrUsernameTaken):
		utils.Conflict(c, "Username already taken")
		return
	case err != nil:
		h.Logger.Error("signup failed", "error", err)
		utils.InternalServerError(c, "Failed to create account")
		return
	}

	h.setRefreshCookie(c, result)
	utils.Created(c, "Signup successful", authPayload(result))
}

// Login handles user and doctor login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.Unauthorized(c, "Invalid username or password")
		return
	case err != nil:
		h.Logger.Error("login failed", "error", err)
		utils.InternalServerError(c, "Failed to log in")
		return
	}

	h.setRefreshCookie(c, result)
	utils.Success(c, "Login successful", authPayload(result))
}

// RefreshToken rotates the refresh token and issues a new access token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token := h.presentedRefreshToken(c)
	if token == "" {
		utils.Unauthorized(c, "Refresh token is required")
		return
	}

	result, err := h.Auth.Refresh(c.Request.Context(), token)
	switch {
	case errors.Is(err, services.ErrInvalidToken):
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	case err != nil:
		h.Logger.Error("token refresh failed", "error", err)
		utils.InternalServerError(c, "Failed to refresh token")
		return
	}

	h.setRefreshCookie(c, result)
	utils.Success(c, "Access token refreshed successfully", authPayload(result))
}

// Logout revokes the presented refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := h.presentedRefreshToken(c)
	if token == "" {
		utils.BadRequest(c, "Refresh token is required")
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), token); err != nil {
		h.Logger.Error("logout failed", "error", err)
		utils.InternalServerError(c, "Failed to revoke refresh token")
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", !h.Cfg.IsDevelopment(), true)
	utils.Success(c, "Logout successful", nil)
}

// Me returns the signed-in account.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	current, err := h.Auth.Me(c.Request.Context(), identity)
	switch {
	case errors.Is(err, services.ErrInvalidToken):
		utils.Unauthorized(c, "Account no longer exists")
		return
	case err != nil:
		h.Logger.Error("profile lookup failed", "error", err, "user_id", identity.ID)
		utils.InternalServerError(c, "Failed to fetch profile")
		return
	}
	utils.Success(c, "Profile fetched successfully", gin.H{"user": current})
}

// presentedRefreshToken prefers the HTTP-only cookie and falls back to the body.
func (h *AuthHandler) presentedRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		return token
	}
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, result *services.AuthResult) {
	c.SetCookie(
		refreshCookie,
		result.Tokens.RefreshToken,
		int(h.Cfg.RefreshTokenTTL().Seconds()),
		"/",
		"",
		!h.Cfg.IsDevelopment(),
		true,
	)
}

func authPayload(result *services.AuthResult) gin.H {
	return gin.H{
		"_id":          result.Identity.ID,
		"username":     result.Identity.Username,
		"role":         result.Identity.Role,
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	}
}
