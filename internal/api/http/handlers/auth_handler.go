package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ibistek-uty/incubation-api/internal/api/dto"
	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/service"
	apperrors "github.com/ibistek-uty/incubation-api/pkg/util/errorutil"
)

// AuthHandler exposes registration, login, profile and password endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	cookieTTL time.Duration
}

// NewAuthHandler constructs the handler. cookieTTL controls the auth cookie
// max-age and should match the token lifetime.
func NewAuthHandler(authService *service.AuthService, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: authService, cookieTTL: cookieTTL}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email and password are required")
	}
	if len(req.Password) < 6 {
		return apperrors.NewValidationError("password must be at least 6 characters")
	}

	user, token, exp, err := h.auth.Register(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.SuccessResponse(dto.AuthData{
		User:      dto.NewUserResponse(user),
		Token:     token,
		ExpiresAt: exp,
	}, "User registered successfully"))
}

// Login handles POST /auth/login. The token travels both in the body and in
// the auth cookie so browser and API clients can use the same endpoint.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required")
	}

	user, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	return c.JSON(dto.SuccessResponse(dto.AuthData{
		User:      dto.NewUserResponse(user),
		Token:     token,
		ExpiresAt: exp,
	}, "Login successful"))
}

// Me handles GET /auth/me. The route is behind RequireAuthenticated, so a
// missing identity here cannot happen; the stale-id case still returns 404.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}

	user, err := h.auth.GetByID(c.Context(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse(dto.NewUserResponse(user), ""))
}

// RequestPasswordReset handles POST /auth/password/reset/request.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email is required")
	}

	token, err := h.auth.RequestPasswordReset(c.Context(), req.Email)
	if err != nil {
		return err
	}

	// Delivery is a mail concern outside this service; the token is returned
	// directly. TODO: drop the token from the body once the notifier exists.
	return c.JSON(dto.SuccessResponse(fiber.Map{
		"token":     token.Token,
		"expiresAt": token.ExpiresAt,
	}, "Password reset requested"))
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}
	if req.Token == "" || len(req.NewPassword) < 6 {
		return apperrors.NewValidationError("token and a password of at least 6 characters are required")
	}

	if err := h.auth.ConfirmPasswordReset(c.Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse(nil, "Password updated successfully"))
}

// ChangePassword handles POST /auth/password/change (authenticated).
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}

	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}
	if req.CurrentPassword == "" || len(req.NewPassword) < 6 {
		return apperrors.NewValidationError("currentPassword and a new password of at least 6 characters are required")
	}

	if err := h.auth.ChangePassword(c.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse(nil, "Password updated successfully"))
}
