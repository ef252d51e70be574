package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/api/dto"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/service"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

// AuthHandler exposes login and logout.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError(map[string]any{"credentials": "email and password required"})
	}

	tok, err := h.auth.Login(c.UserContext(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.LoginResponse{AccessToken: tok.Raw})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	tok, hasTok := auth.TokenFromContext(c)
	if !ok || !hasTok {
		return apperrors.NewUnauthorized("")
	}

	if err := h.auth.Logout(c.UserContext(), *principal, tok); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
