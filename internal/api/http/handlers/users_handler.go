package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/api/dto"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/service"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

// UsersHandler exposes account endpoints.
type UsersHandler struct {
	users *service.UserService
	auth  *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, authService *service.AuthService) *UsersHandler {
	return &UsersHandler{users: users, auth: authService}
}

// Register handles POST /api/user.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	user, err := h.users.Register(c.UserContext(), service.RegisterInput{
		Surname:    req.Surname,
		Name:       req.Name,
		Fathername: req.Fathername,
		Email:      req.Email,
		BirthDate:  req.BirthDate,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewUserResponse(user))
}

// List handles GET /api/user.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var req dto.UserListRequest
	if err := c.QueryParser(&req); err != nil {
		return apperrors.NewValidationError(map[string]any{"query": "limit and page must be integers"})
	}

	res, err := h.users.List(c.UserContext(), service.ListQuery{
		Limit:   req.Limit,
		Page:    req.Page,
		OrderBy: req.OrderBy,
		Sort:    req.Sort,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserListResponse(res))
}

// Get handles GET /api/user/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Block handles POST /api/user/:id/block. When callers block themselves the
// token they used is revoked before the response is written.
func (h *UsersHandler) Block(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	tok, hasTok := auth.TokenFromContext(c)
	if !ok || !hasTok {
		return apperrors.NewUnauthorized("")
	}

	user, err := h.users.Block(c.UserContext(), *principal, c.Params("id"))
	if err != nil {
		return err
	}
	if _, err := h.auth.SelfRevokeOnStateChange(c.UserContext(), *principal, user.ID, tok); err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}
