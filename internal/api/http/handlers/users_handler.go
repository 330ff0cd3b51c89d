package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ibistek-uty/incubation-api/internal/api/dto"
	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/domain"
	"github.com/ibistek-uty/incubation-api/internal/repository"
	"github.com/ibistek-uty/incubation-api/internal/service"
	apperrors "github.com/ibistek-uty/incubation-api/pkg/util/errorutil"
)

// UsersHandler exposes the admin-only account management endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	filter := repository.UserListFilter{
		Page:   page,
		Limit:  limit,
		Role:   domain.Role(c.Query("role")),
		Search: c.Query("search"),
	}

	users, total, err := h.users.List(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(dto.SuccessResponse(
		dto.NewPaginated(dto.NewUserResponses(users), total, page, limit), ""))
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email and password are required")
	}

	user, err := h.users.Create(c.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(
		dto.SuccessResponse(dto.NewUserResponse(user), "User created successfully"))
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload")
	}

	var role *domain.Role
	if req.Role != nil {
		r := domain.Role(*req.Role)
		role = &r
	}

	user, err := h.users.Update(c.Context(), c.Params("id"), service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}

	return c.JSON(dto.SuccessResponse(dto.NewUserResponse(user), "User updated successfully"))
}

// Delete handles DELETE /users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	deletedBy := ""
	if identity, ok := auth.IdentityFromContext(c); ok {
		deletedBy = identity.UserID
	}

	if err := h.users.Delete(c.Context(), c.Params("id"), deletedBy); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse(nil, "User deleted successfully"))
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
