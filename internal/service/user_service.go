package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/domain"
	"github.com/ibistek-uty/incubation-api/internal/events"
	"github.com/ibistek-uty/incubation-api/internal/repository"
	apperrors "github.com/ibistek-uty/incubation-api/pkg/util/errorutil"
)

// UserService backs the admin-only user management endpoints.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, bcryptCost int) *UserService {
	if bcryptCost <= 0 {
		bcryptCost = 10
	}
	return &UserService{users: users, dispatcher: dispatcher, bcryptCost: bcryptCost}
}

// CreateUserInput carries admin-supplied account fields.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	IsActive *bool
}

// UpdateUserInput carries optional fields; nil means unchanged.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
	IsActive *bool
}

// List returns a page of accounts with the total count.
func (s *UserService) List(ctx context.Context, filter repository.UserListFilter) ([]*domain.User, int, error) {
	return s.users.List(ctx, filter)
}

// Create provisions an account with an explicit role.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleMember
	}
	if !domain.ValidRole(role) {
		return nil, apperrors.NewValidationError("Invalid role")
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user, events.UserRegisteredPayload{Email: user.Email})
	return user, nil
}

// Update applies the provided fields to an existing account.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, err
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil && *input.Email != user.Email {
		if _, err := s.users.GetByEmail(ctx, *input.Email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		user.Email = *input.Email
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if input.Role != nil {
		if !domain.ValidRole(*input.Role) {
			return nil, apperrors.NewValidationError("Invalid role")
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, err
	}
	return user, nil
}

// Delete removes an account. deletedBy is recorded in the audit trail.
func (s *UserService) Delete(ctx context.Context, id, deletedBy string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("User")
		}
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("User")
		}
		return err
	}

	s.publish(ctx, events.EventUserDeleted, user, events.UserDeletedPayload{DeletedBy: deletedBy})
	return nil
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    user.ID,
		Role:      user.Role,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
