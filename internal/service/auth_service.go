package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ibistek-uty/incubation-api/internal/auth"
	"github.com/ibistek-uty/incubation-api/internal/domain"
	"github.com/ibistek-uty/incubation-api/internal/events"
	"github.com/ibistek-uty/incubation-api/internal/repository"
	apperrors "github.com/ibistek-uty/incubation-api/pkg/util/errorutil"
)

var (
	// ErrEmailTaken signals registration with an already registered email.
	ErrEmailTaken = apperrors.NewDomainError("EMAIL_TAKEN", "Email already registered", http.StatusBadRequest)
	// ErrInvalidCredentials covers unknown email, wrong password and inactive
	// accounts alike; the three are indistinguishable to the caller.
	ErrInvalidCredentials = apperrors.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	// ErrResetTokenInvalid covers unknown, used and expired reset tokens.
	ErrResetTokenInvalid = apperrors.NewDomainError("RESET_TOKEN_INVALID", "Invalid or expired reset token", http.StatusBadRequest)
)

// AuthService coordinates registration, login and password flows.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	codec      *auth.TokenCodec
	dispatcher events.Dispatcher
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborator requirements for AuthService.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	TokenCodec        *auth.TokenCodec
	Dispatcher        events.Dispatcher
	BcryptCost        int
	ResetTTL          time.Duration
	Now               func() time.Time
}

// NewAuthService builds the service. Secret, store and clock all arrive as
// explicit dependencies so tests can substitute fakes.
func NewAuthService(deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cost := deps.BcryptCost
	if cost <= 0 {
		cost = 10
	}
	resetTTL := deps.ResetTTL
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		codec:      deps.TokenCodec,
		dispatcher: deps.Dispatcher,
		bcryptCost: cost,
		resetTTL:   resetTTL,
		now:        now,
	}
}

// Register creates a new MEMBER account. Roles are assigned only through the
// admin user endpoints, never at self-registration.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleMember,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.codec.Issue(domain.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.EventUserRegistered, user, events.UserRegisteredPayload{Email: user.Email})
	return user, token, exp, nil
}

// Login authenticates by email and password and mints a fresh token. Unknown
// emails still pay for a bcrypt comparison so response timing does not reveal
// which addresses are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.CompareDummy(password)
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, exp, err := s.codec.Issue(domain.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user, nil)
	return user, token, exp, nil
}

// GetByID fetches an account profile.
func (s *AuthService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset persists a single-use reset token for the account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*repository.PasswordResetToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, err
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventPasswordResetRequested, user, nil)
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates the password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if token.UsedAt != nil || s.now().After(token.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordChanged, user, nil)
	return nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("User")
		}
		return err
	}

	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordChanged, user, nil)
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    user.ID,
		Role:      user.Role,
		Timestamp: s.now(),
		Payload:   payload,
	})
}
