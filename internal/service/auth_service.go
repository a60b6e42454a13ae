package service

import (
	"context"
	"fmt"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo ports.UserRepository
	hasher   ports.HashService
	tokens   ports.TokenService
	audit    ports.AuditService
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	hasher ports.HashService,
	tokens ports.TokenService,
	audit ports.AuditService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		audit:    audit,
		log:      log,
	}
}

// Login verifies the credentials and issues a bearer token. The password
// arrives pre-digested by the client; the stored Argon2id hash covers the
// digest, never the raw password.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.ErrDatabaseError(err)
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		s.log.Warn().Str("username", username).Msg("login failed: bad password")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	if !user.Active {
		return "", time.Time{}, apperror.ErrAccountDisabled()
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &user.ID,
		Action:       domain.ActivityLogin,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		CreatedAt:    time.Now().UTC(),
	})

	return token, expiresAt, nil
}
