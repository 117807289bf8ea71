package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/repository"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

// AuthService coordinates login, registration, and refresh-token rotation.
// It is the only component that writes the refresh store.
type AuthService struct {
	principals    repository.PrincipalRepository
	refreshTokens repository.RefreshTokenRepository
	codec         *auth.TokenCodec
	hasher        auth.Hasher
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	PrincipalRepo    repository.PrincipalRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		principals:    deps.PrincipalRepo,
		refreshTokens: deps.RefreshTokenRepo,
		codec: auth.NewTokenCodec(
			cfg.Auth.AccessSecret,
			cfg.Auth.RefreshSecret,
			cfg.Auth.AccessTTL(),
			cfg.Auth.RefreshTTL(),
		),
		hasher:     auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// Login verifies credentials and issues a fresh access/refresh pair. A missing
// principal and a wrong secret produce the same INVALID_CREDENTIALS result.
func (s *AuthService) Login(ctx context.Context, subject, secret string) (*domain.TokenPair, error) {
	principal, err := s.principals.GetBySubject(ctx, subject)
	if err != nil {
		if repository.IsNotFound(err) {
			s.metrics.RecordAuthOutcome("login", false)
			return nil, apperrors.NewInvalidCredentials()
		}
		s.metrics.RecordAuthOutcome("login", false)
		return nil, apperrors.NewUnavailable(err)
	}

	if !s.hasher.Matches(secret, principal.CredentialHash) {
		s.metrics.RecordAuthOutcome("login", false)
		return nil, apperrors.NewInvalidCredentials()
	}

	pair, err := s.issuePair(ctx, principal)
	if err != nil {
		s.metrics.RecordAuthOutcome("login", false)
		return nil, err
	}

	s.metrics.RecordAuthOutcome("login", true)
	s.publish(ctx, events.EventLoginSucceeded, principal.Subject, events.LoginSucceededPayload{Role: principal.Role})
	return pair, nil
}

// Register validates input, persists the principal, and issues tokens. The
// existence check runs first, but the database uniqueness constraint is the
// final authority under concurrent registration of the same subject.
func (s *AuthService) Register(ctx context.Context, subject, secret string) (*domain.TokenPair, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, apperrors.NewInvalidInput("subject must not be blank", nil)
	}
	if strings.TrimSpace(secret) == "" {
		return nil, apperrors.NewInvalidInput("secret must not be blank", nil)
	}

	if _, err := s.principals.GetBySubject(ctx, subject); err == nil {
		s.metrics.RecordAuthOutcome("register", false)
		return nil, apperrors.NewAlreadyExists("subject already registered", nil)
	} else if !repository.IsNotFound(err) {
		s.metrics.RecordAuthOutcome("register", false)
		return nil, apperrors.NewUnavailable(err)
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		s.metrics.RecordAuthOutcome("register", false)
		return nil, apperrors.NewInternalError(err)
	}

	principal := &domain.Principal{
		Subject:        subject,
		CredentialHash: hash,
		Role:           domain.RoleUser,
	}
	if err := s.principals.Create(ctx, principal); err != nil {
		s.metrics.RecordAuthOutcome("register", false)
		if err == repository.ErrDuplicateSubject {
			return nil, apperrors.NewAlreadyExists("subject already registered", nil)
		}
		return nil, apperrors.NewUnavailable(err)
	}

	pair, err := s.issuePair(ctx, principal)
	if err != nil {
		s.metrics.RecordAuthOutcome("register", false)
		return nil, err
	}

	s.metrics.RecordAuthOutcome("register", true)
	s.publish(ctx, events.EventPrincipalRegistered, principal.Subject, events.PrincipalRegisteredPayload{
		PrincipalID: principal.ID,
		Role:        principal.Role,
	})
	return pair, nil
}

// Refresh rotates the refresh token: every successful call invalidates the
// token just presented. A rotated-out token fails the exact-match check even
// if its signature and expiry are still valid.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*domain.TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(presented)
	if err != nil {
		s.metrics.RecordAuthOutcome("refresh", false)
		return nil, apperrors.NewInvalidToken("")
	}

	stored, err := s.refreshTokens.Get(ctx, claims.Subject)
	if err != nil {
		s.metrics.RecordAuthOutcome("refresh", false)
		if err == repository.ErrRefreshTokenNotFound {
			return nil, apperrors.NewInvalidToken("")
		}
		return nil, apperrors.NewUnavailable(err)
	}
	if stored != presented {
		s.metrics.RecordAuthOutcome("refresh", false)
		return nil, apperrors.NewInvalidToken("")
	}

	principal, err := s.principals.GetBySubject(ctx, claims.Subject)
	if err != nil {
		s.metrics.RecordAuthOutcome("refresh", false)
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("principal", nil)
		}
		return nil, apperrors.NewUnavailable(err)
	}

	pair, err := s.issuePair(ctx, principal)
	if err != nil {
		s.metrics.RecordAuthOutcome("refresh", false)
		return nil, err
	}

	s.metrics.RecordAuthOutcome("refresh", true)
	s.publish(ctx, events.EventTokenRefreshed, principal.Subject, events.TokenRefreshedPayload{RotatedJTI: claims.ID})
	return pair, nil
}

// Logout deletes the stored refresh token for the subject. Idempotent: logging
// out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, subject string) error {
	if strings.TrimSpace(subject) == "" {
		return apperrors.NewInvalidInput("subject must not be blank", nil)
	}
	if err := s.refreshTokens.Delete(ctx, subject); err != nil {
		return apperrors.NewUnavailable(err)
	}
	return nil
}

// Codec exposes the token codec for middleware and tests.
func (s *AuthService) Codec() *auth.TokenCodec {
	return s.codec
}

// issuePair mints both tokens and overwrites the stored refresh token, which
// invalidates any previously issued one for the subject.
func (s *AuthService) issuePair(ctx context.Context, principal *domain.Principal) (*domain.TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccess(principal)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(principal)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.refreshTokens.Store(ctx, principal.Subject, refresh, time.Until(refreshExp)); err != nil {
		return nil, apperrors.NewUnavailable(err)
	}

	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Subject:          principal.Subject,
		Role:             principal.Role,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
