package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshTokenNotFound reports that no refresh token is stored for the
// subject, either because none was issued or the TTL elapsed.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

const refreshKeyPrefix = "refresh_token:"

// RefreshTokenRepository is the single source of truth for refresh-token
// validity: at most one token per subject, overwritten on every issuance.
type RefreshTokenRepository interface {
	Store(ctx context.Context, subject, token string, ttl time.Duration) error
	Get(ctx context.Context, subject string) (string, error)
	Delete(ctx context.Context, subject string) error
}

type refreshTokenRepository struct {
	client *redis.Client
}

// NewRefreshTokenRepository returns a Redis-backed implementation.
func NewRefreshTokenRepository(client *redis.Client) RefreshTokenRepository {
	return &refreshTokenRepository{client: client}
}

func (r *refreshTokenRepository) Store(ctx context.Context, subject, token string, ttl time.Duration) error {
	return r.client.Set(ctx, refreshKeyPrefix+subject, token, ttl).Err()
}

func (r *refreshTokenRepository) Get(ctx context.Context, subject string) (string, error) {
	val, err := r.client.Get(ctx, refreshKeyPrefix+subject).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrRefreshTokenNotFound
		}
		return "", err
	}
	return val, nil
}

func (r *refreshTokenRepository) Delete(ctx context.Context, subject string) error {
	return r.client.Del(ctx, refreshKeyPrefix+subject).Err()
}
