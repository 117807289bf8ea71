package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/repository"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

// fakePrincipalRepo enforces subject uniqueness under a mutex, standing in
// for the database constraint.
type fakePrincipalRepo struct {
	mu        sync.Mutex
	bySubject map[string]*domain.Principal
	seq       int
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{bySubject: make(map[string]*domain.Principal)}
}

func (r *fakePrincipalRepo) Create(_ context.Context, principal *domain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySubject[principal.Subject]; exists {
		return repository.ErrDuplicateSubject
	}
	r.seq++
	principal.ID = fmt.Sprintf("p-%d", r.seq)
	principal.CreatedAt = time.Now()
	principal.UpdatedAt = principal.CreatedAt
	stored := *principal
	r.bySubject[principal.Subject] = &stored
	return nil
}

func (r *fakePrincipalRepo) GetBySubject(_ context.Context, subject string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bySubject[subject]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	found := *stored
	return &found, nil
}

func (r *fakePrincipalRepo) remove(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySubject, subject)
}

func newTestService(t *testing.T) (*AuthService, *fakePrincipalRepo, repository.RefreshTokenRepository) {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		Auth: config.AuthConfig{
			AccessSecret:          "test-access-secret",
			RefreshSecret:         "test-refresh-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  1,
			BcryptCost:            4,
		},
	}

	principals := newFakePrincipalRepo()
	refreshTokens := repository.NewRefreshTokenRepository(client)

	svc := NewAuthService(cfg, AuthDependencies{
		PrincipalRepo:    principals,
		RefreshTokenRepo: refreshTokens,
		Metrics:          observability.NewMetrics(),
	})
	return svc, principals, refreshTokens
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, code, domainErr.Code)
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, refreshTokens := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "a@b.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", registered.Subject)
	assert.Equal(t, domain.RoleUser, registered.Role)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)

	stored, err := refreshTokens.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, registered.RefreshToken, stored)

	logged, err := svc.Login(ctx, "a@b.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", logged.Subject)

	// login overwrote the stored refresh token
	stored, err = refreshTokens.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, logged.RefreshToken, stored)
}

func TestLoginMergesNotFoundAndWrongSecret(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.com", "hunter2")
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@b.com", "hunter2")
	assertCode(t, unknownErr, "INVALID_CREDENTIALS")

	_, wrongErr := svc.Login(ctx, "a@b.com", "wrong")
	assertCode(t, wrongErr, "INVALID_CREDENTIALS")

	// the two failures are indistinguishable to the caller
	assert.Equal(t, apperrors.ToDomainError(unknownErr).Message, apperrors.ToDomainError(wrongErr).Message)
}

func TestRegisterRejectsBlankInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "  ", "pw")
	assertCode(t, err, "INVALID_INPUT")

	_, err = svc.Register(ctx, "a@b.com", "")
	assertCode(t, err, "INVALID_INPUT")
}

func TestRegisterDuplicateSubject(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a@b.com", "pw")
	assertCode(t, err, "ALREADY_EXISTS")
}

func TestRegisterRaceYieldsOneWinner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "race@b.com", "pw")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, conflicts := 0, 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assertCode(t, err, "ALREADY_EXISTS")
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the rotated-out token is dead even though its signature is still valid
	_, err = svc.Refresh(ctx, first.RefreshToken)
	assertCode(t, err, "INVALID_TOKEN")

	// the current token still works
	third, err := svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", third.Subject)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assertCode(t, err, "INVALID_TOKEN")
}

func TestRefreshAfterLogout(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "a@b.com"))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, "INVALID_TOKEN")

	// logging out again is fine
	require.NoError(t, svc.Logout(ctx, "a@b.com"))
}

func TestRefreshWhenPrincipalVanished(t *testing.T) {
	svc, principals, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	principals.remove("a@b.com")

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, "NOT_FOUND")
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assertCode(t, err, "INVALID_TOKEN")
}
