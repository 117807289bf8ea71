package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// ErrDuplicateSubject reports a unique-constraint violation on subject. The
// database constraint is the final authority for concurrent registrations.
var ErrDuplicateSubject = errors.New("subject already exists")

const uniqueViolationCode = "23505"

// PrincipalRepository defines persistence access for principals.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *domain.Principal) error
	GetBySubject(ctx context.Context, subject string) (*domain.Principal, error)
}

type principalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository returns a Postgres-backed implementation.
func NewPrincipalRepository(pool *pgxpool.Pool) PrincipalRepository {
	return &principalRepository{pool: pool}
}

func (r *principalRepository) Create(ctx context.Context, principal *domain.Principal) error {
	const query = `
        INSERT INTO principals (subject, credential_hash, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		principal.Subject,
		principal.CredentialHash,
		principal.Role,
	).Scan(&principal.ID, &principal.CreatedAt, &principal.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateSubject
		}
		return err
	}
	return nil
}

func (r *principalRepository) GetBySubject(ctx context.Context, subject string) (*domain.Principal, error) {
	const query = `
        SELECT id, subject, credential_hash, role, created_at, updated_at
        FROM principals WHERE subject=$1`

	var principal domain.Principal
	if err := r.pool.QueryRow(ctx, query, subject).Scan(
		&principal.ID,
		&principal.Subject,
		&principal.CredentialHash,
		&principal.Role,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &principal, nil
}

// IsNotFound reports whether the error is a missing-row lookup result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
