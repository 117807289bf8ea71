package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

const refreshTypeMarker = "refresh"

// ErrInvalidToken covers bad signature, malformed input, expiry, and tokens
// presented in the wrong signing domain.
var ErrInvalidToken = errors.New("invalid token")

// TokenCodec issues and validates JWT tokens across two signing domains.
// Access and refresh tokens use independent symmetric keys so neither key can
// mint tokens for the other domain and the keys can rotate independently.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenCodec builds a codec.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * 7 * time.Hour
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Claims describes the JWT payload for both token domains. Type is set only
// on refresh tokens.
type Claims struct {
	Role domain.Role `json:"role,omitempty"`
	Type string      `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// IssueAccess builds and signs a short-lived access token for the principal.
func (c *TokenCodec) IssueAccess(p *domain.Principal) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(c.accessTTL)
	claims := &Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return c.sign(claims, c.accessSecret, expiresAt)
}

// IssueRefresh builds and signs a refresh token with the type marker, signed
// with the refresh key.
func (c *TokenCodec) IssueRefresh(p *domain.Principal) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(c.refreshTTL)
	claims := &Claims{
		Type: refreshTypeMarker,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return c.sign(claims, c.refreshSecret, expiresAt)
}

// VerifyAccess validates signature and expiry against the access key.
func (c *TokenCodec) VerifyAccess(tokenStr string) (*Claims, error) {
	return c.parse(tokenStr, c.accessSecret)
}

// VerifyRefresh validates signature and expiry against the refresh key and
// requires the refresh type marker. An access token presented here fails the
// signature check already; the marker guards against both keys ever being
// configured identical.
func (c *TokenCodec) VerifyRefresh(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr, c.refreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.Type != refreshTypeMarker {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshTTL exposes the refresh lifetime for store TTL alignment.
func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *TokenCodec) sign(claims *Claims, secret []byte, expiresAt time.Time) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (c *TokenCodec) parse(tokenStr string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
