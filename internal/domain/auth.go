package domain

import "time"

// TokenPair is the result of a successful login, register, or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Subject          string
	Role             Role
}
