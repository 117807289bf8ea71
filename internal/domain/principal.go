package domain

import "time"

// Role classifies what a principal is allowed to do downstream.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the stored identity record. Subject is globally unique (an
// email address); CredentialHash must never appear in logs or responses.
type Principal struct {
	ID             string
	Subject        string
	CredentialHash string
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
