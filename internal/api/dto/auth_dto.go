package dto

// AuthRequest payload for login and registration. Subject is the principal's
// email address.
type AuthRequest struct {
	Subject string `json:"subject"`
	Secret  string `json:"secret"`
}

// RefreshRequest payload for token rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest payload for revoking the stored refresh token.
type LogoutRequest struct {
	Subject string `json:"subject"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Subject      string `json:"subject"`
	Role         string `json:"role"`
}
