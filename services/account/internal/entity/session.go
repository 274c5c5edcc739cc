package entity

import "time"

// Session is the single live refresh token of a user. Only the token's
// digest is kept. Generation increases on every rotation.
type Session struct {
	UserID           string
	RefreshTokenHash string
	Generation       int64
	IssuedAt         time.Time
	ExpiresAt        time.Time
	UpdatedAt        time.Time
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
