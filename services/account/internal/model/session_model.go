package model

import "time"

type SessionModel struct {
	UserID           string    `gorm:"type:uuid;primaryKey"`
	RefreshTokenHash string    `gorm:"type:char(64);not null"`
	Generation       int64     `gorm:"not null;default:1"`
	IssuedAt         time.Time `gorm:"not null"`
	ExpiresAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time
}

func (SessionModel) TableName() string {
	return "sessions"
}
