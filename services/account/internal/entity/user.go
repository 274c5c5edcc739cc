package entity

import "time"

type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	Password      string    `json:"-"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of u without the password hash.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clean := *u
	clean.Password = ""
	return &clean
}

// UserUpdate lists the fields to change on a user record. Nil fields are
// left untouched.
type UserUpdate struct {
	FullName      *string
	Email         *string
	Password      *string
	AvatarURL     *string
	CoverImageURL *string
}

func (u UserUpdate) IsEmpty() bool {
	return u.FullName == nil && u.Email == nil && u.Password == nil &&
		u.AvatarURL == nil && u.CoverImageURL == nil
}
