package persistent

import (
	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/model"
)

func ToUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}

	return &entity.User{
		ID:            m.ID,
		Username:      m.Username,
		Email:         m.Email,
		FullName:      m.FullName,
		Password:      m.Password,
		AvatarURL:     m.AvatarURL,
		CoverImageURL: m.CoverImageURL,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func ToUserModel(e *entity.User) *model.UserModel {
	if e == nil {
		return nil
	}

	return &model.UserModel{
		ID:            e.ID,
		Username:      e.Username,
		Email:         e.Email,
		FullName:      e.FullName,
		Password:      e.Password,
		AvatarURL:     e.AvatarURL,
		CoverImageURL: e.CoverImageURL,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// ToUserColumns maps the set fields of u to column names.
func ToUserColumns(u entity.UserUpdate) map[string]interface{} {
	columns := make(map[string]interface{})
	if u.FullName != nil {
		columns["full_name"] = *u.FullName
	}
	if u.Email != nil {
		columns["email"] = *u.Email
	}
	if u.Password != nil {
		columns["password"] = *u.Password
	}
	if u.AvatarURL != nil {
		columns["avatar_url"] = *u.AvatarURL
	}
	if u.CoverImageURL != nil {
		columns["cover_image_url"] = *u.CoverImageURL
	}
	return columns
}

func ToSessionEntity(m *model.SessionModel) *entity.Session {
	if m == nil {
		return nil
	}

	return &entity.Session{
		UserID:           m.UserID,
		RefreshTokenHash: m.RefreshTokenHash,
		Generation:       m.Generation,
		IssuedAt:         m.IssuedAt,
		ExpiresAt:        m.ExpiresAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func ToSessionModel(e *entity.Session) *model.SessionModel {
	if e == nil {
		return nil
	}

	return &model.SessionModel{
		UserID:           e.UserID,
		RefreshTokenHash: e.RefreshTokenHash,
		Generation:       e.Generation,
		IssuedAt:         e.IssuedAt,
		ExpiresAt:        e.ExpiresAt,
		UpdatedAt:        e.UpdatedAt,
	}
}
