package persistent

import (
	"context"

	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository keeps at most one refresh token digest per user.
type SessionRepository interface {
	// Replace stores session, overwriting whatever was stored for the user.
	Replace(ctx context.Context, session *entity.Session) error
	Get(ctx context.Context, userID string) (*entity.Session, error)
	// CompareAndSwap rotates the stored digest only if it still equals
	// expectedHash; otherwise it returns ErrStaleSession.
	CompareAndSwap(ctx context.Context, expectedHash string, next *entity.Session) error
	// Clear removes the user's session. Clearing an absent session is not an error.
	Clear(ctx context.Context, userID string) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Replace(ctx context.Context, session *entity.Session) error {
	sessionModel := ToSessionModel(session)
	sessionModel.Generation = 1

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"refresh_token_hash": sessionModel.RefreshTokenHash,
			"generation":         gorm.Expr("sessions.generation + 1"),
			"issued_at":          sessionModel.IssuedAt,
			"expires_at":         sessionModel.ExpiresAt,
			"updated_at":         gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(sessionModel).Error
	return translate(err)
}

func (r *sessionRepository) Get(ctx context.Context, userID string) (*entity.Session, error) {
	var sessionModel model.SessionModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sessionModel).Error; err != nil {
		return nil, translate(err)
	}
	return ToSessionEntity(&sessionModel), nil
}

func (r *sessionRepository) CompareAndSwap(ctx context.Context, expectedHash string, next *entity.Session) error {
	result := r.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("user_id = ? AND refresh_token_hash = ?", next.UserID, expectedHash).
		Updates(map[string]interface{}{
			"refresh_token_hash": next.RefreshTokenHash,
			"generation":         gorm.Expr("generation + 1"),
			"issued_at":          next.IssuedAt,
			"expires_at":         next.ExpiresAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *sessionRepository) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.SessionModel{}).Error
}
