package persistent

import (
	"context"
	"os"
	"testing"
	"time"

	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("ACCOUNT_DATABASE_URL")
	if dsn == "" {
		t.Skip("ACCOUNT_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.UserModel{}, &model.SessionModel{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM sessions")
		db.Exec("DELETE FROM users")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestUser() *entity.User {
	suffix := uuid.New().String()[:8]
	return &entity.User{
		Username:  "user_" + suffix,
		Email:     suffix + "@example.com",
		FullName:  "Test User",
		Password:  "$2a$10$hash",
		AvatarURL: "http://localhost:9000/media/avatars/a.png",
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	user := newTestUser()

	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)

	found, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, found.Username)
	assert.Equal(t, "$2a$10$hash", found.Password)

	public, err := repo.GetPublicByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, public.Password)
	assert.Equal(t, user.Email, public.Email)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	user := newTestUser()
	require.NoError(t, repo.Create(ctx, user))

	clone := newTestUser()
	clone.Username = user.Username
	err := repo.Create(ctx, clone)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_FindByIdentifier(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	user := newTestUser()
	require.NoError(t, repo.Create(ctx, user))

	byUsername, err := repo.FindByIdentifier(ctx, user.Username, "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	byEmail, err := repo.FindByIdentifier(ctx, "", user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = repo.FindByIdentifier(ctx, "nobody", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindByIdentifier(ctx, "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_Exists(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	user := newTestUser()
	require.NoError(t, repo.Create(ctx, user))

	exists, err := repo.ExistsByUsernameOrEmail(ctx, user.Username, "other@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByUsernameOrEmail(ctx, "other", "other@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	taken, err := repo.EmailTakenByOther(ctx, user.Email, user.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = repo.EmailTakenByOther(ctx, user.Email, uuid.New().String())
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUserRepository_UpdateFields(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	user := newTestUser()
	require.NoError(t, repo.Create(ctx, user))

	name := "Renamed"
	require.NoError(t, repo.UpdateFields(ctx, user.ID, entity.UserUpdate{FullName: &name}))

	found, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.FullName)
	assert.Equal(t, user.Email, found.Email)

	err = repo.UpdateFields(ctx, uuid.New().String(), entity.UserUpdate{FullName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()
	user := newTestUser()
	require.NoError(t, users.Create(ctx, user))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, sessions.Replace(ctx, &entity.Session{
		UserID:           user.ID,
		RefreshTokenHash: "aaaa",
		IssuedAt:         now,
		ExpiresAt:        now.Add(time.Hour),
	}))

	stored, err := sessions.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", stored.RefreshTokenHash)
	assert.EqualValues(t, 1, stored.Generation)

	// a second login overwrites the first session
	require.NoError(t, sessions.Replace(ctx, &entity.Session{
		UserID:           user.ID,
		RefreshTokenHash: "bbbb",
		IssuedAt:         now,
		ExpiresAt:        now.Add(time.Hour),
	}))
	stored, err = sessions.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", stored.RefreshTokenHash)
	assert.EqualValues(t, 2, stored.Generation)

	next := &entity.Session{UserID: user.ID, RefreshTokenHash: "cccc", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, sessions.CompareAndSwap(ctx, "bbbb", next))
	assert.ErrorIs(t, sessions.CompareAndSwap(ctx, "bbbb", next), ErrStaleSession)

	stored, err = sessions.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cccc", stored.RefreshTokenHash)
	assert.EqualValues(t, 3, stored.Generation)

	require.NoError(t, sessions.Clear(ctx, user.ID))
	require.NoError(t, sessions.Clear(ctx, user.ID))
	_, err = sessions.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, sessions.CompareAndSwap(ctx, "cccc", next), ErrStaleSession)
}

func TestToUserColumns(t *testing.T) {
	name := "Ana"
	avatar := "http://x/a.png"

	columns := ToUserColumns(entity.UserUpdate{FullName: &name, AvatarURL: &avatar})

	assert.Equal(t, map[string]interface{}{"full_name": "Ana", "avatar_url": "http://x/a.png"}, columns)
}
