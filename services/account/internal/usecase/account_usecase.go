package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"account-service/pkg/apperror"
	"account-service/pkg/jwt"
	"account-service/pkg/logger"
	"account-service/pkg/metrics"
	"account-service/pkg/password"
	"account-service/pkg/queue"
	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/repo/persistent"

	"github.com/google/uuid"
)

const (
	msgAllFieldsRequired  = "all fields are required"
	msgUserExists         = "user with email or username already exists"
	msgAvatarRequired     = "avatar file is required"
	msgAvatarMissing      = "avatar file is missing"
	msgCoverMissing       = "cover image file is missing"
	msgIdentifierRequired = "username or email is required"
	msgPasswordRequired   = "password is required"
	msgUserNotFound       = "user does not exist"
	msgInvalidCredentials = "invalid user credentials"
	msgInvalidOldPassword = "invalid old password"
	msgUnauthorized       = "unauthorized request"
	msgRefreshRejected    = "refresh token is invalid, expired or used"
	msgTokenFailure       = "something went wrong while generating tokens"
	msgRegisterFailure    = "something went wrong while registering the user"
	msgEmailTaken         = "email is already in use"
	msgPasswordsRequired  = "old and new password are required"
	msgPasswordTooLong    = "password must not exceed 72 bytes"

	avatarPrefix = "avatars"
	coverPrefix  = "covers"

	backgroundTimeout = 5 * time.Second
)

type AccountUseCase interface {
	Register(ctx context.Context, input entity.RegisterInput) (*entity.User, error)
	Login(ctx context.Context, input entity.LoginInput) (*entity.User, *entity.TokenPair, error)
	Refresh(ctx context.Context, presented string) (*entity.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	GetCurrentUser(ctx context.Context, userID string) (*entity.User, error)
	UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*entity.User, error)
	UpdateAvatar(ctx context.Context, userID string, upload *entity.Upload) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, userID string, upload *entity.Upload) (*entity.User, error)
}

// MediaStorage is the part of the S3 client the account flows need.
type MediaStorage interface {
	UploadLocalFile(ctx context.Context, localPath, key, contentType string) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

type EventPublisher interface {
	PublishAccountEvent(ctx context.Context, event queue.AccountEvent) error
}

type accountUseCase struct {
	userRepo    persistent.UserRepository
	sessionRepo persistent.SessionRepository
	jwtService  *jwt.Service
	hasher      password.Hasher
	media       MediaStorage
	events      EventPublisher
	metrics     *metrics.Metrics
	logger      *logger.Logger
	now         func() time.Time
}

// NewAccountUseCase builds the account flows. events and m may be nil.
func NewAccountUseCase(
	userRepo persistent.UserRepository,
	sessionRepo persistent.SessionRepository,
	jwtService *jwt.Service,
	hasher password.Hasher,
	media MediaStorage,
	events EventPublisher,
	m *metrics.Metrics,
	logger *logger.Logger,
) AccountUseCase {
	return &accountUseCase{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwtService:  jwtService,
		hasher:      hasher,
		media:       media,
		events:      events,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

func (uc *accountUseCase) Register(ctx context.Context, input entity.RegisterInput) (user *entity.User, err error) {
	defer func() { uc.metrics.Observe("register", err) }()

	fullName := strings.TrimSpace(input.FullName)
	email := normalizeEmail(input.Email)
	username := normalizeUsername(input.Username)
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(input.Password) == "" {
		return nil, apperror.Validation(msgAllFieldsRequired)
	}
	if err := password.CheckLength(input.Password); err != nil {
		return nil, apperror.Validation(msgPasswordTooLong)
	}

	exists, err := uc.userRepo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		uc.logger.Error("Failed to check existing user: %v", err)
		return nil, apperror.Upstream(msgRegisterFailure, err)
	}
	if exists {
		return nil, apperror.Conflict(msgUserExists)
	}

	if !hasFile(input.Avatar) {
		return nil, apperror.Validation(msgAvatarRequired)
	}

	avatarURL, err := uc.upload(ctx, avatarPrefix, input.Avatar)
	if err != nil {
		uc.logger.Error("Failed to upload avatar: %v", err)
		return nil, apperror.Upstream("failed to upload avatar", err)
	}

	var coverURL string
	if hasFile(input.CoverImage) {
		coverURL, err = uc.upload(ctx, coverPrefix, input.CoverImage)
		if err != nil {
			uc.logger.Warn("Failed to upload cover image, continuing without it: %v", err)
			coverURL = ""
		}
	}

	hashed, err := uc.hasher.Hash(input.Password)
	if err != nil {
		uc.discardMedia(avatarURL, coverURL)
		if errors.Is(err, password.ErrTooLong) {
			return nil, apperror.Validation(msgPasswordTooLong)
		}
		uc.logger.Error("Failed to hash password: %v", err)
		return nil, apperror.Upstream(msgRegisterFailure, err)
	}

	created := &entity.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      hashed,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}
	if err := uc.userRepo.Create(ctx, created); err != nil {
		uc.discardMedia(avatarURL, coverURL)
		if errors.Is(err, persistent.ErrDuplicate) {
			return nil, apperror.Conflict(msgUserExists)
		}
		uc.logger.Error("Failed to create user: %v", err)
		return nil, apperror.Upstream(msgRegisterFailure, err)
	}

	user, err = uc.userRepo.GetPublicByID(ctx, created.ID)
	if err != nil {
		uc.logger.Error("Failed to reload user %s: %v", created.ID, err)
		return nil, apperror.Upstream(msgRegisterFailure, err)
	}

	uc.publish(queue.EventUserRegistered, user)
	return user.Sanitized(), nil
}

func (uc *accountUseCase) GetCurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetPublicByID(ctx, userID)
	if err != nil {
		return nil, uc.lookupError(err)
	}
	return user.Sanitized(), nil
}

func (uc *accountUseCase) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*entity.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	if fullName == "" || email == "" {
		return nil, apperror.Validation(msgAllFieldsRequired)
	}

	taken, err := uc.userRepo.EmailTakenByOther(ctx, email, userID)
	if err != nil {
		uc.logger.Error("Failed to check email uniqueness: %v", err)
		return nil, apperror.Upstream("failed to update account", err)
	}
	if taken {
		return nil, apperror.Conflict(msgEmailTaken)
	}

	err = uc.userRepo.UpdateFields(ctx, userID, entity.UserUpdate{FullName: &fullName, Email: &email})
	if err != nil {
		if errors.Is(err, persistent.ErrDuplicate) {
			return nil, apperror.Conflict(msgEmailTaken)
		}
		return nil, uc.lookupError(err)
	}

	return uc.GetCurrentUser(ctx, userID)
}

func (uc *accountUseCase) UpdateAvatar(ctx context.Context, userID string, upload *entity.Upload) (*entity.User, error) {
	if !hasFile(upload) {
		return nil, apperror.Validation(msgAvatarMissing)
	}
	return uc.replaceImage(ctx, userID, avatarPrefix, upload, func(u *entity.User) *string { return &u.AvatarURL },
		func(url *string) entity.UserUpdate { return entity.UserUpdate{AvatarURL: url} })
}

func (uc *accountUseCase) UpdateCoverImage(ctx context.Context, userID string, upload *entity.Upload) (*entity.User, error) {
	if !hasFile(upload) {
		return nil, apperror.Validation(msgCoverMissing)
	}
	return uc.replaceImage(ctx, userID, coverPrefix, upload, func(u *entity.User) *string { return &u.CoverImageURL },
		func(url *string) entity.UserUpdate { return entity.UserUpdate{CoverImageURL: url} })
}

// replaceImage uploads a new image, points the user's field at it and drops
// the object it replaced.
func (uc *accountUseCase) replaceImage(
	ctx context.Context,
	userID, prefix string,
	upload *entity.Upload,
	field func(*entity.User) *string,
	update func(*string) entity.UserUpdate,
) (*entity.User, error) {
	current, err := uc.userRepo.GetPublicByID(ctx, userID)
	if err != nil {
		return nil, uc.lookupError(err)
	}
	previous := *field(current)

	url, err := uc.upload(ctx, prefix, upload)
	if err != nil {
		uc.logger.Error("Failed to upload %s for user %s: %v", prefix, userID, err)
		return nil, apperror.Upstream(fmt.Sprintf("error while uploading %s", strings.TrimSuffix(prefix, "s")), err)
	}

	if err := uc.userRepo.UpdateFields(ctx, userID, update(&url)); err != nil {
		uc.discardMedia(url)
		return nil, uc.lookupError(err)
	}

	if previous != "" && previous != url {
		uc.discardMedia(previous)
	}

	return uc.GetCurrentUser(ctx, userID)
}

func (uc *accountUseCase) upload(ctx context.Context, prefix string, upload *entity.Upload) (string, error) {
	key := fmt.Sprintf("%s/%s%s", prefix, uuid.New().String(), strings.ToLower(filepath.Ext(upload.Filename)))
	return uc.media.UploadLocalFile(ctx, upload.LocalPath, key, upload.ContentType)
}

// discardMedia deletes uploaded objects best-effort.
func (uc *accountUseCase) discardMedia(urls ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := uc.media.DeleteByURL(ctx, url); err != nil {
			uc.logger.Warn("Failed to delete media %s: %v", url, err)
		}
	}
}

func (uc *accountUseCase) publish(eventType string, user *entity.User) {
	if uc.events == nil || user == nil {
		return
	}

	event := queue.AccountEvent{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		OccurredAt: uc.now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := uc.events.PublishAccountEvent(ctx, event); err != nil {
			uc.logger.Error("[ACCOUNT EVENTS] Failed to publish %s for user_id=%s: %v", eventType, user.ID, err)
		}
	}()
}

func (uc *accountUseCase) lookupError(err error) error {
	if errors.Is(err, persistent.ErrNotFound) {
		return apperror.NotFound(msgUserNotFound)
	}
	uc.logger.Error("User lookup failed: %v", err)
	return apperror.Upstream("failed to load user", err)
}

func hasFile(upload *entity.Upload) bool {
	return upload != nil && upload.LocalPath != ""
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
