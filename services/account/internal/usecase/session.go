package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"account-service/pkg/apperror"
	"account-service/pkg/jwt"
	"account-service/pkg/password"
	"account-service/pkg/queue"
	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/repo/persistent"
)

func (uc *accountUseCase) Login(ctx context.Context, input entity.LoginInput) (user *entity.User, pair *entity.TokenPair, err error) {
	defer func() { uc.metrics.Observe("login", err) }()

	username := normalizeUsername(input.Username)
	email := normalizeEmail(input.Email)
	if username == "" && email == "" {
		return nil, nil, apperror.Validation(msgIdentifierRequired)
	}
	if input.Password == "" {
		return nil, nil, apperror.Validation(msgPasswordRequired)
	}

	user, err = uc.userRepo.FindByIdentifier(ctx, username, email)
	if err != nil {
		return nil, nil, uc.lookupError(err)
	}

	if err := uc.hasher.Compare(user.Password, input.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, nil, apperror.InvalidCredentials(msgInvalidCredentials)
		}
		uc.logger.Error("Failed to verify password for user %s: %v", user.ID, err)
		return nil, nil, apperror.Upstream(msgTokenFailure, err)
	}

	pair, err = uc.issueTokenPair(ctx, user, "")
	if err != nil {
		return nil, nil, err
	}

	return user.Sanitized(), pair, nil
}

func (uc *accountUseCase) Refresh(ctx context.Context, presented string) (pair *entity.TokenPair, err error) {
	defer func() { uc.metrics.Observe("refresh", err) }()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, apperror.Unauthorized(msgUnauthorized)
	}

	userID, err := uc.jwtService.ValidateRefreshToken(presented)
	if err != nil {
		uc.logger.Warn("Refresh rejected: %v", err)
		return nil, apperror.Unauthorized(msgRefreshRejected)
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, uc.refreshLookupError("user", userID, err)
	}

	session, err := uc.sessionRepo.Get(ctx, userID)
	if err != nil {
		return nil, uc.refreshLookupError("session", userID, err)
	}

	if !digestsEqual(hashToken(presented), session.RefreshTokenHash) {
		uc.logger.Warn("Refresh rejected for user %s: token was rotated or revoked", userID)
		return nil, apperror.Unauthorized(msgRefreshRejected)
	}

	return uc.issueTokenPair(ctx, user, session.RefreshTokenHash)
}

func (uc *accountUseCase) Logout(ctx context.Context, userID string) (err error) {
	defer func() { uc.metrics.Observe("logout", err) }()

	if err := uc.sessionRepo.Clear(ctx, userID); err != nil {
		uc.logger.Error("Failed to clear session for user %s: %v", userID, err)
		return apperror.Upstream("failed to logout", err)
	}

	uc.publish(queue.EventUserLoggedOut, &entity.User{ID: userID})
	return nil
}

// ChangePassword leaves the current session in place.
func (uc *accountUseCase) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { uc.metrics.Observe("change_password", err) }()

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperror.Validation(msgPasswordsRequired)
	}
	if err := password.CheckLength(newPassword); err != nil {
		return apperror.Validation(msgPasswordTooLong)
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return uc.lookupError(err)
	}

	if err := uc.hasher.Compare(user.Password, oldPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return apperror.InvalidCredentials(msgInvalidOldPassword)
		}
		return apperror.Upstream("failed to change password", err)
	}

	hashed, err := uc.hasher.Hash(newPassword)
	if errors.Is(err, password.ErrTooLong) {
		return apperror.Validation(msgPasswordTooLong)
	}
	if err != nil {
		uc.logger.Error("Failed to hash password: %v", err)
		return apperror.Upstream("failed to change password", err)
	}

	if err := uc.userRepo.UpdateFields(ctx, userID, entity.UserUpdate{Password: &hashed}); err != nil {
		return uc.lookupError(err)
	}

	uc.publish(queue.EventUserPasswordChanged, user)
	return nil
}

// issueTokenPair signs a fresh pair and stores the refresh token digest.
// With an empty previousHash the stored session is overwritten; otherwise
// it is rotated only if it still holds previousHash.
func (uc *accountUseCase) issueTokenPair(ctx context.Context, user *entity.User, previousHash string) (*entity.TokenPair, error) {
	accessToken, err := uc.jwtService.GenerateAccessToken(jwt.AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	})
	if err != nil {
		uc.logger.Error("Failed to sign access token: %v", err)
		return nil, apperror.Upstream(msgTokenFailure, err)
	}

	refreshToken, err := uc.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		uc.logger.Error("Failed to sign refresh token: %v", err)
		return nil, apperror.Upstream(msgTokenFailure, err)
	}

	issuedAt := uc.now().UTC()
	session := &entity.Session{
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refreshToken),
		IssuedAt:         issuedAt,
		ExpiresAt:        issuedAt.Add(uc.jwtService.RefreshTTL()),
	}

	if previousHash == "" {
		err = uc.sessionRepo.Replace(ctx, session)
	} else {
		err = uc.sessionRepo.CompareAndSwap(ctx, previousHash, session)
	}
	if err != nil {
		if errors.Is(err, persistent.ErrStaleSession) {
			uc.logger.Warn("Refresh for user %s lost a concurrent rotation", user.ID)
			return nil, apperror.Unauthorized(msgRefreshRejected)
		}
		uc.logger.Error("Failed to store session for user %s: %v", user.ID, err)
		return nil, apperror.Upstream(msgTokenFailure, err)
	}

	return &entity.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (uc *accountUseCase) refreshLookupError(what, userID string, err error) error {
	if errors.Is(err, persistent.ErrNotFound) {
		uc.logger.Warn("Refresh rejected for user %s: %s not found", userID, what)
		return apperror.Unauthorized(msgRefreshRejected)
	}
	uc.logger.Error("Failed to load %s for user %s: %v", what, userID, err)
	return apperror.Upstream(msgTokenFailure, err)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func digestsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
