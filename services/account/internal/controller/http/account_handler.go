package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"account-service/pkg/logger"
	"account-service/pkg/middleware"
	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Config struct {
	UploadDir    string
	CookieSecure bool
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

type AccountHandler struct {
	accountUseCase usecase.AccountUseCase
	uploadDir      string
	cookieSecure   bool
	accessTTL      time.Duration
	refreshTTL     time.Duration
	logger         *logger.Logger
}

func NewAccountHandler(accountUseCase usecase.AccountUseCase, cfg Config, logger *logger.Logger) *AccountHandler {
	return &AccountHandler{
		accountUseCase: accountUseCase,
		uploadDir:      cfg.UploadDir,
		cookieSecure:   cfg.CookieSecure,
		accessTTL:      cfg.AccessTTL,
		refreshTTL:     cfg.RefreshTTL,
		logger:         logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type LoginData struct {
	User         *entity.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Register godoc
// @Summary      Register a new user
// @Description  Create an account from multipart form fields with a mandatory avatar and an optional cover image
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        fullName   formData string true  "Full name"
// @Param        email      formData string true  "Email"
// @Param        username   formData string true  "Username"
// @Param        password   formData string true  "Password"
// @Param        avatar     formData file   true  "Avatar image"
// @Param        coverImage formData file   false "Cover image"
// @Success      201  {object}  Response{data=entity.User}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users/register [post]
func (h *AccountHandler) Register(c *gin.Context) {
	avatar, err := h.saveUpload(c, "avatar")
	if err != nil {
		h.respondUploadError(c, err)
		return
	}
	defer removeUploads(avatar)

	cover, err := h.saveUpload(c, "coverImage")
	if err != nil {
		h.respondUploadError(c, err)
		return
	}
	defer removeUploads(cover)

	user, err := h.accountUseCase.Register(c.Request.Context(), entity.RegisterInput{
		FullName:   c.PostForm("fullName"),
		Email:      c.PostForm("email"),
		Username:   c.PostForm("username"),
		Password:   c.PostForm("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, user, "user registered successfully")
}

// Login godoc
// @Summary      Login
// @Description  Authenticate by username or email and receive an access and refresh token pair, also set as cookies
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200  {object}  Response{data=LoginData}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/login [post]
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, pair, err := h.accountUseCase.Login(c.Request.Context(), entity.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusOK, LoginData{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "user logged in successfully")
}

// RefreshToken godoc
// @Summary      Rotate tokens
// @Description  Exchange the current refresh token (cookie or body) for a new token pair
// @Tags         users
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token, when not sent as cookie"
// @Success      200  {object}  Response{data=entity.TokenPair}
// @Failure      401  {object}  ErrorResponse
// @Router       /users/refresh-token [post]
func (h *AccountHandler) RefreshToken(c *gin.Context) {
	presented, _ := c.Cookie(middleware.RefreshTokenCookie)
	if presented == "" && c.Request.ContentLength != 0 {
		var req RefreshRequest
		if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
			respondMessage(c, http.StatusBadRequest, "invalid request body")
			return
		}
		presented = req.RefreshToken
	}

	pair, err := h.accountUseCase.Refresh(c.Request.Context(), presented)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusOK, pair, "access token refreshed")
}

// Logout godoc
// @Summary      Logout
// @Description  Revoke the session and clear token cookies
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Router       /users/logout [post]
func (h *AccountHandler) Logout(c *gin.Context) {
	if err := h.accountUseCase.Logout(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		h.respondError(c, err)
		return
	}

	h.clearTokenCookies(c)
	respond(c, http.StatusOK, gin.H{}, "user logged out")
}

// ChangePassword godoc
// @Summary      Change password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ChangePasswordRequest true "Old and new password"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/change-password [post]
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.accountUseCase.ChangePassword(c.Request.Context(), c.GetString(middleware.ContextUserID), req.OldPassword, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{}, "password changed successfully")
}

// CurrentUser godoc
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response{data=entity.User}
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/current-user [get]
func (h *AccountHandler) CurrentUser(c *gin.Context) {
	user, err := h.accountUseCase.GetCurrentUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, user, "user fetched successfully")
}

// UpdateAccount godoc
// @Summary      Update account details
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateAccountRequest true "New full name and email"
// @Success      200  {object}  Response{data=entity.User}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /users/update-account [patch]
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accountUseCase.UpdateAccountDetails(c.Request.Context(), c.GetString(middleware.ContextUserID), req.FullName, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, user, "account details updated successfully")
}

// UpdateAvatar godoc
// @Summary      Replace avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar formData file true "Avatar image"
// @Success      200  {object}  Response{data=entity.User}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users/avatar [patch]
func (h *AccountHandler) UpdateAvatar(c *gin.Context) {
	avatar, err := h.saveUpload(c, "avatar")
	if err != nil {
		h.respondUploadError(c, err)
		return
	}
	defer removeUploads(avatar)

	user, err := h.accountUseCase.UpdateAvatar(c.Request.Context(), c.GetString(middleware.ContextUserID), avatar)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, user, "avatar updated successfully")
}

// UpdateCoverImage godoc
// @Summary      Replace cover image
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        coverImage formData file true "Cover image"
// @Success      200  {object}  Response{data=entity.User}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users/cover-image [patch]
func (h *AccountHandler) UpdateCoverImage(c *gin.Context) {
	cover, err := h.saveUpload(c, "coverImage")
	if err != nil {
		h.respondUploadError(c, err)
		return
	}
	defer removeUploads(cover)

	user, err := h.accountUseCase.UpdateCoverImage(c.Request.Context(), c.GetString(middleware.ContextUserID), cover)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, user, "cover image updated successfully")
}

func (h *AccountHandler) respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, errInvalidImage) {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("Failed to store upload: %v", err)
	respondMessage(c, http.StatusBadRequest, "failed to process uploaded file")
}

func (h *AccountHandler) setTokenCookies(c *gin.Context, pair *entity.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, int(h.accessTTL.Seconds()), "/", "", h.cookieSecure, true)
	c.SetCookie(middleware.RefreshTokenCookie, pair.RefreshToken, int(h.refreshTTL.Seconds()), "/", "", h.cookieSecure, true)
}

func (h *AccountHandler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.cookieSecure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", h.cookieSecure, true)
}
