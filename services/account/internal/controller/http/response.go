package http

import (
	"errors"
	"net/http"

	"account-service/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every successful call is wrapped in.
type Response struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{StatusCode: status, Message: message, Success: false})
}

func (h *AccountHandler) respondError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("Unclassified error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		respondMessage(c, http.StatusInternalServerError, "internal server error")
		return
	}

	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	respondMessage(c, status, appErr.Message)
}
