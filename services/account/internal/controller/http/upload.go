package http

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"account-service/services/account/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var errInvalidImage = errors.New("invalid image format. Only jpg, jpeg, png, gif, webp are allowed")

// saveUpload writes the multipart file named field to the upload directory.
// It returns nil without error when the field is absent. Callers remove the
// saved file once they are done with it.
func (h *AccountHandler) saveUpload(c *gin.Context, field string) (*entity.Upload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtensions[ext] {
		return nil, errInvalidImage
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	localPath := filepath.Join(h.uploadDir, uuid.New().String()+ext)
	if err := c.SaveUploadedFile(file, localPath); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", field, err)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return &entity.Upload{
		LocalPath:   localPath,
		Filename:    file.Filename,
		ContentType: contentType,
	}, nil
}

func removeUploads(uploads ...*entity.Upload) {
	for _, upload := range uploads {
		if upload != nil {
			_ = os.Remove(upload.LocalPath)
		}
	}
}
