package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"account-service/pkg/apperror"
	"account-service/pkg/config"
	"account-service/pkg/database"
	"account-service/pkg/jwt"
	"account-service/pkg/logger"
	"account-service/pkg/password"
	"account-service/pkg/s3"
	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/repo/persistent"
	"account-service/services/account/internal/usecase"
)

type seedUser struct {
	fullName string
	email    string
	username string
	password string
}

var testUsers = []seedUser{
	{"Alice Cat", "alice@test.com", "alice_cat", "password123"},
	{"Bob Cat", "bob@test.com", "bob_cat", "password123"},
	{"Charlie Cat", "charlie@test.com", "charlie_cat", "password123"},
	{"Diana Cat", "diana@test.com", "diana_cat", "password123"},
	{"Eve Cat", "eve@test.com", "eve_cat", "password123"},
}

func main() {
	var avatarSource string
	flag.StringVar(&avatarSource, "avatar-url", "https://cataas.com/cat", "URL avatars are downloaded from")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		panic(err)
	}

	accounts := usecase.NewAccountUseCase(
		persistent.NewUserRepository(db),
		persistent.NewSessionRepository(db),
		jwt.NewService(jwt.Config{
			AccessSecret:  cfg.AccessTokenSecret,
			AccessTTL:     cfg.AccessTokenExpiry,
			RefreshSecret: cfg.RefreshTokenSecret,
			RefreshTTL:    cfg.RefreshTokenExpiry,
		}),
		password.NewBcryptHasher(cfg.BcryptCost),
		s3Client,
		nil,
		nil,
		log,
	)

	if err := seedAccounts(context.Background(), accounts, avatarSource, cfg.UploadTempDir, log); err != nil {
		log.Error("Failed to seed database: %v", err)
		panic(err)
	}

	log.Info("Database seeded successfully!")
}

func seedAccounts(ctx context.Context, accounts usecase.AccountUseCase, avatarSource, tempDir string, log *logger.Logger) error {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to prepare temp directory: %w", err)
	}

	created := 0
	for _, u := range testUsers {
		avatarPath, err := downloadAvatar(ctx, httpClient, avatarSource, tempDir, u.username)
		if err != nil {
			log.Error("Failed to fetch avatar for %s: %v", u.username, err)
			continue
		}

		_, err = accounts.Register(ctx, entity.RegisterInput{
			FullName: u.fullName,
			Email:    u.email,
			Username: u.username,
			Password: u.password,
			Avatar: &entity.Upload{
				LocalPath:   avatarPath,
				Filename:    filepath.Base(avatarPath),
				ContentType: "image/jpeg",
			},
		})
		os.Remove(avatarPath)

		var appErr *apperror.Error
		switch {
		case err == nil:
			created++
			log.Info("Created user: %s (%s)", u.username, u.email)
		case errors.As(err, &appErr) && appErr.Kind == apperror.KindConflict:
			log.Info("User %s already exists, skipping", u.username)
		default:
			log.Error("Failed to create user %s: %v", u.username, err)
		}
	}

	log.Info("Created %d of %d test users", created, len(testUsers))
	return nil
}

func downloadAvatar(ctx context.Context, httpClient *http.Client, source, tempDir, username string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image source returned status %d", resp.StatusCode)
	}

	path := filepath.Join(tempDir, fmt.Sprintf("seed_%s.jpg", username))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if n == 0 {
		os.Remove(path)
		return "", fmt.Errorf("received empty image data")
	}

	return path, nil
}
