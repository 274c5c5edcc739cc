package main

import (
	"account-service/pkg/config"
	app "account-service/services/account/internal/app"

	_ "account-service/services/account/docs" // Swagger docs
)

// @title           Account Service API
// @version         1.0
// @description     Registration, login, token rotation and profile management
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Validate token secrets
	if cfg.HasDefaultSecrets() {
		panic("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set in environment variables")
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		panic(err)
	}

	if err := application.Run(); err != nil {
		panic(err)
	}

	application.Wait()

	if err := application.Shutdown(); err != nil {
		panic(err)
	}
}
