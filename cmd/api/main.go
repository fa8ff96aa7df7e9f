package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"bulldog/internal/config"
	"bulldog/internal/database"
	"bulldog/internal/domain"
	"bulldog/internal/middleware"
	"bulldog/internal/modules/alerts"
	"bulldog/internal/modules/auth"
	"bulldog/internal/modules/tokens"
	jwtsvc "bulldog/internal/pkg/jwt"
	"bulldog/internal/repository"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	tokenRepo := repository.NewRefreshTokenRepository(db)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	envelope, err := tokens.NewEnvelope(cfg.TokenEncKey, cfg.TokenPepper)
	if err != nil {
		log.Fatalf("envelope init failed: %v", err)
	}

	alertHub := alerts.NewHub()
	defer alertHub.Close()
	alertService := alerts.NewService(alertHub)
	alertHandler := alerts.NewHandler(alertHub, j, cfg)

	tokenService := tokens.NewService(db, tokenRepo, envelope, j, alertService, cfg.RefreshTTL)
	authHandler := auth.NewHandler(tokenService, cfg)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterPublicRoutes(v1)
		alertHandler.RegisterRoutes(v1)

		// protected
		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth(j))
		{
			authHandler.RegisterProtectedRoutes(protected)
		}
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
