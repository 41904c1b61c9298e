package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "go.pilab.hu/accountd/api/echo"
	"go.pilab.hu/accountd/cache"
	redicache "go.pilab.hu/accountd/cache/redis"
	"go.pilab.hu/accountd/config"
	"go.pilab.hu/accountd/internal/auth"
	"go.pilab.hu/accountd/internal/notify"
	"go.pilab.hu/accountd/mongodb"
	"go.pilab.hu/accountd/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Str("cache_backend", cfg.CacheBackend).
		Msg("Starting accountd server")

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}
	defer mongodb.CloseMongoDB(ctx)
	db := mongodb.GetDB()

	tokenRepo, err := mongodb.NewTokenRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TokenRepository")
	}
	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize UserRepository")
	}

	tokenCache := newTokenCache(cfg)

	signer := services.NewSigner(cfg.JWTSecret)
	tokenService := services.NewTokenService(tokenRepo, tokenCache, userRepo, signer, services.TokenServiceConfig{
		AccessTokenTTL:   cfg.AccessTokenTTL,
		RefreshTokenTTL:  cfg.RefreshTokenTTL,
		ResetPasswordTTL: time.Duration(cfg.ResetPasswordTTLMin) * time.Minute,
		VerifyEmailTTL:   time.Duration(cfg.VerifyEmailTTLMin) * time.Minute,
	})
	hasher := auth.NewBcryptPasswordHasher(0)
	authService := services.NewAuthService(userRepo, tokenService, hasher, notify.NewLogNotifier())
	userService := services.NewUserService(userRepo, hasher)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.GET("/healthz", func(c echo.Context) error {
		if err := mongodb.Ping(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	echoapi.NewAccountAPI(authService, userService, tokenService).RegisterRoutes(e)

	if cfg.SweepInterval > 0 {
		go runSweeper(ctx, tokenService, cfg.SweepInterval)
	}

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func newTokenCache(cfg *config.ServerConfig) cache.TokenCache {
	switch cfg.CacheBackend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		return redicache.NewTokenCache(client, "accountd")
	case "memory", "":
		return cache.NewMemoryTokenCache()
	default:
		log.Warn().Str("cache_backend", cfg.CacheBackend).Msg("Unknown cache backend, using memory")
		return cache.NewMemoryTokenCache()
	}
}

// runSweeper periodically removes expired token records. Correctness never
// depends on it: every lookup filters on expires_at.
func runSweeper(ctx context.Context, tokens *services.TokenService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		n, err := tokens.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("expired token sweep failed")
			continue
		}
		if n > 0 {
			log.Debug().Int64("removed", n).Msg("expired token records swept")
		}
	}
}
