package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/crowdlend/crowdlend-api/internal/config"
	"github.com/crowdlend/crowdlend-api/internal/domain/admin"
	"github.com/crowdlend/crowdlend-api/internal/domain/fraud"
	"github.com/crowdlend/crowdlend-api/internal/domain/referralcredit"
	"github.com/crowdlend/crowdlend-api/internal/domain/user"
	"github.com/crowdlend/crowdlend-api/internal/middleware"
	"github.com/crowdlend/crowdlend-api/internal/pkg/database"
	"github.com/crowdlend/crowdlend-api/internal/pkg/email"
	"github.com/crowdlend/crowdlend-api/internal/pkg/jwt"
	"github.com/crowdlend/crowdlend-api/internal/pkg/logger"
	"github.com/crowdlend/crowdlend-api/internal/pkg/ratelimit"
	pkgresponse "github.com/crowdlend/crowdlend-api/internal/pkg/response"
)

const sweepLockKey = "lock:referral-credit-sweep"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, LogFile: cfg.LogFile})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting CrowdLend API")

	if cfg.IsProduction() && cfg.UsesDefaultSecrets() {
		log.Fatal().Msg("JWT_SECRET and ADMIN_JWT_SECRET must be set in production")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it rate limits are per process and every
	// instance runs its own sweep.
	var (
		limiter    ratelimit.Limiter
		lockClient redis.Cmdable
	)
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory rate limiting")
		rdb = nil
	}
	if rdb != nil {
		defer database.CloseRedis(rdb)
		lockClient = rdb
		limiter = ratelimit.NewRedisLimiter(rdb, "ratelimit:fraud-check", cfg.FraudCheckRateLimit, cfg.FraudCheckRateWindow)
	} else {
		mem := ratelimit.NewMemoryLimiter(cfg.FraudCheckRateLimit, cfg.FraudCheckRateWindow)
		go mem.RunSweeper(ctx, cfg.FraudCheckRateWindow)
		limiter = mem
	}

	jwtService := jwt.NewService(cfg.JWTSecret)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	adminRepo := admin.NewRepository(db)

	// ---------- Services ----------
	creditService := referralcredit.NewService(db, referralcredit.Policy{
		MinTransactionAmount: cfg.CreditMinTransactionAmount,
		MaxPerTransaction:    cfg.CreditMaxPerTransaction,
		WarningDays:          cfg.CreditWarningDays,
		ExpiringSoonDays:     cfg.CreditExpiringSoonDays,
	})
	fraudService := fraud.NewService(db, userRepo)
	adminService := admin.NewService(adminRepo)
	adminJWTService := admin.NewJWTService(cfg.AdminJWTSecret)

	// ---------- Background workers ----------
	if cfg.CreditSweepEnabled {
		lock := database.NewRedisLock(lockClient, sweepLockKey, 10*time.Minute)
		creditWorker := referralcredit.NewWorker(creditService, newNotifier(cfg), lock, cfg.CreditSweepInterval, cfg.CreditWarningDays)
		creditWorker.Start()
		defer creditWorker.Stop()
	}

	// ---------- Handlers ----------
	router := newRouter(routerDeps{
		allowedOrigins: cfg.AllowedOrigins,
		authMiddleware: middleware.Auth(jwtService),
		fraudRateLimit: middleware.RateLimit(limiter, "fraud_check", cfg.FraudCheckRateWindow),
		adminHandler:   admin.NewHandler(adminService, adminJWTService),
		creditHandler:  referralcredit.NewHandler(creditService, adminService),
		fraudHandler:   fraud.NewHandler(fraudService, adminService),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

type routerDeps struct {
	allowedOrigins []string
	authMiddleware func(http.Handler) http.Handler
	fraudRateLimit func(http.Handler) http.Handler
	adminHandler   *admin.Handler
	creditHandler  *referralcredit.Handler
	fraudHandler   *fraud.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.CORSHandler(d.allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/credits", d.creditHandler.Routes(d.authMiddleware))
		r.Mount("/referrals", d.fraudHandler.Routes(d.authMiddleware, d.fraudRateLimit))
	})

	r.Mount("/api/admin", d.adminHandler.Routes(
		d.creditHandler.AdminRoutes,
		d.fraudHandler.AdminRoutes,
	))

	return r
}

// newNotifier emails expiry warnings when SendGrid is configured and logs them otherwise
func newNotifier(cfg *config.Config) referralcredit.Notifier {
	if cfg.SendGridAPIKey == "" {
		return referralcredit.LogNotifier{}
	}
	client := email.NewSendGridClient(email.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	})
	return referralcredit.NewEmailNotifier(email.NewService(client))
}
