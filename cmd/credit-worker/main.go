package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/crowdlend/crowdlend-api/internal/config"
	"github.com/crowdlend/crowdlend-api/internal/domain/referralcredit"
	"github.com/crowdlend/crowdlend-api/internal/pkg/database"
	"github.com/crowdlend/crowdlend-api/internal/pkg/email"
	"github.com/crowdlend/crowdlend-api/internal/pkg/logger"
)

const (
	sweepLockKey  = "lock:referral-credit-sweep"
	wakeupChannel = "credits:sweep"
)

// credit-worker runs the expiry sweep outside the API process. Set
// CREDIT_SWEEP_ENABLED=false on the API instances when this is deployed.
func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, LogFile: cfg.LogFile})

	log.Info().Dur("interval", cfg.CreditSweepInterval).Msg("Starting credit-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	service := referralcredit.NewService(db, referralcredit.Policy{
		MinTransactionAmount: cfg.CreditMinTransactionAmount,
		MaxPerTransaction:    cfg.CreditMaxPerTransaction,
		WarningDays:          cfg.CreditWarningDays,
		ExpiringSoonDays:     cfg.CreditExpiringSoonDays,
	})

	var lockClient redis.Cmdable
	if rdb != nil {
		lockClient = rdb
	}
	lock := database.NewRedisLock(lockClient, sweepLockKey, 10*time.Minute)
	worker := referralcredit.NewWorker(service, newNotifier(cfg), lock, cfg.CreditSweepInterval, cfg.CreditWarningDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PUBLISH credits:sweep triggers an immediate run; the ticker still drives the schedule
	wake := make(chan struct{}, 1)
	if rdb != nil {
		go subscribeWakeups(ctx, rdb, wake)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.CreditSweepInterval)
	defer ticker.Stop()

	worker.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("credit-worker stopped")
			return
		case <-wake:
			log.Info().Msg("Sweep requested")
		case <-ticker.C:
		}

		start := time.Now()
		worker.RunOnce(ctx)
		log.Debug().Dur("duration", time.Since(start)).Msg("Sweep finished")
	}
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, wakeupChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
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
