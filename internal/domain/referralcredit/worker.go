package referralcredit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers expiry warnings. Delivery channels live outside this service.
type Notifier interface {
	NotifyExpiring(ctx context.Context, n Notification) error
}

// LogNotifier writes warnings to the log
type LogNotifier struct{}

func (LogNotifier) NotifyExpiring(_ context.Context, n Notification) error {
	log.Info().
		Str("user_id", n.UserID.String()).
		Str("email", n.Email).
		Str("amount", n.TotalExpiring.StringFixed(2)).
		Time("earliest_expiry", n.EarliestExpiry).
		Int("credits", len(n.Credits)).
		Msg("referral credits expiring soon")
	return nil
}

// Lock keeps a sweep exclusive across instances
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper is the subset of Service the worker drives
type Sweeper interface {
	AutoExpireCredits(ctx context.Context) (*ExpireResult, error)
	SendExpirationWarnings(ctx context.Context, days int) (*WarningsResult, error)
}

// Worker periodically expires overdue credits and sends expiry warnings
type Worker struct {
	sweeper     Sweeper
	notifier    Notifier
	lock        Lock
	interval    time.Duration
	warningDays int
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewWorker creates a new expiry worker
func NewWorker(sweeper Sweeper, notifier Notifier, lock Lock, interval time.Duration, warningDays int) *Worker {
	if interval == 0 {
		interval = 24 * time.Hour
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Worker{
		sweeper:     sweeper,
		notifier:    notifier,
		lock:        lock,
		interval:    interval,
		warningDays: warningDays,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background worker
func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting credit expiry worker...")
	go w.loop()
}

// Stop stops the worker and waits for a running sweep to finish
func (w *Worker) Stop() {
	log.Info().Msg("Stopping credit expiry worker...")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) loop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			w.RunOnce(context.Background())
		case <-w.stopCh:
			return
		}
	}
}

// RunOnce performs one sweep if this instance wins the lock
func (w *Worker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to acquire credit sweep lock")
			return
		}
		if !acquired {
			log.Debug().Msg("Credit sweep running on another instance")
			return
		}
		defer func() {
			if err := w.lock.Release(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to release credit sweep lock")
			}
		}()
	}

	if _, err := w.sweeper.AutoExpireCredits(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to expire referral credits")
	}

	warnings, err := w.sweeper.SendExpirationWarnings(ctx, w.warningDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build expiry warnings")
		return
	}

	delivered := 0
	for _, n := range warnings.Notifications {
		if err := w.notifier.NotifyExpiring(ctx, n); err != nil {
			log.Warn().Err(err).Str("user_id", n.UserID.String()).Msg("Failed to deliver expiry warning")
			continue
		}
		delivered++
	}
	if delivered > 0 {
		log.Info().Int("delivered", delivered).Int("total", warnings.WarningsSent).Msg("Expiry warnings delivered")
	}
}
