package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	JobExpireCoupons    = "expire_coupons"
	JobExpireGuestCarts = "expire_guest_carts"

	couponSpec    = "@every 15m"
	guestCartSpec = "0 4 * * *" // daily at 04:00

	jobTimeout = time.Minute
)

type couponExpirer interface {
	DeactivateExpiredCoupons(ctx context.Context, now time.Time) (int64, error)
}

type guestCartExpirer interface {
	DeactivateIdleGuestCarts(ctx context.Context, ttl time.Duration) (int64, error)
}

// MaintenanceScheduler runs periodic housekeeping: expired coupons are
// switched off and idle guest carts are retired.
type MaintenanceScheduler struct {
	cron         *cron.Cron
	coupons      couponExpirer
	carts        guestCartExpirer
	guestCartTTL time.Duration
	metrics      *metrics.StoreMetrics
	now          func() time.Time
}

func NewMaintenanceScheduler(coupons couponExpirer, carts guestCartExpirer, guestCartTTL time.Duration, m *metrics.StoreMetrics) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		coupons:      coupons,
		carts:        carts,
		guestCartTTL: guestCartTTL,
		metrics:      m,
		now:          time.Now,
	}
}

func (s *MaintenanceScheduler) Start() error {
	if _, err := s.cron.AddFunc(couponSpec, func() { s.RunExpireCoupons(context.Background()) }); err != nil {
		logger.Error("Failed to add cron job", err, map[string]interface{}{"job": JobExpireCoupons})
		return err
	}
	if _, err := s.cron.AddFunc(guestCartSpec, func() { s.RunExpireGuestCarts(context.Background()) }); err != nil {
		logger.Error("Failed to add cron job", err, map[string]interface{}{"job": JobExpireGuestCarts})
		return err
	}

	s.cron.Start()
	logger.Info("Maintenance scheduler started", map[string]interface{}{
		"coupons":     couponSpec,
		"guest_carts": guestCartSpec,
	})
	return nil
}

// Stop waits for running jobs to finish.
func (s *MaintenanceScheduler) Stop() {
	logger.Info("Stopping maintenance scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Maintenance scheduler stopped")
}

func (s *MaintenanceScheduler) RunExpireCoupons(ctx context.Context) (int64, error) {
	return s.run(ctx, JobExpireCoupons, func(ctx context.Context) (int64, error) {
		return s.coupons.DeactivateExpiredCoupons(ctx, s.now())
	})
}

func (s *MaintenanceScheduler) RunExpireGuestCarts(ctx context.Context) (int64, error) {
	return s.run(ctx, JobExpireGuestCarts, func(ctx context.Context) (int64, error) {
		return s.carts.DeactivateIdleGuestCarts(ctx, s.guestCartTTL)
	})
}

func (s *MaintenanceScheduler) run(ctx context.Context, job string, fn func(context.Context) (int64, error)) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	started := time.Now()
	affected, err := fn(ctx)
	s.metrics.ObserveJob(job, affected, err)

	if err != nil {
		logger.Error("Scheduled job failed", err, map[string]interface{}{
			"job": job,
		})
		return 0, err
	}
	logger.Debug("Scheduled job finished", map[string]interface{}{
		"job":      job,
		"affected": affected,
		"elapsed":  time.Since(started).String(),
	})
	return affected, nil
}
