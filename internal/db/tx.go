package db

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ikkim/storefront-backend/config"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type TxOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	IsolationLevel sql.IsolationLevel // LevelDefault leaves the driver default (read committed on PostgreSQL)
	InitialBackoff time.Duration
}

func DefaultTxOptions() TxOptions {
	txOptionsMu.RLock()
	defer txOptionsMu.RUnlock()
	return defaultTxOptions
}

var (
	txOptionsMu      sync.RWMutex
	defaultTxOptions = TxOptions{
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		IsolationLevel: sql.LevelDefault,
		InitialBackoff: 20 * time.Millisecond,
	}
)

// ConfigureTx sets the defaults used by WithTransaction.
func ConfigureTx(cfg *config.DatabaseConfig) {
	txOptionsMu.Lock()
	defer txOptionsMu.Unlock()
	if cfg.TxTimeout > 0 {
		defaultTxOptions.Timeout = cfg.TxTimeout
	}
	if cfg.TxMaxRetries >= 0 {
		defaultTxOptions.MaxRetries = cfg.TxMaxRetries
	}
}

// WithTransaction runs fn in a transaction bounded by the default timeout,
// retrying transient lock and serialization failures.
func WithTransaction(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	return WithTransactionOptions(ctx, conn, DefaultTxOptions(), fn)
}

// WithTransactionOptions is WithTransaction with explicit options. Any error
// returned by fn rolls back every write made in that attempt.
func WithTransactionOptions(ctx context.Context, conn *gorm.DB, opts TxOptions, fn func(tx *gorm.DB) error) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var sqlOpts []*sql.TxOptions
	if opts.IsolationLevel != sql.LevelDefault {
		sqlOpts = append(sqlOpts, &sql.TxOptions{Isolation: opts.IsolationLevel})
	}

	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = 20 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := conn.WithContext(ctx).Transaction(fn, sqlOpts...)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("transaction aborted: %w", ctxErr)
		}
		if !apperrors.IsRetryable(err) {
			return err
		}
		if attempt >= opts.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
		}

		metrics.Store().IncTxRetry(err)
		logger.Warn("Retrying transaction after transient failure", map[string]interface{}{
			"attempt": attempt + 1,
			"reason":  metrics.TxRetryReason(err),
			"error":   err.Error(),
		})

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return fmt.Errorf("transaction aborted: %w", ctx.Err())
		}
		backoff *= 2
	}
}
