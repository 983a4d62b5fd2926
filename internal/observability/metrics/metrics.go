package metrics

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	CheckoutResultSuccess           = "success"
	CheckoutResultInsufficientStock = "insufficient_stock"
	CheckoutResultCouponInvalid     = "coupon_invalid"
	CheckoutResultValidation        = "validation"
	CheckoutResultNotFound          = "not_found"
	CheckoutResultConflict          = "conflict"
	CheckoutResultTimeout           = "timeout"
	CheckoutResultError             = "error"
)

const (
	TxRetryReasonSerialization = "serialization_failure"
	TxRetryReasonDeadlock      = "deadlock"
	TxRetryReasonLockTimeout   = "lock_timeout"
	TxRetryReasonBusy          = "busy"
)

// Config sets the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// StoreMetrics captures checkout, order lifecycle and database health signals.
type StoreMetrics struct {
	checkouts         *prometheus.CounterVec
	checkoutDuration  prometheus.Observer
	orderTransitions  *prometheus.CounterVec
	couponRedemptions prometheus.Counter
	txRetries         *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	jobRuns           *prometheus.CounterVec
	jobErrors         *prometheus.CounterVec
	jobAffected       *prometheus.CounterVec
}

var (
	storeMetricsOnce sync.Once
	storeMetrics     *StoreMetrics
)

// Store returns the singleton metrics registry.
func Store() *StoreMetrics {
	return StoreWithConfig(Config{})
}

// StoreWithConfig returns the singleton metrics registry using config labels.
// Only the first call's config takes effect.
func StoreWithConfig(cfg Config) *StoreMetrics {
	storeMetricsOnce.Do(func() {
		storeMetrics = NewStoreMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return storeMetrics
}

// NewStoreMetrics registers a fresh set of collectors on registerer.
func NewStoreMetrics(registerer prometheus.Registerer, cfg Config) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "storefront"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_checkout_total",
		Help:        "Checkout attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"result"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "storefront_checkout_duration_seconds",
		Help:        "Checkout transaction latency including retries.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_order_transition_total",
		Help:        "Order status transitions applied.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	couponRedemptions := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "storefront_coupon_redemptions_total",
		Help:        "Coupons redeemed by completed checkouts.",
		ConstLabels: constLabels,
	})
	txRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_db_tx_retries_total",
		Help:        "Transactions retried after a transient database failure.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_http_requests_total",
		Help:        "HTTP requests by route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storefront_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_scheduler_job_runs_total",
		Help:        "Maintenance job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_scheduler_job_errors_total",
		Help:        "Maintenance job failures by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobAffected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_scheduler_rows_affected_total",
		Help:        "Rows changed by maintenance jobs.",
		ConstLabels: constLabels,
	}, []string{"job"})

	registerer.MustRegister(
		checkouts,
		checkoutDuration,
		orderTransitions,
		couponRedemptions,
		txRetries,
		httpRequests,
		httpDuration,
		jobRuns,
		jobErrors,
		jobAffected,
	)

	return &StoreMetrics{
		checkouts:         checkouts,
		checkoutDuration:  checkoutDuration,
		orderTransitions:  orderTransitions,
		couponRedemptions: couponRedemptions,
		txRetries:         txRetries,
		httpRequests:      httpRequests,
		httpDuration:      httpDuration,
		jobRuns:           jobRuns,
		jobErrors:         jobErrors,
		jobAffected:       jobAffected,
	}
}

// ObserveCheckout records the outcome and latency of one checkout call.
func (m *StoreMetrics) ObserveCheckout(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(CheckoutResult(err)).Inc()
	m.checkoutDuration.Observe(elapsed.Seconds())
}

func (m *StoreMetrics) IncOrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *StoreMetrics) IncCouponRedemption() {
	if m == nil {
		return
	}
	m.couponRedemptions.Inc()
}

func (m *StoreMetrics) IncTxRetry(err error) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(TxRetryReason(err)).Inc()
}

func (m *StoreMetrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveJob records one maintenance job run.
func (m *StoreMetrics) ObserveJob(job string, affected int64, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
	if err != nil {
		m.jobErrors.WithLabelValues(job).Inc()
		return
	}
	m.jobAffected.WithLabelValues(job).Add(float64(affected))
}

// CheckoutResult maps a checkout error to a low-cardinality label.
func CheckoutResult(err error) string {
	switch {
	case err == nil:
		return CheckoutResultSuccess
	case apperrors.IsInsufficientStock(err):
		return CheckoutResultInsufficientStock
	case apperrors.IsCouponInvalid(err):
		return CheckoutResultCouponInvalid
	case apperrors.IsValidation(err):
		return CheckoutResultValidation
	case apperrors.IsNotFound(err):
		return CheckoutResultNotFound
	case apperrors.IsConflict(err):
		return CheckoutResultConflict
	case errors.Is(err, context.DeadlineExceeded):
		return CheckoutResultTimeout
	}
	return CheckoutResultError
}

// TxRetryReason maps a retryable database error to a label.
func TxRetryReason(err error) string {
	switch {
	case apperrors.HasPGCode(err, apperrors.PGSerializationFailure):
		return TxRetryReasonSerialization
	case apperrors.HasPGCode(err, apperrors.PGDeadlockDetected):
		return TxRetryReasonDeadlock
	case apperrors.HasPGCode(err, apperrors.PGLockNotAvailable):
		return TxRetryReasonLockTimeout
	}
	return TxRetryReasonBusy
}
