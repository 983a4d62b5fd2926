package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/controller"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/internal/router"
	"github.com/ikkim/storefront-backend/internal/scheduler"
	"github.com/ikkim/storefront-backend/internal/storage"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/ordernumber"
	"github.com/ikkim/storefront-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting Storefront Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   cfg.Log.Level,
	})

	storeMetrics := metrics.StoreWithConfig(metrics.Config{
		ServiceName: "storefront-backend",
		Environment: cfg.Server.Environment,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()
	db.ConfigureTx(&cfg.Database)

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	numbers := orderNumbers(cfg)
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("Failed to close Redis connection", err)
		}
	}()

	conn := db.GetDB()

	// Initialize repositories
	userRepo := repository.NewUserRepository(conn)
	addressRepo := repository.NewAddressRepository(conn)
	categoryRepo := repository.NewCategoryRepository(conn)
	brandRepo := repository.NewBrandRepository(conn)
	productRepo := repository.NewProductRepository(conn)
	variantRepo := repository.NewProductVariantRepository(conn)
	imageRepo := repository.NewProductImageRepository(conn)
	cartRepo := repository.NewCartRepository(conn)
	orderRepo := repository.NewOrderRepository(conn)
	couponRepo := repository.NewCouponRepository(conn)
	reviewRepo := repository.NewReviewRepository(conn)

	// Initialize services
	accountService := service.NewAccountService(userRepo, addressRepo, conn)
	catalogService := service.NewCatalogService(categoryRepo, brandRepo, productRepo, variantRepo, imageRepo, conn, cfg.Catalog.PageSize)
	cartService := service.NewCartService(cartRepo, productRepo, variantRepo, conn)
	couponService := service.NewCouponService(couponRepo)
	orderService := service.NewOrderService(orderRepo, cartRepo, productRepo, variantRepo, addressRepo,
		couponRepo, numbers, storeMetrics, conn)
	reviewService := service.NewReviewService(reviewRepo, productRepo, orderRepo, conn)

	s3Storage, err := storage.NewS3Storage(context.Background(), cfg.S3)
	if err != nil {
		logger.Fatal("Failed to initialize S3 storage", err)
	}

	// Initialize controllers
	controllers := router.Controllers{
		Account: controller.NewAccountController(accountService, cfg.JWT.Secret, cfg.JWT.AccessTTL),
		Catalog: controller.NewCatalogController(catalogService),
		Cart:    controller.NewCartController(cartService),
		Order:   controller.NewOrderController(orderService),
		Coupon:  controller.NewCouponController(couponService),
		Review:  controller.NewReviewController(reviewService, catalogService),
		Upload:  controller.NewUploadController(s3Storage, catalogService),
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	ping := func(ctx context.Context) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	engine := router.NewRouter(controllers, authMiddleware, storeMetrics, ping, cfg).Setup()

	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewMaintenanceScheduler(couponService, cartService, cfg.Scheduler.GuestCartTTL, storeMetrics)
		if err := jobs.Start(); err != nil {
			logger.Fatal("Failed to start maintenance scheduler", err)
		}
		defer jobs.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}

// orderNumbers picks the redis daily sequence when redis is enabled and
// reachable, else snowflake ids.
func orderNumbers(cfg *config.Config) ordernumber.Generator {
	if cfg.Redis.Enabled {
		client, err := redis.Init(&cfg.Redis)
		if err == nil {
			logger.Info("Using redis daily order numbers")
			return ordernumber.NewRedisDaily(cfg.Order.NumberPrefix, client)
		}
		logger.Warn("Redis unavailable, falling back to snowflake order numbers", map[string]interface{}{
			"error": err.Error(),
		})
	}

	generator, err := ordernumber.NewSnowflake(cfg.Order.NumberPrefix, cfg.Order.NodeID)
	if err != nil {
		logger.Fatal("Failed to create order number generator", err)
	}
	return generator
}
