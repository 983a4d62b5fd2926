package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/controller"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/pkg/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controllers groups the HTTP handlers the router mounts.
type Controllers struct {
	Account *controller.AccountController
	Catalog *controller.CatalogController
	Cart    *controller.CartController
	Order   *controller.OrderController
	Coupon  *controller.CouponController
	Review  *controller.ReviewController
	Upload  *controller.UploadController
}

type Router struct {
	controllers    Controllers
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.StoreMetrics
	ping           func(ctx context.Context) error
	config         *config.Config
}

// NewRouter wires the route table. ping backs /health and may be nil.
func NewRouter(
	controllers Controllers,
	authMiddleware *middleware.AuthMiddleware,
	storeMetrics *metrics.StoreMetrics,
	ping func(ctx context.Context) error,
	cfg *config.Config,
) *Router {
	return &Router{
		controllers:    controllers,
		authMiddleware: authMiddleware,
		metrics:        storeMetrics,
		ping:           ping,
		config:         cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(r.metrics))
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", r.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.authMiddleware.Authenticate()
	staff := []gin.HandlerFunc{auth, r.authMiddleware.RequireRole(util.RoleStaff)}
	cartOwner := r.authMiddleware.ResolveCartOwner()
	ctl := r.controllers

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", ctl.Account.Register)

		me := v1.Group("/me", auth)
		{
			me.GET("", ctl.Account.Me)
			me.GET("/profile", ctl.Account.GetProfile)
			me.PATCH("/profile", ctl.Account.UpdateProfile)
			me.GET("/addresses", ctl.Account.ListAddresses)
			me.POST("/addresses", ctl.Account.CreateAddress)
			me.PUT("/addresses/:id", ctl.Account.UpdateAddress)
			me.PUT("/addresses/:id/default", ctl.Account.SetDefaultAddress)
			me.DELETE("/addresses/:id", ctl.Account.DeleteAddress)
		}

		v1.GET("/categories", ctl.Catalog.ListCategories)
		v1.GET("/brands", ctl.Catalog.ListBrands)

		products := v1.Group("/products")
		{
			products.GET("", ctl.Catalog.ListProducts)
			products.GET("/:slug", ctl.Catalog.GetProduct)
			products.GET("/:slug/related", ctl.Catalog.RelatedProducts)
			products.GET("/:slug/reviews", ctl.Review.ListReviews)
			products.POST("/:slug/reviews", auth, ctl.Review.SubmitReview)
		}

		cart := v1.Group("/cart")
		{
			cart.POST("/session", ctl.Cart.NewSession)
			cart.POST("/merge", auth, ctl.Cart.MergeGuestCart)
			cart.GET("", cartOwner, ctl.Cart.GetCart)
			cart.POST("/items", cartOwner, ctl.Cart.AddToCart)
			cart.PUT("/items/:id", cartOwner, ctl.Cart.UpdateCartItem)
			cart.DELETE("/items/:id", cartOwner, ctl.Cart.RemoveCartItem)
		}

		v1.POST("/coupons/apply", ctl.Coupon.ApplyCoupon)

		orders := v1.Group("/orders", auth)
		{
			orders.POST("", ctl.Order.Checkout)
			orders.GET("", ctl.Order.ListOrders)
			orders.GET("/:id", ctl.Order.GetOrder)
			orders.POST("/:id/cancel", ctl.Order.CancelOrder)
		}

		admin := v1.Group("/admin", staff...)
		{
			admin.GET("/categories", ctl.Catalog.ListAllCategories)
			admin.POST("/categories", ctl.Catalog.CreateCategory)
			admin.PUT("/categories/:id/parent", ctl.Catalog.MoveCategory)
			admin.POST("/brands", ctl.Catalog.CreateBrand)

			admin.GET("/products", ctl.Catalog.ListAllProducts)
			admin.POST("/products", ctl.Catalog.CreateProduct)
			admin.GET("/products/:id", ctl.Catalog.GetProductByID)
			admin.PUT("/products/:id", ctl.Catalog.UpdateProduct)
			admin.DELETE("/products/:id", ctl.Catalog.DeleteProduct)
			admin.POST("/products/:id/variants", ctl.Catalog.AddVariant)
			admin.DELETE("/products/:id/variants/:variant_id", ctl.Catalog.DeleteVariant)
			admin.POST("/products/:id/images", ctl.Catalog.AttachImage)
			admin.POST("/products/:id/images/presign", ctl.Upload.PresignProductImage)
			admin.PUT("/products/:id/images/:image_id/primary", ctl.Catalog.SetPrimaryImage)

			admin.POST("/catalog/import", ctl.Catalog.ImportCatalog)
			admin.GET("/catalog/template", ctl.Catalog.CatalogTemplate)

			admin.POST("/coupons", ctl.Coupon.CreateCoupon)
			admin.PUT("/reviews/:id/approve", ctl.Review.ApproveReview)
			admin.POST("/customers/:id/loyalty", ctl.Account.AdjustLoyaltyPoints)

			admin.GET("/orders", ctl.Order.FindOrderByNumber)
			admin.GET("/orders/:id", ctl.Order.AdminGetOrder)
			admin.PUT("/orders/:id/status", ctl.Order.UpdateOrderStatus)
			admin.PUT("/orders/:id/tracking", ctl.Order.SetTrackingNumber)
			admin.PUT("/orders/:id/notes", ctl.Order.SetAdminNotes)
		}
	}

	return router
}

func (r *Router) health(c *gin.Context) {
	if r.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.ping(ctx); err != nil {
			middleware.GetLoggerFromContext(c).Error("Health check failed", err, nil)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "database unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Storefront API is running",
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowHeaders := strings.Join([]string{
		"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"accept", "origin", "Cache-Control", "X-Requested-With",
		middleware.SessionHeader, middleware.RequestIDHeader,
	}, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
