package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"devbills/backend/internal/api/handlers"
	"devbills/backend/internal/api/middleware"
	"devbills/backend/internal/config"
	"devbills/backend/internal/services"
	"devbills/backend/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	// Initialize services needed by API handlers
	userService := services.NewUserService(db)
	invoiceService := services.NewInvoiceService(db)
	shopService := services.NewShopService(db, rdb, cfg)
	sessionService := services.NewSessionService(rdb, cfg)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService)
	invoiceHandler := handlers.NewInvoiceHandler(cfg, invoiceService, s3StorageService, taskClient)
	shopHandler := handlers.NewShopHandler(cfg, shopService, s3StorageService, taskClient)
	productHandler := handlers.NewProductHandler(sessionService)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Public routes (rate limiting already applied globally)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		// Routes usable by guests and signed-in users alike. A valid bearer
		// token attaches the user; a garbage token is rejected outright.
		optionalAuth := v1.Group("/")
		optionalAuth.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret))
		{
			optionalAuth.POST("/invoices", invoiceHandler.SaveInvoice)
			optionalAuth.GET("/invoices/history", invoiceHandler.History)
			optionalAuth.POST("/invoices/totals", invoiceHandler.ComputeTotals)
			optionalAuth.GET("/invoices/:id/pdf", invoiceHandler.GetInvoicePDF)

			optionalAuth.GET("/shop", shopHandler.GetShop)
			optionalAuth.PUT("/shop", shopHandler.UpdateShop)
			optionalAuth.POST("/shop/logo", shopHandler.UploadLogo)

			optionalAuth.GET("/products", productHandler.ListProducts)
			optionalAuth.POST("/products", productHandler.AddProduct)
			optionalAuth.DELETE("/products/:index", productHandler.RemoveProduct)

			optionalAuth.GET("/preview", productHandler.GetPreview)
			optionalAuth.PUT("/preview", productHandler.PutPreview)
		}

		// Authenticated routes (already have rate limiting from global middleware)
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/invoices", invoiceHandler.ListInvoices)
			authRequired.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)
		}
	}

	return r
}
